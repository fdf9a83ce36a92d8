package server

import (
	"context"
	"fmt"
	"time"

	"docsearch/app/api"
	"docsearch/app/watch"
	"docsearch/chunker"
	"docsearch/config"
	"docsearch/engine"
	"docsearch/ingest"
	"docsearch/model"
	"docsearch/processor"
	"docsearch/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Server wires the full pipeline behind a fiber app.
type Server struct {
	cfg      config.Config
	app      *fiber.App
	store    store.VectorStore
	embedder model.Embedder
	watcher  *watch.Watcher
	log      *logrus.Entry
}

func New(ctx context.Context, cfg config.Config) (*Server, error) {
	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("store init: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}

	var ocr *processor.OCRClient
	if cfg.VisionURL != "" && cfg.VisionModel != "" {
		ocr = processor.NewOCRClient(cfg.VisionURL, cfg.VisionModel)
	}
	proc := processor.New(ocr)

	chk, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("chunker: %w", err)
	}

	coordinator := ingest.New(proc, chk, embedder, st, cfg.StageTimeout, cfg.EmbeddingRetries)
	eng := engine.New(st, embedder)

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    64 << 20,
	})

	var (
		ingestHandler   = api.NewIngestHandler(coordinator)
		queryHandler    = api.NewQueryHandler(eng)
		documentHandler = api.NewDocumentHandler(st)
		checkHandler    = api.NewCheckHandler(st, embedder)
		check           = app.Group("/check")
		apiv1           = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/documents", ingestHandler.HandleIngest)
	apiv1.Get("/documents", documentHandler.HandleList)
	apiv1.Delete("/documents/:id", documentHandler.HandleDelete)
	apiv1.Post("/query", queryHandler.HandleQuery)

	s := &Server{
		cfg:      cfg,
		app:      app,
		store:    st,
		embedder: embedder,
		log:      logrus.WithField("component", "server"),
	}

	if cfg.WatchDir != "" {
		s.watcher, err = watch.New(coordinator, cfg.WatchDir, cfg.ArchiveDir,
			cfg.QuarantineDir, cfg.WatchInterval)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("watcher: %w", err)
		}
	}

	return s, nil
}

func newStore(ctx context.Context, cfg config.Config) (store.VectorStore, error) {
	if cfg.StoreBackend == "memory" {
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.PostgresDSN, cfg.EmbeddingDim)
}

func newEmbedder(cfg config.Config) (model.Embedder, error) {
	var inner model.Embedder
	if cfg.EmbeddingBackend == "mock" {
		inner = model.NewMockEmbedder(cfg.EmbeddingDim)
	} else {
		ollama, err := model.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel,
			cfg.EmbeddingDim, cfg.EmbeddingMaxTokens, cfg.EmbeddingWorkers)
		if err != nil {
			return nil, err
		}
		inner = ollama
	}
	return model.NewCachedEmbedder(inner, cfg.CacheSize)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.ListenAddr)
	}()

	s.log.WithField("addr", s.cfg.ListenAddr).Info("server listening")

	select {
	case err := <-errCh:
		s.store.Close()
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
		s.log.WithError(err).Warn("shutdown")
	}
	s.store.Close()
	return nil
}
