package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsearch/ingest"
	"docsearch/types"

	"github.com/sirupsen/logrus"
)

// Watcher is the local-directory adapter: a cancellable scheduled scan that
// submits dropped files to the ingestion coordinator. Processed files move
// to a dated archive folder, failed ones to quarantine, so the source
// directory never grows and restarts cause no resubmission storm — the
// coordinator's idempotency check is the second line of defense anyway.
type Watcher struct {
	coordinator *ingest.Coordinator
	dir         string
	archiveDir  string
	badDir      string
	interval    time.Duration
	firstSeen   map[string]time.Time
	log         *logrus.Entry
}

func New(coordinator *ingest.Coordinator, dir, archiveDir, badDir string, interval time.Duration) (*Watcher, error) {
	for _, d := range []string{dir, archiveDir, badDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		coordinator: coordinator,
		dir:         dir,
		archiveDir:  archiveDir,
		badDir:      badDir,
		interval:    interval,
		firstSeen:   make(map[string]time.Time),
		log:         logrus.WithField("component", "watcher"),
	}, nil
}

// Run scans until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.log.WithField("dir", w.dir).Info("watching for dropped files")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.WithError(err).Warn("reading watch directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())

		// Let a file settle for two intervals before touching it, so a
		// half-copied file is never ingested.
		seen, ok := w.firstSeen[path]
		if !ok {
			w.firstSeen[path] = time.Now()
			continue
		}
		if time.Since(seen) < 2*w.interval {
			continue
		}
		delete(w.firstSeen, path)

		w.submit(ctx, path, entry.Name())
	}
}

func (w *Watcher) submit(ctx context.Context, path, name string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.WithError(err).WithField("file", path).Warn("reading dropped file")
		return
	}

	result, err := w.coordinator.Ingest(ctx, types.UploadSubmission{
		Filename:   name,
		Data:       data,
		SourceID:   name,
		UploadedBy: "watcher",
	})
	if err != nil {
		w.log.WithError(err).WithField("file", name).Warn("ingestion failed, quarantining")
		w.moveTo(path, w.badDir)
		return
	}

	w.log.WithFields(logrus.Fields{
		"file":   name,
		"doc_id": result.DocumentID,
		"chunks": result.ChunkCount,
	}).Info("file ingested")
	w.moveTo(path, w.archiveDir)
}

// moveTo relocates a file into a dated subfolder, renaming on name clash.
func (w *Watcher) moveTo(path, destRoot string) {
	destDir := filepath.Join(destRoot, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		w.log.WithError(err).Warn("creating destination directory")
		return
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		base := strings.TrimSuffix(filepath.Base(dest), ext)
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, time.Now().UnixNano(), ext))
	}

	if err := os.Rename(path, dest); err == nil {
		return
	}
	// Rename across filesystems falls back to copy-and-remove.
	in, err := os.Open(path)
	if err != nil {
		w.log.WithError(err).Warn("opening file for archive")
		return
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		w.log.WithError(err).Warn("creating archive file")
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		w.log.WithError(err).Warn("copying to archive")
		return
	}
	os.Remove(path)
}
