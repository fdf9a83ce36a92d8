package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config gathers every knob the service reads from the environment.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogJSON    bool

	// Storage. StoreBackend is "postgres" or "memory"; memory exists for
	// local development and tests, it is not durable.
	StoreBackend string
	PostgresDSN  string

	// Embedding backend. "ollama" talks to a local model server, "mock"
	// produces deterministic vectors with no external dependency.
	EmbeddingBackend   string
	EmbeddingURL       string
	EmbeddingModel     string
	EmbeddingDim       int
	EmbeddingMaxTokens int
	EmbeddingWorkers   int
	EmbeddingRetries   int
	CacheSize          int

	// Optional OCR capability for image submissions.
	VisionURL   string
	VisionModel string

	ChunkSize    int
	ChunkOverlap int

	StageTimeout time.Duration

	// Local drop-directory watcher; disabled when WatchDir is empty.
	WatchDir      string
	ArchiveDir    string
	QuarantineDir string
	WatchInterval time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:         getEnv("SERVER_ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogJSON:            getBool("LOG_JSON", false),
		StoreBackend:       getEnv("STORE_BACKEND", "postgres"),
		PostgresDSN:        buildDSN(),
		EmbeddingBackend:   getEnv("EMBEDDING_BACKEND", "ollama"),
		EmbeddingURL:       getEnv("OLLAMA_EMBEDDING_URL", "http://localhost:11434"),
		EmbeddingModel:     getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:       getInt("EMBEDDING_DIM", 768),
		EmbeddingMaxTokens: getInt("EMBEDDING_MAX_TOKENS", 8192),
		EmbeddingWorkers:   getInt("EMBEDDING_WORKERS", 4),
		EmbeddingRetries:   getInt("EMBEDDING_RETRIES", 3),
		CacheSize:          getInt("EMBEDDING_CACHE_SIZE", 4096),
		VisionURL:          os.Getenv("OLLAMA_VL_URL"),
		VisionModel:        os.Getenv("OLLAMA_VL_MODEL"),
		ChunkSize:          getInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getInt("CHUNK_OVERLAP", 200),
		StageTimeout:       getDuration("STAGE_TIMEOUT", 60*time.Second),
		WatchDir:           os.Getenv("WATCH_DIR"),
		ArchiveDir:         getEnv("ARCHIVE_DIR", "archive"),
		QuarantineDir:      getEnv("QUARANTINE_DIR", "bad"),
		WatchInterval:      getDuration("WATCH_INTERVAL", time.Second),
	}

	if cfg.ChunkSize <= 0 {
		return cfg, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return cfg, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", cfg.ChunkOverlap)
	}
	if cfg.EmbeddingDim <= 0 {
		return cfg, fmt.Errorf("EMBEDDING_DIM must be positive, got %d", cfg.EmbeddingDim)
	}
	switch cfg.StoreBackend {
	case "postgres", "memory":
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.EmbeddingBackend {
	case "ollama", "mock":
	default:
		return cfg, fmt.Errorf("unknown EMBEDDING_BACKEND %q", cfg.EmbeddingBackend)
	}
	return cfg, nil
}

func buildDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		getEnv("PG_USER", "postgres"),
		getEnv("PG_PASS", "postgres"),
		getEnv("PG_DB_NAME", "docsearch"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
