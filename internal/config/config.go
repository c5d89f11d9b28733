package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string

	// Auth
	PaperdocAPIKey string

	// Storage backend: "sqlite" or "pathstore"
	StoreBackend string
	SQLitePath   string

	// Pathstore connection
	PathstoreURL    string
	PathstoreAPIKey string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentStore int

	// Upload limits
	MaxUploadBytes int64

	// Chunking defaults
	DefaultChunkSize    int
	DefaultChunkOverlap int

	// Job state
	JobTTL time.Duration

	// Extraction
	IDStrategy           string // "hash" or "random"
	SectionOverridesFile string

	// Logging
	Debug bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		PaperdocAPIKey: os.Getenv("PAPERDOC_API_KEY"),

		StoreBackend: envOr("STORE_BACKEND", "sqlite"),
		SQLitePath:   envOr("SQLITE_PATH", "paperdoc.db"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentStore: envInt("MAX_CONCURRENT_STORE", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 20971520), // 20MB

		DefaultChunkSize:    envInt("DEFAULT_CHUNK_SIZE", 1500),
		DefaultChunkOverlap: envInt("DEFAULT_CHUNK_OVERLAP", 200),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		IDStrategy:           envOr("ID_STRATEGY", "hash"),
		SectionOverridesFile: os.Getenv("SECTION_OVERRIDES_FILE"),

		Debug: envBool("DEBUG", false),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = 1500
	}
	if cfg.DefaultChunkOverlap <= 0 {
		cfg.DefaultChunkOverlap = 200
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.PaperdocAPIKey == "" {
		return fmt.Errorf("PAPERDOC_API_KEY is required")
	}
	switch c.StoreBackend {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case "pathstore":
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be sqlite or pathstore, got %q", c.StoreBackend)
	}
	if c.IDStrategy != "hash" && c.IDStrategy != "random" {
		return fmt.Errorf("ID_STRATEGY must be hash or random, got %q", c.IDStrategy)
	}
	return nil
}

// Overrides is the on-disk form of SECTION_OVERRIDES_FILE.
type Overrides struct {
	SectionNumbers map[string]string `yaml:"section_numbers"`
}

// LoadSectionOverrides reads forced section numbers from a YAML file. An
// empty path returns nil, which leaves the built-in defaults in place. A file
// with an empty section_numbers map disables overrides.
func LoadSectionOverrides(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read section overrides: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse section overrides: %w", err)
	}
	if o.SectionNumbers == nil {
		o.SectionNumbers = map[string]string{}
	}
	return o.SectionNumbers, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
