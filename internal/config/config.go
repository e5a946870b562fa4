// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to run.
type Config struct {
	Addr           string        // HTTP listen address
	DocsRoot       string        // root directory of markdown documentation
	DBPath         string        // sqlite database file
	IndexPath      string        // bleve index directory
	MaxTurns       int           // agent turn bound per run
	ToolTimeout    time.Duration // per-tool-call deadline
	Watch          bool          // watch DocsRoot for changes and re-ingest
	AllowedOrigins []string      // CORS origins
	LogLevel       string        // debug, info, warn, error
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	// Ignore a missing .env; it is a development convenience only.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:           envString("DOCPILOT_ADDR", ":8080"),
		DocsRoot:       envString("DOCPILOT_DOCS_ROOT", "./docs"),
		DBPath:         envString("DOCPILOT_DB_PATH", "./data/docpilot.db"),
		IndexPath:      envString("DOCPILOT_INDEX_PATH", "./data/docpilot.bleve"),
		MaxTurns:       envInt("DOCPILOT_MAX_TURNS", 15),
		ToolTimeout:    envDuration("DOCPILOT_TOOL_TIMEOUT", 30*time.Second),
		Watch:          envBool("DOCPILOT_WATCH", true),
		AllowedOrigins: envList("DOCPILOT_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:       envString("DOCPILOT_LOG_LEVEL", "info"),
	}

	if cfg.MaxTurns < 1 {
		return nil, fmt.Errorf("DOCPILOT_MAX_TURNS must be at least 1, got %d", cfg.MaxTurns)
	}
	if cfg.DocsRoot == "" {
		return nil, fmt.Errorf("DOCPILOT_DOCS_ROOT must not be empty")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
