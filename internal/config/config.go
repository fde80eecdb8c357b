package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all settings recognized from the environment. Every field
// has a working default so the binary runs without any configuration.
type Config struct {
	// Ollama embedding backend.
	OllamaURL      string
	EmbeddingModel string

	// Chat model for optional LLM query refinement.
	ChatModel string

	// Vector store persistence path.
	DBPath string

	// Default repository used when a command omits --repo.
	DefaultRepo string

	// Retrieval tuning.
	TopK           int
	TopKPerQuery   int
	QueryCount     int
	RAGEnabled     bool
	RAGConcurrency int

	// GitHub access token (optional; unauthenticated works for public repos).
	GitHubToken string
}

// Load reads configuration from a .env file (if present) and the
// environment. Environment variables win over .env entries, which is
// godotenv's default behavior.
func Load() *Config {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	return &Config{
		OllamaURL:      envStr("BRD_OLLAMA_URL", "http://localhost:11434"),
		EmbeddingModel: envStr("BRD_EMBEDDING_MODEL", "nomic-embed-text"),
		ChatModel:      envStr("BRD_CHAT_MODEL", "qwen3:8b"),
		DBPath:         envStr("BRD_DB_PATH", defaultDBPath()),
		DefaultRepo:    envStr("BRD_DEFAULT_REPO", ""),
		TopK:           envInt("BRD_RAG_TOP_K", 10),
		TopKPerQuery:   envInt("BRD_RAG_TOP_K_PER_QUERY", 5),
		QueryCount:     envInt("BRD_RAG_QUERY_COUNT", 10),
		RAGEnabled:     envBool("BRD_RAG_ENABLED", true),
		RAGConcurrency: envInt("BRD_RAG_CONCURRENCY", 4),
		GitHubToken:    envStr("BRD_GITHUB_TOKEN", os.Getenv("GITHUB_TOKEN")),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".brdagent", "store.db")
	}
	return filepath.Join(home, ".brdagent", "store.db")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
