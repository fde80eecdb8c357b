package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"brdagent/internal/chunker"
	"brdagent/internal/chunker/languages"
	"brdagent/internal/config"
	"brdagent/internal/embedder"
	"brdagent/internal/github"
	"brdagent/internal/ingest"
	"brdagent/internal/store"
)

// cfg is loaded before any command init so flag defaults can use it.
var cfg = config.Load()

var (
	flagDB        string
	flagOllama    string
	flagModel     string
	flagChatModel string
	flagRepo      string
	flagToken     string
)

var rootCmd = &cobra.Command{
	Use:   "brdagent",
	Short: "Repository context retrieval for requirements documents",
	Long: `brdagent ingests GitHub repositories into a local vector store and
retrieves the most relevant documentation and code for a parsed
business requirements document.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", cfg.DBPath, "database path")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", cfg.OllamaURL, "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", cfg.EmbeddingModel, "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", cfg.ChatModel, "generative model for query refinement")
	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", cfg.DefaultRepo, "repository (owner/name or GitHub URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "github-token", cfg.GitHubToken, "GitHub access token")
}

// repoArg resolves the repository from a positional argument or --repo.
func repoArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if flagRepo != "" {
		return flagRepo, nil
	}
	return "", fmt.Errorf("no repository given; pass one or set --repo / BRD_DEFAULT_REPO")
}

// openStore opens the database, creating its directory if needed.
func openStore() (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(flagDB), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return store.Open(flagDB, store.DefaultDimension)
}

func newDispatcher() *chunker.Dispatcher {
	reg := chunker.NewRegistry()
	languages.RegisterAll(reg)
	return chunker.NewDispatcher(reg)
}

func newEmbedder() *embedder.OllamaEmbedder {
	return embedder.NewOllamaEmbedder(flagOllama, flagModel)
}

func newIngestService(ctx context.Context, st store.Store) *ingest.Service {
	gh := github.NewClient(ctx, flagToken)
	return ingest.NewService(st, gh, newDispatcher(), newEmbedder(), cfg.RAGConcurrency)
}
