package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"brdagent/internal/brd"
	"brdagent/internal/ingest"
	"brdagent/internal/retriever"
	"brdagent/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing retrieval and ingestion tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	svc := newIngestService(ctx, st)
	r := retriever.New(st, newEmbedder(), nil, retriever.Options{
		Enabled:      cfg.RAGEnabled,
		TopK:         cfg.TopK,
		TopKPerQuery: cfg.TopKPerQuery,
		MaxQueries:   cfg.QueryCount,
		Concurrency:  cfg.RAGConcurrency,
	})

	s := mcpserver.NewMCPServer("brdagent", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(retrieveContextTool(), makeRetrieveHandler(r))
	s.AddTool(repositoryStatusTool(), makeStatusHandler(svc))
	s.AddTool(listRepositoriesTool(), makeListHandler(st))
	s.AddTool(ingestRepositoryTool(), makeIngestHandler(svc))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func retrieveContextTool() mcp.Tool {
	return mcp.NewTool("retrieve_context",
		mcp.WithDescription("Retrieve the most relevant documentation and code chunks from an ingested repository for a requirements document or a free-form question. Returns ranked chunks with file paths, line ranges, and provenance."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repository",
			mcp.Required(),
			mcp.Description("Repository as owner/name or GitHub URL"),
		),
		mcp.WithString("brd_json",
			mcp.Description("Parsed requirements document as JSON (business objectives and functional requirements drive the queries)"),
		),
		mcp.WithString("query",
			mcp.Description("Free-form question, used when no requirements document is given"),
		),
	)
}

func repositoryStatusTool() mcp.Tool {
	return mcp.NewTool("repository_status",
		mcp.WithDescription("Check whether a repository has been ingested and how many documents and chunks its collection holds."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repository",
			mcp.Required(),
			mcp.Description("Repository as owner/name or GitHub URL"),
		),
	)
}

func listRepositoriesTool() mcp.Tool {
	return mcp.NewTool("list_repositories",
		mcp.WithDescription("List all ingested repository collections with their document and chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func ingestRepositoryTool() mcp.Tool {
	return mcp.NewTool("ingest_repository",
		mcp.WithDescription("Ingest a GitHub repository's documentation and code into the vector store. Re-ingesting refreshes existing documents."),
		mcp.WithString("repository",
			mcp.Required(),
			mcp.Description("Repository as owner/name or GitHub URL"),
		),
		mcp.WithString("path_filter",
			mcp.Description("Only ingest files under this path prefix"),
		),
	)
}

// --- Handler factories ---

func makeRetrieveHandler(r *retriever.Retriever) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo := req.GetString("repository", "")
		if repo == "" {
			return mcp.NewToolResultError("repository is required"), nil
		}

		var doc *brd.ParsedBRD
		if raw := req.GetString("brd_json", ""); raw != "" {
			doc = &brd.ParsedBRD{}
			if err := json.Unmarshal([]byte(raw), doc); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid brd_json: %v", err)), nil
			}
		} else if q := req.GetString("query", ""); q != "" {
			doc = &brd.ParsedBRD{Objectives: []brd.Objective{{ID: "Q-1", Objective: q}}}
		}

		result, err := r.Retrieve(ctx, repo, doc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("retrieve failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRetrieved(repo, result)), nil
	}
}

func makeStatusHandler(svc *ingest.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo := req.GetString("repository", "")
		if repo == "" {
			return mcp.NewToolResultError("repository is required"), nil
		}
		status, err := svc.Status(ctx, repo)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
		}
		if !status.Exists {
			return mcp.NewToolResultText(fmt.Sprintf("%s has not been ingested.", repo)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"%s: %d documents, %d chunks, embedded with %s.",
			repo, status.DocumentCount, status.ChunkCount, status.EmbeddingModel)), nil
	}
}

func makeListHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos, err := st.ListCollections(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		if len(infos) == 0 {
			return mcp.NewToolResultText("No repositories ingested yet."), nil
		}
		var b strings.Builder
		for _, info := range infos {
			fmt.Fprintf(&b, "%s: %d documents, %d chunks (%s)\n",
				info.Name, info.DocumentCount, info.ChunkCount, info.EmbeddingModel)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func makeIngestHandler(svc *ingest.Service) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo := req.GetString("repository", "")
		if repo == "" {
			return mcp.NewToolResultError("repository is required"), nil
		}
		stats, err := svc.IngestRepository(ctx, repo, req.GetString("path_filter", ""), nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		msg := fmt.Sprintf("Ingested %s: %d files processed, %d chunks.",
			repo, stats.FilesProcessed, stats.ChunksCreated)
		if len(stats.Errors) > 0 {
			msg += fmt.Sprintf(" Skipped %d files with errors.", len(stats.Errors))
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func formatRetrieved(repo string, result *retriever.Result) string {
	if len(result.Chunks) == 0 {
		return fmt.Sprintf("No context found in %s. Ingest it first with ingest_repository.", repo)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d chunks from %d files in %s:\n\n",
		result.Stats.ChunkCount, result.Stats.FileCount, repo)
	for i, c := range result.Chunks {
		fmt.Fprintf(&b, "--- [%d] %s (lines %d-%d, score %.3f, matched %s)\n%s\n\n",
			i+1, c.Path, c.StartLine, c.EndLine, c.Score, strings.Join(c.Sources, ", "), c.Content)
	}
	return b.String()
}
