package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"brdagent/internal/brd"
	"brdagent/internal/llm"
	"brdagent/internal/retriever"
)

var (
	flagTopK   int
	flagRefine bool
	flagJSON   bool
	flagRaw    bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <brd.json>",
	Short: "Retrieve repository context for a parsed requirements document",
	Long: `Expands the document's business objectives and functional requirements
into search queries, runs them against the repository's collection in
parallel, and prints the merged top chunks with provenance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repoArg(nil)
		if err != nil {
			return err
		}
		doc, err := brd.LoadFile(args[0])
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		var refiner retriever.QueryRefiner
		if flagRefine {
			refiner = llm.NewOllamaChat(flagOllama, flagChatModel)
		}
		r := retriever.New(st, newEmbedder(), refiner, retriever.Options{
			Enabled:      cfg.RAGEnabled,
			TopK:         flagTopK,
			TopKPerQuery: cfg.TopKPerQuery,
			MaxQueries:   cfg.QueryCount,
			Concurrency:  cfg.RAGConcurrency,
		})

		result, err := r.Retrieve(cmd.Context(), repo, doc)
		if err != nil {
			return err
		}

		if result.Stats.ModelMismatch {
			fmt.Fprintf(os.Stderr, "warning: collection was embedded with a different model; re-ingest %s for reliable scores\n", repo)
		}

		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(result)
		}

		md := formatResult(doc, repo, result)
		if flagRaw {
			fmt.Print(md)
			return nil
		}
		rendered, err := glamour.Render(md, "auto")
		if err != nil {
			fmt.Print(md)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

func formatResult(doc *brd.ParsedBRD, repo string, result *retriever.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Context for %s\n\n", doc.Title())
	fmt.Fprintf(&b, "Repository %s, %d chunks from %d files (%d queries, %d failed).\n\n",
		repo, result.Stats.ChunkCount, result.Stats.FileCount,
		result.Stats.QueriesIssued, result.Stats.QueriesFailed)

	if len(result.Chunks) == 0 {
		b.WriteString("No context found. Ingest the repository first.\n")
		return b.String()
	}

	for i, c := range result.Chunks {
		title := c.Path
		if c.Name != "" {
			title = fmt.Sprintf("%s — %s", c.Path, c.Name)
		}
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, title)
		fmt.Fprintf(&b, "Lines %d-%d, score %.3f, matched %s.\n\n",
			c.StartLine, c.EndLine, c.Score, strings.Join(c.Sources, ", "))
		fmt.Fprintf(&b, "```\n%s\n```\n\n", c.Content)
	}
	return b.String()
}

func init() {
	retrieveCmd.Flags().IntVar(&flagTopK, "top-k", cfg.TopK, "result set size")
	retrieveCmd.Flags().BoolVar(&flagRefine, "refine", false, "refine general queries with the chat model")
	retrieveCmd.Flags().BoolVar(&flagJSON, "json", false, "emit the raw result as JSON")
	retrieveCmd.Flags().BoolVar(&flagRaw, "raw", false, "print markdown without terminal rendering")
	rootCmd.AddCommand(retrieveCmd)
}
