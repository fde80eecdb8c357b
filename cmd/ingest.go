package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brdagent/internal/ingest"
	"brdagent/internal/tui"
)

var (
	flagPlain      bool
	flagPathFilter string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [repository]",
	Short: "Ingest a GitHub repository into the vector store",
	Long: `Discovers a repository's READMEs, documentation directories, and main
code directories, then chunks and embeds them into the repository's
collection. Re-ingesting replaces existing documents in place.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repoArg(args)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		svc := newIngestService(ctx, st)

		start := time.Now()
		var stats *ingest.Stats
		if flagPlain {
			stats, err = svc.IngestRepository(ctx, repo, flagPathFilter, func(stage string, done, total int) {
				fmt.Printf("\r%s %d/%d", stage, done, total)
			})
			fmt.Println()
		} else {
			stats, err = tui.RunIngest(repo, func(onProgress ingest.ProgressFunc) (*ingest.Stats, error) {
				return svc.IngestRepository(ctx, repo, flagPathFilter, onProgress)
			})
		}
		if err != nil {
			return err
		}

		fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Files:  %d planned, %d processed\n", stats.FilesPlanned, stats.FilesProcessed)
		fmt.Printf("  Chunks: %d\n", stats.ChunksCreated)
		for _, e := range stats.Errors {
			fmt.Printf("  skipped %s\n", e)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&flagPlain, "plain", false, "plain output without the progress display")
	ingestCmd.Flags().StringVar(&flagPathFilter, "path", "", "only ingest files under this path prefix")
	rootCmd.AddCommand(ingestCmd)
}
