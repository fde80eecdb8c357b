package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [repository]",
	Short: "Show ingestion status for a repository",
	Args:  cobra.MaximumNArgs(1),
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
		status, err := newIngestService(ctx, st).Status(ctx, repo)
		if err != nil {
			return err
		}

		if !status.Exists {
			fmt.Printf("%s: not ingested (collection %s)\n", repo, status.Collection)
			return nil
		}
		fmt.Printf("%s\n", repo)
		fmt.Printf("  Collection: %s\n", status.Collection)
		fmt.Printf("  Model:      %s\n", status.EmbeddingModel)
		fmt.Printf("  Documents:  %d\n", status.DocumentCount)
		fmt.Printf("  Chunks:     %d\n", status.ChunkCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
