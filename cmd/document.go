package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagContentFile string

var documentCmd = &cobra.Command{
	Use:   "document <path>",
	Short: "Ingest a single document into a repository's collection",
	Long: `Ingests one document under the repository's collection. By default the
content is fetched from the repository's default branch; --content-file
supplies it from a local file instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := repoArg(nil)
		if err != nil {
			return err
		}
		path := args[0]

		var content string
		if flagContentFile != "" {
			data, err := os.ReadFile(flagContentFile)
			if err != nil {
				return fmt.Errorf("read %s: %w", flagContentFile, err)
			}
			content = string(data)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		svc := newIngestService(ctx, st)

		n, err := svc.IngestDocument(ctx, repo, path, content)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %s: %d chunks\n", path, n)
		return nil
	},
}

func init() {
	documentCmd.Flags().StringVar(&flagContentFile, "content-file", "", "read document content from a local file")
	rootCmd.AddCommand(documentCmd)
}
