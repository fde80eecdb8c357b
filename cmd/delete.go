package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagDocPath string

var deleteCmd = &cobra.Command{
	Use:   "delete [repository]",
	Short: "Delete a repository's collection, or one document with --doc",
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
		svc := newIngestService(ctx, st)

		if flagDocPath != "" {
			n, err := svc.DeleteDocument(ctx, repo, flagDocPath)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %s: %d chunks removed\n", flagDocPath, n)
			return nil
		}

		deleted, err := svc.DeleteRepository(ctx, repo)
		if err != nil {
			return err
		}
		if deleted {
			fmt.Printf("Deleted collection for %s\n", repo)
		} else {
			fmt.Printf("Nothing to delete for %s\n", repo)
		}
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&flagDocPath, "doc", "", "delete a single document path instead of the whole collection")
	rootCmd.AddCommand(deleteCmd)
}
