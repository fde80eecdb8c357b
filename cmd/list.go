package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		infos, err := st.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No repositories ingested yet.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%-40s %4d docs %6d chunks  (%s)\n",
				info.Name, info.DocumentCount, info.ChunkCount, info.EmbeddingModel)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
