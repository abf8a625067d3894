package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records, transcripts and summaries as JSON",
		Long:  "Export everything stored as one JSON document. Filter by user with -u. Embeddings are left out unless --embeddings is set.",
		Run:   runExport,
	}

	cmd.Flags().StringP("user", "u", "", "Filter by user")
	cmd.Flags().Bool("embeddings", false, "Include transcript embeddings")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	withEmbeddings, _ := cmd.Flags().GetBool("embeddings")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	exp, err := s.ExportAll(cmd.Context(), user)
	if err != nil {
		exitErr("export", err)
	}
	if !withEmbeddings {
		for i := range exp.Transcripts {
			exp.Transcripts[i].Embedding = nil
		}
	}

	if err := newFormatter().JSON(exp); err != nil {
		exitErr("output", err)
	}
}
