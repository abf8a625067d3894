package cli

import (
	"github.com/rcliao/voicenote/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	records := &cobra.Command{
		Use:   "records",
		Short: "List uploaded recordings",
		Run:   runRecords,
	}
	records.Flags().StringP("user", "u", "", "Filter by user")
	records.Flags().StringP("status", "s", "", "Filter by status: processing, completed or failed")
	records.Flags().IntP("limit", "l", 20, "Max results")

	summaries := &cobra.Command{
		Use:   "summaries",
		Short: "List daily summaries",
		Run:   runSummaries,
	}
	summaries.Flags().StringP("user", "u", "", "Filter by user")
	summaries.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(records, summaries)
}

func runRecords(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := s.ListRecords(cmd.Context(), store.ListParams{UserID: user, Status: status, Limit: limit})
	if err != nil {
		exitErr("list records", err)
	}
	if err := newFormatter().Records(recs); err != nil {
		exitErr("output", err)
	}
}

func runSummaries(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sums, err := s.ListSummaries(cmd.Context(), store.ListParams{UserID: user, Limit: limit})
	if err != nil {
		exitErr("list summaries", err)
	}
	if err := newFormatter().Summaries(sums); err != nil {
		exitErr("output", err)
	}
}
