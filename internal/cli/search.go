package cli

import (
	"log/slog"
	"strings"

	"github.com/rcliao/voicenote/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search transcripts by keyword",
		Long:  "Search transcript text for a phrase. With a real embedding provider configured, matches are ranked by similarity.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("user", "u", "", "Filter by user")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	params := store.SearchParams{UserID: user, Query: query, Limit: limit}
	if cfg.Embedding.Provider != "zero" {
		emb, err := newEmbedder()
		if err != nil {
			exitErr("embedder", err)
		}
		if vec, err := emb.Embed(cmd.Context(), query); err != nil {
			slog.Warn("embed query failed, substring order only", "error", err)
		} else {
			params.Vector = vec
		}
	}

	results, err := s.Search(cmd.Context(), params)
	if err != nil {
		exitErr("search", err)
	}
	for i := range results {
		results[i].Embedding = nil
	}

	if err := newFormatter().SearchResults(results); err != nil {
		exitErr("output", err)
	}
}
