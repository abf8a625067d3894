package cli

import (
	"time"

	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/trace"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Run the daily summary job once",
		Long:  "Summarize every user's transcripts for one date. Users who already have a summary for that date are skipped.",
		Run:   runSummarize,
	}

	cmd.Flags().String("date", "", "Date to summarize, YYYY-MM-DD (default: today)")

	RootCmd.AddCommand(cmd)
}

func runSummarize(cmd *cobra.Command, args []string) {
	if err := cfg.ValidateLLM(); err != nil {
		exitErr("config", err)
	}

	day := time.Now()
	if d, _ := cmd.Flags().GetString("date"); d != "" {
		t, err := time.ParseInLocation(model.DateLayout, d, time.Local)
		if err != nil {
			exitErr("parse date", err)
		}
		day = t
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	job, err := newSummaryJob(s)
	if err != nil {
		exitErr("summary job", err)
	}

	ctx, _ := trace.Ensure(cmd.Context())
	out, err := job.Run(ctx, day)
	if err != nil {
		exitErr("summarize", err)
	}

	if err := newFormatter().Outcome(out); err != nil {
		exitErr("output", err)
	}
}
