package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/report"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a user's day as a Word document",
		Long:  "Render the daily summary and every transcript of one user and date into a .docx file.",
		Run:   runReport,
	}

	cmd.Flags().StringP("user", "u", "", "User ID")
	cmd.Flags().String("date", "", "Date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringP("out", "o", "", "Output path (default: <user>_<date>.docx)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runReport(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	date, _ := cmd.Flags().GetString("date")
	out, _ := cmd.Flags().GetString("out")

	if date == "" {
		date = time.Now().Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		exitErr("parse date", err)
	}
	if out == "" {
		out = fmt.Sprintf("%s_%s.docx", user, date)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	day := report.Day{UserID: user, Date: date}

	sum, err := s.SummaryOn(cmd.Context(), user, date)
	switch {
	case err == nil:
		day.Summary = sum
	case !errors.Is(err, store.ErrNotFound):
		exitErr("load summary", err)
	}

	day.Transcripts, err = s.TranscriptsOn(cmd.Context(), user, date)
	if err != nil {
		exitErr("load transcripts", err)
	}

	if err := report.WriteDocx(day, out); err != nil {
		exitErr("write report", err)
	}
	if err := newFormatter().Message("written", out); err != nil {
		exitErr("output", err)
	}
}
