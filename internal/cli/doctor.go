package cli

import (
	"context"
	"os"
	"time"

	"github.com/rcliao/voicenote/internal/schedule"
	"github.com/rcliao/voicenote/internal/summary"
	"github.com/spf13/cobra"
)

type check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database and provider credentials",
		Run:   runDoctor,
	}

	cmd.Flags().Bool("skip-token", false, "Do not request an ASR token")

	RootCmd.AddCommand(cmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	skipToken, _ := cmd.Flags().GetBool("skip-token")
	var checks []check

	add := func(name string, err error, detail string) {
		c := check{Name: name, OK: err == nil, Detail: detail}
		if err != nil {
			c.Detail = err.Error()
		}
		checks = append(checks, c)
	}

	add("config", cfg.Validate(), "")

	if s, err := openStore(); err != nil {
		add("database", err, "")
	} else {
		add("database", nil, cfg.DBPath)
		s.Close()
	}

	if sched, err := schedule.New(cfg.Schedule.Cron, noopRunner{}); err != nil {
		add("schedule", err, "")
	} else {
		add("schedule", nil, "next run "+sched.Next().Format(time.RFC3339))
	}

	if !skipToken {
		detail, err := checkToken(cmd.Context())
		add("asr token", err, detail)
	}

	if err := newFormatter().JSON(checks); err != nil {
		exitErr("output", err)
	}
	for _, c := range checks {
		if !c.OK {
			os.Exit(1)
		}
	}
}

func checkToken(ctx context.Context) (string, error) {
	cache, err := newTokenCache()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ASRTimeout())
	defer cancel()
	if _, err := cache.Token(ctx); err != nil {
		return "", err
	}
	cred, _ := cache.Current()
	return "expires " + cred.ExpiresAt.Format(time.RFC3339), nil
}

type noopRunner struct{}

func (noopRunner) RunToday(context.Context) (summary.Outcome, error) { return summary.Outcome{}, nil }
