package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/rcliao/voicenote/internal/push"
	"github.com/rcliao/voicenote/internal/schedule"
	"github.com/rcliao/voicenote/internal/server"
	"github.com/rcliao/voicenote/internal/watcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the daily summary schedule and the inbox watcher",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().Bool("no-schedule", false, "Do not run the daily summary schedule")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	requireProviders()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	noSchedule, _ := cmd.Flags().GetBool("no-schedule")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pipe, emb, err := newPipeline(s)
	if err != nil {
		exitErr("pipeline", err)
	}
	job, err := newSummaryJob(s)
	if err != nil {
		exitErr("summary job", err)
	}

	hub := push.NewHub(s)
	job.OnComplete(hub.AfterRun)

	srv := server.New(pipe, s, job, server.Options{
		Push:     hub,
		Embedder: emb,
		FilesDir: filesDir(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, cfg.Server.Addr) })

	if !cfg.Schedule.Disabled && !noSchedule {
		sched, err := schedule.New(cfg.Schedule.Cron, job)
		if err != nil {
			exitErr("schedule", err)
		}
		g.Go(func() error { return sched.Run(ctx) })
	}

	if cfg.Watch.Inbox != "" {
		w, err := watcher.New(cfg.Watch.Inbox, pipe, cfg.Watch.MaxConcurrent)
		if err != nil {
			exitErr("watcher", err)
		}
		defer w.Stop()
		g.Go(func() error { return w.Start(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		exitErr("serve", err)
	}
	slog.Info("shut down")
}
