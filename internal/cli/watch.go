package cli

import (
	"os/signal"
	"syscall"

	"github.com/rcliao/voicenote/internal/watcher"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch [inbox]",
		Short: "Ingest audio files dropped into <inbox>/<user>/",
		Long:  "Watch an inbox directory. Each audio file created under <inbox>/<user>/ is uploaded, transcribed and indexed for that user, then moved to .processed or .failed.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runWatch,
	}

	cmd.Flags().IntP("concurrency", "j", 0, "Max concurrent uploads (overrides watch.max_concurrent)")

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	requireProviders()

	inbox := cfg.Watch.Inbox
	if len(args) == 1 {
		inbox = args[0]
	}
	if inbox == "" {
		exitErr("watch", errNoInbox)
	}
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Watch.MaxConcurrent = n
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pipe, _, err := newPipeline(s)
	if err != nil {
		exitErr("pipeline", err)
	}

	w, err := watcher.New(inbox, pipe, cfg.Watch.MaxConcurrent)
	if err != nil {
		exitErr("watcher", err)
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		exitErr("watch", err)
	}
}
