// Package cli implements the voicenote CLI commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rcliao/voicenote/internal/config"
	"github.com/rcliao/voicenote/internal/logger"
	"github.com/rcliao/voicenote/internal/output"
	"github.com/rcliao/voicenote/internal/store"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	dbPath     string
	formatFlag string
	logLevel   string

	cfg *config.Config
)

var errNoInbox = errors.New("no inbox: pass a directory or set watch.inbox")

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:     "voicenote",
	Short:   "Voice notes in, transcripts and daily summaries out",
	Long:    "Uploads recordings to object storage, transcribes them, keeps transcripts in SQLite and writes one summary per user per day.",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		c, err := config.Load(path)
		if err != nil {
			exitErr("load config", err)
		}
		if dbPath != "" {
			c.DBPath = dbPath
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
		cfg = c
		slog.SetDefault(logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml or .toml; default: ~/.config/voicenote/config.*)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $VOICENOTE_DB or ~/.voicenote/voicenote.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath)
}

func newFormatter() *output.Formatter {
	f, err := output.New(formatFlag, os.Stdout)
	if err != nil {
		exitErr("output", err)
	}
	return f
}

// requireProviders fails fast when provider settings are missing.
func requireProviders() {
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
