package cli

import (
	"github.com/rcliao/voicenote/internal/mcpserver"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve transcripts and summaries as MCP tools over stdio",
		Run:   runMCP,
	}

	RootCmd.AddCommand(cmd)
}

func runMCP(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := mcpserver.Serve(mcpserver.New(s, Version)); err != nil {
		exitErr("mcp", err)
	}
}
