// Package app provides the command-line surface of the redditmcp gateway.
package app

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/redditmcp/redditmcp/pkg/config"
	"github.com/redditmcp/redditmcp/pkg/gateway"
	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
)

var rootCmd = &cobra.Command{
	Use:   "redditmcp",
	Short: "redditmcp is an MCP gateway for the Reddit API",
	Long: `redditmcp exposes the Reddit API as an MCP (Model Context Protocol)
server over streamable HTTP. It acts as an OAuth 2.1 authorization server
that brokers Reddit's OAuth flow, so any MCP client can connect with a
bearer token and call Reddit-backed tools under the end user's identity.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorw("failed to display help", "error", err)
		}
	},
}

// NewRootCmd assembles the CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	Long: `Run the gateway HTTP server. Configuration comes from the
environment; REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, and JWT_SECRET are
required. The server drains connections on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		g, err := gateway.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return g.Run(ctx)
	},
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s (protocol %s)\n", mcp.ServerName, mcp.ServerVersion, mcp.ProtocolVersion)
		},
	}
}
