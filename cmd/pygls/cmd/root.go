package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tsugumi-sys/pygls/internal/version"
)

// NewApp creates the CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "pygls",
		Usage:   "A language server over stdio, TCP or WebSocket",
		Version: version.Version(),
		Description: `pygls runs a Language Server Protocol endpoint that keeps client
documents synchronized and dispatches protocol messages in arrival order.

Examples:
  pygls serve --stdio
  pygls serve --tcp 127.0.0.1:8080
  pygls serve --ws 127.0.0.1:8080`,
		Commands: []*cli.Command{
			serveCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}
