package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"go.lsp.dev/uri"

	"github.com/tsugumi-sys/pygls/internal/config"
	"github.com/tsugumi-sys/pygls/internal/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the language server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdio",
				Usage: "Serve a single client over stdin/stdout (default)",
			},
			&cli.StringFlag{
				Name:  "tcp",
				Usage: "Serve clients over TCP on `ADDR` (host:port)",
			},
			&cli.StringFlag{
				Name:  "ws",
				Usage: "Serve clients over WebSocket on `ADDR` (host:port)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log verbosity: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Workspace root `DIR`",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	if cmd.String("tcp") != "" && cmd.String("ws") != "" {
		return fmt.Errorf("--tcp and --ws are mutually exclusive")
	}

	overrides := map[string]any{}
	if lvl := cmd.String("log-level"); lvl != "" {
		overrides["log_level"] = lvl
	}
	cfg, err := config.Load(cmd.String("config"), overrides)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	opts := server.OptionsFromConfig(cfg)
	opts.Logger = logger
	if root := cmd.String("root"); root != "" {
		opts.RootURI = uri.File(root)
	} else if wd, err := os.Getwd(); err == nil {
		opts.RootURI = uri.File(wd)
	}

	d := newDispatcher(logger, opts.SyncKind)
	srv := server.New(d, opts)
	d.bind(srv)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cmd.String("tcp") != "":
		return srv.StartTCP(ctx, cmd.String("tcp"))
	case cmd.String("ws") != "":
		return srv.StartWS(ctx, cmd.String("ws"))
	default:
		return srv.StartIO(ctx, os.Stdin, os.Stdout)
	}
}

// newLogger builds the process logger. Output goes to stderr: on the
// stdio transport stdout belongs to the protocol.
func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	logger := logrus.New()
	logger.SetLevel(lvl)
	logger.SetOutput(os.Stderr)
	return logger, nil
}
