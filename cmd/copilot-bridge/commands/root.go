package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/copilot-bridge/internal/app"
	"github.com/florianilch/copilot-bridge/internal/observability"
)

// defaultLogFormat picks "text" for an interactive terminal and "json"
// otherwise, so a bare local run reads naturally while a piped/redirected
// one (the common case once this runs under a process supervisor) gets
// machine-parseable output without the operator having to remember a flag.
func defaultLogFormat() string {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return string(app.DefaultConfigLogFormat)
	}
	return "json"
}

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "copilot-bridge",
		Usage: "Anthropic/OpenAI-compatible reverse proxy for GitHub Copilot chat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			startCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name: "start",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: defaultLogFormat(),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "upstream--account-type",
				Usage: "Copilot account type (individual|business|enterprise)",
				Value: app.DefaultConfigAccountType,
			},
			&cli.StringFlag{
				Name:  "upstream--vscode-version",
				Usage: "VS Code version this proxy identifies as to Copilot",
				Value: app.DefaultConfigVSCodeVersion,
			},
		},
		Action: startAction,
	}
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
