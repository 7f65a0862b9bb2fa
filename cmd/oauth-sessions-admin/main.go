package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/mattcg/oauth-sessions/config"
	"github.com/mattcg/oauth-sessions/internal/bootstrap"
	"github.com/mattcg/oauth-sessions/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		In:     os.Stdin,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations for the postgres session store",
			run:         runMigrations,
		},
		"purge": {
			name:        "purge",
			description: "Delete expired sessions from the postgres session store",
			run:         runPurge,
		},
		"providers": {
			name:        "providers",
			description: "Validate and list configured OAuth providers",
			run:         runProviders,
		},
		"inspect": {
			name:        "inspect",
			description: "Show the provider, phase and remaining TTL of a session",
			run:         runInspect,
		},
		"kill": {
			name:        "kill",
			description: "End a session immediately",
			run:         runKill,
		},
		"list-sessions": {
			name:        "list-sessions",
			description: "List session ids held in the redis session store",
			run:         runListSessions,
		},
		"dialog-url": {
			name:        "dialog-url",
			description: "Create a pending session and print its provider dialog URL",
			run:         runDialogURL,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: oauth-sessions-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type timeoutOptions struct {
	Timeout time.Duration
}

func parseTimeoutFlags(name string, args []string, def time.Duration) (timeoutOptions, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := timeoutOptions{Timeout: def}
	fs.DurationVar(&opts.Timeout, "timeout", def, "Maximum duration to wait for the command to complete")

	if err := fs.Parse(args); err != nil {
		return timeoutOptions{}, nil, err
	}
	if opts.Timeout <= 0 {
		return timeoutOptions{}, nil, errors.New("--timeout must be greater than zero")
	}
	return opts, fs.Args(), nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, _, err := parseTimeoutFlags("migrate", args, defaultMigrationTimeout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runPurge(cmdCtx *commandContext, args []string) error {
	opts, _, err := parseTimeoutFlags("purge", args, defaultCommandTimeout)
	if err != nil {
		return err
	}

	return withSessionStore(cmdCtx, opts.Timeout, func(ctx context.Context, h *bootstrap.SessionStoreHandle) error {
		if h.Purger == nil {
			return fmt.Errorf("session store %q expires sessions itself; nothing to purge", h.Backend)
		}
		reaper, err := service.NewSessionReaper(service.SessionReaperOptions{Purger: h.Purger, Logger: cmdCtx.Logger})
		if err != nil {
			return err
		}
		count, err := reaper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		return writef(cmdCtx.Out, "purged %d expired session(s)\n", count)
	})
}
