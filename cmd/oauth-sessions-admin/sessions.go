package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattcg/oauth-sessions/internal/bootstrap"
	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	"github.com/mattcg/oauth-sessions/internal/ports"
)

type killOptions struct {
	ID      string
	Yes     bool
	Timeout time.Duration
}

type listOptions struct {
	Limit   int
	Timeout time.Duration
}

// sessionScanner is implemented by stores that can enumerate their keys.
type sessionScanner interface {
	Scan(ctx context.Context, limit int) ([]string, error)
}

func runInspect(cmdCtx *commandContext, args []string) error {
	opts, rest, err := parseTimeoutFlags("inspect", args, defaultCommandTimeout)
	if err != nil {
		return err
	}
	id, err := singleArg(rest, "session id")
	if err != nil {
		return err
	}

	return withSessions(cmdCtx, sessionsOptions{Timeout: opts.Timeout}, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		s, err := svc.Sessions.Session(ctx, id)
		if err != nil {
			return err
		}
		return printSession(cmdCtx, s)
	})
}

func printSession(cmdCtx *commandContext, s oauth.Session) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"ID", s.ID},
		{"Provider", s.Provider},
		{"Phase", string(s.Phase())},
		{"TTL", renderTTL(s.TTLDuration())},
	}
	for _, row := range rows {
		if err := writef(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runKill(cmdCtx *commandContext, args []string) error {
	opts, err := parseKillFlags(args)
	if err != nil {
		return err
	}
	if err := confirmAction(cmdCtx, opts.Yes, fmt.Sprintf("About to end session %q.", opts.ID)); err != nil {
		return err
	}

	return withSessions(cmdCtx, sessionsOptions{Timeout: opts.Timeout}, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		if err := svc.Sessions.Logout(ctx, opts.ID); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "session %s ended\n", opts.ID)
	})
}

func parseKillFlags(args []string) (killOptions, error) {
	fs := flag.NewFlagSet("kill", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := killOptions{Timeout: defaultCommandTimeout}
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the store")

	if err := fs.Parse(args); err != nil {
		return killOptions{}, err
	}
	id, err := singleArg(fs.Args(), "session id")
	if err != nil {
		return killOptions{}, err
	}
	opts.ID = id
	return opts, nil
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags(args)
	if err != nil {
		return err
	}

	return withSessionStore(cmdCtx, opts.Timeout, func(ctx context.Context, h *bootstrap.SessionStoreHandle) error {
		backend := h.Store
		if u, ok := backend.(interface{ Unwrap() ports.SessionStore }); ok {
			backend = u.Unwrap()
		}
		scanner, ok := backend.(sessionScanner)
		if !ok {
			return fmt.Errorf("session store %q cannot list sessions", h.Backend)
		}
		ids, err := scanner.Scan(ctx, opts.Limit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
		if err := writef(tw, "ID\tPROVIDER\tPHASE\tTTL\n"); err != nil {
			return err
		}
		for _, id := range ids {
			rec, found, err := h.Store.GetSession(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			s := rec.ToSession(id)
			if err := writef(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Provider, s.Phase(), renderTTL(s.TTLDuration())); err != nil {
				return err
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "\n%d session(s)\n", len(ids))
	})
}

func parseListFlags(args []string) (listOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listOptions{Limit: 100, Timeout: defaultCommandTimeout}
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum number of sessions to list (0 for no limit)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Maximum duration to wait for the store")

	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	if opts.Limit < 0 {
		return listOptions{}, errors.New("--limit must not be negative")
	}
	return opts, nil
}

func runDialogURL(cmdCtx *commandContext, args []string) error {
	opts, rest, err := parseTimeoutFlags("dialog-url", args, defaultCommandTimeout)
	if err != nil {
		return err
	}
	provider, err := singleArg(rest, "provider name")
	if err != nil {
		return err
	}

	sopts := sessionsOptions{Timeout: opts.Timeout, RequireProviders: true}
	return withSessions(cmdCtx, sopts, func(ctx context.Context, svc *bootstrap.ServiceContainer) error {
		s, uri, err := svc.Sessions.StartDialog(ctx, provider)
		if err != nil {
			return err
		}
		if err := writef(cmdCtx.Out, "%s\n", uri); err != nil {
			return err
		}
		return writef(cmdCtx.Out, "session %s pending for %s\n", s.ID, renderTTL(s.TTLDuration()))
	})
}

func singleArg(args []string, what string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("expected exactly one %s", what)
	}
	return strings.TrimSpace(args[0]), nil
}

func confirmAction(cmdCtx *commandContext, yes bool, message string) error {
	if yes {
		return nil
	}
	if err := writef(cmdCtx.Out, "%s\nContinue? [y/N]: ", message); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && resp == "" {
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
