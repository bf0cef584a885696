package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/storefront-dev/storefront/internal/config"
	"github.com/storefront-dev/storefront/internal/logger"
	"github.com/storefront-dev/storefront/internal/server"
	"github.com/storefront-dev/storefront/internal/session"
)

// SessionManager is the part of the session manager the commands use
type SessionManager interface {
	Load(ctx context.Context, id string) (*session.State, error)
	Purge(ctx context.Context) (int64, error)
}

type sessionsOptions struct {
	manager SessionManager
	output  io.Writer
}

// SessionsOption configures the sessions commands
type SessionsOption func(*sessionsOptions)

// WithSessionManager sets the manager instead of opening the configured store
func WithSessionManager(m SessionManager) SessionsOption {
	return func(o *sessionsOptions) {
		o.manager = m
	}
}

// WithSessionsOutput sets where the commands print
func WithSessionsOutput(w io.Writer) SessionsOption {
	return func(o *sessionsOptions) {
		o.output = w
	}
}

// NewSessionsCmd creates the sessions command
func NewSessionsCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean up visitor sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfiguredSessions(cmd.Context(), version, func(m SessionManager) error {
				return runPurge(cmd.Context(), WithSessionManager(m), WithSessionsOutput(cmd.OutOrStdout()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Print both namespaces of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfiguredSessions(cmd.Context(), version, func(m SessionManager) error {
				return runShow(cmd.Context(), args[0], WithSessionManager(m), WithSessionsOutput(cmd.OutOrStdout()))
			})
		},
	})

	return cmd
}

// withConfiguredSessions opens the session store from the environment, the same
// way the gateway does
func withConfiguredSessions(ctx context.Context, version string, fn func(SessionManager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Session.Store == config.StoreMemory {
		return fmt.Errorf("SESSION_STORE=memory lives inside the gateway process and cannot be reached from the CLI")
	}

	log := logger.New(cfg.Logging.Level, "console", os.Stderr)
	srv, err := server.New(cfg, log, version)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer srv.Close()

	return fn(srv.Sessions())
}

func applySessionsOptions(opts []SessionsOption) (*sessionsOptions, error) {
	o := &sessionsOptions{output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	if o.manager == nil {
		return nil, fmt.Errorf("no session manager configured")
	}
	return o, nil
}

func runPurge(ctx context.Context, opts ...SessionsOption) error {
	o, err := applySessionsOptions(opts)
	if err != nil {
		return err
	}

	removed, err := o.manager.Purge(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(o.output, "Removed %d expired session(s).\n", removed)
	return nil
}

func runShow(ctx context.Context, id string, opts ...SessionsOption) error {
	o, err := applySessionsOptions(opts)
	if err != nil {
		return err
	}

	st, err := o.manager.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}

	fmt.Fprintf(o.output, "Session %s\n", st.ID)
	fmt.Fprintf(o.output, "  created  %s\n", st.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(o.output, "  updated  %s\n", st.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(o.output, "  expires  %s\n\n", st.ExpiresAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(o.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tSIGNED IN\tLOADING\tROLE\tUSER\tEMAIL\tEPOCH")
	fmt.Fprintln(w, "─────────\t─────────\t───────\t────\t────\t─────\t─────")

	for _, ns := range session.Namespaces {
		rec := st.Record(ns)
		userID, email := "-", "-"
		if rec.User != nil {
			userID, email = rec.User.ID, rec.User.Email
		}
		role := string(rec.Role)
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\t%s\t%s\t%d\n",
			ns,
			rec.IsAuthenticated,
			rec.IsLoading,
			role,
			userID,
			email,
			rec.Epoch,
		)
	}

	return w.Flush()
}
