package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/access"
	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/config"
	"github.com/tOgg1/approvalctl/internal/db"
	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/logging"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

// app is the per-invocation runtime: local store, backend client, session
// and activity journal.
type app struct {
	cfg       *config.Config
	db        *db.DB
	client    *api.Client
	sessions  *session.Store
	journal   *db.EventRepository
	publisher *events.Publisher
	contexts  *config.ContextStore

	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	database, err := db.Open(db.Config{
		Path:          cfg.DatabasePath(),
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	client, err := api.NewFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	journal := db.NewEventRepository(database)
	return &app{
		cfg:       cfg,
		db:        database,
		client:    client,
		sessions:  session.NewDBStore(database),
		journal:   journal,
		publisher: newEventPublisher(cfg, journal),
		contexts:  config.NewContextStore(cfg.ContextPath()),
		in:        in,
		out:       out,
		errOut:    errOut,
	}, nil
}

func newEventPublisher(cfg *config.Config, journal *db.EventRepository) *events.Publisher {
	var opts []events.Option
	if cfg.Journal.Enabled {
		opts = append(opts, events.WithRepository(journal), events.WithRetention(journal, cfg.Journal.MaxCount))
	}
	p := events.NewPublisher(opts...)
	p.Listen(events.Filter{}, events.LogListener(logging.Component("activity")))
	return p
}

func (a *app) Close() error {
	a.publisher.Close()
	return a.db.Close()
}

// withApp opens the runtime for a cobra command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, GetConfig(), os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func (a *app) publish(ctx context.Context, event *models.Event) {
	a.publisher.Publish(ctx, event)
}

// fail records a failed backend call in the journal and returns err.
func (a *app) fail(ctx context.Context, action string, err error) error {
	a.publish(ctx, events.Failure(action, err))
	return err
}

// currentSession loads the stored session. A missing or unreadable session
// is reported as nil.
func (a *app) currentSession(ctx context.Context) *session.Session {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("session unreadable")
		return nil
	}
	return s
}

// requireRoles gates a command on the stored session. Every refusal looks
// the same to the user; the reason only reaches the debug log and journal.
func (a *app) requireRoles(ctx context.Context, route string, roles ...models.Role) (*session.Session, error) {
	s := a.currentSession(ctx)
	decision := access.DecideAny(roles, s)
	return a.admit(ctx, route, s, decision)
}

// requireRoute gates a command on a dashboard route.
func (a *app) requireRoute(ctx context.Context, route string) (*session.Session, error) {
	s := a.currentSession(ctx)
	decision, err := access.Open(route, s)
	if err != nil {
		return nil, err
	}
	return a.admit(ctx, route, s, decision)
}

func (a *app) admit(ctx context.Context, route string, s *session.Session, decision access.Decision) (*session.Session, error) {
	if decision.Allowed {
		return s, nil
	}
	logger.Debug().
		Str("route", route).
		Str("reason", string(decision.Reason)).
		Str("redirect", decision.Redirect).
		Msg("access denied")
	a.publish(ctx, events.AccessDenied(route, string(decision.Reason)))
	return nil, loginRequired()
}
