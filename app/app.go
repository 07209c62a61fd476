// Package app wires the runtime, the simulated remote, the gateway and
// the stores into one composition root. Everything reactive lives on a
// single goroutine; periodic work (deadline re-checks, notification
// auto-dismiss) is driven by Tick rather than by timers inside the
// stores.
package app

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskmill/taskmill/cell"
	"github.com/taskmill/taskmill/kv"
	"github.com/taskmill/taskmill/remote"
	"github.com/taskmill/taskmill/store"
)

// DefaultDeadlineInterval matches the once-a-minute deadline re-check
// cadence.
const DefaultDeadlineInterval = time.Minute

type Config struct {
	// DataDir selects the durable gateway. Empty means an in-memory
	// session.
	DataDir string

	// DelayScale scales the simulated latencies; 0 disables them.
	DelayScale float64

	// DeadlineInterval overrides the deadline re-check cadence.
	DeadlineInterval time.Duration

	Logger *zerolog.Logger
}

type App struct {
	Runtime   *cell.Runtime
	Gateway   kv.Gateway
	API       *remote.API
	Notifier  *store.Notifier
	Auth      *store.AuthStore
	Todos     *store.TodoStore
	Comments  *store.CommentStore
	Columns   *store.ColumnStore
	Deadlines *store.DeadlineTracker

	log      zerolog.Logger
	interval time.Duration
	closers  []func() error
}

func New(cfg Config) (*App, error) {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	interval := cfg.DeadlineInterval
	if interval <= 0 {
		interval = DefaultDeadlineInterval
	}

	a := &App{log: log, interval: interval}

	a.Runtime = cell.New(
		cell.WithLogger(log.With().Str("component", "runtime").Logger()),
		cell.WithOnError(func(err error) {
			log.Error().Err(err).Msg("effect failed")
		}),
	)

	if cfg.DataDir != "" {
		db, err := kv.Open(cfg.DataDir, log.With().Str("component", "kv").Logger())
		if err != nil {
			return nil, err
		}
		a.Gateway = db
		a.closers = append(a.closers, db.Close)
	} else {
		a.Gateway = kv.NewMemory()
	}

	a.API = remote.New(a.Runtime,
		remote.WithLogger(log.With().Str("component", "remote").Logger()),
		remote.WithDelayScale(cfg.DelayScale),
	)
	a.Notifier = store.NewNotifier(a.Runtime,
		store.WithNotifierLogger(log.With().Str("component", "notify").Logger()))
	a.Auth = store.NewAuthStore(a.Runtime, a.Gateway,
		store.WithAuthLogger(log.With().Str("component", "auth").Logger()))
	a.Todos = store.NewTodoStore(a.Runtime, a.API, a.Gateway, a.Auth, a.Notifier,
		store.WithTodoLogger(log.With().Str("component", "todos").Logger()))
	a.Comments = store.NewCommentStore(a.Runtime, a.Gateway, a.Auth, a.Notifier,
		store.WithCommentLogger(log.With().Str("component", "comments").Logger()),
		store.WithCommentDelayScale(cfg.DelayScale))
	a.Columns = store.NewColumnStore(a.Runtime, a.Gateway,
		store.WithColumnLogger(log.With().Str("component", "columns").Logger()))
	a.Deadlines = store.NewDeadlineTracker(a.Runtime, a.Todos, a.Notifier,
		store.WithDeadlineLogger(log.With().Str("component", "deadlines").Logger()))

	return a, nil
}

// Tick advances time-driven state: deadline classifications and
// notification auto-dismiss. The caller owns the cadence and must call
// it from the same goroutine that uses the stores.
func (a *App) Tick(now time.Time) {
	a.Deadlines.Tick(now)
	a.Deadlines.NotifyAlerts()
	a.Notifier.Sweep(now)
}

// Run pumps Tick on the configured interval until ctx is done. Only
// for callers that do nothing else with the app while it runs.
func (a *App) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			a.Tick(now)
		}
	}
}

func (a *App) Close() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
