// Package app provides the application context and dependency management
// for the stocktake CLI. It centralizes configuration, the logger and the
// lazily opened ledger, and builds reconciliation engines from them.
package app

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocktake"
	"github.com/agentstation/stocktake/internal/archive"
	"github.com/agentstation/stocktake/internal/cmd/application"
	"github.com/agentstation/stocktake/internal/ledger/memory"
	"github.com/agentstation/stocktake/internal/ledger/sqlstore"
	"github.com/agentstation/stocktake/internal/metrics"
	"github.com/agentstation/stocktake/internal/render"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/period"
	"github.com/agentstation/stocktake/pkg/progress"
)

// App represents the stocktake application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Operator terminal, used by the interactive decider and progress lines
	in  io.Reader
	out io.Writer

	// Command output, stdout when nil
	stdout io.Writer

	clock func() time.Time

	// Ledger instance (lazy-initialized, singleton)
	mu     sync.RWMutex
	ledger ledger.Ledger
}

var _ application.Application = (*App)(nil)

// New creates a new App instance with the given version information.
// The app is initialized with the loaded configuration that can be
// customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		in:      os.Stdin,
		out:     os.Stderr,
		clock:   time.Now,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Now returns the current time.
func (a *App) Now() time.Time {
	return a.clock()
}

// References returns the configured reference dates, or the defaults when
// the configuration holds none that parse.
func (a *App) References() []period.Reference {
	refs, err := period.ParseReferences(a.config.ReferenceDates)
	if err != nil || len(refs) == 0 {
		if err != nil {
			a.logger.Warn().Err(err).Strs("reference_dates", a.config.ReferenceDates).Msg("Invalid reference dates, using defaults")
		}
		return period.DefaultReferences()
	}
	return refs
}

// Decider returns the decision policy of the configuration. Kinds answered
// yes or no are decided without asking. The rest are asked on the terminal
// when there is one, and declined otherwise.
func (a *App) Decider() decide.Decider {
	policy := &decide.Policy{Answers: make(map[decide.Kind]bool)}
	for kind, answer := range a.config.Decisions {
		policy.Answers[kind] = answer == DecisionYes
	}
	if a.in == os.Stdin && !decide.Interactive() {
		policy.Fallback = decide.Always(false)
	} else {
		policy.Fallback = decide.NewTerminal(a.in, a.out)
	}
	return policy
}

// Ledger returns the ledger, opening it on first use. This is thread-safe
// and ensures only one instance is opened.
func (a *App) Ledger(ctx context.Context) (ledger.Ledger, error) {
	a.mu.RLock()
	if a.ledger != nil {
		l := a.ledger
		a.mu.RUnlock()
		return l, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.ledger != nil {
		return a.ledger, nil
	}

	l, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

func (a *App) openLedger(ctx context.Context) (ledger.Ledger, error) {
	if a.config.LedgerDriver == "memory" {
		a.logger.Warn().Msg("Using the in-memory ledger, stock changes are lost on exit")
		return memory.New(), nil
	}
	driver, err := sqlstore.ParseDriver(a.config.LedgerDriver)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, driver, a.config.LedgerDSN)
	if err != nil {
		return nil, errors.WrapResource("open", "ledger", string(driver), err)
	}
	a.logger.Debug().Str("driver", string(driver)).Msg("Ledger opened")
	return store, nil
}

// Engine builds a reconciliation engine from the configuration. opts are
// applied after the configured ones.
func (a *App) Engine(ctx context.Context, opts ...stocktake.Option) (stocktake.Engine, error) {
	l, err := a.Ledger(ctx)
	if err != nil {
		return nil, err
	}

	r, err := render.New(
		render.WithLanguage(a.config.ReportLanguage),
		render.WithCurrency(a.config.ReportCurrency),
	)
	if err != nil {
		return nil, err
	}

	base := []stocktake.Option{
		stocktake.WithLedger(l),
		stocktake.WithRoot(a.config.RootDir),
		stocktake.WithReferences(a.References()),
		stocktake.WithDecider(a.Decider()),
		stocktake.WithSink(progress.Multi(progress.LogSink{}, progress.NewWriterSink(a.out))),
		stocktake.WithClock(a.clock),
		stocktake.WithRenderer(r),
	}

	if a.config.Archive.Bucket != "" {
		arch, err := archive.New(ctx, archive.Config{
			Bucket:          a.config.Archive.Bucket,
			Prefix:          a.config.Archive.Prefix,
			Region:          a.config.Archive.Region,
			Endpoint:        a.config.Archive.Endpoint,
			PathStyle:       a.config.Archive.PathStyle,
			AccessKeyID:     a.config.Archive.AccessKeyID,
			SecretAccessKey: a.config.Archive.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		base = append(base, stocktake.WithArchiver(arch))
	}

	if a.config.MetricsTextfile != "" {
		base = append(base, stocktake.WithMetrics(metrics.New(a.config.MetricsTextfile)))
	}

	return stocktake.New(append(base, opts...)...)
}

// Context attaches the application logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, a.logger)
}

// Shutdown closes the ledger if it was opened.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ledger == nil {
		return nil
	}
	err := a.ledger.Close()
	a.ledger = nil
	if err != nil {
		return errors.WrapResource("close", "ledger", "", err)
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithLedger sets a ledger instance (useful for testing).
func WithLedger(l ledger.Ledger) Option {
	return func(a *App) error {
		a.ledger = l
		return nil
	}
}

// WithTerminal sets where prompts are read from and progress is written to.
func WithTerminal(in io.Reader, out io.Writer) Option {
	return func(a *App) error {
		a.in = in
		a.out = out
		return nil
	}
}

// WithOutput sets where command results are printed.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.stdout = w
		return nil
	}
}

// WithClock sets the clock used to derive reconciliation dates.
func WithClock(clock func() time.Time) Option {
	return func(a *App) error {
		if clock == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		a.clock = clock
		return nil
	}
}
