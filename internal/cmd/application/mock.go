package application

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocktake"
	"github.com/agentstation/stocktake/pkg/decide"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/period"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	// Root is the inventory root of engines built without EngineFunc.
	Root string

	LedgerFunc       func(ctx context.Context) (ledger.Ledger, error)
	EngineFunc       func(ctx context.Context, opts ...stocktake.Option) (stocktake.Engine, error)
	DeciderFunc      func() decide.Decider
	ReferencesFunc   func() []period.Reference
	NowFunc          func() time.Time
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// Ledger returns a ledger using the mock function or nil.
func (m *Mock) Ledger(ctx context.Context) (ledger.Ledger, error) {
	if m.LedgerFunc != nil {
		return m.LedgerFunc(ctx)
	}
	return nil, nil
}

// Engine returns an engine using the mock function. Without one, an engine
// is built on the mock ledger with opts.
func (m *Mock) Engine(ctx context.Context, opts ...stocktake.Option) (stocktake.Engine, error) {
	if m.EngineFunc != nil {
		return m.EngineFunc(ctx, opts...)
	}
	l, err := m.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	base := []stocktake.Option{
		stocktake.WithLedger(l),
		stocktake.WithRoot(m.Root),
		stocktake.WithDecider(m.Decider()),
		stocktake.WithReferences(m.References()),
		stocktake.WithClock(m.Now),
	}
	return stocktake.New(append(base, opts...)...)
}

// Decider returns a decider using the mock function or one declining
// everything.
func (m *Mock) Decider() decide.Decider {
	if m.DeciderFunc != nil {
		return m.DeciderFunc()
	}
	return decide.Always(false)
}

// References returns reference dates using the mock function or the defaults.
func (m *Mock) References() []period.Reference {
	if m.ReferencesFunc != nil {
		return m.ReferencesFunc()
	}
	return period.DefaultReferences()
}

// Now returns the time using the mock function or time.Now.
func (m *Mock) Now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now()
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ Application = (*Mock)(nil)
