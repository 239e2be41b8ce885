// Package application provides the application interface for stocktake
// commands.
//
// Commands accept this interface rather than the concrete App so they can be
// tested against a Mock:
//
//	mock := &application.Mock{
//	    LedgerFunc: func(context.Context) (ledger.Ledger, error) {
//	        return memory.New(), nil
//	    },
//	}
//	cmd := run.NewCommand(mock)
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

// Application provides what commands need from the application.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Ledger returns the configured ledger, opening it on first use.
	Ledger(ctx context.Context) (ledger.Ledger, error)

	// Engine builds a reconciliation engine from the configuration. opts are
	// applied last and override the configured defaults.
	Engine(ctx context.Context, opts ...stocktake.Option) (stocktake.Engine, error)

	// Decider returns the configured decision policy.
	Decider() decide.Decider

	// References returns the configured reference dates.
	References() []period.Reference

	// Now returns the current time.
	Now() time.Time

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
