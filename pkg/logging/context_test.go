package logging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/stretchr/testify/assert"
)

func TestContextFunctions(t *testing.T) {
	t.Run("WithRun stores the run id", func(t *testing.T) {
		ctx := logging.WithRun(context.Background(), "run-1")
		assert.Equal(t, "run-1", logging.RunID(ctx))
		assert.NotNil(t, logging.FromContext(ctx))
	})

	t.Run("RunID is empty without a run", func(t *testing.T) {
		assert.Empty(t, logging.RunID(context.Background()))
	})

	t.Run("FromContext falls back to the default logger", func(t *testing.T) {
		assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	})

	t.Run("WithError ignores nil", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, ctx, logging.WithError(ctx, nil))
	})

	t.Run("chained fields reach the logger", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), tl.Logger)
		ctx = logging.WithRun(ctx, "run-42")
		ctx = logging.WithStage(ctx, "validate")
		ctx = logging.WithItem(ctx, "A-100")
		ctx = logging.WithFamily(ctx, "F1")
		ctx = logging.WithOperation(ctx, "exists")
		ctx = logging.WithError(ctx, errors.New("boom"))
		ctx = logging.WithFields(ctx, map[string]any{"line": 4})

		logging.Ctx(ctx).Info().Msg("checked")

		assert.True(t, tl.ContainsAll(
			`"run_id":"run-42"`,
			`"stage":"validate"`,
			`"item":"A-100"`,
			`"family":"F1"`,
			`"operation":"exists"`,
			`"error":"boom"`,
			`"line":4`,
		), tl.Output())
	})
}
