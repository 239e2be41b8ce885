package progress_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/progress"
)

func TestLogSink(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	progress.LogSink{}.Notify(ctx, progress.Event{
		Stage:   progress.StageValidate,
		Level:   progress.Warning,
		Message: "unknown item skipped",
		Code:    pkgerrors.CodeUnknownItem,
		Item:    "C",
		Line:    4,
		Context: "last, after B (Nut)",
		Err:     errors.New("not in catalog"),
	})

	assert.True(t, tl.ContainsAll(
		`"level":"warn"`,
		`"stage":"validate"`,
		`"code":"A001"`,
		`"item":"C"`,
		`"line":4`,
		`"context":"last, after B (Nut)"`,
		`"error":"not in catalog"`,
	), tl.Output())
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := progress.NewWriterSink(&buf)
	sink.Notify(context.Background(), progress.Event{Message: "parsing scan"})
	sink.Notify(context.Background(), progress.Event{Level: progress.Error, Code: pkgerrors.CodeRolledBack, Message: "rolled back"})

	assert.Equal(t, "parsing scan\nerror: [D002] rolled back\n", buf.String())
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := &progress.Recorder{}, &progress.Recorder{}
	sink := progress.Multi(a, nil, b, progress.Nop)

	sink.Notify(context.Background(), progress.Event{Stage: progress.StageParse})
	sink.Notify(context.Background(), progress.Event{Stage: progress.StageValidate, Code: pkgerrors.CodeUnknownItem})
	sink.Notify(context.Background(), progress.Event{Stage: progress.StageValidate})

	assert.Len(t, a.Events(), 3)
	assert.Len(t, b.Events(), 3)
	assert.Equal(t, []pkgerrors.Code{pkgerrors.CodeUnknownItem}, a.Codes())
	assert.Equal(t, []progress.Stage{progress.StageParse, progress.StageValidate}, a.Stages())
	assert.Equal(t, "warning", progress.Warning.String())
}
