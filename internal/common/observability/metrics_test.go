package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStage_EndsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	o := &Observability{tracerProvider: tp, tracer: tp.Tracer("test")}

	ctx, end := o.Stage(context.Background(), StageAnalyze)
	require.NotNil(t, ctx)
	end()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reasoning.analyze", spans[0].Name())
}

func TestNop_IsSafe(t *testing.T) {
	o := Nop()

	_, end := o.Stage(context.Background(), StageVerify)
	end()
	o.RecordJobProcessed(context.Background(), "completed")
	o.RecordJobDuration(context.Background(), time.Millisecond, "completed")
	o.Shutdown()
}
