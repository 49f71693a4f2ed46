package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "snaprpc/server"

// Method returns the method attribute.
func Method(name string) attribute.KeyValue {
	return attribute.String("rpc.method", name)
}

// Origin returns the caller origin attribute.
func Origin(origin string) attribute.KeyValue {
	return attribute.String("snaprpc.origin", origin)
}

// RequestID returns the request tracing ID attribute.
func RequestID(id string) attribute.KeyValue {
	return attribute.String("request_id", id)
}

// Branch returns the permission merge branch attribute.
func Branch(branch string) attribute.KeyValue {
	return attribute.String("snaprpc.merge.branch", branch)
}

// Outcome returns the outcome attribute ("success", "error", "denied", "forwarded").
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String("snaprpc.outcome", outcome)
}

// StartSpan starts a span from the global tracer provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// FailSpan records err on span and marks it failed.
func FailSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type instruments struct {
	dispatches metric.Int64Counter
	merges     metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	inst            instruments
)

func getInstruments() instruments {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		// Names are static and valid, so creation cannot fail.
		inst.dispatches, _ = meter.Int64Counter("snaprpc.dispatch.calls",
			metric.WithDescription("Permitted method dispatches by method and outcome"))
		inst.merges, _ = meter.Int64Counter("snaprpc.permission.merges",
			metric.WithDescription("wallet_requestSnaps merges by branch and outcome"))
	})
	return inst
}

// RecordDispatch counts one dispatch.
func RecordDispatch(ctx context.Context, method, outcome string) {
	getInstruments().dispatches.Add(ctx, 1, metric.WithAttributes(Method(method), Outcome(outcome)))
}

// RecordMerge counts one permission merge.
func RecordMerge(ctx context.Context, branch, outcome string) {
	getInstruments().merges.Add(ctx, 1, metric.WithAttributes(Branch(branch), Outcome(outcome)))
}
