package middleware

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/methods"
	"snaprpc/server/internal/snaps"
)

func allHooks(calls *int) HooksFunc {
	return func(ctx context.Context, req *jsonrpc.Request) hooks.Map {
		if calls != nil {
			*calls++
		}
		return hooks.Map{
			hooks.GetAllSnapsName: hooks.GetAllSnaps(func(ctx context.Context) ([]snaps.Snap, error) {
				return []snaps.Snap{{ID: "a"}, {ID: "b"}}, nil
			}),
			hooks.GetSnapStateName: hooks.GetSnapState(func(ctx context.Context, encrypted bool) (map[string]any, error) {
				return map[string]any{"k": "v"}, nil
			}),
		}
	}
}

func newEngine(origin string, isSnap bool, hooksFor HooksFunc, downstream ...engine.Middleware) *engine.Engine {
	registry := methods.Permitted(snaps.NewMerger())
	chain := append([]engine.Middleware{Recovery, PermittedMethods(registry, isSnap, hooksFor)}, downstream...)
	return engine.New(origin, isSnap, chain...)
}

func TestPermittedMethodsGetAllSnaps(t *testing.T) {
	e := newEngine(methods.SnapsDirectoryOrigin, false, allHooks(nil))
	out, err := e.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"wallet_getAllSnaps"}`))
	if err != nil {
		t.Fatalf("HandleRaw failed: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":1,"result":[{"id":"a","version":"","enabled":false,"blocked":false},{"id":"b","version":"","enabled":false,"blocked":false}]}`
	if string(out) != want {
		t.Errorf("output = %s, want %s", out, want)
	}
}

func TestPermittedMethodsHidesGatedMethods(t *testing.T) {
	unknown, err := newEngine("https://evil.example", false, allHooks(nil)).
		HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"wallet_noSuchMethod"}`))
	if err != nil {
		t.Fatalf("HandleRaw failed: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"The method does not exist / is not available."}}`
	if string(unknown) != want {
		t.Fatalf("unknown method = %s", unknown)
	}

	tests := []struct {
		name   string
		origin string
		isSnap bool
		method string
	}{
		{"snap method from dapp", "https://dapp.example", false, "snap_getState"},
		{"snap method from dapp with params", "https://dapp.example", false, "snap_getClientStatus"},
		{"allowlisted method from other origin", "https://evil.example", false, "wallet_getAllSnaps"},
		{"allowlisted method from snap", "npm:foo", true, "wallet_getAllSnaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			e := newEngine(tt.origin, tt.isSnap, allHooks(&calls))
			out, err := e.HandleRaw(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"`+tt.method+`"}`))
			if err != nil {
				t.Fatalf("HandleRaw failed: %v", err)
			}
			if string(out) != string(unknown) {
				t.Errorf("output = %s, want %s", out, unknown)
			}
			if calls != 0 {
				t.Errorf("hooks built %d times for a denied request", calls)
			}
		})
	}
}

func TestPermittedMethodsSnapCaller(t *testing.T) {
	e := newEngine("npm:foo", true, allHooks(nil))
	res := e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "snap_getState", Params: map[string]any{"key": "k"}})
	if res.Error != nil || res.Result != "v" {
		t.Errorf("response = %#v / %+v", res.Result, res.Error)
	}
}

func TestPermittedMethodsPassesUnknownDownstream(t *testing.T) {
	var seen string
	downstream := func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
		seen = req.Method
		res.SetResult("downstream")
		end(nil)
	}
	e := newEngine("https://dapp.example", false, allHooks(nil), downstream)

	res := e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "eth_chainId"})
	if seen != "eth_chainId" || res.Result != "downstream" {
		t.Errorf("seen = %q, response = %#v / %+v", seen, res.Result, res.Error)
	}
}

func TestPermittedMethodsHandlerFailures(t *testing.T) {
	failing := func(f func()) *methods.Handler {
		return &methods.Handler{
			MethodNames: []string{"test_fail"},
			Implementation: func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End, h hooks.Map) error {
				f()
				return errors.New("handler failed")
			},
		}
	}

	tests := []struct {
		name      string
		handler   *methods.Handler
		wantCause string
	}{
		{"returned error", failing(func() {}), "handler failed"},
		{"panic", failing(func() { panic("boom") }), "panic in test_fail: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := methods.MustRegistry(tt.handler)
			downstreamRan := false
			e := engine.New("o", false,
				PermittedMethods(registry, false, allHooks(nil)),
				func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
					downstreamRan = true
					next()
				},
			)
			res := e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "test_fail"})
			if res.Error == nil || res.Error.Code != jsonrpc.InternalError {
				t.Fatalf("error = %+v, want InternalError", res.Error)
			}
			data, _ := res.Error.Data.(map[string]any)
			if data["cause"] != tt.wantCause {
				t.Errorf("cause = %v, want %q", data["cause"], tt.wantCause)
			}
			if downstreamRan {
				t.Error("failed request continued down the chain")
			}
		})
	}
}

func TestPermittedMethodsHookIsolation(t *testing.T) {
	var got hooks.Map
	registry := methods.MustRegistry(&methods.Handler{
		MethodNames: []string{"test_hooks"},
		HookNames:   []string{hooks.GetSnapStateName, hooks.GetVersionName},
		Implementation: func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End, h hooks.Map) error {
			got = h
			res.SetResult(nil)
			end(nil)
			return nil
		},
	})

	e := engine.New("o", false, PermittedMethods(registry, false, allHooks(nil)))
	e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "test_hooks"})

	if len(got) != 1 {
		t.Fatalf("handler received %d hooks, want 1: %v", len(got), got)
	}
	if _, ok := got[hooks.GetSnapStateName]; !ok {
		t.Error("declared hook missing")
	}
}

func TestPermittedMethodsRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	e := newEngine(methods.SnapsDirectoryOrigin, false, allHooks(nil))
	e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "wallet_getAllSnaps"})

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "snaprpc.dispatch" {
		t.Fatalf("spans = %v", spans)
	}
	attrs := map[string]string{}
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.AsString()
	}
	if attrs["rpc.method"] != "wallet_getAllSnaps" || attrs["snaprpc.outcome"] != "success" {
		t.Errorf("attributes = %v", attrs)
	}
}
