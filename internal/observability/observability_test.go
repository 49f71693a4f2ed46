package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabledWithoutCredentials(t *testing.T) {
	t.Setenv("GRAFANA_LOKI_URL", "")
	t.Setenv("GRAFANA_LOKI_USER", "")
	t.Setenv("GRAFANA_LOKI_API_KEY", "")
	t.Setenv("APP_ENV", "")

	Init()
	if defaultClient == nil || defaultClient.enabled {
		t.Fatal("expected a disabled client")
	}
	if defaultClient.appName != "snaprpc-dev" {
		t.Errorf("appName = %q", defaultClient.appName)
	}

	// Must be a no-op rather than a panic.
	LogError("test", errors.New("ignored"))
}

func TestPushSendsToLoki(t *testing.T) {
	received := make(chan lokiPushRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "key" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}
		body, _ := io.ReadAll(r.Body)
		var req lokiPushRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
		received <- req
	}))
	defer srv.Close()

	t.Setenv("GRAFANA_LOKI_URL", srv.URL)
	t.Setenv("GRAFANA_LOKI_USER", "user")
	t.Setenv("GRAFANA_LOKI_API_KEY", "key")
	t.Setenv("APP_ENV", "snaprpc-test")
	Init()
	defer func() { defaultClient = nil }()

	LogSecurityEvent("req-1", "https://evil.example", "snap_method_denied", map[string]any{"method": "snap_getState"})

	select {
	case req := <-received:
		if len(req.Streams) != 1 {
			t.Fatalf("streams = %d, want 1", len(req.Streams))
		}
		stream := req.Streams[0]
		if stream.Stream["type"] != "security" || stream.Stream["app"] != "snaprpc-test" {
			t.Errorf("labels = %v", stream.Stream)
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(stream.Values[0][1]), &data); err != nil {
			t.Fatalf("bad line: %v", err)
		}
		if data["origin"] != "https://evil.example" || data["method"] != "snap_getState" {
			t.Errorf("data = %v", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Loki push")
	}
}

func TestStartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	_, span := StartSpan(context.Background(), "snaprpc.dispatch",
		Method("wallet_getSnaps"),
		Origin("https://dapp.example"),
	)
	FailSpan(span, errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Name != "snaprpc.dispatch" {
		t.Errorf("name = %q", s.Name)
	}
	if s.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status.Code)
	}
	attrs := map[string]string{}
	for _, a := range s.Attributes {
		attrs[string(a.Key)] = a.Value.AsString()
	}
	if attrs["rpc.method"] != "wallet_getSnaps" || attrs["snaprpc.origin"] != "https://dapp.example" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestRecordWithoutProvider(t *testing.T) {
	// The global no-op meter must accept records.
	RecordDispatch(context.Background(), "wallet_getSnaps", "success")
	RecordMerge(context.Background(), "install", "success")
}
