package middleware

import (
	"context"
	"testing"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/jsonrpc"
)

func TestRecovery(t *testing.T) {
	e := engine.New("o", false, Recovery, func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
		res.SetResult("partial")
		panic("boom")
	})

	res := e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "m"})
	if res.Error == nil || res.Error.Code != jsonrpc.InternalError {
		t.Fatalf("error = %+v, want InternalError", res.Error)
	}
	if res.HasResult() {
		t.Errorf("result kept after panic: %v", res.Result)
	}
}

func TestRecoveryPassesThrough(t *testing.T) {
	e := engine.New("o", false, Recovery, func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
		res.SetResult(42)
		end(nil)
	})

	res := e.Handle(context.Background(), &jsonrpc.Request{ID: 1, Method: "m"})
	if res.Error != nil || res.Result != 42 {
		t.Errorf("response = %v / %+v", res.Result, res.Error)
	}
}
