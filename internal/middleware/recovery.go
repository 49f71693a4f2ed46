package middleware

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/go-faster/errors"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/observability"
)

// Recovery recovers panics raised anywhere below it in the chain.
// It logs the stack trace and replaces the response with an internal error.
// Its own completion was spent on next, so the error is written directly.
func Recovery(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
	defer func() {
		if err := recover(); err != nil {
			stack := debug.Stack()
			log.Printf("PANIC recovered: method=%s origin=%s: %v\n%s", req.Method, req.Origin, err, stack)

			// Log to Loki for alerting
			observability.LogSecurityEvent(engine.RequestID(ctx), req.Origin, "panic_recovered", map[string]any{
				"method": req.Method,
				"error":  fmt.Sprintf("%v", err),
			})

			res.SetError(jsonrpc.NewInternalError(errors.Errorf("panic: %v", err)))
		}
	}()
	next()
}
