package middleware

import (
	"context"
	"log"
	"time"

	"github.com/go-faster/errors"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/methods"
	"snaprpc/server/internal/observability"
)

// HooksFunc builds the complete hook map for one request. It is called once
// per permitted dispatch, after access checks pass.
type HooksFunc func(ctx context.Context, req *jsonrpc.Request) hooks.Map

// PermittedMethods dispatches requests for registered methods to their
// handlers and passes everything else down the chain.
//
// Snap-only methods called by a non-snap, and allowlisted methods called from
// another origin, fail with the same MethodNotFound error an unknown method
// gets. Handler errors and panics become internal errors.
func PermittedMethods(registry *methods.Registry, isSnap bool, hooksFor HooksFunc) engine.Middleware {
	return func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End) {
		handler, ok := registry.Lookup(req.Method)
		if !ok {
			next()
			return
		}

		if methods.IsSnapOnly(req.Method) && !isSnap {
			deny(ctx, req, "snap_method_denied")
			end(jsonrpc.NewMethodNotFound())
			return
		}
		if !handler.AllowsOrigin(req.Origin) {
			deny(ctx, req, "origin_not_allowed")
			end(jsonrpc.NewMethodNotFound())
			return
		}

		requestID := engine.RequestID(ctx)
		ctx, span := observability.StartSpan(ctx, "snaprpc.dispatch",
			observability.Method(req.Method),
			observability.Origin(req.Origin),
			observability.RequestID(requestID),
		)
		defer span.End()
		start := time.Now()

		selected := hooks.Select(hooksFor(ctx, req), handler.HookNames)
		err := invoke(ctx, handler, req, res, next, end, selected)

		status, errMsg := "success", ""
		switch {
		case err != nil:
			log.Printf("dispatch: method=%s origin=%s request=%s: %v", req.Method, req.Origin, requestID, err)
			observability.LogError("dispatch "+req.Method, err)
			observability.FailSpan(span, err)
			end(jsonrpc.NewInternalError(err))
			status, errMsg = "error", err.Error()
		case res.Error != nil:
			status, errMsg = "error", res.Error.Message
		}

		span.SetAttributes(observability.Outcome(status))
		observability.RecordDispatch(ctx, req.Method, status)
		observability.LogMethodCall(requestID, req.Origin, req.Method, time.Since(start).Milliseconds(), status, errMsg)
	}
}

// invoke calls the handler, turning a panic into an error.
func invoke(ctx context.Context, handler *methods.Handler, req *jsonrpc.Request, res *jsonrpc.Response, next engine.Next, end engine.End, h hooks.Map) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in %s: %v", req.Method, r)
		}
	}()
	return handler.Implementation(ctx, req, res, next, end, h)
}

func deny(ctx context.Context, req *jsonrpc.Request, event string) {
	observability.RecordDispatch(ctx, req.Method, "denied")
	observability.LogSecurityEvent(engine.RequestID(ctx), req.Origin, event, map[string]any{
		"method": req.Method,
	})
}
