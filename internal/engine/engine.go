package engine

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"snaprpc/server/internal/jsonrpc"
)

// Next passes the request to the next middleware in the chain.
type Next func()

// End completes the request. A nil error means the response already holds
// its outcome (a result, or an error a handler captured into it).
type End func(err *jsonrpc.Error)

// Middleware handles one request. It must call exactly one of next or end
// before returning.
type Middleware func(ctx context.Context, req *jsonrpc.Request, res *jsonrpc.Response, next Next, end End)

// Engine runs a middleware chain for a single connection. The connection's
// origin is trusted and stamped onto every request.
type Engine struct {
	origin     string
	isSnap     bool
	middleware []Middleware
}

// New creates an engine for one connected origin.
func New(origin string, isSnap bool, middleware ...Middleware) *Engine {
	return &Engine{
		origin:     origin,
		isSnap:     isSnap,
		middleware: middleware,
	}
}

// Origin returns the origin this engine serves.
func (e *Engine) Origin() string { return e.origin }

// IsSnap reports whether the connected origin is a snap.
func (e *Engine) IsSnap() bool { return e.isSnap }

// Handle dispatches req through the chain and returns the completed response.
// The caller's request value is not modified.
func (e *Engine) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	r := *req
	r.Origin = e.origin
	if r.JSONRPC == "" {
		r.JSONRPC = jsonrpc.Version
	}

	if RequestID(ctx) == "" {
		ctx = WithRequestID(ctx, uuid.NewString())
	}

	res := jsonrpc.NewResponse(&r)
	e.run(ctx, 0, &r, res)

	if err := res.Validate(); err != nil {
		log.Printf("engine: method=%s origin=%s request=%s: %v", r.Method, r.Origin, RequestID(ctx), err)
		res.SetError(jsonrpc.NewInternalError(err))
	}
	return res
}

// HandleRaw decodes one wire request, dispatches it and encodes the response.
// Notifications are dispatched but produce no output.
func (e *Engine) HandleRaw(ctx context.Context, data []byte) ([]byte, error) {
	req, rpcErr := jsonrpc.DecodeRequest(data)
	if rpcErr != nil {
		res := &jsonrpc.Response{JSONRPC: jsonrpc.Version, Error: rpcErr}
		if req != nil {
			res.ID = req.ID
		}
		return res.Encode()
	}

	res := e.Handle(ctx, req)
	if req.IsNotification() {
		return nil, nil
	}
	return res.Encode()
}

func (e *Engine) run(ctx context.Context, i int, req *jsonrpc.Request, res *jsonrpc.Response) {
	if i == len(e.middleware) {
		res.SetError(jsonrpc.NewMethodNotFound())
		return
	}

	var state completion
	next := func() {
		if !state.complete(req, "next") {
			return
		}
		e.run(ctx, i+1, req, res)
	}
	end := func(err *jsonrpc.Error) {
		if !state.complete(req, "end") {
			return
		}
		if err != nil {
			res.SetError(err)
		}
	}

	e.middleware[i](ctx, req, res, next, end)

	if !state.done.Load() {
		log.Printf("engine: middleware %d returned without completing method=%s", i, req.Method)
		res.SetError(jsonrpc.NewInternalError(errors.Errorf("request %q was not completed", req.Method)))
	}
}

// completion guards the exactly-once next/end contract of one middleware.
type completion struct {
	done atomic.Bool
}

func (c *completion) complete(req *jsonrpc.Request, via string) bool {
	if c.done.CompareAndSwap(false, true) {
		return true
	}
	log.Printf("engine: duplicate completion via %s ignored method=%s origin=%s", via, req.Method, req.Origin)
	return false
}
