package broker

import (
	"context"
	"slices"

	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/snaps"
)

// Approver stands in for the user prompt of a permission request.
// A nil error approves; a rejection should be a UserRejected error.
type Approver interface {
	Approve(ctx context.Context, origin string, req snaps.PermissionRequest) error
}

// AutoApprove approves every request.
type AutoApprove struct{}

func (AutoApprove) Approve(ctx context.Context, origin string, req snaps.PermissionRequest) error {
	return nil
}

// DenyAll rejects every request.
type DenyAll struct{}

func (DenyAll) Approve(ctx context.Context, origin string, req snaps.PermissionRequest) error {
	return jsonrpc.NewUserRejected()
}

// AllowlistApprover approves requests from the listed origins only.
type AllowlistApprover struct {
	Origins []string
}

func (a AllowlistApprover) Approve(ctx context.Context, origin string, req snaps.PermissionRequest) error {
	if slices.Contains(a.Origins, origin) {
		return nil
	}
	return jsonrpc.NewUserRejected()
}

// Executor runs a request inside a snap.
type Executor interface {
	Invoke(ctx context.Context, origin string, req hooks.SnapRequest) (any, error)
}

// EchoExecutor answers every snap request with a description of the call.
type EchoExecutor struct{}

func (EchoExecutor) Invoke(ctx context.Context, origin string, req hooks.SnapRequest) (any, error) {
	return map[string]any{
		"snapId": req.SnapID,
		"origin": origin,
		"method": req.Method,
		"params": req.Params,
	}, nil
}
