package snaps

import (
	"context"

	"github.com/go-faster/errors"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/observability"
)

// Hooks are the host capabilities a merge needs. They are the only writers of
// the permission store; the merger never mutates a PermissionSet itself.
type Hooks struct {
	// GetPermissions returns the origin's snapIds caveat. found is false when
	// the origin holds no wallet_snap permission at all.
	GetPermissions func(ctx context.Context) (granted SnapSet, found bool, err error)
	// RequestPermissions prompts the user and, on approval, grants and
	// installs the snaps in the request.
	RequestPermissions func(ctx context.Context, req PermissionRequest) (InstallResults, error)
	// InstallSnaps (re)installs snaps the origin is already permitted to use.
	InstallSnaps func(ctx context.Context, requested SnapSet) (InstallResults, error)
}

// Branch identifies which path a merge took.
type Branch int

const (
	// BranchNone means the merge stopped before reading permissions.
	BranchNone Branch = iota
	// BranchRequest: no existing grant, the requested set was prompted as is.
	BranchRequest
	// BranchInstall: the existing grant covers the request, no prompt.
	BranchInstall
	// BranchMerge: existing ∪ requested was prompted.
	BranchMerge
)

func (b Branch) String() string {
	switch b {
	case BranchRequest:
		return "request"
	case BranchInstall:
		return "install"
	case BranchMerge:
		return "merge"
	default:
		return "none"
	}
}

// Outcome is the result of one merge: either Result or Err is set.
type Outcome struct {
	Branch Branch
	// Prompted is the snap set sent to RequestPermissions, nil for BranchInstall.
	Prompted SnapSet
	Result   InstallResults
	Err      error
}

// Merger serializes permission merges per origin.
type Merger struct {
	locks *OriginLocks
}

// NewMerger creates a merger with its own lock table.
func NewMerger() *Merger {
	return &Merger{locks: NewOriginLocks()}
}

// Locks exposes the merger's per-origin lock table.
func (m *Merger) Locks() *OriginLocks {
	return m.locks
}

// RequestSnaps reconciles requested against the origin's existing grant.
// The read-decide-request sequence runs under the origin's lock; a second
// call for the same origin observes the first call's grant. Errors from
// hooks are returned in Outcome.Err, never panicked or dropped.
func (m *Merger) RequestSnaps(ctx context.Context, origin string, requested SnapSet, h Hooks) Outcome {
	ctx, span := observability.StartSpan(ctx, "snaprpc.permission.merge",
		observability.Origin(origin),
		observability.RequestID(engine.RequestID(ctx)),
	)
	defer span.End()

	out := m.requestSnaps(ctx, origin, requested, h)

	span.SetAttributes(observability.Branch(out.Branch.String()))
	status, errMsg := "success", ""
	if out.Err != nil {
		observability.FailSpan(span, out.Err)
		status, errMsg = "error", out.Err.Error()
	}
	observability.RecordMerge(ctx, out.Branch.String(), status)
	observability.LogMerge(engine.RequestID(ctx), origin, out.Branch.String(), requested.IDs(), errMsg)
	return out
}

func (m *Merger) requestSnaps(ctx context.Context, origin string, requested SnapSet, h Hooks) Outcome {
	if len(requested) == 0 {
		return Outcome{Err: jsonrpc.NewInvalidParams("Invalid params: expected a non-empty object of snap ids")}
	}
	for _, id := range requested.IDs() {
		if !IsSnapID(id) {
			return Outcome{Err: jsonrpc.NewInvalidParams("Invalid params: %q is not a valid snap id", id)}
		}
	}
	if h.GetPermissions == nil || h.RequestPermissions == nil || h.InstallSnaps == nil {
		return Outcome{Err: errors.New("permission hooks are not available")}
	}

	release, err := m.locks.Acquire(ctx, origin)
	if err != nil {
		return Outcome{Err: errors.Wrap(err, "acquire origin lock")}
	}
	defer release()

	existing, found, err := h.GetPermissions(ctx)
	if err != nil {
		return Outcome{Err: err}
	}

	switch {
	case !found:
		prompted := requested.Clone()
		res, err := h.RequestPermissions(ctx, NewPermissionRequest(prompted))
		return Outcome{Branch: BranchRequest, Prompted: prompted, Result: res, Err: err}
	case existing.Contains(requested):
		res, err := h.InstallSnaps(ctx, requested)
		return Outcome{Branch: BranchInstall, Result: res, Err: err}
	default:
		merged := Merge(existing, requested)
		res, err := h.RequestPermissions(ctx, NewPermissionRequest(merged))
		return Outcome{Branch: BranchMerge, Prompted: merged, Result: res, Err: err}
	}
}
