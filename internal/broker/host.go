// Package broker is the wallet host behind the permitted methods: it builds
// the hook map for each dispatch and connects origins to an engine.
package broker

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"snaprpc/server/internal/engine"
	"snaprpc/server/internal/hooks"
	"snaprpc/server/internal/jsonrpc"
	"snaprpc/server/internal/methods"
	"snaprpc/server/internal/middleware"
	"snaprpc/server/internal/snaps"
)

const defaultSnapVersion = "1.0.0"

// Settings are the client values exposed to snaps.
type Settings struct {
	ClientVersion string
	Locked        bool
	Active        bool
	Preferences   hooks.Preferences
	// CurrencyRates maps a lower-case currency code to its rate.
	CurrencyRates map[string]hooks.CurrencyRate
	// BlockedSnaps are snap ids that may never be installed.
	BlockedSnaps []string
	// RateLimit is the per-origin requests-per-second limit; 0 disables it.
	RateLimit int
}

// Host owns the shared state of every connection: the registry, the merge
// engine and its origin locks, and the rate limiter.
type Host struct {
	store    Store
	approver Approver
	executor Executor
	settings Settings

	merger   *snaps.Merger
	registry *methods.Registry
	limiter  *middleware.RateLimiter
	cache    *snapCache
}

// NewHost creates a host. Call Close when done.
func NewHost(store Store, approver Approver, executor Executor, settings Settings) *Host {
	merger := snaps.NewMerger()
	h := &Host{
		store:    store,
		approver: approver,
		executor: executor,
		settings: settings,
		merger:   merger,
		registry: methods.Permitted(merger),
		cache:    newSnapCache(30 * time.Second),
	}
	if settings.RateLimit > 0 {
		h.limiter = middleware.NewRateLimiter(settings.RateLimit)
	}
	return h
}

// Registry returns the permitted method registry.
func (h *Host) Registry() *methods.Registry { return h.registry }

// Close releases background resources.
func (h *Host) Close() {
	if h.limiter != nil {
		h.limiter.Close()
	}
}

// Connect creates the engine for one connected origin. The origin is a snap
// when it is the id of an installed snap.
func (h *Host) Connect(ctx context.Context, origin string) (*engine.Engine, error) {
	isSnap := false
	if snaps.IsSnapID(origin) {
		_, found, err := h.cache.lookup(ctx, h.store, origin)
		if err != nil {
			return nil, errors.Wrapf(err, "look up origin %s", origin)
		}
		isSnap = found
	}

	chain := []engine.Middleware{middleware.Recovery}
	if h.limiter != nil {
		chain = append(chain, h.limiter.Middleware())
	}
	chain = append(chain, middleware.PermittedMethods(h.registry, isSnap, func(ctx context.Context, req *jsonrpc.Request) hooks.Map {
		return h.Hooks(req.Origin)
	}))

	log.Printf("connect: origin=%s snap=%t", origin, isSnap)
	return engine.New(origin, isSnap, chain...), nil
}

// Hooks builds the complete hook map for a request from origin. Every hook
// closes over origin; none can act on behalf of another origin.
func (h *Host) Hooks(origin string) hooks.Map {
	return hooks.Map{
		hooks.GetAllSnapsName: hooks.GetAllSnaps(func(ctx context.Context) ([]snaps.Snap, error) {
			return h.store.ListSnaps(ctx)
		}),
		hooks.GetSnapsName: hooks.GetSnaps(func(ctx context.Context) (map[string]snaps.Snap, error) {
			return h.permittedSnaps(ctx, origin)
		}),
		hooks.GetPermissionsName: hooks.GetPermissions(func(ctx context.Context) (snaps.SnapSet, bool, error) {
			return h.store.GetPermission(ctx, origin)
		}),
		hooks.RequestPermissionsName: hooks.RequestPermissions(func(ctx context.Context, req snaps.PermissionRequest) (snaps.InstallResults, error) {
			return h.requestPermissions(ctx, origin, req)
		}),
		hooks.InstallSnapsName: hooks.InstallSnaps(func(ctx context.Context, requested snaps.SnapSet) (snaps.InstallResults, error) {
			return h.installPermitted(ctx, origin, requested)
		}),
		hooks.InvokeSnapName: hooks.InvokeSnap(func(ctx context.Context, req hooks.SnapRequest) (any, error) {
			return h.invokeSnap(ctx, origin, req)
		}),
		hooks.GetIsLockedName: hooks.GetIsLocked(func(ctx context.Context) bool {
			return h.settings.Locked
		}),
		hooks.GetIsActiveName: hooks.GetIsActive(func(ctx context.Context) bool {
			return h.settings.Active
		}),
		hooks.GetVersionName: hooks.GetVersion(func(ctx context.Context) string {
			return h.settings.ClientVersion
		}),
		hooks.GetPreferencesName: hooks.GetPreferences(func(ctx context.Context) (hooks.Preferences, error) {
			return h.settings.Preferences, nil
		}),
		hooks.GetCurrencyRateName: hooks.GetCurrencyRate(func(ctx context.Context, currency string) (*hooks.CurrencyRate, error) {
			rate, ok := h.settings.CurrencyRates[currency]
			if !ok {
				return nil, nil
			}
			return &rate, nil
		}),
		hooks.GetSnapStateName: hooks.GetSnapState(func(ctx context.Context, encrypted bool) (map[string]any, error) {
			return h.store.GetState(ctx, origin, encrypted)
		}),
		hooks.UpdateSnapStateName: hooks.UpdateSnapState(func(ctx context.Context, state map[string]any, encrypted bool) error {
			return h.store.SetState(ctx, origin, encrypted, state)
		}),
		hooks.ClearSnapStateName: hooks.ClearSnapState(func(ctx context.Context, encrypted bool) error {
			return h.store.ClearState(ctx, origin, encrypted)
		}),
	}
}

func (h *Host) permittedSnaps(ctx context.Context, origin string) (map[string]snaps.Snap, error) {
	granted, _, err := h.store.GetPermission(ctx, origin)
	if err != nil {
		return nil, err
	}
	result := make(map[string]snaps.Snap, len(granted))
	for _, id := range granted.IDs() {
		snap, found, err := h.cache.lookup(ctx, h.store, id)
		if err != nil {
			return nil, err
		}
		if found {
			result[id] = snap
		}
	}
	return result, nil
}

// requestPermissions prompts for req, installs its snaps and writes the grant.
// The request already carries the full caveat. New ids are granted only when
// they installed; ids the origin already held are never removed.
func (h *Host) requestPermissions(ctx context.Context, origin string, req snaps.PermissionRequest) (snaps.InstallResults, error) {
	requested := req.SnapIDs()
	if requested == nil {
		return nil, jsonrpc.NewInvalidParams("Invalid params: missing %s caveat", snaps.SnapIDsCaveat)
	}
	if err := h.approver.Approve(ctx, origin, req); err != nil {
		return nil, err
	}

	existing, _, err := h.store.GetPermission(ctx, origin)
	if err != nil {
		return nil, err
	}

	results := h.install(ctx, requested)

	// Ids already granted stay granted even if their reinstall failed; the
	// failure is reported in results only. New ids are granted on install.
	granted := existing.Clone()
	for id, meta := range requested {
		if _, held := existing[id]; held || results[id].Error == nil {
			granted[id] = meta
		}
	}
	if err := h.store.SetPermission(ctx, origin, granted); err != nil {
		return nil, errors.Wrap(err, "grant permission")
	}
	return results, nil
}

// installPermitted installs requested snaps the origin is already allowed to
// use. Snaps outside the grant fail individually with Unauthorized.
func (h *Host) installPermitted(ctx context.Context, origin string, requested snaps.SnapSet) (snaps.InstallResults, error) {
	granted, _, err := h.store.GetPermission(ctx, origin)
	if err != nil {
		return nil, err
	}

	allowed := make(snaps.SnapSet, len(requested))
	results := make(snaps.InstallResults, len(requested))
	for id, meta := range requested {
		if _, ok := granted[id]; !ok {
			results[id] = snaps.InstallResult{Error: jsonrpc.NewUnauthorized("")}
			continue
		}
		allowed[id] = meta
	}
	for id, res := range h.install(ctx, allowed) {
		results[id] = res
	}
	return results, nil
}

func (h *Host) install(ctx context.Context, set snaps.SnapSet) snaps.InstallResults {
	results := make(snaps.InstallResults, len(set))
	for _, id := range set.IDs() {
		if slices.Contains(h.settings.BlockedSnaps, id) {
			results[id] = snaps.InstallResult{
				Blocked: true,
				Error:   jsonrpc.NewUnauthorized(fmt.Sprintf("Snap %q is blocked.", id)),
			}
			continue
		}

		snap, err := h.store.InstallSnap(ctx, id, snapVersion(set[id]))
		h.cache.delete(id)
		if err != nil {
			log.Printf("install: snap=%s: %v", id, err)
			results[id] = snaps.InstallResult{Error: jsonrpc.FromError(err)}
			continue
		}
		results[id] = snaps.InstallResult{
			Version: snap.Version,
			Enabled: snap.Enabled,
			Blocked: snap.Blocked,
		}
	}
	return results
}

// snapVersion resolves a requested version range to the version installed.
func snapVersion(meta snaps.Metadata) string {
	v := strings.TrimLeft(meta.Version(), "^~=v")
	if v == "" || v == "*" {
		return defaultSnapVersion
	}
	return v
}

func (h *Host) invokeSnap(ctx context.Context, origin string, req hooks.SnapRequest) (any, error) {
	granted, _, err := h.store.GetPermission(ctx, origin)
	if err != nil {
		return nil, err
	}
	if _, ok := granted[req.SnapID]; !ok {
		return nil, jsonrpc.NewUnauthorized("")
	}

	snap, found, err := h.cache.lookup(ctx, h.store, req.SnapID)
	if err != nil {
		return nil, err
	}
	if !found || !snap.Enabled || snap.Blocked {
		return nil, jsonrpc.NewUnauthorized(fmt.Sprintf("Snap %q is not installed or is disabled.", req.SnapID))
	}
	return h.executor.Invoke(ctx, origin, req)
}
