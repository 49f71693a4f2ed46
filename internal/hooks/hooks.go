// Package hooks defines the host capabilities injected into permitted method
// handlers, and the selector that scopes them per handler.
package hooks

import (
	"context"

	"github.com/go-faster/errors"

	"snaprpc/server/internal/snaps"
)

// Map holds hook functions by name. The host builds a fresh Map per dispatch,
// closing over the requesting origin; handlers receive only the subset they
// declared.
type Map map[string]any

// Select returns the hooks of all named in names. Names absent from all are
// omitted, names not listed are never exposed. all is not modified.
func Select(all Map, names []string) Map {
	selected := make(Map, len(names))
	for _, name := range names {
		if h, ok := all[name]; ok {
			selected[name] = h
		}
	}
	return selected
}

// Get returns the hook registered under name as T. A missing hook or one of
// another type is an error, surfaced to the caller as an internal error.
func Get[T any](m Map, name string) (T, error) {
	var zero T
	v, ok := m[name]
	if !ok {
		return zero, errors.Errorf("hook %q is not available", name)
	}
	h, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("hook %q has type %T, want %T", name, v, zero)
	}
	return h, nil
}

// Hook names.
const (
	GetAllSnapsName        = "getAllSnaps"
	GetSnapsName           = "getSnaps"
	InstallSnapsName       = "installSnaps"
	RequestPermissionsName = "requestPermissions"
	GetPermissionsName     = "getPermissions"
	InvokeSnapName         = "invokeSnap"
	GetIsLockedName        = "getIsLocked"
	GetIsActiveName        = "getIsActive"
	GetVersionName         = "getVersion"
	GetPreferencesName     = "getPreferences"
	GetCurrencyRateName    = "getCurrencyRate"
	GetSnapStateName       = "getSnapState"
	UpdateSnapStateName    = "updateSnapState"
	ClearSnapStateName     = "clearSnapState"
)

// Hook signatures. Values stored in a Map must have exactly these types.
type (
	GetAllSnaps        func(ctx context.Context) ([]snaps.Snap, error)
	GetSnaps           func(ctx context.Context) (map[string]snaps.Snap, error)
	InstallSnaps       func(ctx context.Context, requested snaps.SnapSet) (snaps.InstallResults, error)
	RequestPermissions func(ctx context.Context, req snaps.PermissionRequest) (snaps.InstallResults, error)
	GetPermissions     func(ctx context.Context) (granted snaps.SnapSet, found bool, err error)
	InvokeSnap         func(ctx context.Context, req SnapRequest) (any, error)
	GetIsLocked        func(ctx context.Context) bool
	GetIsActive        func(ctx context.Context) bool
	GetVersion         func(ctx context.Context) string
	GetPreferences     func(ctx context.Context) (Preferences, error)
	GetCurrencyRate    func(ctx context.Context, currency string) (*CurrencyRate, error)
	GetSnapState       func(ctx context.Context, encrypted bool) (map[string]any, error)
	UpdateSnapState    func(ctx context.Context, state map[string]any, encrypted bool) error
	ClearSnapState     func(ctx context.Context, encrypted bool) error
)

// SnapRequest is a JSON-RPC request forwarded to a snap.
type SnapRequest struct {
	SnapID string `json:"snapId"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Preferences are the user settings a snap may read.
type Preferences struct {
	Locale         string `json:"locale" yaml:"locale"`
	Currency       string `json:"currency" yaml:"currency"`
	HideBalances   bool   `json:"hideBalances" yaml:"hide_balances"`
	ShowTestnets   bool   `json:"showTestnets" yaml:"show_testnets"`
	SecurityAlerts bool   `json:"useSecurityAlerts" yaml:"security_alerts"`
}

// CurrencyRate is a conversion rate from a crypto currency to the user's
// fiat currency.
type CurrencyRate struct {
	Currency       string  `json:"currency"`
	ConversionRate float64 `json:"conversionRate"`
	ConversionDate int64   `json:"conversionDate"`
}

// MergeHooks adapts the three permission hooks of m for the merge engine.
func MergeHooks(m Map) (snaps.Hooks, error) {
	install, err := Get[InstallSnaps](m, InstallSnapsName)
	if err != nil {
		return snaps.Hooks{}, err
	}
	request, err := Get[RequestPermissions](m, RequestPermissionsName)
	if err != nil {
		return snaps.Hooks{}, err
	}
	get, err := Get[GetPermissions](m, GetPermissionsName)
	if err != nil {
		return snaps.Hooks{}, err
	}
	return snaps.Hooks{
		GetPermissions:     get,
		RequestPermissions: request,
		InstallSnaps:       install,
	}, nil
}
