package snaps

import (
	"maps"
	"slices"
	"strings"

	"snaprpc/server/internal/jsonrpc"
)

// Permission and caveat names used by the wallet_snap permission.
const (
	WalletSnapPermission = "wallet_snap"
	SnapIDsCaveat        = "snapIds"
)

// Snap id prefixes accepted by the host.
var snapIDPrefixes = []string{"npm:", "local:"}

// IsSnapID reports whether id has a known snap id prefix.
func IsSnapID(id string) bool {
	for _, p := range snapIDPrefixes {
		if strings.HasPrefix(id, p) && len(id) > len(p) {
			return true
		}
	}
	return false
}

// Metadata is the per-snap request payload, e.g. {"version":"^1.0.0"}.
type Metadata map[string]any

// Version returns the requested version range, if any.
func (m Metadata) Version() string {
	v, _ := m["version"].(string)
	return v
}

// SnapSet maps snap ids to their metadata. As a caveat value it is the set of
// snaps an origin may talk to.
type SnapSet map[string]Metadata

// IDs returns the snap ids in sorted order.
func (s SnapSet) IDs() []string {
	return slices.Sorted(maps.Keys(s))
}

// Contains reports whether every id in other is present in s.
func (s SnapSet) Contains(other SnapSet) bool {
	for id := range other {
		if _, ok := s[id]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a copy of s. Metadata maps are shared.
func (s SnapSet) Clone() SnapSet {
	if s == nil {
		return SnapSet{}
	}
	return maps.Clone(s)
}

// Merge returns existing ∪ requested. Requested metadata wins for ids present
// in both. Neither input is modified.
func Merge(existing, requested SnapSet) SnapSet {
	merged := make(SnapSet, len(existing)+len(requested))
	maps.Copy(merged, existing)
	maps.Copy(merged, requested)
	return merged
}

// Caveat restricts a granted permission.
type Caveat struct {
	Type  string  `json:"type"`
	Value SnapSet `json:"value"`
}

// RequestedPermission is one entry of a permission request.
type RequestedPermission struct {
	Caveats []Caveat `json:"caveats"`
}

// PermissionRequest maps a permission target to its requested caveats.
type PermissionRequest map[string]RequestedPermission

// NewPermissionRequest builds a wallet_snap request whose snapIds caveat is set.
func NewPermissionRequest(set SnapSet) PermissionRequest {
	return PermissionRequest{
		WalletSnapPermission: {
			Caveats: []Caveat{{Type: SnapIDsCaveat, Value: set}},
		},
	}
}

// SnapIDs returns the snapIds caveat value of the wallet_snap entry.
func (r PermissionRequest) SnapIDs() SnapSet {
	perm, ok := r[WalletSnapPermission]
	if !ok {
		return nil
	}
	for _, c := range perm.Caveats {
		if c.Type == SnapIDsCaveat {
			return c.Value
		}
	}
	return nil
}

// InstallResult is the outcome of installing one snap.
type InstallResult struct {
	Version string         `json:"version,omitempty"`
	Enabled bool           `json:"enabled"`
	Blocked bool           `json:"blocked"`
	Error   *jsonrpc.Error `json:"error,omitempty"`
}

// InstallResults maps snap ids to their install outcome.
type InstallResults map[string]InstallResult

// Snap describes an installed snap.
type Snap struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
	Blocked bool   `json:"blocked"`
}
