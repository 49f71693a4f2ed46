package broker

import (
	"context"
	"maps"
	"slices"
	"sync"

	"snaprpc/server/internal/snaps"
)

// Store persists snap permissions, installed snaps and snap state.
type Store interface {
	// GetPermission returns the snapIds caveat of origin's wallet_snap
	// permission. found is false when origin holds no such permission.
	GetPermission(ctx context.Context, origin string) (granted snaps.SnapSet, found bool, err error)
	// SetPermission replaces origin's snapIds caveat.
	SetPermission(ctx context.Context, origin string, granted snaps.SnapSet) error

	ListSnaps(ctx context.Context) ([]snaps.Snap, error)
	GetSnap(ctx context.Context, id string) (snaps.Snap, bool, error)
	// InstallSnap installs id at version, or returns the existing install.
	InstallSnap(ctx context.Context, id, version string) (snaps.Snap, error)

	GetState(ctx context.Context, snapID string, encrypted bool) (map[string]any, error)
	SetState(ctx context.Context, snapID string, encrypted bool, state map[string]any) error
	ClearState(ctx context.Context, snapID string, encrypted bool) error
}

type stateKey struct {
	snapID    string
	encrypted bool
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu          sync.Mutex
	permissions map[string]snaps.SnapSet
	installed   map[string]snaps.Snap
	state       map[stateKey]map[string]any
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[string]snaps.SnapSet),
		installed:   make(map[string]snaps.Snap),
		state:       make(map[stateKey]map[string]any),
	}
}

func (s *MemoryStore) GetPermission(ctx context.Context, origin string) (snaps.SnapSet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	granted, ok := s.permissions[origin]
	if !ok {
		return nil, false, nil
	}
	return granted.Clone(), true, nil
}

func (s *MemoryStore) SetPermission(ctx context.Context, origin string, granted snaps.SnapSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[origin] = granted.Clone()
	return nil
}

func (s *MemoryStore) ListSnaps(ctx context.Context) ([]snaps.Snap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]snaps.Snap, 0, len(s.installed))
	for _, id := range slices.Sorted(maps.Keys(s.installed)) {
		list = append(list, s.installed[id])
	}
	return list, nil
}

func (s *MemoryStore) GetSnap(ctx context.Context, id string) (snaps.Snap, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.installed[id]
	return snap, ok, nil
}

func (s *MemoryStore) InstallSnap(ctx context.Context, id, version string) (snaps.Snap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.installed[id]; ok {
		return snap, nil
	}
	snap := snaps.Snap{ID: id, Version: version, Enabled: true}
	s.installed[id] = snap
	return snap, nil
}

func (s *MemoryStore) GetState(ctx context.Context, snapID string, encrypted bool) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.state[stateKey{snapID, encrypted}]
	if !ok {
		return nil, nil
	}
	return maps.Clone(state), nil
}

func (s *MemoryStore) SetState(ctx context.Context, snapID string, encrypted bool, state map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[stateKey{snapID, encrypted}] = maps.Clone(state)
	return nil
}

func (s *MemoryStore) ClearState(ctx context.Context, snapID string, encrypted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, stateKey{snapID, encrypted})
	return nil
}
