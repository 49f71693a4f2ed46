package db

import (
	"context"

	"gorm.io/gorm"

	"snaprpc/server/internal/snaps"
)

// Store persists permissions, snaps and snap state in PostgreSQL.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database.
func NewStore(database *gorm.DB) *Store {
	return &Store{db: database}
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck() error {
	return HealthCheck(s.db)
}

func (s *Store) GetPermission(ctx context.Context, origin string) (snaps.SnapSet, bool, error) {
	return GetSnapPermission(s.db.WithContext(ctx), origin)
}

func (s *Store) SetPermission(ctx context.Context, origin string, granted snaps.SnapSet) error {
	return SetSnapPermission(s.db.WithContext(ctx), origin, granted)
}

func (s *Store) ListSnaps(ctx context.Context) ([]snaps.Snap, error) {
	return ListSnaps(s.db.WithContext(ctx))
}

func (s *Store) GetSnap(ctx context.Context, id string) (snaps.Snap, bool, error) {
	return GetSnap(s.db.WithContext(ctx), id)
}

func (s *Store) InstallSnap(ctx context.Context, id, version string) (snaps.Snap, error) {
	return InstallSnap(s.db.WithContext(ctx), id, version)
}

func (s *Store) GetState(ctx context.Context, snapID string, encrypted bool) (map[string]any, error) {
	return GetSnapState(s.db.WithContext(ctx), snapID, encrypted)
}

func (s *Store) SetState(ctx context.Context, snapID string, encrypted bool, state map[string]any) error {
	return SetSnapState(s.db.WithContext(ctx), snapID, encrypted, state)
}

func (s *Store) ClearState(ctx context.Context, snapID string, encrypted bool) error {
	return ClearSnapState(s.db.WithContext(ctx), snapID, encrypted)
}
