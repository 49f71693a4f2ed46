package db

import (
	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"snaprpc/server/internal/snaps"
)

// ListSnaps returns all installed snaps ordered by id.
func ListSnaps(db *gorm.DB) ([]snaps.Snap, error) {
	var rows []Snap
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]snaps.Snap, len(rows))
	for i, r := range rows {
		result[i] = r.toSnap()
	}
	return result, nil
}

// GetSnap returns the installed snap with id.
func GetSnap(db *gorm.DB, id string) (snaps.Snap, bool, error) {
	var row Snap
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return snaps.Snap{}, false, nil
	}
	if err != nil {
		return snaps.Snap{}, false, errors.Wrapf(err, "get snap %s", id)
	}
	return row.toSnap(), true, nil
}

// InstallSnap inserts id at version. An existing install, including one
// created concurrently by another process, is returned unchanged.
func InstallSnap(db *gorm.DB, id, version string) (snaps.Snap, error) {
	if snap, found, err := GetSnap(db, id); err != nil || found {
		return snap, err
	}

	row := Snap{ID: id, Version: version, Enabled: true}
	if err := db.Create(&row).Error; err != nil {
		if !isUniqueViolation(err) {
			return snaps.Snap{}, errors.Wrapf(err, "install snap %s", id)
		}
		snap, _, err := GetSnap(db, id)
		return snap, err
	}
	return row.toSnap(), nil
}

func (s Snap) toSnap() snaps.Snap {
	return snaps.Snap{
		ID:      s.ID,
		Version: s.Version,
		Enabled: s.Enabled,
		Blocked: s.Blocked,
	}
}
