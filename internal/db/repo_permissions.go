package db

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"snaprpc/server/internal/snaps"
)

// GetSnapPermission returns the snapIds caveat of origin's wallet_snap
// permission. found is false when no such permission row exists.
func GetSnapPermission(db *gorm.DB, origin string) (snaps.SnapSet, bool, error) {
	var perm Permission
	err := db.Where("origin = ? AND target = ?", origin, snaps.WalletSnapPermission).First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get permission for %s", origin)
	}

	set, err := snapIDsFromCaveats(perm.Caveats)
	if err != nil {
		return nil, false, errors.Wrapf(err, "decode caveats for %s", origin)
	}
	return set, true, nil
}

// SetSnapPermission upserts origin's wallet_snap permission with granted as
// its snapIds caveat.
func SetSnapPermission(db *gorm.DB, origin string, granted snaps.SnapSet) error {
	caveats, err := caveatsFromSnapIDs(granted)
	if err != nil {
		return err
	}

	perm := Permission{
		Origin:  origin,
		Target:  snaps.WalletSnapPermission,
		Caveats: caveats,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "origin"}, {Name: "target"}},
		DoUpdates: clause.AssignmentColumns([]string{"caveats", "updated_at"}),
	}).Create(&perm).Error
}

func snapIDsFromCaveats(raw JSONB) (snaps.SnapSet, error) {
	if len(raw) == 0 {
		return snaps.SnapSet{}, nil
	}
	var caveats []snaps.Caveat
	if err := json.Unmarshal(raw, &caveats); err != nil {
		return nil, err
	}
	for _, c := range caveats {
		if c.Type == snaps.SnapIDsCaveat {
			if c.Value == nil {
				return snaps.SnapSet{}, nil
			}
			return c.Value, nil
		}
	}
	return snaps.SnapSet{}, nil
}

func caveatsFromSnapIDs(set snaps.SnapSet) (JSONB, error) {
	if set == nil {
		set = snaps.SnapSet{}
	}
	data, err := json.Marshal([]snaps.Caveat{{Type: snaps.SnapIDsCaveat, Value: set}})
	if err != nil {
		return nil, errors.Wrap(err, "encode caveats")
	}
	return JSONB(data), nil
}
