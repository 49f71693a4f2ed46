package db

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSnapState returns the snap's state document, decrypting encrypted state.
// A snap without state gets nil.
func GetSnapState(db *gorm.DB, snapID string, encrypted bool) (map[string]any, error) {
	var row SnapState
	err := db.Where("snap_id = ? AND encrypted = ?", snapID, encrypted).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get state for %s", snapID)
	}

	data := []byte(row.Data)
	if encrypted {
		if row.EncryptedData == nil || *row.EncryptedData == "" {
			return nil, nil
		}
		plain, err := decrypt(*row.EncryptedData)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt state for %s", snapID)
		}
		data = plain
	}
	return decodeState(data)
}

// SetSnapState replaces the snap's state document.
func SetSnapState(db *gorm.DB, snapID string, encrypted bool, state map[string]any) error {
	row, err := stateRow(snapID, encrypted, state)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "snap_id"}, {Name: "encrypted"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "encrypted_data", "key_version", "updated_at"}),
	}).Create(&row).Error
}

// ClearSnapState deletes the snap's state document.
func ClearSnapState(db *gorm.DB, snapID string, encrypted bool) error {
	return db.Where("snap_id = ? AND encrypted = ?", snapID, encrypted).Delete(&SnapState{}).Error
}

// stateRow builds the row for state, sealing it when encrypted.
func stateRow(snapID string, encrypted bool, state map[string]any) (SnapState, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return SnapState{}, errors.Wrap(err, "encode state")
	}

	row := SnapState{SnapID: snapID, Encrypted: encrypted, KeyVersion: 1}
	if !encrypted {
		row.Data = JSONB(data)
		return row, nil
	}

	sealed, err := encrypt(data)
	if err != nil {
		return SnapState{}, errors.Wrap(err, "encrypt state")
	}
	row.EncryptedData = &sealed
	row.Data = JSONB("{}")
	return row, nil
}

func decodeState(data []byte) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "decode state")
	}
	return state, nil
}
