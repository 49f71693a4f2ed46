package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB is a generic type for PostgreSQL JSONB columns.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSONB(v)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("unsupported type for JSONB: %T", value)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return json.RawMessage(j).MarshalJSON()
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = JSONB(data)
	return nil
}

// --- Models ---

// Permission is a permission granted to an origin. Caveats holds the JSON
// array of caveats; for wallet_snap it carries the snapIds caveat.
type Permission struct {
	Origin    string    `gorm:"primaryKey;type:text" json:"origin"`
	Target    string    `gorm:"primaryKey;type:text" json:"target"`
	Caveats   JSONB     `gorm:"type:jsonb;not null;default:'[]'" json:"caveats"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Permission) TableName() string { return "snaprpc.permissions" }

type Snap struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Version   string    `gorm:"type:text;not null" json:"version"`
	Enabled   bool      `gorm:"not null;default:true" json:"enabled"`
	Blocked   bool      `gorm:"not null;default:false" json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Snap) TableName() string { return "snaprpc.snaps" }

// SnapState is one of a snap's two state documents. Plain state lives in
// Data; encrypted state lives sealed in EncryptedData.
type SnapState struct {
	SnapID        string    `gorm:"primaryKey;type:text" json:"snap_id"`
	Encrypted     bool      `gorm:"primaryKey" json:"encrypted"`
	Data          JSONB     `gorm:"type:jsonb" json:"data,omitempty"`
	EncryptedData *string   `gorm:"type:text" json:"-"`
	KeyVersion    int       `gorm:"not null;default:1" json:"key_version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SnapState) TableName() string { return "snaprpc.snap_states" }
