// Package store provides the relational record store for users, robots,
// plants, and scan history, backed by PostgreSQL through GORM.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Plant lifecycle states. Plants are soft-deleted: the row stays so old
// scan history keeps resolving, only the status flips.
const (
	PlantStatusActive  = "active"
	PlantStatusDeleted = "deleted"
)

// User represents an operator account, one row per chat identity.
type User struct {
	TelegramID string    `gorm:"uniqueIndex;not null"`
	Username   string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
	ID         uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Robot represents the binding between a physical robot identifier and the
// operator account that controls it. At most one owner per robot id;
// re-binding overwrites the previous owner.
type Robot struct {
	RobotID   string    `gorm:"uniqueIndex;not null"`
	UserID    uint      `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	ID        uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for the Robot model.
func (Robot) TableName() string {
	return "robots"
}

// Plant represents a monitored plant owned by exactly one operator.
// PlantID is the opaque token encoded into the plant's QR label.
type Plant struct {
	PlantID     string    `gorm:"uniqueIndex;not null"`
	UserID      uint      `gorm:"index;not null"`
	Species     string    `gorm:"not null"`
	Location    string    `gorm:"not null"`
	Status      string    `gorm:"not null;default:'active'"`
	QRMessageID int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	ID          uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for the Plant model.
func (Plant) TableName() string {
	return "plants"
}

// Finding is a single detected disease with its model confidence in [0,1].
type Finding struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// FindingList stores disease findings as a JSON column.
type FindingList []Finding

// Value implements driver.Valuer.
func (l FindingList) Value() (driver.Value, error) {
	if l == nil {
		l = FindingList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *FindingList) Scan(value any) error {
	if value == nil {
		*l = FindingList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported finding list source type %T", value)
	}
}

// ScanRecord represents one persisted robot scan pass. Records are
// immutable after ingestion. PlantID may be empty when the robot could not
// match a QR label (orphan scan). Timestamp is caller-supplied; the store
// does not guarantee per-robot monotonicity.
type ScanRecord struct {
	RobotID   string      `gorm:"index:idx_robot_timestamp;not null"`
	PlantID   string      `gorm:"index"`
	Diseases  FindingList `gorm:"type:jsonb;not null"`
	Timestamp time.Time   `gorm:"index:idx_robot_timestamp;not null"`
	ImageURL  string      `gorm:"not null"`
	CreatedAt time.Time   `gorm:"autoCreateTime"`
	ID        uint        `gorm:"primaryKey"`
}

// TableName specifies the table name for the ScanRecord model.
func (ScanRecord) TableName() string {
	return "scans"
}

// ErrNotFound marks expected lookup misses (unbound robot, unknown plant).
// Callers branch on it with errors.Is instead of inspecting messages.
var ErrNotFound = errors.New("record not found")
