package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps the database handle with the record operations the services
// need. It is constructed explicitly and passed in so tests can substitute
// an in-memory database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a new Store instance.
func NewStore(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Store{db: db, logger: logger}, nil
}

// EnsureUser returns the user for the chat identity, creating the row on
// first interaction.
func (s *Store) EnsureUser(ctx context.Context, telegramID, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where(User{TelegramID: telegramID}).
		Attrs(User{Username: username}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", telegramID, err)
	}
	return &user, nil
}

// UserByTelegramID looks up a user by chat identity.
func (s *Store) UserByTelegramID(ctx context.Context, telegramID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", telegramID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %s: %w", telegramID, err)
	}
	return &user, nil
}

// BindRobot associates a robot identifier with an owner. Re-binding an
// already-bound robot overwrites the previous owner (last write wins).
func (s *Store) BindRobot(ctx context.Context, robotID string, userID uint) error {
	robot := Robot{RobotID: robotID, UserID: userID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "robot_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "updated_at"}),
		}).
		Create(&robot).Error
	if err != nil {
		return fmt.Errorf("failed to bind robot %s: %w", robotID, err)
	}
	return nil
}

// RobotForUser returns the robot bound to the given owner, if any.
func (s *Store) RobotForUser(ctx context.Context, userID uint) (*Robot, error) {
	var robot Robot
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&robot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("robot for user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch robot for user %d: %w", userID, err)
	}
	return &robot, nil
}

// OwnerForRobot resolves a robot identifier to its owning user.
func (s *Store) OwnerForRobot(ctx context.Context, robotID string) (*User, error) {
	var robot Robot
	err := s.db.WithContext(ctx).Where("robot_id = ?", robotID).First(&robot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("robot %s: %w", robotID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch robot %s: %w", robotID, err)
	}

	var user User
	err = s.db.WithContext(ctx).First(&user, robot.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("owner of robot %s: %w", robotID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch owner of robot %s: %w", robotID, err)
	}
	return &user, nil
}

// TelegramIDForRobot resolves a robot identifier to its owner's chat identity.
func (s *Store) TelegramIDForRobot(ctx context.Context, robotID string) (string, error) {
	user, err := s.OwnerForRobot(ctx, robotID)
	if err != nil {
		return "", err
	}
	return user.TelegramID, nil
}

// AddPlant inserts a new plant row for the owner.
func (s *Store) AddPlant(ctx context.Context, plant *Plant) error {
	if plant.Status == "" {
		plant.Status = PlantStatusActive
	}
	if err := s.db.WithContext(ctx).Create(plant).Error; err != nil {
		return fmt.Errorf("failed to add plant %s: %w", plant.PlantID, err)
	}
	return nil
}

// ActivePlants lists the owner's active plants, oldest first.
func (s *Store) ActivePlants(ctx context.Context, userID uint) ([]Plant, error) {
	var plants []Plant
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, PlantStatusActive).
		Order("created_at ASC").
		Find(&plants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plants for user %d: %w", userID, err)
	}
	return plants, nil
}

// ActivePlant looks up one of the owner's active plants by its token.
func (s *Store) ActivePlant(ctx context.Context, userID uint, plantID string) (*Plant, error) {
	var plant Plant
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND plant_id = ? AND status = ?", userID, plantID, PlantStatusActive).
		First(&plant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plant %s: %w", plantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch plant %s: %w", plantID, err)
	}
	return &plant, nil
}

// DeletePlant soft-deletes the owner's plant by flipping its status.
// Deleting a plant that does not exist for this owner is a no-op: the row
// stays untouched for every other owner and no error is returned.
func (s *Store) DeletePlant(ctx context.Context, userID uint, plantID string) error {
	err := s.db.WithContext(ctx).
		Model(&Plant{}).
		Where("user_id = ? AND plant_id = ? AND status = ?", userID, plantID, PlantStatusActive).
		Update("status", PlantStatusDeleted).Error
	if err != nil {
		return fmt.Errorf("failed to delete plant %s: %w", plantID, err)
	}
	return nil
}

// SetQRMessageID remembers the chat message carrying the plant's QR label
// so it can be re-sent without regenerating the image.
func (s *Store) SetQRMessageID(ctx context.Context, plantID string, messageID int) error {
	err := s.db.WithContext(ctx).
		Model(&Plant{}).
		Where("plant_id = ?", plantID).
		Update("qr_message_id", messageID).Error
	if err != nil {
		return fmt.Errorf("failed to set qr message id for plant %s: %w", plantID, err)
	}
	return nil
}

// QRMessageID returns the remembered QR label message id, or ErrNotFound
// when the plant is unknown or no label message was recorded.
func (s *Store) QRMessageID(ctx context.Context, plantID string) (int, error) {
	var plant Plant
	err := s.db.WithContext(ctx).Where("plant_id = ?", plantID).First(&plant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("plant %s: %w", plantID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to fetch plant %s: %w", plantID, err)
	}
	if plant.QRMessageID == 0 {
		return 0, fmt.Errorf("qr message for plant %s: %w", plantID, ErrNotFound)
	}
	return plant.QRMessageID, nil
}

// CreateScan inserts a scan record. Records are immutable after this call.
func (s *Store) CreateScan(ctx context.Context, scan *ScanRecord) error {
	if err := s.db.WithContext(ctx).Create(scan).Error; err != nil {
		return fmt.Errorf("failed to create scan for robot %s: %w", scan.RobotID, err)
	}
	return nil
}

// ScansByPlant returns the most recent scans referencing the plant.
func (s *Store) ScansByPlant(ctx context.Context, plantID string, limit int) ([]ScanRecord, error) {
	var scans []ScanRecord
	err := s.db.WithContext(ctx).
		Where("plant_id = ?", plantID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&scans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scans for plant %s: %w", plantID, err)
	}
	return scans, nil
}

// ScanTimestamps returns the robot's most recent distinct scan-pass
// timestamps, newest first.
func (s *Store) ScanTimestamps(ctx context.Context, robotID string, limit int) ([]time.Time, error) {
	var timestamps []time.Time
	err := s.db.WithContext(ctx).
		Model(&ScanRecord{}).
		Where("robot_id = ?", robotID).
		Distinct("timestamp").
		Order("timestamp DESC").
		Limit(limit).
		Pluck("timestamp", &timestamps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scan timestamps for robot %s: %w", robotID, err)
	}
	return timestamps, nil
}

// ScansByTimestamp returns all scans one robot produced in a single pass.
func (s *Store) ScansByTimestamp(ctx context.Context, robotID string, ts time.Time) ([]ScanRecord, error) {
	var scans []ScanRecord
	err := s.db.WithContext(ctx).
		Where("robot_id = ? AND timestamp = ?", robotID, ts).
		Find(&scans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scans for robot %s at %s: %w", robotID, ts, err)
	}
	return scans, nil
}
