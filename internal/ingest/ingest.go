// Package ingest accepts robot scan submissions, persists the image and
// the structured scan record, and notifies the owning operator. The scan
// record is authoritative: it is stored before the notification is
// attempted and never rolled back if delivery fails.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"agrohub.dev/garden-hub/internal/blob"
	"agrohub.dev/garden-hub/internal/notify"
	"agrohub.dev/garden-hub/internal/store"
	"agrohub.dev/garden-hub/pkg/metrics"
)

const (
	// timestampLayout is the wire format robots submit timestamps in.
	timestampLayout = "2006-01-02 15:04:05"

	unknownValue    = "unknown"
	noDiseasesText  = "no diseases detected"
	captionTemplate = "Plant: %s\nLocation: %s\nDiseases: %s\nTime: %s"
)

var (
	// ErrRobotNotFound means the submitting robot has no operator binding.
	ErrRobotNotFound = errors.New("robot not found")
	// ErrBadImage means the submitted payload is not a decodable image.
	ErrBadImage = errors.New("image could not be decoded")
	// ErrBadTimestamp means the submitted timestamp is in no known layout.
	ErrBadTimestamp = errors.New("timestamp could not be parsed")
)

// Finding is one detected disease with its confidence.
type Finding struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// Analysis is the free-form result of the robot's on-board model.
type Analysis struct {
	PlantID  string    `json:"plant_id,omitempty"`
	Diseases []Finding `json:"diseases"`
}

// Submission is one scan posted by a robot.
type Submission struct {
	RobotID     string   `json:"robot_id"`
	ImageBase64 string   `json:"image"`
	Analysis    Analysis `json:"analysis"`
	Timestamp   string   `json:"timestamp"`
}

// Records is the slice of the record store ingestion needs. *store.Store
// satisfies it.
type Records interface {
	OwnerForRobot(ctx context.Context, robotID string) (*store.User, error)
	ActivePlant(ctx context.Context, userID uint, plantID string) (*store.Plant, error)
	CreateScan(ctx context.Context, scan *store.ScanRecord) error
}

// Service processes scan submissions.
type Service struct {
	logger    *slog.Logger
	store     Records
	blobs     blob.Store
	publisher *notify.Publisher
	metrics   *metrics.HubMetrics // Optional metrics
}

// ServiceConfig holds the configuration for the ingestion Service.
type ServiceConfig struct {
	Logger    *slog.Logger
	Store     Records
	Blobs     blob.Store
	Publisher *notify.Publisher
	Metrics   *metrics.HubMetrics
}

// NewService creates a new ingestion Service instance.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("ingest config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Blobs == nil {
		return nil, errors.New("blob store cannot be nil")
	}

	if cfg.Publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}

	return &Service{
		logger:    cfg.Logger,
		store:     cfg.Store,
		blobs:     cfg.Blobs,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
	}, nil
}

// Process ingests one scan submission. The returned error is one of the
// package sentinels for caller-visible failures, or a wrapped internal
// error for storage problems. Notification failures are logged, never
// returned.
func (s *Service) Process(ctx context.Context, sub Submission) error {
	owner, err := s.store.OwnerForRobot(ctx, sub.RobotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.failure("robot_not_found")
			return fmt.Errorf("%w: %s", ErrRobotNotFound, sub.RobotID)
		}
		s.failure("store_error")
		return fmt.Errorf("failed to resolve robot binding: %w", err)
	}

	imageData, err := decodeImage(sub.ImageBase64)
	if err != nil {
		s.failure("bad_image")
		return err
	}

	timestamp, err := parseTimestamp(sub.Timestamp)
	if err != nil {
		s.failure("bad_timestamp")
		return err
	}

	blobName := fmt.Sprintf("scan_%s_%s.jpg", sub.RobotID, strings.ReplaceAll(sub.Timestamp, " ", "_"))
	imageURL, err := s.blobs.Save(ctx, blobName, imageData)
	if err != nil {
		s.failure("store_error")
		return fmt.Errorf("failed to store scan image: %w", err)
	}

	diseases := make(store.FindingList, 0, len(sub.Analysis.Diseases))
	for _, d := range sub.Analysis.Diseases {
		diseases = append(diseases, store.Finding{Name: d.Name, Probability: d.Probability})
	}

	record := &store.ScanRecord{
		RobotID:   sub.RobotID,
		PlantID:   sub.Analysis.PlantID,
		Diseases:  diseases,
		Timestamp: timestamp,
		ImageURL:  imageURL,
	}
	if err := s.store.CreateScan(ctx, record); err != nil {
		s.failure("store_error")
		return fmt.Errorf("failed to persist scan record: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ScansIngested.Inc()
	}

	s.logger.Info("scan ingested",
		"robot_id", sub.RobotID,
		"plant_id", sub.Analysis.PlantID,
		"diseases", len(sub.Analysis.Diseases),
		"image_url", imageURL,
	)

	// Best-effort notification; the scan is already durable.
	caption := s.buildCaption(ctx, owner.ID, sub)
	event := notify.Event{
		TelegramID: owner.TelegramID,
		Kind:       notify.KindScanResult,
		PhotoURL:   imageURL,
		Caption:    caption,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish scan notification",
			"robot_id", sub.RobotID,
			"telegram_id", owner.TelegramID,
			"error", err,
		)
	}

	return nil
}

// buildCaption renders the notification caption, resolving species and
// location from the owner's plant list when the analysis names a plant.
func (s *Service) buildCaption(ctx context.Context, ownerID uint, sub Submission) string {
	species, location := unknownValue, unknownValue

	if sub.Analysis.PlantID != "" {
		plant, err := s.store.ActivePlant(ctx, ownerID, sub.Analysis.PlantID)
		switch {
		case err == nil:
			species, location = plant.Species, plant.Location
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("failed to resolve plant for caption",
				"plant_id", sub.Analysis.PlantID,
				"error", err,
			)
		}
	}

	return fmt.Sprintf(captionTemplate, species, location, DiseaseSummary(sub.Analysis.Diseases), sub.Timestamp)
}

// DiseaseSummary formats findings as "name (xx.x%)" joined by commas. An
// empty list renders as a fixed no-diseases phrase, never as "".
func DiseaseSummary(findings []Finding) string {
	if len(findings) == 0 {
		return noDiseasesText
	}

	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, fmt.Sprintf("%s (%.1f%%)", f.Name, f.Probability*100))
	}
	return strings.Join(parts, ", ")
}

func (s *Service) failure(reason string) {
	if s.metrics != nil {
		s.metrics.ScanFailures.WithLabelValues(reason).Inc()
	}
}

func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrBadImage)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadImage, err)
	}

	if _, _, err := image.Decode(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadImage, err)
	}

	return raw, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(timestampLayout, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, value)
}
