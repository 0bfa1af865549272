// Package robotsim is a software stand-in for a scanning robot platform.
// It speaks the hub's polling protocol: poll the command cell, run a
// scan pass on start, submit the results, report the stop, clear the cell.
package robotsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Simulator drives one simulated robot against a hub.
type Simulator struct {
	logger    *slog.Logger
	client    *http.Client
	hubURL    string
	robotID   string
	interval  time.Duration
	generator *ScanGenerator
}

// Config holds the configuration for the Simulator.
type Config struct {
	Logger *slog.Logger

	// HubURL is the base URL of the hub, e.g. "http://localhost:8080".
	HubURL string

	// RobotID is the identifier the operator bound in the chat bot.
	RobotID string

	// PollInterval is how often the command cell is polled.
	PollInterval time.Duration

	// PlantIDs are QR labels the simulated camera recognizes. Optional.
	PlantIDs []string
}

// New creates a new Simulator instance.
func New(cfg *Config) (*Simulator, error) {
	if cfg == nil {
		return nil, errors.New("simulator config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HubURL == "" {
		return nil, errors.New("hub URL cannot be empty")
	}

	if cfg.RobotID == "" {
		return nil, errors.New("robot id cannot be empty")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Simulator{
		logger:    cfg.Logger,
		client:    &http.Client{Timeout: 30 * time.Second},
		hubURL:    cfg.HubURL,
		robotID:   cfg.RobotID,
		interval:  interval,
		generator: NewScanGenerator(cfg.RobotID, cfg.PlantIDs),
	}, nil
}

// Run polls the hub until the context is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("robot simulator started",
		"robot_id", s.robotID,
		"hub_url", s.hubURL,
		"poll_interval", s.interval,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("robot simulator stopped")
			return nil

		case <-ticker.C:
			cmd, err := s.pollCommand(ctx)
			if err != nil {
				s.logger.Error("failed to poll command", "error", err)
				continue
			}

			if cmd != "start" {
				continue
			}

			if err := s.runPass(ctx); err != nil {
				s.logger.Error("scan pass failed", "error", err)
			}
		}
	}
}

// pollCommand reads the robot's desired command from the hub.
func (s *Simulator) pollCommand(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/api/command?robot_id=%s", s.hubURL, url.QueryEscape(s.robotID))

	var resp struct {
		Command string `json:"command"`
	}
	if err := s.getJSON(ctx, endpoint, &resp); err != nil {
		return "", err
	}
	return resp.Command, nil
}

// runPass performs one simulated scan pass: submit every scan, report
// the stop with its reason, then clear the cell so the start cannot
// re-trigger.
func (s *Simulator) runPass(ctx context.Context) error {
	s.logger.Info("starting scan pass", "robot_id", s.robotID)

	subs, err := s.generator.GeneratePass(time.Now())
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if err := s.postJSON(ctx, s.hubURL+"/api/scan", sub); err != nil {
			return fmt.Errorf("failed to submit scan: %w", err)
		}
	}

	stop := map[string]string{
		"robot_id": s.robotID,
		"command":  "stop",
		"reason":   "end_of_route",
	}
	if err := s.postJSON(ctx, s.hubURL+"/api/update_command", stop); err != nil {
		return fmt.Errorf("failed to report stop: %w", err)
	}

	clearReq := map[string]string{"robot_id": s.robotID}
	if err := s.postJSON(ctx, s.hubURL+"/api/clear_command", clearReq); err != nil {
		return fmt.Errorf("failed to clear command: %w", err)
	}

	s.logger.Info("scan pass completed", "robot_id", s.robotID, "scans", len(subs))
	return nil
}

func (s *Simulator) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub returned %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) postJSON(ctx context.Context, endpoint string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub returned %d: %s", resp.StatusCode, body)
	}

	return nil
}
