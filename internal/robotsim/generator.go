package robotsim

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"agrohub.dev/garden-hub/internal/ingest"
)

// diseaseNames are the findings the simulated on-board model can report.
var diseaseNames = []string{
	"early blight",
	"late blight",
	"leaf mold",
	"septoria leaf spot",
	"bacterial spot",
	"spider mites",
	"mosaic virus",
}

// ScanGenerator produces synthetic scan submissions for one robot.
// Uses math/rand throughout; weak random is acceptable for simulation data.
type ScanGenerator struct {
	robotID  string
	plantIDs []string
}

// NewScanGenerator creates a generator for the given robot. plantIDs are
// the QR labels the simulated camera can recognize; an empty list yields
// orphan scans.
func NewScanGenerator(robotID string, plantIDs []string) *ScanGenerator {
	return &ScanGenerator{
		robotID:  robotID,
		plantIDs: plantIDs,
	}
}

// GeneratePass produces one scan per known plant, or a single orphan
// scan when no plants are known. Every scan in the pass shares the same
// timestamp, which is how the hub groups a pass in history.
func (g *ScanGenerator) GeneratePass(t time.Time) ([]ingest.Submission, error) {
	timestamp := t.UTC().Format("2006-01-02 15:04:05")

	plantIDs := g.plantIDs
	if len(plantIDs) == 0 {
		plantIDs = []string{""}
	}

	subs := make([]ingest.Submission, 0, len(plantIDs))
	for _, plantID := range plantIDs {
		img, err := g.generateImage()
		if err != nil {
			return nil, fmt.Errorf("failed to generate scan image: %w", err)
		}

		subs = append(subs, ingest.Submission{
			RobotID:     g.robotID,
			ImageBase64: img,
			Timestamp:   timestamp,
			Analysis: ingest.Analysis{
				PlantID:  plantID,
				Diseases: g.generateFindings(),
			},
		})
	}

	return subs, nil
}

// generateFindings reports zero to two diseases. Healthy plants are the
// common case.
func (g *ScanGenerator) generateFindings() []ingest.Finding {
	count := 0
	switch {
	case rand.Float64() < 0.15: // #nosec G404 - weak random is acceptable for simulation
		count = 2
	case rand.Float64() < 0.4: // #nosec G404
		count = 1
	}

	findings := make([]ingest.Finding, 0, count)
	for _, idx := range rand.Perm(len(diseaseNames))[:count] { // #nosec G404
		findings = append(findings, ingest.Finding{
			Name:        diseaseNames[idx],
			Probability: gofakeit.Float64Range(0.5, 0.99),
		})
	}
	return findings
}

// generateImage renders a small noisy leaf-green JPEG and base64 encodes it.
func (g *ScanGenerator) generateImage() (string, error) {
	const size = 64

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := range size {
		for y := range size {
			img.Set(x, y, color.RGBA{
				R: uint8(40 + rand.Intn(60)),  // #nosec G404
				G: uint8(120 + rand.Intn(90)), // #nosec G404
				B: uint8(30 + rand.Intn(50)),  // #nosec G404
				A: 0xff,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
