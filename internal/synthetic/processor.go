// Package synthetic stands in for the archive processing backend in demo
// mode. It renders a circular reflectivity pattern instead of decoding a
// radar file.
package synthetic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	centerLat = 39.7817
	centerLon = -86.1478

	// halfExtent is the distance in degrees from the centre to each edge.
	halfExtent = 1.0

	minDBZ  = -10.0
	maxDBZ  = 70.0
	peakDBZ = 30.0
)

// Processor fakes a processing job: it waits for delay, then returns an
// image placed around Indianapolis.
type Processor struct {
	imageURL string
	delay    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewProcessor creates a Processor whose image is served at imageURL.
func NewProcessor(imageURL string, delay time.Duration, clock clockwork.Clock, logger *slog.Logger) *Processor {
	return &Processor{imageURL: imageURL, delay: delay, clock: clock, logger: logger}
}

// Bounds is the area covered by the synthetic image.
func Bounds() domain.Bounds {
	return domain.Bounds{
		West:  centerLon - halfExtent,
		South: centerLat - halfExtent,
		East:  centerLon + halfExtent,
		North: centerLat + halfExtent,
	}
}

// Process ignores fileURL beyond logging it and reports a single progress step.
func (p *Processor) Process(ctx context.Context, fileURL string, progress func(attempt, maxPolls int)) (domain.ArchiveImage, error) {
	if progress != nil {
		progress(1, 1)
	}
	p.logger.Info("synthetic archive processing", "url", fileURL)

	select {
	case <-ctx.Done():
		return domain.ArchiveImage{}, ctx.Err()
	case <-p.clock.After(p.delay):
	}

	b := Bounds()
	return domain.ArchiveImage{
		JobID:       uuid.NewString(),
		URL:         p.imageURL,
		Coordinates: domain.CornersOf(b),
		Bounds:      b,
	}, nil
}

// Reflectivity returns the simulated dBZ at normalized offsets x, y in
// [-2, 2] from the centre.
func Reflectivity(x, y float64) float64 {
	dbz := peakDBZ * math.Exp(-(x*x + y*y))
	return math.Max(minDBZ, math.Min(maxDBZ, dbz))
}

// Render draws the reflectivity pattern as a size×size PNG.
func Render(size int) ([]byte, error) {
	if size <= 1 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	step := 4.0 / float64(size-1)
	for row := 0; row < size; row++ {
		// Row 0 is the northern edge.
		y := 2 - float64(row)*step
		for col := 0; col < size; col++ {
			x := -2 + float64(col)*step
			img.SetNRGBA(col, row, RampColor(Reflectivity(x, y)))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// RampColor maps a dBZ value onto the radar colour ramp. Values outside
// [minDBZ, maxDBZ] are transparent.
func RampColor(dbz float64) color.NRGBA {
	if dbz < minDBZ || dbz > maxDBZ {
		return color.NRGBA{}
	}
	intensity := int((dbz - minDBZ) / (maxDBZ - minDBZ) * 255)

	switch {
	case intensity < 32:
		return color.NRGBA{R: 64, G: 224, B: 255, A: 128}
	case intensity < 64:
		return color.NRGBA{R: 0, G: 255, B: 0, A: 160}
	case intensity < 96:
		return color.NRGBA{R: 255, G: 255, B: 0, A: 180}
	case intensity < 128:
		return color.NRGBA{R: 255, G: 165, B: 0, A: 200}
	case intensity < 160:
		return color.NRGBA{R: 255, G: 0, B: 0, A: 220}
	case intensity < 192:
		return color.NRGBA{R: 255, G: 0, B: 255, A: 240}
	default:
		return color.NRGBA{R: 128, G: 0, B: 128, A: 255}
	}
}
