package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidCommand is returned for commands that cannot be decoded or fail
// validation.
var ErrInvalidCommand = errors.New("invalid command")

// Command is a user intent handled by the engine.
type Command interface {
	Name() string
}

type SelectMode struct{ Mode domain.Mode }
type SelectSite struct{ Code string }
type SelectProduct struct{ Product domain.Product }
type SelectSatellite struct{ Satellite, Region, Band string }
type SetFrame struct{ Frame int }
type TogglePlay struct{}
type SetViewport struct{ Viewport domain.Viewport }
type LoadArchive struct{ URL string }

func (SelectMode) Name() string      { return "select_mode" }
func (SelectSite) Name() string      { return "select_site" }
func (SelectProduct) Name() string   { return "select_product" }
func (SelectSatellite) Name() string { return "select_satellite" }
func (SetFrame) Name() string        { return "set_frame" }
func (TogglePlay) Name() string      { return "toggle_play" }
func (SetViewport) Name() string     { return "set_viewport" }
func (LoadArchive) Name() string     { return "load_archive" }

// Envelope is the wire form of every command, shared by the HTTP API and the
// command topic.
type Envelope struct {
	Type      string          `json:"type" validate:"required,oneof=select_mode select_site select_product select_satellite set_frame toggle_play set_viewport load_archive"`
	Mode      string          `json:"mode,omitempty" validate:"required_if=Type select_mode"`
	Site      string          `json:"site,omitempty" validate:"required_if=Type select_site"`
	Product   string          `json:"product,omitempty" validate:"required_if=Type select_product,omitempty,oneof=reflectivity velocity"`
	Satellite string          `json:"satellite,omitempty" validate:"required_if=Type select_satellite"`
	Region    string          `json:"region,omitempty" validate:"required_if=Type select_satellite"`
	Band      string          `json:"band,omitempty" validate:"required_if=Type select_satellite"`
	Frame     *int            `json:"frame,omitempty" validate:"required_if=Type set_frame,omitempty,min=0"`
	Viewport  *ViewportParams `json:"viewport,omitempty" validate:"required_if=Type set_viewport"`
	URL       string          `json:"url,omitempty" validate:"required_if=Type load_archive,omitempty,url"`
}

// ViewportParams is the visible map area of a set_viewport command.
type ViewportParams struct {
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
	South float64 `json:"south" validate:"gte=-90,lte=90"`
	East  float64 `json:"east" validate:"gte=-180,lte=180,gtfield=West"`
	North float64 `json:"north" validate:"gte=-90,lte=90,gtfield=South"`
	Zoom  int     `json:"zoom" validate:"gte=0,lte=22"`
}

// ParseCommand decodes and validates a JSON envelope.
func ParseCommand(data []byte) (Command, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidCommand, err)
	}
	return env.Command()
}

// Command validates the envelope and converts it to a typed command.
func (e Envelope) Command() (Command, error) {
	if err := validate.Struct(e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	switch e.Type {
	case "select_mode":
		m, err := domain.ParseMode(e.Mode)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return SelectMode{Mode: m}, nil
	case "select_site":
		return SelectSite{Code: e.Site}, nil
	case "select_product":
		return SelectProduct{Product: domain.Product(e.Product)}, nil
	case "select_satellite":
		return SelectSatellite{Satellite: e.Satellite, Region: e.Region, Band: e.Band}, nil
	case "set_frame":
		return SetFrame{Frame: *e.Frame}, nil
	case "toggle_play":
		return TogglePlay{}, nil
	case "set_viewport":
		v := e.Viewport
		return SetViewport{Viewport: domain.Viewport{
			Bounds: domain.Bounds{West: v.West, South: v.South, East: v.East, North: v.North},
			Zoom:   v.Zoom,
		}}, nil
	case "load_archive":
		return LoadArchive{URL: e.URL}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, e.Type)
	}
}
