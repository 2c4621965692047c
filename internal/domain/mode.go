package domain

import (
	"errors"
	"fmt"
)

// Mode is the active visualization source. At most one mode's source and
// layer pair exists on the map at a time.
type Mode int

const (
	ModeInactive Mode = iota
	ModeLocalRadar
	ModeMosaicRadar
	ModeSatellite
	ModeModel
)

// ErrUnknownMode is returned when a mode name does not match any mode.
var ErrUnknownMode = errors.New("unknown visualization mode")

// ActiveModes lists every mode that installs a source on the map.
var ActiveModes = []Mode{ModeLocalRadar, ModeMosaicRadar, ModeSatellite, ModeModel}

var modeNames = map[Mode]string{
	ModeInactive:    "inactive",
	ModeLocalRadar:  "local_radar",
	ModeMosaicRadar: "mosaic_radar",
	ModeSatellite:   "satellite",
	ModeModel:       "model",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts the text form of a mode back to a Mode.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeInactive, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SourceID is the map source id owned by the mode.
func (m Mode) SourceID() string {
	switch m {
	case ModeLocalRadar:
		return "local-radar-source"
	case ModeMosaicRadar:
		return "global-radar-source"
	case ModeSatellite:
		return "satellite-imagery"
	case ModeModel:
		return "weather-model-source"
	default:
		return ""
	}
}

// LayerID is the map layer id owned by the mode.
func (m Mode) LayerID() string {
	switch m {
	case ModeLocalRadar:
		return "local-radar-layer"
	case ModeMosaicRadar:
		return "global-radar-layer"
	case ModeSatellite:
		return "satellite-imagery-layer"
	case ModeModel:
		return "weather-model-layer"
	default:
		return ""
	}
}
