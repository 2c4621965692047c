package engine

import (
	"testing"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{"select mode", `{"type":"select_mode","mode":"mosaic_radar"}`, SelectMode{Mode: domain.ModeMosaicRadar}},
		{"select inactive", `{"type":"select_mode","mode":"inactive"}`, SelectMode{Mode: domain.ModeInactive}},
		{"select site", `{"type":"select_site","site":"KBMX"}`, SelectSite{Code: "KBMX"}},
		{"select product", `{"type":"select_product","product":"velocity"}`, SelectProduct{Product: domain.ProductVelocity}},
		{"select satellite", `{"type":"select_satellite","satellite":"goes-east","region":"meso1","band":"visible"}`,
			SelectSatellite{Satellite: "goes-east", Region: "meso1", Band: "visible"}},
		{"frame zero", `{"type":"set_frame","frame":0}`, SetFrame{Frame: 0}},
		{"toggle", `{"type":"toggle_play"}`, TogglePlay{}},
		{"viewport", `{"type":"set_viewport","viewport":{"west":-90,"south":30,"east":-85,"north":35,"zoom":6}}`,
			SetViewport{Viewport: domain.Viewport{Bounds: domain.Bounds{West: -90, South: 30, East: -85, North: 35}, Zoom: 6}}},
		{"archive", `{"type":"load_archive","url":"https://noaa.example/KIND_V06"}`, LoadArchive{URL: "https://noaa.example/KIND_V06"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"not json", `{`},
		{"unknown field", `{"type":"toggle_play","speed":2}`},
		{"missing type", `{}`},
		{"unknown type", `{"type":"rewind"}`},
		{"missing mode", `{"type":"select_mode"}`},
		{"unknown mode", `{"type":"select_mode","mode":"radar"}`},
		{"missing site", `{"type":"select_site"}`},
		{"bad product", `{"type":"select_product","product":"spectrum"}`},
		{"partial satellite", `{"type":"select_satellite","satellite":"goes-east"}`},
		{"missing frame", `{"type":"set_frame"}`},
		{"negative frame", `{"type":"set_frame","frame":-1}`},
		{"missing viewport", `{"type":"set_viewport"}`},
		{"zoom too deep", `{"type":"set_viewport","viewport":{"west":-90,"south":30,"east":-85,"north":35,"zoom":23}}`},
		{"inverted bounds", `{"type":"set_viewport","viewport":{"west":-85,"south":30,"east":-90,"north":35,"zoom":4}}`},
		{"missing url", `{"type":"load_archive"}`},
		{"bad url", `{"type":"load_archive","url":"not a url"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.in))
			require.ErrorIs(t, err, ErrInvalidCommand)
		})
	}
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "select_mode", SelectMode{}.Name())
	assert.Equal(t, "load_archive", LoadArchive{}.Name())
	assert.Equal(t, "set_viewport", SetViewport{}.Name())
}
