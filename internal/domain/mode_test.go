package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, m := range append([]Mode{ModeInactive}, ActiveModes...) {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMode("radar")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestMode_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Mode Mode `json:"mode"`
	}{ModeMosaicRadar})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"mosaic_radar"}`, string(data))

	var out struct {
		Mode Mode `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"satellite"}`), &out))
	assert.Equal(t, ModeSatellite, out.Mode)

	require.Error(t, json.Unmarshal([]byte(`{"mode":"nope"}`), &out))
}

func TestMode_IDsAreDistinct(t *testing.T) {
	ids := make(map[string]bool)
	for _, m := range ActiveModes {
		assert.NotEmpty(t, m.SourceID())
		assert.NotEmpty(t, m.LayerID())
		assert.False(t, ids[m.SourceID()])
		assert.False(t, ids[m.LayerID()])
		ids[m.SourceID()] = true
		ids[m.LayerID()] = true
	}
	assert.Empty(t, ModeInactive.SourceID())
	assert.Equal(t, "global-radar-source", ModeMosaicRadar.SourceID())
	assert.Equal(t, "satellite-imagery-layer", ModeSatellite.LayerID())
}
