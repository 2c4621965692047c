package layer_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/layer"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T) (*layer.Controller, *layer.Scene, *observability.Metrics) {
	t.Helper()
	scene := layer.NewScene(layer.DefaultBaseLayers()...)
	m := observability.NewMetricsForTesting()
	c := layer.NewController(scene, domain.NewCatalog(""), slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	return c, scene, m
}

func rasterBuild(mode domain.Mode) (domain.SourceSpec, error) {
	return domain.SourceSpec{
		Kind:     domain.SourceRaster,
		Tiles:    []string{"https://tiles/" + mode.String() + "/{z}/{x}/{y}.png"},
		TileSize: 256,
	}, nil
}

func failingBuild(domain.Mode) (domain.SourceSpec, error) {
	return domain.SourceSpec{}, errors.New("upstream down")
}

func layerIDs(layers []domain.Layer) []string {
	ids := make([]string, len(layers))
	for i, l := range layers {
		ids[i] = l.ID
	}
	return ids
}

// modePairs counts the mode source/layer pairs present on the scene.
func modePairs(scene *layer.Scene) (sources, layers []string) {
	for _, m := range domain.ActiveModes {
		if scene.HasSource(m.SourceID()) {
			sources = append(sources, m.SourceID())
		}
		if scene.HasLayer(m.LayerID()) {
			layers = append(layers, m.LayerID())
		}
	}
	return sources, layers
}

func TestController_SwitchingLeavesNoResidue(t *testing.T) {
	c, scene, _ := newController(t)

	for _, m := range []domain.Mode{domain.ModeLocalRadar, domain.ModeSatellite, domain.ModeModel, domain.ModeLocalRadar} {
		active, err := c.Select(m, rasterBuild)
		require.NoError(t, err)
		assert.Equal(t, m, active)

		sources, layers := modePairs(scene)
		assert.Equal(t, []string{m.SourceID()}, sources)
		assert.Equal(t, []string{m.LayerID()}, layers)
	}

	assert.Len(t, scene.Sources(), 1)
	assert.Equal(t, domain.ModeLocalRadar, c.Active())
}

func TestController_MosaicToggles(t *testing.T) {
	c, scene, _ := newController(t)

	active, err := c.Select(domain.ModeMosaicRadar, rasterBuild)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMosaicRadar, active)
	assert.True(t, scene.HasLayer(domain.ModeMosaicRadar.LayerID()))

	active, err = c.Select(domain.ModeMosaicRadar, rasterBuild)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeInactive, active)
	assert.Empty(t, scene.Sources())
	assert.False(t, scene.HasLayer(domain.ModeMosaicRadar.LayerID()))
}

func TestController_RadioModesDoNotToggle(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeSatellite, rasterBuild)
	require.NoError(t, err)
	active, err := c.Select(domain.ModeSatellite, rasterBuild)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeSatellite, active)
	assert.True(t, scene.HasLayer(domain.ModeSatellite.LayerID()))
}

func TestController_MosaicReplacesRadioMode(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeModel, rasterBuild)
	require.NoError(t, err)
	_, err = c.Select(domain.ModeMosaicRadar, rasterBuild)
	require.NoError(t, err)

	sources, _ := modePairs(scene)
	assert.Equal(t, []string{domain.ModeMosaicRadar.SourceID()}, sources)
}

func TestController_BuildFailureLeavesSceneUnchanged(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeLocalRadar, rasterBuild)
	require.NoError(t, err)
	before := scene.Layers()

	active, err := c.Select(domain.ModeSatellite, failingBuild)
	require.Error(t, err)
	assert.Equal(t, domain.ModeLocalRadar, active)
	assert.Equal(t, domain.ModeLocalRadar, c.Active())
	assert.Equal(t, before, scene.Layers())
}

func TestController_RasterBelowAnchorsAndMarkers(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeLocalRadar, rasterBuild)
	require.NoError(t, err)

	ids := layerIDs(scene.Layers())
	assert.Equal(t, []string{
		"background",
		"terrain-hillshade",
		"water",
		"local-radar-layer",
		"road-primary",
		"road-secondary",
		"place-labels",
		layer.AlertFillLayer,
		layer.AlertOutlineLayer,
		layer.SiteIndicatorLayer,
		layer.SiteLabelLayer,
	}, ids)
	require.NoError(t, layer.VerifyOrder(scene.Layers()))
}

func TestController_PaintFollowsProvider(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeLocalRadar, rasterBuild)
	require.NoError(t, err)

	for _, l := range scene.Layers() {
		if l.ID == domain.ModeLocalRadar.LayerID() {
			assert.Equal(t, 0.8, l.Paint["raster-opacity"])
			assert.Equal(t, 0, l.Paint["raster-fade-duration"])
			assert.Equal(t, "raster", l.Type)
			return
		}
	}
	t.Fatal("local radar layer not found")
}

func TestController_ReissueSwapsSourceInPlace(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeLocalRadar, rasterBuild)
	require.NoError(t, err)
	before := layerIDs(scene.Layers())

	err = c.Reissue(func(domain.Mode) (domain.SourceSpec, error) {
		return domain.SourceSpec{Kind: domain.SourceRaster, Tiles: []string{"https://tiles/velocity/{z}/{x}/{y}.png"}}, nil
	})
	require.NoError(t, err)

	src, ok := scene.Source(domain.ModeLocalRadar.SourceID())
	require.True(t, ok)
	assert.Equal(t, []string{"https://tiles/velocity/{z}/{x}/{y}.png"}, src.Tiles)
	assert.Equal(t, before, layerIDs(scene.Layers()))
	assert.Equal(t, domain.ModeLocalRadar, c.Active())
}

func TestController_ReissueInactiveIsNoop(t *testing.T) {
	c, scene, _ := newController(t)

	require.NoError(t, c.Reissue(failingBuild))
	assert.Empty(t, scene.Sources())
}

func TestController_ReissueBuildFailureKeepsSource(t *testing.T) {
	c, scene, _ := newController(t)

	_, err := c.Select(domain.ModeModel, rasterBuild)
	require.NoError(t, err)

	require.Error(t, c.Reissue(failingBuild))
	assert.True(t, scene.HasSource(domain.ModeModel.SourceID()))
	assert.Equal(t, domain.ModeModel, c.Active())
}

func TestController_ClearCountsSwitch(t *testing.T) {
	c, scene, m := newController(t)

	require.NoError(t, c.Clear())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ModeSwitches.WithLabelValues("inactive")))

	_, err := c.Select(domain.ModeSatellite, rasterBuild)
	require.NoError(t, err)
	active, err := c.Select(domain.ModeInactive, rasterBuild)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeInactive, active)
	assert.Empty(t, scene.Sources())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeSwitches.WithLabelValues("satellite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModeSwitches.WithLabelValues("inactive")))
}

func TestScene_RemoveAbsentIsNoop(t *testing.T) {
	scene := layer.NewScene()

	require.NoError(t, scene.RemoveLayer("missing"))
	require.NoError(t, scene.RemoveSource("missing"))
}

func TestScene_DuplicateAdds(t *testing.T) {
	scene := layer.NewScene()
	src := domain.SourceSpec{Kind: domain.SourceRaster}

	require.NoError(t, scene.AddSource("s", src))
	require.ErrorIs(t, scene.AddSource("s", src), layer.ErrSourceExists)

	l := domain.Layer{ID: "l", Type: "raster", Source: "s"}
	require.NoError(t, scene.AddLayer(l, ""))
	require.ErrorIs(t, scene.AddLayer(l, ""), layer.ErrLayerExists)
}

func TestScene_LayerNeedsSource(t *testing.T) {
	scene := layer.NewScene()

	err := scene.AddLayer(domain.Layer{ID: "l", Type: "raster", Source: "missing"}, "")
	require.ErrorIs(t, err, layer.ErrUnknownSource)
}

func TestScene_SourceInUse(t *testing.T) {
	scene := layer.NewScene()
	require.NoError(t, scene.AddSource("s", domain.SourceSpec{Kind: domain.SourceRaster}))
	require.NoError(t, scene.AddLayer(domain.Layer{ID: "l", Type: "raster", Source: "s"}, ""))

	require.ErrorIs(t, scene.RemoveSource("s"), layer.ErrSourceInUse)
	require.NoError(t, scene.RemoveLayer("l"))
	require.NoError(t, scene.RemoveSource("s"))
}

func TestScene_MoveLayer(t *testing.T) {
	scene := layer.NewScene(
		domain.Layer{ID: "a", Type: "fill"},
		domain.Layer{ID: "b", Type: "fill"},
		domain.Layer{ID: "c", Type: "fill"},
	)

	require.NoError(t, scene.MoveLayer("c", "a"))
	assert.Equal(t, []string{"c", "a", "b"}, layerIDs(scene.Layers()))

	require.NoError(t, scene.MoveLayer("c", ""))
	assert.Equal(t, []string{"a", "b", "c"}, layerIDs(scene.Layers()))

	require.ErrorIs(t, scene.MoveLayer("a", "missing"), layer.ErrUnknownLayer)
	assert.Equal(t, []string{"a", "b", "c"}, layerIDs(scene.Layers()))

	require.ErrorIs(t, scene.MoveLayer("missing", ""), layer.ErrUnknownLayer)
}

func TestScene_SetPaintProperty(t *testing.T) {
	scene := layer.NewScene(domain.Layer{ID: "a", Type: "fill"})

	require.NoError(t, scene.SetPaintProperty("a", "fill-opacity", 0.5))
	assert.Equal(t, 0.5, scene.Layers()[0].Paint["fill-opacity"])
	require.ErrorIs(t, scene.SetPaintProperty("missing", "fill-opacity", 1), layer.ErrUnknownLayer)
}

func TestScene_AddLayerBeforeAndLookups(t *testing.T) {
	scene := layer.NewScene(domain.Layer{ID: "a", Type: "fill"}, domain.Layer{ID: "b", Type: "fill"})
	require.NoError(t, scene.AddSource("s", domain.SourceSpec{Kind: domain.SourceRaster}))
	require.NoError(t, scene.AddLayer(domain.Layer{ID: "r", Type: "raster", Source: "s"}, "b"))

	assert.Equal(t, []string{"a", "r", "b"}, layerIDs(scene.Layers()))
	assert.True(t, scene.HasSource("s"))
	assert.True(t, scene.HasLayer("r"))
	assert.False(t, scene.HasSource("missing"))
	assert.False(t, scene.HasLayer("missing"))
}

func TestScene_LayersAreCopies(t *testing.T) {
	scene := layer.NewScene(domain.Layer{ID: "a", Type: "fill", Paint: map[string]any{"fill-opacity": 1}})

	got := scene.Layers()
	got[0].Paint["fill-opacity"] = 0

	assert.Equal(t, 1, scene.Layers()[0].Paint["fill-opacity"])
}

func TestVerifyOrder(t *testing.T) {
	ok := []domain.Layer{
		{ID: "background", Type: "background"},
		{ID: "satellite-imagery-layer", Type: "raster"},
		{ID: "road-primary", Type: "line"},
		{ID: layer.SiteIndicatorLayer, Type: "circle"},
	}
	require.NoError(t, layer.VerifyOrder(ok))

	bad := []domain.Layer{
		{ID: "background", Type: "background"},
		{ID: "place-labels", Type: "symbol"},
		{ID: "satellite-imagery-layer", Type: "raster"},
	}
	require.ErrorIs(t, layer.VerifyOrder(bad), layer.ErrOrder)
}
