package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Site(t *testing.T) {
	c := NewCatalog("key")

	site, err := c.Site("KBMX")
	require.NoError(t, err)
	assert.Equal(t, "Birmingham, AL", site.Name)
	assert.Equal(t, -86.7704, site.Lon)
	assert.Equal(t, 33.1721, site.Lat)
	assert.Equal(t, "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/ridge::BMX-N0B-0/{z}/{x}/{y}.png", site.Reflectivity)
	assert.Equal(t, "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/ridge::BMX-N0S-0/{z}/{x}/{y}.png", site.Velocity)
}

func TestCatalog_SiteUnknown(t *testing.T) {
	c := NewCatalog("key")

	_, err := c.Site("XXXX")
	require.ErrorIs(t, err, ErrUnknownSite)
}

func TestCatalog_SitesUnique(t *testing.T) {
	c := NewCatalog("key")

	seen := make(map[string]bool)
	for _, s := range c.Sites() {
		assert.False(t, seen[s.Code], "duplicate site %s", s.Code)
		seen[s.Code] = true
	}
	assert.Len(t, seen, 33)
	assert.True(t, seen["KMOB"])
}

func TestRadarSite_Template(t *testing.T) {
	site := ridgeSite("KMOB", "Mobile, AL", -88.2, 30.7)

	refl, err := site.Template(ProductReflectivity)
	require.NoError(t, err)
	assert.Contains(t, refl, "ridge::MOB-N0B-0")

	vel, err := site.Template(ProductVelocity)
	require.NoError(t, err)
	assert.Contains(t, vel, "ridge::MOB-N0S-0")

	_, err = site.Template("spectrum")
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCatalog_ModelFrames(t *testing.T) {
	c := NewCatalog("key")

	require.Len(t, c.Model.Frames, 8)
	hours := make([]int, 0, 8)
	for _, f := range c.Model.Frames {
		hours = append(hours, f.Hour)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 4, 5, 5}, hours)
	assert.Contains(t, c.Model.Frames[0].Template, "hrrr::REFD-F0000-0")
	assert.Contains(t, c.Model.Frames[1].Template, "hrrr::REFD-F0060-0")
	assert.Contains(t, c.Model.Frames[5].Template, "hrrr::REFD-F0240-0")
	assert.Contains(t, c.Model.Frames[7].Template, "hrrr::REFD-F0300-0")
}

func TestModelSpec_FrameFallsBackToFirst(t *testing.T) {
	c := NewCatalog("key")

	assert.Equal(t, c.Model.Frames[0], c.Model.Frame(42))
	assert.Equal(t, c.Model.Frames[0], c.Model.Frame(-1))
	assert.Equal(t, c.Model.Frames[3], c.Model.Frame(3))
	assert.Equal(t, ModelFrame{}, ModelSpec{}.Frame(0))
}

func TestCatalog_Satellite(t *testing.T) {
	c := NewCatalog("key")

	p, err := c.Satellite("goes-east", "meso1", "visible")
	require.NoError(t, err)
	assert.Equal(t, "G19-ABI-MESO1-BAND01", p.RealEarthProduct)
	assert.Contains(t, p.Template, "{time}")

	p, err = c.Satellite("goes-west", "conus", "ir")
	require.NoError(t, err)
	assert.Empty(t, p.RealEarthProduct)
	assert.Contains(t, p.Template, "goes-west-ir-4km")

	_, err = c.Satellite("goes-west", "meso1", "visible")
	require.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCatalog_RealEarthProducts(t *testing.T) {
	c := NewCatalog("key")
	assert.Equal(t, []string{"G19-ABI-MESO1-BAND01", "G19-ABI-MESO2-BAND01"}, c.RealEarthProducts())
}

func TestCatalog_Provider(t *testing.T) {
	c := NewCatalog("key")

	mosaic := c.Provider(ModeMosaicRadar)
	assert.Equal(t, FrameMinutesAgo, mosaic.Kind)
	assert.Equal(t, 8, mosaic.FrameCount)
	assert.Equal(t, 5*time.Minute, mosaic.Interval)
	assert.Equal(t, 1.0, mosaic.Opacity)

	model := c.Provider(ModeModel)
	assert.Equal(t, FrameForecastHours, model.Kind)
	assert.Equal(t, 8, model.FrameCount)
	assert.Equal(t, 0.8, model.Opacity)

	local := c.Provider(ModeLocalRadar)
	assert.Equal(t, FrameLive, local.Kind)
	assert.Equal(t, 1, local.FrameCount)

	sat := c.Provider(ModeSatellite)
	assert.Equal(t, 10, sat.MaxZoom)

	assert.Equal(t, 0, c.Provider(ModeInactive).FrameCount)
}

func TestNewCatalog_EscapesMosaicKey(t *testing.T) {
	c := NewCatalog("a b&c")
	assert.Contains(t, c.Mosaic.Template, "apiKey=a+b%26c")
	assert.Contains(t, c.Mosaic.Template, "ts={ts}&xyz={x}:{y}:{z}")
}
