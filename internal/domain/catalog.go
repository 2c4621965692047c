package domain

import (
	"fmt"
	"net/url"
	"time"
)

const (
	mosaicTileURL = "https://api.weather.com/v3/TileServer/tile/twcRadarMosaic?ts={ts}&xyz={x}:{y}:{z}&apiKey="
	hrrrTileURL   = "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/hrrr::REFD-F%04d-0/{z}/{x}/{y}.png"
	iemTileURL    = "http://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/%s/{z}/{x}/{y}.png"
	realEarthURL  = "https://realearth.ssec.wisc.edu/api/image?products=%s&time={time}&x={x}&y={y}&z={z}"
)

// Catalog holds the provider tables: radar sites, the mosaic, the forecast
// model and satellite products.
type Catalog struct {
	sites      []RadarSite
	siteIndex  map[string]int
	satellites []SatelliteProduct

	Mosaic MosaicSpec
	Model  ModelSpec
}

// NewCatalog builds the default provider catalog. The mosaic API key is
// appended to the mosaic tile template.
func NewCatalog(mosaicAPIKey string) *Catalog {
	c := &Catalog{
		sites: radarSites,
		Mosaic: MosaicSpec{
			Template:   mosaicTileURL + url.QueryEscape(mosaicAPIKey),
			FrameCount: 8,
			Interval:   5 * time.Minute,
		},
		Model: ModelSpec{
			Name: "hrrr",
			// The tile cache only holds hourly steps, so frames 4-7 pair up.
			Frames: []ModelFrame{
				hrrrFrame(0), hrrrFrame(1), hrrrFrame(2), hrrrFrame(3),
				hrrrFrame(4), hrrrFrame(4), hrrrFrame(5), hrrrFrame(5),
			},
		},
		satellites: []SatelliteProduct{
			{Satellite: "goes-east", Region: "conus", Band: "visible", Template: fmt.Sprintf(iemTileURL, "conus-goes-vis-1km")},
			{Satellite: "goes-east", Region: "conus", Band: "ir", Template: fmt.Sprintf(iemTileURL, "conus-goes-ir-4km")},
			{Satellite: "goes-east", Region: "meso1", Band: "visible", Template: fmt.Sprintf(realEarthURL, "G19-ABI-MESO1-BAND01"), RealEarthProduct: "G19-ABI-MESO1-BAND01"},
			{Satellite: "goes-east", Region: "meso2", Band: "visible", Template: fmt.Sprintf(realEarthURL, "G19-ABI-MESO2-BAND01"), RealEarthProduct: "G19-ABI-MESO2-BAND01"},
			{Satellite: "goes-east", Region: "fulldisk", Band: "visible", Template: fmt.Sprintf(iemTileURL, "goes-east-vis-1km")},
			{Satellite: "goes-west", Region: "conus", Band: "visible", Template: fmt.Sprintf(iemTileURL, "goes-west-vis-1km")},
			{Satellite: "goes-west", Region: "conus", Band: "ir", Template: fmt.Sprintf(iemTileURL, "goes-west-ir-4km")},
			{Satellite: "goes-west", Region: "fulldisk", Band: "visible", Template: fmt.Sprintf(iemTileURL, "goes-west-vis-1km")},
		},
	}
	c.siteIndex = make(map[string]int, len(c.sites))
	for i, s := range c.sites {
		c.siteIndex[s.Code] = i
	}
	return c
}

func hrrrFrame(hour int) ModelFrame {
	return ModelFrame{Hour: hour, Template: fmt.Sprintf(hrrrTileURL, hour*60)}
}

// Sites returns the radar site table in display order.
func (c *Catalog) Sites() []RadarSite {
	out := make([]RadarSite, len(c.sites))
	copy(out, c.sites)
	return out
}

// Site looks up a radar site by ICAO code.
func (c *Catalog) Site(code string) (RadarSite, error) {
	i, ok := c.siteIndex[code]
	if !ok {
		return RadarSite{}, fmt.Errorf("%w: %q", ErrUnknownSite, code)
	}
	return c.sites[i], nil
}

// SatelliteProducts returns every satellite product.
func (c *Catalog) SatelliteProducts() []SatelliteProduct {
	out := make([]SatelliteProduct, len(c.satellites))
	copy(out, c.satellites)
	return out
}

// Satellite looks up the product for a satellite, region and band.
func (c *Catalog) Satellite(satellite, region, band string) (SatelliteProduct, error) {
	for _, p := range c.satellites {
		if p.Satellite == satellite && p.Region == region && p.Band == band {
			return p, nil
		}
	}
	return SatelliteProduct{}, fmt.Errorf("%w: satellite %s/%s/%s", ErrUnknownProduct, satellite, region, band)
}

// RealEarthProducts lists the distinct RealEarth product ids in the catalog.
func (c *Catalog) RealEarthProducts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.satellites {
		if p.RealEarthProduct == "" || seen[p.RealEarthProduct] {
			continue
		}
		seen[p.RealEarthProduct] = true
		out = append(out, p.RealEarthProduct)
	}
	return out
}

// Provider returns the frame and rendering policy for a mode.
func (c *Catalog) Provider(m Mode) ProviderSpec {
	switch m {
	case ModeLocalRadar:
		return ProviderSpec{Mode: m, Kind: FrameLive, FrameCount: 1, TileSize: 256, MaxZoom: 14, Opacity: 0.8}
	case ModeMosaicRadar:
		return ProviderSpec{
			Mode:       m,
			Kind:       FrameMinutesAgo,
			FrameCount: c.Mosaic.FrameCount,
			Interval:   c.Mosaic.Interval,
			TileSize:   256,
			MaxZoom:    14,
			Opacity:    1,
		}
	case ModeSatellite:
		return ProviderSpec{Mode: m, Kind: FrameLive, FrameCount: 1, TileSize: 256, MaxZoom: 10, Opacity: 1}
	case ModeModel:
		return ProviderSpec{
			Mode:       m,
			Kind:       FrameForecastHours,
			FrameCount: len(c.Model.Frames),
			Interval:   time.Hour,
			TileSize:   256,
			MaxZoom:    14,
			Opacity:    0.8,
		}
	default:
		return ProviderSpec{Mode: ModeInactive}
	}
}
