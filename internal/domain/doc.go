// Package domain models animated weather imagery: visualization modes,
// provider tables and the scene-graph vocabulary shared by the engine and
// its adapters.
//
// # Modes
//
// Four modes install a raster source on the map:
//
//	local_radar   one NEXRAD site (RIDGE tiles, reflectivity or velocity)
//	mosaic_radar  wide-area radar mosaic, 8 frames at 5 minute steps
//	satellite     GOES imagery by satellite/region/band
//	model         HRRR simulated reflectivity, 8 forecast frames
//
// Exactly one is active at a time. The mosaic is a toggle; the others are
// radio selections.
//
// # Frames
//
// A frame index is in [0, FrameCount). For the mosaic, frame FrameCount-1 is
// the most recent and each earlier frame is one Interval further back. The
// tile timestamp is aligned down to an Interval boundary:
//
//	secondsAgo = (FrameCount-1-frame) * Interval
//	ts         = floor((now - secondsAgo) / Interval) * Interval
//
// For the model, frames index a fixed table of forecast hours. The tile
// cache only publishes hourly steps, so some adjacent frames share a
// forecast hour (HRRR frames 4/5 are +4 hr and 6/7 are +5 hr).
//
// # Tile templates
//
// Templates use {z}, {x} and {y} placeholders. The mosaic also uses {ts} (unix
// seconds). RealEarth satellite products use {time}, a UTC token in the form
// YYYYMMDD+HHMMSS.
//
// # Scene
//
// Sources and layers follow the map-library style model: a raster source
// holds tile templates; an image source holds one URL and four corner
// coordinates (top-left, top-right, bottom-right, bottom-left).
package domain
