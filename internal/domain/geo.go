package domain

import "fmt"

// TileCoord addresses one tile in a Web-Mercator slippy-map pyramid.
type TileCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Bounds is a longitude/latitude bounding box in degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// IsZero reports whether no bounds have been set.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Viewport is the visible map area at an integer zoom.
type Viewport struct {
	Bounds Bounds `json:"bounds"`
	Zoom   int    `json:"zoom"`
}
