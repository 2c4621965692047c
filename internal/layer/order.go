package layer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
)

const (
	AlertFillLayer     = "nws-alerts-fill"
	AlertOutlineLayer  = "nws-alerts-outline"
	SiteIndicatorLayer = "radar-sites-indicators"
	SiteLabelLayer     = "radar-sites-labels"
)

// ErrOrder is returned by VerifyOrder when the stack breaks a z-order rule.
var ErrOrder = errors.New("layer order violated")

// siteMarkerLayers render above every raster overlay, in this order.
var siteMarkerLayers = []string{SiteIndicatorLayer, SiteLabelLayer}

func isSiteMarker(id string) bool {
	return slices.Contains(siteMarkerLayers, id)
}

func isModeLayer(id string) bool {
	for _, m := range domain.ActiveModes {
		if m.LayerID() == id {
			return true
		}
	}
	return false
}

// isAnchor reports whether l must render above raster overlays: roads,
// labels and alert overlays.
func isAnchor(l domain.Layer) bool {
	if isSiteMarker(l.ID) || isModeLayer(l.ID) {
		return false
	}
	if l.ID == AlertFillLayer || l.ID == AlertOutlineLayer {
		return true
	}
	if l.Type == "line" && strings.Contains(l.ID, "road") {
		return true
	}
	return l.Type == "symbol" && strings.Contains(l.ID, "label")
}

// anchorID returns the lowest anchor layer, or "" when there is none.
func anchorID(layers []domain.Layer) string {
	for _, l := range layers {
		if isAnchor(l) {
			return l.ID
		}
	}
	return ""
}

// assertOrder moves the raster layer directly below the first anchor and
// site markers to the top of the stack.
func assertOrder(s Surface, rasterID string) error {
	if s.HasLayer(rasterID) {
		before := anchorID(s.Layers())
		if err := s.MoveLayer(rasterID, before); err != nil {
			return fmt.Errorf("move %s: %w", rasterID, err)
		}
	}
	for _, id := range siteMarkerLayers {
		if !s.HasLayer(id) {
			continue
		}
		if err := s.MoveLayer(id, ""); err != nil {
			return fmt.Errorf("move %s: %w", id, err)
		}
	}
	return nil
}

// VerifyOrder checks that every mode layer sits below all anchors and all
// site markers.
func VerifyOrder(layers []domain.Layer) error {
	for i, l := range layers {
		if !isModeLayer(l.ID) {
			continue
		}
		for _, below := range layers[:i] {
			if isAnchor(below) || isSiteMarker(below.ID) {
				return fmt.Errorf("%w: %s renders above %s", ErrOrder, l.ID, below.ID)
			}
		}
	}
	return nil
}
