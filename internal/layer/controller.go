package layer

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
)

// BuildFunc produces the source for a mode at the current frame.
type BuildFunc func(mode domain.Mode) (domain.SourceSpec, error)

// Controller keeps at most one mode's source/layer pair on the surface.
// It is not safe for concurrent use; the engine goroutine owns it.
type Controller struct {
	surface Surface
	catalog *domain.Catalog
	active  domain.Mode
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewController creates a Controller with no active mode.
func NewController(surface Surface, catalog *domain.Catalog, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		surface: surface,
		catalog: catalog,
		active:  domain.ModeInactive,
		logger:  logger,
		metrics: metrics,
	}
}

// Active returns the mode currently on the surface.
func (c *Controller) Active() domain.Mode {
	return c.active
}

// Select transitions to mode and returns the resulting active mode.
// Selecting MosaicRadar while it is active turns it off; every other mode
// is a radio selection. The new source is built before anything is torn
// down, so a build failure leaves the surface unchanged.
func (c *Controller) Select(mode domain.Mode, build BuildFunc) (domain.Mode, error) {
	if mode == domain.ModeInactive {
		return domain.ModeInactive, c.Clear()
	}
	if mode == domain.ModeMosaicRadar && c.active == domain.ModeMosaicRadar {
		return domain.ModeInactive, c.Clear()
	}

	src, err := build(mode)
	if err != nil {
		return c.active, fmt.Errorf("build %s source: %w", mode, err)
	}

	if err := c.teardown(); err != nil {
		return c.active, err
	}
	c.active = domain.ModeInactive

	if err := c.install(mode, src); err != nil {
		return domain.ModeInactive, err
	}
	c.active = mode
	c.metrics.ModeSwitches.WithLabelValues(mode.String()).Inc()
	c.logger.Info("mode selected", "mode", mode, "source", mode.SourceID())
	return mode, nil
}

// Reissue rebuilds the active mode's source and swaps it in place with a
// remove-then-add of the same source/layer pair. With no active mode it
// does nothing.
func (c *Controller) Reissue(build BuildFunc) error {
	if c.active == domain.ModeInactive {
		return nil
	}
	mode := c.active

	src, err := build(mode)
	if err != nil {
		return fmt.Errorf("build %s source: %w", mode, err)
	}

	if err := c.remove(mode); err != nil {
		return err
	}
	if err := c.install(mode, src); err != nil {
		c.active = domain.ModeInactive
		return err
	}
	return nil
}

// Clear removes every mode's source and layer.
func (c *Controller) Clear() error {
	if err := c.teardown(); err != nil {
		return err
	}
	if c.active != domain.ModeInactive {
		c.metrics.ModeSwitches.WithLabelValues(domain.ModeInactive.String()).Inc()
		c.logger.Info("mode cleared", "previous", c.active)
	}
	c.active = domain.ModeInactive
	return nil
}

func (c *Controller) teardown() error {
	for _, m := range domain.ActiveModes {
		if err := c.remove(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) remove(m domain.Mode) error {
	if err := c.surface.RemoveLayer(m.LayerID()); err != nil {
		return fmt.Errorf("remove layer %s: %w", m.LayerID(), err)
	}
	if err := c.surface.RemoveSource(m.SourceID()); err != nil {
		return fmt.Errorf("remove source %s: %w", m.SourceID(), err)
	}
	return nil
}

func (c *Controller) install(m domain.Mode, src domain.SourceSpec) error {
	spec := c.catalog.Provider(m)

	if err := c.surface.AddSource(m.SourceID(), src); err != nil {
		return fmt.Errorf("add source %s: %w", m.SourceID(), err)
	}
	l := domain.Layer{
		ID:     m.LayerID(),
		Type:   "raster",
		Source: m.SourceID(),
		Paint: map[string]any{
			"raster-opacity":       spec.Opacity,
			"raster-fade-duration": 0,
		},
	}
	if err := c.surface.AddLayer(l, anchorID(c.surface.Layers())); err != nil {
		_ = c.surface.RemoveSource(m.SourceID())
		return fmt.Errorf("add layer %s: %w", l.ID, err)
	}
	if err := assertOrder(c.surface, l.ID); err != nil {
		return err
	}
	if err := VerifyOrder(c.surface.Layers()); err != nil {
		c.logger.Warn("layer order check failed", "mode", m, "error", err)
	}
	return nil
}
