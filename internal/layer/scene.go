package layer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
)

var (
	ErrSourceExists  = errors.New("source already exists")
	ErrLayerExists   = errors.New("layer already exists")
	ErrUnknownSource = errors.New("unknown source")
	ErrUnknownLayer  = errors.New("unknown layer")
	ErrSourceInUse   = errors.New("source in use by layer")
)

// Surface is the map rendering surface. Removal of absent sources and
// layers is a no-op. An empty beforeID places a layer on top.
type Surface interface {
	AddSource(id string, src domain.SourceSpec) error
	RemoveSource(id string) error
	AddLayer(l domain.Layer, beforeID string) error
	RemoveLayer(id string) error
	MoveLayer(id, beforeID string) error
	SetPaintProperty(layerID, name string, value any) error
	HasSource(id string) bool
	HasLayer(id string) bool
	Layers() []domain.Layer
}

// Scene is an in-memory scene graph: named sources and a bottom-to-top
// ordered layer stack. Clients mirror it to draw the map.
type Scene struct {
	mu      sync.RWMutex
	sources map[string]domain.SourceSpec
	layers  []domain.Layer
}

// NewScene creates a scene holding the given base layers, bottom first.
func NewScene(base ...domain.Layer) *Scene {
	s := &Scene{sources: make(map[string]domain.SourceSpec)}
	for _, l := range base {
		s.layers = append(s.layers, cloneLayer(l))
	}
	return s
}

// DefaultBaseLayers is the base style the overlays are ordered against.
func DefaultBaseLayers() []domain.Layer {
	return []domain.Layer{
		{ID: "background", Type: "background"},
		{ID: "terrain-hillshade", Type: "hillshade"},
		{ID: "water", Type: "fill"},
		{ID: "road-primary", Type: "line"},
		{ID: "road-secondary", Type: "line"},
		{ID: "place-labels", Type: "symbol"},
		{ID: AlertFillLayer, Type: "fill"},
		{ID: AlertOutlineLayer, Type: "line"},
		{ID: SiteIndicatorLayer, Type: "circle"},
		{ID: SiteLabelLayer, Type: "symbol"},
	}
}

// AddSource registers a source under id. It fails if the id is taken.
func (s *Scene) AddSource(id string, src domain.SourceSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; ok {
		return fmt.Errorf("%w: %s", ErrSourceExists, id)
	}
	s.sources[id] = cloneSource(src)
	return nil
}

// RemoveSource drops a source. It fails while any layer still draws from it.
func (s *Scene) RemoveSource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; !ok {
		return nil
	}
	for _, l := range s.layers {
		if l.Source == id {
			return fmt.Errorf("%w: %s used by %s", ErrSourceInUse, id, l.ID)
		}
	}
	delete(s.sources, id)
	return nil
}

// AddLayer inserts l below beforeID, or on top when beforeID is empty.
// The layer's source, if any, must already be registered.
func (s *Scene) AddLayer(l domain.Layer, beforeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(l.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrLayerExists, l.ID)
	}
	if l.Source != "" {
		if _, ok := s.sources[l.Source]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSource, l.Source)
		}
	}
	pos, err := s.insertPos(beforeID)
	if err != nil {
		return err
	}
	s.layers = slices.Insert(s.layers, pos, cloneLayer(l))
	return nil
}

// RemoveLayer drops a layer; absent layers are ignored.
func (s *Scene) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.layers = slices.Delete(s.layers, i, i+1)
	}
	return nil
}

// MoveLayer reorders a layer below beforeID, or to the top when beforeID is
// empty. The stack is left unchanged on error.
func (s *Scene) MoveLayer(id, beforeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, id)
	}
	if id == beforeID {
		return nil
	}
	l := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)

	pos, err := s.insertPos(beforeID)
	if err != nil {
		s.layers = slices.Insert(s.layers, i, l)
		return err
	}
	s.layers = slices.Insert(s.layers, pos, l)
	return nil
}

// SetPaintProperty sets one paint property on a layer.
func (s *Scene) SetPaintProperty(layerID, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(layerID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	if s.layers[i].Paint == nil {
		s.layers[i].Paint = make(map[string]any)
	}
	s.layers[i].Paint[name] = value
	return nil
}

// HasSource reports whether a source is registered under id.
func (s *Scene) HasSource(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sources[id]
	return ok
}

// HasLayer reports whether a layer with id is in the stack.
func (s *Scene) HasLayer(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// Layers returns a copy of the layer stack, bottom first.
func (s *Scene) Layers() []domain.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Layer, len(s.layers))
	for i, l := range s.layers {
		out[i] = cloneLayer(l)
	}
	return out
}

// Source returns a copy of the named source.
func (s *Scene) Source(id string) (domain.SourceSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return domain.SourceSpec{}, false
	}
	return cloneSource(src), true
}

// Sources returns a copy of every source keyed by id.
func (s *Scene) Sources() map[string]domain.SourceSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.SourceSpec, len(s.sources))
	for id, src := range s.sources {
		out[id] = cloneSource(src)
	}
	return out
}

func (s *Scene) indexOf(id string) int {
	return slices.IndexFunc(s.layers, func(l domain.Layer) bool { return l.ID == id })
}

func (s *Scene) insertPos(beforeID string) (int, error) {
	if beforeID == "" {
		return len(s.layers), nil
	}
	i := s.indexOf(beforeID)
	if i < 0 {
		return 0, fmt.Errorf("%w: before %s", ErrUnknownLayer, beforeID)
	}
	return i, nil
}

func cloneLayer(l domain.Layer) domain.Layer {
	l.Paint = maps.Clone(l.Paint)
	return l
}

func cloneSource(src domain.SourceSpec) domain.SourceSpec {
	src.Tiles = slices.Clone(src.Tiles)
	src.Coordinates = slices.Clone(src.Coordinates)
	return src
}
