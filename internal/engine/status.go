package engine

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/playback"
	"github.com/couchcryptid/storm-radar-loop/internal/prefetch"
	"github.com/google/uuid"
)

// Status is a point-in-time copy of the engine state and the scene it drives.
type Status struct {
	Mode       domain.Mode                  `json:"mode"`
	Frame      int                          `json:"frame"`
	FrameCount int                          `json:"frame_count"`
	Label      string                       `json:"label"`
	Playback   playback.State               `json:"playback"`
	Selection  domain.Selection             `json:"selection"`
	Viewport   domain.Viewport              `json:"viewport"`
	Prefetch   *prefetch.LoadState          `json:"prefetch,omitempty"`
	Archive    *domain.ArchiveImage         `json:"archive,omitempty"`
	Message    string                       `json:"message,omitempty"`
	Sources    map[string]domain.SourceSpec `json:"sources"`
	Layers     []domain.Layer               `json:"layers"`
}

func (e *Engine) status() Status {
	mode := e.layers.Active()
	st := Status{
		Mode:       mode,
		Frame:      e.playback.Frame(),
		FrameCount: e.playback.FrameCount(),
		Label:      e.frameClock.LabelFor(mode, e.playback.Frame(), e.st.renderedAt),
		Playback:   e.playback.State(),
		Selection:  e.st.selection,
		Viewport:   e.st.viewport,
		Message:    e.st.message,
		Sources:    e.scene.Sources(),
		Layers:     e.scene.Layers(),
	}
	if s := e.playback.Session(); s != nil {
		ls := s.State()
		st.Prefetch = &ls
	}
	if e.st.archive != nil {
		a := *e.st.archive
		st.Archive = &a
	}
	return st
}

// Publisher delivers state change events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// emit queues an event describing the current state. It never blocks the
// engine; a full queue drops the event.
func (e *Engine) emit(typ domain.EventType, message string) {
	mode := e.layers.Active()
	ev := domain.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Mode:       mode,
		Frame:      e.playback.Frame(),
		Label:      e.frameClock.LabelFor(mode, e.playback.Frame(), e.st.renderedAt),
		Playback:   e.playback.State().String(),
		Message:    message,
		OccurredAt: e.clock.Now().UTC(),
	}
	if src, ok := e.scene.Source(mode.SourceID()); ok {
		ev.Source = &src
	}

	select {
	case e.events <- ev:
	default:
		e.metrics.EventsDropped.Inc()
		e.logger.Debug("event dropped", "type", typ)
	}
}

// Events exposes the outgoing event queue.
func (e *Engine) Events() <-chan domain.Event {
	return e.events
}

// RunPublisher forwards queued events to pub until ctx is canceled. Publish
// failures are logged and the event is discarded.
func (e *Engine) RunPublisher(ctx context.Context, pub Publisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			if err := pub.Publish(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Warn("event publish failed", "type", ev.Type, "id", ev.ID, "error", err)
				continue
			}
			e.metrics.EventsPublished.Inc()
		}
	}
}

// LogPublisher writes events to the log. It stands in for the broker when
// Kafka is disabled.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.Logger.Debug("state changed",
		"type", ev.Type,
		"mode", ev.Mode,
		"frame", ev.Frame,
		"label", ev.Label,
		"playback", ev.Playback,
	)
	return nil
}
