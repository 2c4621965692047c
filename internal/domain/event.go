package domain

import (
	"context"
	"time"
)

// EventType classifies a published state change.
type EventType string

const (
	EventModeChanged     EventType = "mode_changed"
	EventFrameChanged    EventType = "frame_changed"
	EventPlaybackChanged EventType = "playback_changed"
	EventArchiveLoaded   EventType = "archive_loaded"
	EventArchiveFailed   EventType = "archive_failed"
)

// Event is a state change published to downstream consumers so map clients
// can mirror the scene.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	Mode       Mode        `json:"mode"`
	Frame      int         `json:"frame"`
	Label      string      `json:"label"`
	Playback   string      `json:"playback"`
	Source     *SourceSpec `json:"source,omitempty"`
	Message    string      `json:"message,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// InboundMessage is one message read from the command topic. Commit, when
// set, acknowledges it to the broker.
type InboundMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
