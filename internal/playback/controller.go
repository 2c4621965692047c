// Package playback drives frame animation. Playback only starts once a
// prefetch session has settled, and a running ticker advances the frame.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/couchcryptid/storm-radar-loop/internal/prefetch"
	"github.com/jonboulle/clockwork"
)

// State is the playback lifecycle state.
type State int

const (
	Stopped State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	default:
		return "stopped"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrFrameOutOfRange is returned by SetFrame for an index outside the series.
var ErrFrameOutOfRange = errors.New("frame out of range")

// Controller owns the frame index and the playback ticker. It is not safe
// for concurrent use; the engine goroutine owns it.
type Controller struct {
	clock   clockwork.Clock
	period  time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	state       State
	frame       int
	frameCount  int
	pauseOnWrap bool
	held        bool
	session     *prefetch.Session
	ticker      clockwork.Ticker
}

// New creates a stopped Controller ticking every period once playing.
func New(clock clockwork.Clock, period time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		clock:   clock,
		period:  period,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *Controller) State() State    { return c.state }
func (c *Controller) Frame() int      { return c.frame }
func (c *Controller) FrameCount() int { return c.frameCount }

// Session returns the prefetch session gating playback, if any.
func (c *Controller) Session() *prefetch.Session { return c.session }

// Configure stops playback and sets the frame series. When pauseOnWrap is
// set the step from the last frame back to 0 takes one extra tick. The
// current frame is clamped into the new series.
func (c *Controller) Configure(frameCount int, pauseOnWrap bool) {
	c.Stop()
	c.frameCount = max(frameCount, 0)
	c.pauseOnWrap = pauseOnWrap
	c.held = false
	switch {
	case c.frameCount == 0:
		c.frame = 0
	case c.frame >= c.frameCount:
		c.frame = c.frameCount - 1
	case c.frame < 0:
		c.frame = 0
	}
}

// SetFrame jumps to frame without changing the playback state.
func (c *Controller) SetFrame(frame int) error {
	if frame < 0 || frame >= c.frameCount {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrFrameOutOfRange, frame, c.frameCount)
	}
	c.frame = frame
	c.held = false
	return nil
}

// Begin moves from Stopped to Loading, gated on session. A session that has
// already settled moves straight on to Playing.
func (c *Controller) Begin(session *prefetch.Session) {
	if c.state != Stopped {
		return
	}
	c.session = session
	c.setState(Loading)
	c.logger.Info("playback loading",
		"session", session.ID(),
		"tiles", session.State().Requested,
		"frames", c.frameCount,
	)

	select {
	case <-session.Done():
		c.Loaded(session)
	default:
	}
}

// Loaded moves from Loading to Playing once session has settled. It returns
// false when session is stale, canceled or not yet complete.
func (c *Controller) Loaded(session *prefetch.Session) bool {
	if c.state != Loading || session != c.session || session.Canceled() {
		return false
	}
	select {
	case <-session.Done():
	default:
		return false
	}

	st := session.State()
	c.ticker = c.clock.NewTicker(c.period)
	c.held = false
	c.setState(Playing)
	c.logger.Info("playback started",
		"session", session.ID(),
		"loaded", st.Loaded,
		"errored", st.Errored,
	)
	return true
}

// Stop cancels the ticker and any pending prefetch session. The frame is kept.
func (c *Controller) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.session != nil && c.state == Loading {
		c.session.Cancel()
	}
	c.session = nil
	c.held = false
	if c.state != Stopped {
		c.setState(Stopped)
		c.logger.Info("playback stopped", "frame", c.frame)
	}
}

// Ticks delivers ticker periods while playing; it is nil otherwise.
func (c *Controller) Ticks() <-chan time.Time {
	if c.state != Playing || c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

// Pending is closed when the loading session settles; it is nil otherwise.
func (c *Controller) Pending() <-chan struct{} {
	if c.state != Loading || c.session == nil {
		return nil
	}
	return c.session.Done()
}

// Advance handles one tick. It returns the new frame and whether it changed.
// With pauseOnWrap the tick that would wrap from the last frame to 0 is
// held once.
func (c *Controller) Advance() (int, bool) {
	if c.state != Playing || c.frameCount <= 1 {
		return c.frame, false
	}
	if c.pauseOnWrap && c.frame == c.frameCount-1 && !c.held {
		c.held = true
		return c.frame, false
	}
	c.held = false
	c.frame = (c.frame + 1) % c.frameCount
	c.metrics.FramesAdvanced.Inc()
	return c.frame, true
}

func (c *Controller) setState(s State) {
	c.state = s
	c.metrics.PlaybackState.Set(float64(s))
}
