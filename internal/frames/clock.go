package frames

import (
	"fmt"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/jonboulle/clockwork"
)

// timeTokenLayout is the RealEarth time token format, always in UTC.
const timeTokenLayout = "20060102+150405"

// FrameClock converts frame indexes into the display labels and intervals of
// each mode's provider.
type FrameClock struct {
	catalog *domain.Catalog
	clock   clockwork.Clock
	loc     *time.Location
}

// NewFrameClock creates a FrameClock that renders mosaic times in loc.
func NewFrameClock(catalog *domain.Catalog, clock clockwork.Clock, loc *time.Location) *FrameClock {
	if loc == nil {
		loc = time.UTC
	}
	return &FrameClock{catalog: catalog, clock: clock, loc: loc}
}

// FrameCount is the number of frames in the mode's series.
func (c *FrameClock) FrameCount(mode domain.Mode) int {
	return c.catalog.Provider(mode).FrameCount
}

// IntervalOf is the spacing between consecutive frames. Live modes have none.
func (c *FrameClock) IntervalOf(mode domain.Mode) time.Duration {
	return c.catalog.Provider(mode).Interval
}

// LabelFor renders the label shown with frame. A zero at uses the clock's now.
func (c *FrameClock) LabelFor(mode domain.Mode, frame int, at time.Time) string {
	if at.IsZero() {
		at = c.clock.Now()
	}

	p := c.catalog.Provider(mode)
	switch p.Kind {
	case domain.FrameMinutesAgo:
		ts := AlignedTimestamp(at, frame, p.FrameCount, p.Interval)
		return time.Unix(ts, 0).In(c.loc).Format("15:04")
	case domain.FrameForecastHours:
		return fmt.Sprintf("+%d hr", c.catalog.Model.Frame(frame).Hour)
	default:
		if mode == domain.ModeInactive {
			return ""
		}
		return "Live"
	}
}

// AlignedTimestamp is the unix time of a minutes-ago frame. The last frame is
// the most recent; each earlier frame steps back one interval, and the
// result is aligned down to an interval boundary.
func AlignedTimestamp(now time.Time, frame, frameCount int, interval time.Duration) int64 {
	step := int64(interval / time.Second)
	if step <= 0 {
		return now.Unix()
	}
	secondsAgo := int64(frameCount-1-frame) * step
	return floorDiv(now.Unix()-secondsAgo, step) * step
}

// FormatTimeToken renders t as a RealEarth time token.
func FormatTimeToken(t time.Time) string {
	return t.UTC().Format(timeTokenLayout)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
