package frames_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/frames"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-04-26 15:12:34 UTC, 154 seconds past a 300 second boundary.
var testNow = time.Date(2024, time.April, 26, 15, 12, 34, 0, time.UTC)

type stubLookup struct {
	token string
	err   error
	calls []string
}

func (s *stubLookup) LatestTimestamp(_ context.Context, product string) (string, error) {
	s.calls = append(s.calls, product)
	return s.token, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(lookup frames.TimestampLookup) (*frames.Resolver, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return frames.NewResolver(domain.NewCatalog("k"), lookup, clockwork.NewFakeClockAt(testNow), discardLogger(), m), m
}

func mosaicTS(t *testing.T, u string) int64 {
	t.Helper()
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	ts, err := strconv.ParseInt(parsed.Query().Get("ts"), 10, 64)
	require.NoError(t, err)
	return ts
}

func TestResolve_LocalRadarIgnoresFrame(t *testing.T) {
	r, _ := newResolver(nil)
	sel := domain.DefaultSelection("KBMX")
	tile := domain.TileCoord{X: 33, Y: 52, Z: 7}

	first, err := r.Resolve(context.Background(), domain.ModeLocalRadar, sel, 0, tile, time.Time{})
	require.NoError(t, err)
	last, err := r.Resolve(context.Background(), domain.ModeLocalRadar, sel, 7, tile, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/ridge::BMX-N0B-0/7/33/52.png", first)
	assert.Equal(t, first, last)
}

func TestResolve_LocalRadarVelocity(t *testing.T) {
	r, _ := newResolver(nil)
	sel := domain.DefaultSelection("KMOB")
	sel.Product = domain.ProductVelocity

	u, err := r.Resolve(context.Background(), domain.ModeLocalRadar, sel, 0, domain.TileCoord{X: 1, Y: 2, Z: 3}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/ridge::MOB-N0S-0/3/1/2.png", u)
}

func TestResolve_LocalRadarUnknownSite(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), domain.ModeLocalRadar, domain.DefaultSelection("ZZZZ"), 0, domain.TileCoord{}, time.Time{})
	require.ErrorIs(t, err, domain.ErrUnknownSite)
}

func TestResolve_MosaicExampleScenario(t *testing.T) {
	r, _ := newResolver(nil)
	sel := domain.DefaultSelection("KMOB")
	tile := domain.TileCoord{X: 4, Y: 6, Z: 4}
	T := testNow.Unix()

	newest, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, sel, 7, tile, testNow)
	require.NoError(t, err)
	oldest, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, sel, 0, tile, testNow)
	require.NoError(t, err)

	assert.Equal(t, (T-0*300)/300*300, mosaicTS(t, newest))
	assert.Equal(t, (T-7*300)/300*300, mosaicTS(t, oldest))
	assert.Equal(t, int64(7*300), mosaicTS(t, newest)-mosaicTS(t, oldest))
	assert.Contains(t, newest, "xyz=4:6:4")
	assert.Contains(t, newest, "apiKey=k")
}

func TestResolve_MosaicFramesAreIntervalAligned(t *testing.T) {
	r, _ := newResolver(nil)
	for f := 0; f < 8; f++ {
		u, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, domain.Selection{}, f, domain.TileCoord{}, testNow)
		require.NoError(t, err)
		ts := mosaicTS(t, u)
		assert.Zero(t, ts%300, "frame %d", f)
		assert.LessOrEqual(t, ts, testNow.Unix())
	}
}

func TestResolve_MosaicFrameOutOfRange(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, domain.Selection{}, 8, domain.TileCoord{}, testNow)
	require.ErrorIs(t, err, frames.ErrFrameOutOfRange)
}

func TestResolve_ModelTableAndFallback(t *testing.T) {
	r, _ := newResolver(nil)
	tile := domain.TileCoord{X: 1, Y: 1, Z: 2}

	u, err := r.Resolve(context.Background(), domain.ModeModel, domain.Selection{}, 1, tile, testNow)
	require.NoError(t, err)
	assert.Equal(t, "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/hrrr::REFD-F0060-0/2/1/1.png", u)

	u, err = r.Resolve(context.Background(), domain.ModeModel, domain.Selection{}, 99, tile, testNow)
	require.NoError(t, err)
	assert.Contains(t, u, "hrrr::REFD-F0000-0")
}

func TestResolve_SatelliteStaticTemplate(t *testing.T) {
	lookup := &stubLookup{token: "unused"}
	r, _ := newResolver(lookup)

	sel := domain.DefaultSelection("KMOB")
	u, err := r.Resolve(context.Background(), domain.ModeSatellite, sel, 0, domain.TileCoord{X: 1, Y: 2, Z: 3}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "http://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/conus-goes-vis-1km/3/1/2.png", u)
	assert.Empty(t, lookup.calls)
}

func TestResolve_SatelliteUsesLatestTimestamp(t *testing.T) {
	lookup := &stubLookup{token: "20240426+150000"}
	r, _ := newResolver(lookup)

	sel := domain.DefaultSelection("KMOB")
	sel.Region = "meso2"
	u, err := r.Resolve(context.Background(), domain.ModeSatellite, sel, 0, domain.TileCoord{X: 5, Y: 6, Z: 7}, testNow)
	require.NoError(t, err)

	assert.Equal(t, "https://realearth.ssec.wisc.edu/api/image?products=G19-ABI-MESO2-BAND01&time=20240426+150000&x=5&y=6&z=7", u)
	assert.Equal(t, []string{"G19-ABI-MESO2-BAND01"}, lookup.calls)
}

func TestResolve_SatelliteFallsBackToNow(t *testing.T) {
	lookup := &stubLookup{err: errors.New("connection refused")}
	r, m := newResolver(lookup)

	sel := domain.DefaultSelection("KMOB")
	sel.Region = "meso1"
	u, err := r.Resolve(context.Background(), domain.ModeSatellite, sel, 0, domain.TileCoord{}, testNow)
	require.NoError(t, err)

	assert.Contains(t, u, "time=20240426+151234&")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TimestampLookups.WithLabelValues("fallback")))
}

func TestResolve_SatelliteUnknownProduct(t *testing.T) {
	r, _ := newResolver(nil)

	sel := domain.DefaultSelection("KMOB")
	sel.Satellite = "himawari"
	_, err := r.Resolve(context.Background(), domain.ModeSatellite, sel, 0, domain.TileCoord{}, testNow)
	require.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestResolve_InactiveHasNoSource(t *testing.T) {
	r, _ := newResolver(nil)

	_, err := r.Resolve(context.Background(), domain.ModeInactive, domain.Selection{}, 0, domain.TileCoord{}, testNow)
	require.ErrorIs(t, err, frames.ErrNoSource)
}

func TestResolve_ZeroAtUsesClock(t *testing.T) {
	r, _ := newResolver(nil)

	withClock, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, domain.Selection{}, 3, domain.TileCoord{}, time.Time{})
	require.NoError(t, err)
	explicit, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, domain.Selection{}, 3, domain.TileCoord{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, explicit, withClock)
}

func TestFrameClock_CountsAndIntervals(t *testing.T) {
	c := frames.NewFrameClock(domain.NewCatalog("k"), clockwork.NewFakeClockAt(testNow), time.UTC)

	assert.Equal(t, 8, c.FrameCount(domain.ModeMosaicRadar))
	assert.Equal(t, 8, c.FrameCount(domain.ModeModel))
	assert.Equal(t, 1, c.FrameCount(domain.ModeLocalRadar))
	assert.Equal(t, 1, c.FrameCount(domain.ModeSatellite))
	assert.Equal(t, 0, c.FrameCount(domain.ModeInactive))

	assert.Equal(t, 5*time.Minute, c.IntervalOf(domain.ModeMosaicRadar))
	assert.Equal(t, time.Hour, c.IntervalOf(domain.ModeModel))
	assert.Zero(t, c.IntervalOf(domain.ModeLocalRadar))
}

func TestFrameClock_Labels(t *testing.T) {
	c := frames.NewFrameClock(domain.NewCatalog("k"), clockwork.NewFakeClockAt(testNow), time.UTC)

	assert.Equal(t, "15:10", c.LabelFor(domain.ModeMosaicRadar, 7, testNow))
	assert.Equal(t, "14:35", c.LabelFor(domain.ModeMosaicRadar, 0, testNow))
	assert.Equal(t, "+3 hr", c.LabelFor(domain.ModeModel, 3, testNow))
	assert.Equal(t, "+4 hr", c.LabelFor(domain.ModeModel, 5, testNow))
	assert.Equal(t, "+0 hr", c.LabelFor(domain.ModeModel, 42, testNow))
	assert.Equal(t, "Live", c.LabelFor(domain.ModeLocalRadar, 0, testNow))
	assert.Equal(t, "Live", c.LabelFor(domain.ModeSatellite, 0, testNow))
	assert.Empty(t, c.LabelFor(domain.ModeInactive, 0, testNow))
}

func TestFrameClock_LabelUsesDisplayZone(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	c := frames.NewFrameClock(domain.NewCatalog("k"), clockwork.NewFakeClockAt(testNow), chicago)

	assert.Equal(t, "10:10", c.LabelFor(domain.ModeMosaicRadar, 7, testNow))
}

func TestLabelMatchesResolvedTile(t *testing.T) {
	catalog := domain.NewCatalog("k")
	clock := clockwork.NewFakeClockAt(testNow)
	r := frames.NewResolver(catalog, nil, clock, discardLogger(), observability.NewMetricsForTesting())
	c := frames.NewFrameClock(catalog, clock, time.UTC)

	for _, at := range []time.Time{testNow, testNow.Add(146 * time.Second), testNow.Add(147 * time.Second)} {
		for f := 0; f < c.FrameCount(domain.ModeMosaicRadar); f++ {
			u, err := r.Resolve(context.Background(), domain.ModeMosaicRadar, domain.Selection{}, f, domain.TileCoord{}, at)
			require.NoError(t, err)
			tileTime := time.Unix(mosaicTS(t, u), 0).UTC().Format("15:04")
			assert.Equal(t, tileTime, c.LabelFor(domain.ModeMosaicRadar, f, at), "frame %d at %s", f, at)
		}
	}
}

func TestAlignedTimestamp(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, int64(900), frames.AlignedTimestamp(now, 7, 8, 5*time.Minute))
	assert.Equal(t, int64(600), frames.AlignedTimestamp(now, 6, 8, 5*time.Minute))
	assert.Equal(t, int64(-1200), frames.AlignedTimestamp(now, 0, 8, 5*time.Minute))
	assert.Equal(t, int64(1000), frames.AlignedTimestamp(now, 0, 8, 0))
}

func TestFormatTimeToken(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "20240426+151234", frames.FormatTimeToken(testNow.In(est)))
}

func TestExpandTile(t *testing.T) {
	got := frames.ExpandTile("https://t/{z}/{x}/{y}.png?xyz={x}:{y}:{z}", domain.TileCoord{X: 10, Y: 20, Z: 5})
	assert.Equal(t, "https://t/5/10/20.png?xyz=10:20:5", got)
}
