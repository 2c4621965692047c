// Command catalogcheck verifies the built-in provider catalog: unique radar
// site codes, tile templates carrying the placeholders the resolver expands,
// a well-formed forecast table and consistent provider policies. With -live
// it also fetches one tile per template from the live providers.
//
// Usage:
//
//	go run ./cmd/catalogcheck
//	go run ./cmd/catalogcheck -live -timeout 10s
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-loop/internal/domain"
	"github.com/couchcryptid/storm-radar-loop/internal/frames"
	"github.com/couchcryptid/storm-radar-loop/internal/observability"
	"github.com/couchcryptid/storm-radar-loop/internal/tilecache"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	live := flag.Bool("live", false, "fetch one tile per template from the live providers")
	timeout := flag.Duration("timeout", 10*time.Second, "per-tile timeout for -live")
	apiKey := flag.String("mosaic-api-key", os.Getenv("MOSAIC_API_KEY"), "mosaic provider API key")
	flag.Parse()

	os.Exit(run(domain.NewCatalog(*apiKey), *live, *timeout))
}

func run(catalog *domain.Catalog, live bool, timeout time.Duration) int {
	fmt.Println("=== Provider Catalog Check ===")
	fmt.Println()

	phases := []*phase{
		checkSites(catalog),
		checkMosaic(catalog),
		checkModel(catalog),
		checkSatellites(catalog),
		checkProviders(catalog),
	}
	if live {
		phases = append(phases, fetchTiles(catalog, timeout))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Catalog: %d radar sites, %d model frames, %d satellite products\n",
		len(catalog.Sites()), len(catalog.Model.Frames), len(catalog.SatelliteProducts()))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll checks passed.")
		return 0
	}
	fmt.Println("\nCatalog check FAILED.")
	return 1
}

var xyz = []string{"{x}", "{y}", "{z}"}

// checkTemplate reports a template that is not an absolute URL or lacks
// any of the required placeholders.
func checkTemplate(p *phase, label, template string, extra ...string) {
	if template == "" {
		p.errorf("%s: empty template", label)
		return
	}
	u, err := url.Parse(strings.NewReplacer("{", "", "}", "").Replace(template))
	if err != nil || u.Scheme == "" || u.Host == "" {
		p.errorf("%s: not an absolute URL: %q", label, template)
	}
	for _, ph := range append(xyz, extra...) {
		if !strings.Contains(template, ph) {
			p.errorf("%s: missing %s in %q", label, ph, template)
		}
	}
}

func checkSites(c *domain.Catalog) *phase {
	p := &phase{name: "Phase 1: Radar site table"}
	sites := c.Sites()
	if len(sites) == 0 {
		p.errorf("no radar sites")
		return p
	}

	seen := make(map[string]bool, len(sites))
	for _, s := range sites {
		if len(s.Code) != 4 {
			p.errorf("site %q: code must be 4 characters", s.Code)
		}
		if seen[s.Code] {
			p.errorf("site %q: duplicate code", s.Code)
		}
		seen[s.Code] = true

		if s.Lat < -90 || s.Lat > 90 || s.Lon < -180 || s.Lon > 180 {
			p.errorf("site %s: coordinates out of range (%f, %f)", s.Code, s.Lon, s.Lat)
		}
		checkTemplate(p, s.Code+" reflectivity", s.Reflectivity)
		checkTemplate(p, s.Code+" velocity", s.Velocity)
		if s.Reflectivity == s.Velocity {
			p.errorf("site %s: reflectivity and velocity share a template", s.Code)
		}
		if _, err := c.Site(s.Code); err != nil {
			p.errorf("site %s: lookup failed: %v", s.Code, err)
		}
	}
	return p
}

func checkMosaic(c *domain.Catalog) *phase {
	p := &phase{name: "Phase 2: Mosaic"}
	checkTemplate(p, "mosaic", c.Mosaic.Template, "{ts}")
	if c.Mosaic.FrameCount < 2 {
		p.errorf("mosaic: %d frames, want at least 2", c.Mosaic.FrameCount)
	}
	if c.Mosaic.Interval <= 0 {
		p.errorf("mosaic: non-positive interval %s", c.Mosaic.Interval)
	}
	return p
}

func checkModel(c *domain.Catalog) *phase {
	p := &phase{name: "Phase 3: Forecast model frames"}
	if len(c.Model.Frames) < 2 {
		p.errorf("model %s: %d frames, want at least 2", c.Model.Name, len(c.Model.Frames))
	}
	prev := -1
	for i, f := range c.Model.Frames {
		checkTemplate(p, fmt.Sprintf("model frame %d", i), f.Template)
		if f.Hour < prev {
			p.errorf("model frame %d: hour %d precedes frame %d hour %d", i, f.Hour, i-1, prev)
		}
		prev = f.Hour
	}
	return p
}

func checkSatellites(c *domain.Catalog) *phase {
	p := &phase{name: "Phase 4: Satellite products"}
	seen := make(map[string]bool)
	for _, s := range c.SatelliteProducts() {
		key := s.Satellite + "/" + s.Region + "/" + s.Band
		if seen[key] {
			p.errorf("satellite %s: duplicate product", key)
		}
		seen[key] = true

		if s.RealEarthProduct != "" {
			checkTemplate(p, key, s.Template, "{time}")
		} else {
			checkTemplate(p, key, s.Template)
		}
		if _, err := c.Satellite(s.Satellite, s.Region, s.Band); err != nil {
			p.errorf("satellite %s: lookup failed: %v", key, err)
		}
	}
	return p
}

func checkProviders(c *domain.Catalog) *phase {
	p := &phase{name: "Phase 5: Provider policies"}
	for _, m := range domain.ActiveModes {
		spec := c.Provider(m)
		if spec.Mode != m {
			p.errorf("%s: provider reports mode %s", m, spec.Mode)
		}
		if spec.FrameCount < 1 {
			p.errorf("%s: frame count %d", m, spec.FrameCount)
		}
		if spec.Kind != domain.FrameLive && spec.FrameCount < 2 {
			p.errorf("%s: %s provider needs at least 2 frames", m, spec.Kind)
		}
		if spec.TileSize <= 0 || spec.MaxZoom <= 0 {
			p.errorf("%s: tile size %d, max zoom %d", m, spec.TileSize, spec.MaxZoom)
		}
		if spec.Opacity <= 0 || spec.Opacity > 1 {
			p.errorf("%s: opacity %f out of (0, 1]", m, spec.Opacity)
		}
		if m.SourceID() == "" || m.LayerID() == "" {
			p.errorf("%s: missing source or layer id", m)
		}
	}
	return p
}

// fetchTiles fetches tile 0/0/0 of every template through the tile cache.
func fetchTiles(c *domain.Catalog, timeout time.Duration) *phase {
	p := &phase{name: "Phase 6: Live tile fetch"}
	logger := slog.New(slog.DiscardHandler)
	// Unregistered metrics; nothing is exported from a one-shot command.
	metrics := observability.NewMetricsForTesting()
	fetcher, err := tilecache.NewFetcher(256, timeout, logger, metrics)
	if err != nil {
		p.errorf("create fetcher: %v", err)
		return p
	}
	resolver := frames.NewResolver(c, nil, clockwork.NewRealClock(), logger, metrics)
	root := domain.TileCoord{}

	type target struct {
		label string
		mode  domain.Mode
		sel   domain.Selection
		frame int
	}
	var targets []target
	for _, s := range c.Sites() {
		sel := domain.DefaultSelection(s.Code)
		targets = append(targets, target{s.Code + " reflectivity", domain.ModeLocalRadar, sel, 0})
		sel.Product = domain.ProductVelocity
		targets = append(targets, target{s.Code + " velocity", domain.ModeLocalRadar, sel, 0})
	}
	for i := range c.Model.Frames {
		targets = append(targets, target{fmt.Sprintf("model frame %d", i), domain.ModeModel, domain.Selection{}, i})
	}
	for _, s := range c.SatelliteProducts() {
		sel := domain.Selection{Satellite: s.Satellite, Region: s.Region, Band: s.Band}
		targets = append(targets, target{s.Satellite + "/" + s.Region + "/" + s.Band, domain.ModeSatellite, sel, 0})
	}
	if !strings.HasSuffix(c.Mosaic.Template, "apiKey=") {
		targets = append(targets, target{"mosaic", domain.ModeMosaicRadar, domain.Selection{}, c.Mosaic.FrameCount - 1})
	}

	ctx := context.Background()
	for _, t := range targets {
		u, err := resolver.Resolve(ctx, t.mode, t.sel, t.frame, root, time.Time{})
		if err != nil {
			p.errorf("%s: resolve: %v", t.label, err)
			continue
		}
		if _, _, err := fetcher.Fetch(ctx, u); err != nil {
			p.errorf("%s: %v", t.label, err)
		}
	}
	fmt.Printf("  fetched %d tiles\n", len(targets))
	return p
}
