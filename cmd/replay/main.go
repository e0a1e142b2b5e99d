// Command replay runs a recorded track through a headless fog controller and
// writes the resulting mask and trail to disk.
//
//	replay -track walk.geojson [-out ./out] [-zoom 16] [-width 1280] [-height 720] [-fit]
//
// Outputs mask.svg, mask.png and trail.geojson.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/samirrijal/fogmap/internal/adapters/surface"
	"github.com/samirrijal/fogmap/internal/adapters/trackfile"
	"github.com/samirrijal/fogmap/internal/adapters/viewport"
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/core/fog"
	"github.com/samirrijal/fogmap/internal/pkg/config"
	"github.com/samirrijal/fogmap/internal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	trackPath := flag.String("track", "", "track file (JSON samples or GeoJSON)")
	outDir := flag.String("out", ".", "output directory")
	zoom := flag.Float64("zoom", 0, "tracking zoom; 0 uses map.zoom from config")
	width := flag.Int("width", 0, "viewport width; 0 uses map.width")
	height := flag.Int("height", 0, "viewport height; 0 uses map.height")
	fit := flag.Bool("fit", true, "zoom out to the whole revealed area before rendering")
	flag.Parse()

	if *trackPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load("fogmap-replay")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	samples, err := trackfile.Load(*trackPath)
	if err != nil {
		log.Fatalf("track: %v", err)
	}

	view := domain.View{
		Center: samples[0].Point,
		Zoom:   pick(*zoom, cfg.Map.Zoom),
		Width:  int(pick(float64(*width), float64(cfg.Map.Width))),
		Height: int(pick(float64(*height), float64(cfg.Map.Height))),
	}
	style := surface.Style{
		FogColor:    cfg.Mask.Fill,
		FogOpacity:  cfg.Mask.Opacity,
		PathColor:   cfg.Mask.PathColor,
		PathWidth:   cfg.Mask.PathWidth,
		Transparent: true,
	}

	host := viewport.New(view)
	svg := surface.NewSVG(style)
	ctrl := fog.NewController(fog.Config{
		Mask: fog.MaskConfig{
			Margin:        cfg.Mask.Margin,
			Width:         float64(view.Width),
			Height:        float64(view.Height),
			BaseRadius:    cfg.Mask.BaseRadius,
			ReferenceZoom: cfg.Mask.ReferenceZoom,
		},
		Tracker: fog.TrackerConfig{MinStepMeters: cfg.Tracker.MinStepMeters},
	}, svg)

	if _, err := ctrl.AttachMap(host); err != nil {
		log.Fatalf("attach map: %v", err)
	}
	if _, err := ctrl.SetTracking(true); err != nil {
		log.Fatalf("start tracking: %v", err)
	}

	accepted := 0
	for _, s := range samples {
		out, err := ctrl.OnLocation(s.Point)
		if err != nil {
			log.Fatalf("sample: %v", err)
		}
		if out.Accepted {
			accepted++
		}
	}
	if _, err := ctrl.SetTracking(false); err != nil {
		log.Fatalf("stop tracking: %v", err)
	}

	if *fit {
		if b := ctrl.RevealedBounds(); b != nil {
			fitBounds(host, *b)
			if _, err := ctrl.OnZoom(); err != nil {
				log.Fatalf("redraw: %v", err)
			}
		}
	}

	circles, quads := ctrl.Counts()
	slog.Info("replayed track",
		"samples", len(samples), "accepted", accepted,
		"circles", circles, "quads", quads,
		"trail_meters", math.Round(ctrl.TrailMeters()))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("output dir: %v", err)
	}
	write(filepath.Join(*outDir, "mask.svg"), svg.Bytes())

	pngFile, err := os.Create(filepath.Join(*outDir, "mask.png"))
	if err != nil {
		log.Fatalf("create png: %v", err)
	}
	if err := surface.WritePNG(pngFile, ctrl.Frame(), style); err != nil {
		log.Fatalf("render png: %v", err)
	}
	if err := pngFile.Close(); err != nil {
		log.Fatalf("close png: %v", err)
	}

	trail, err := json.MarshalIndent(trackfile.TrailCollection("replay", ctrl.Trail(), ctrl.RevealedBounds()), "", "  ")
	if err != nil {
		log.Fatalf("encode trail: %v", err)
	}
	write(filepath.Join(*outDir, "trail.geojson"), trail)

	slog.Info("wrote outputs", "dir", *outDir)
}

// fitBounds centres the host on b and picks the largest zoom at which b fits
// in 90% of the viewport.
func fitBounds(host *viewport.Host, b domain.Bounds) {
	host.PanTo(domain.GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2})

	sw := host.Project(domain.GeoPoint{Lat: b.MinLat, Lon: b.MinLon})
	ne := host.Project(domain.GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon})
	dx, dy := math.Abs(ne.X-sw.X), math.Abs(ne.Y-sw.Y)
	if dx == 0 && dy == 0 {
		return
	}

	w, h := host.Size()
	scale := math.Inf(1)
	if dx > 0 {
		scale = 0.9 * w / dx
	}
	if dy > 0 {
		scale = math.Min(scale, 0.9*h/dy)
	}
	host.SetZoom(host.CurrentZoom() + math.Log2(scale))
}

func pick(flagValue, fallback float64) float64 {
	if flagValue > 0 {
		return flagValue
	}
	return fallback
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
}
