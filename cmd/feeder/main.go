// Command feeder replays a recorded track into a fog session over NATS, one
// sample per tick, as a phone's location service would.
//
//	feeder -track walk.geojson [-session ID] [-api http://localhost:8080] [-interval 1s] [-loop]
//
// Without -session a new session is opened through the API and switched to
// tracking first.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	natsadapter "github.com/samirrijal/fogmap/internal/adapters/nats"
	"github.com/samirrijal/fogmap/internal/adapters/trackfile"
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/pkg/config"
	"github.com/samirrijal/fogmap/internal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	trackPath := flag.String("track", "", "track file (JSON samples or GeoJSON)")
	sessionID := flag.String("session", "", "session to feed; empty opens a new one")
	apiURL := flag.String("api", "http://localhost:8080", "API base URL, used to open a session")
	interval := flag.Duration("interval", time.Second, "delay between samples")
	loop := flag.Bool("loop", false, "restart the track when it ends")
	flag.Parse()

	if *trackPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load("fogmap-feeder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	samples, err := trackfile.Load(*trackPath)
	if err != nil {
		log.Fatalf("track: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	if *sessionID == "" {
		id, err := openSession(ctx, client, *apiURL, cfg.Auth)
		if err != nil {
			log.Fatalf("open session: %v", err)
		}
		*sessionID = id
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	slog.Info("feeding track", "session_id", *sessionID, "samples", len(samples), "interval", interval.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ticker.C:
			if i == len(samples) {
				if !*loop {
					slog.Info("track finished", "session_id", *sessionID)
					return
				}
				i = 0
			}
			s := samples[i]
			s.Time = time.Now()
			if s.Source == "" {
				s.Source = domain.SourceGPS
			}
			if err := pub.PublishLocation(ctx, *sessionID, &s); err != nil {
				slog.Warn("publish location failed", "index", i, "error", err)
				continue
			}
			i++
		case sig := <-quit:
			slog.Info("stopping feeder", "signal", sig.String(), "sent", i)
			return
		}
	}
}

// openSession creates a session with the default view and turns tracking on.
func openSession(ctx context.Context, client *http.Client, api string, auth config.AuthConfig) (string, error) {
	var sum domain.SessionSummary
	if err := call(ctx, client, http.MethodPost, api+"/v1/sessions", nil, auth, http.StatusCreated, &sum); err != nil {
		return "", err
	}
	mode := map[string]bool{"tracking": true}
	if err := call(ctx, client, http.MethodPut, api+"/v1/sessions/"+sum.ID+"/mode", mode, auth, http.StatusOK, nil); err != nil {
		return "", err
	}
	return sum.ID, nil
}

func call(ctx context.Context, client *http.Client, method, url string, body interface{}, auth config.AuthConfig, want int, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth.Enabled() {
		req.SetBasicAuth(auth.Username, auth.Password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return fmt.Errorf("HTTP %d for %s %s", resp.StatusCode, method, url)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
