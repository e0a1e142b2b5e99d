package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	natsadapter "github.com/samirrijal/fogmap/internal/adapters/nats"
	"github.com/samirrijal/fogmap/internal/core/domain"
	"github.com/samirrijal/fogmap/internal/pkg/metrics"
)

// wsMessage is sent by the client to drive its session.
//
//	{"type":"sample","lat":34.7,"lon":135.5}
//	{"type":"click","x":120,"y":80}
//	{"type":"view","view":{"zoom":16}}
//	{"type":"mode","mode":{"tracking":true}}
//	{"type":"reset"}
//	{"type":"frame"}
type wsMessage struct {
	Type   string              `json:"type"`
	Lat    *float64            `json:"lat,omitempty"`
	Lon    *float64            `json:"lon,omitempty"`
	X      *float64            `json:"x,omitempty"`
	Y      *float64            `json:"y,omitempty"`
	Source domain.SampleSource `json:"source,omitempty"`
	View   *domain.ViewUpdate  `json:"view,omitempty"`
	Mode   *domain.ModeUpdate  `json:"mode,omitempty"`
}

// wsEvent is sent to the client. Type is one of session, frame, reveal,
// result or error.
type wsEvent struct {
	Type  string      `json:"type"`
	Op    string      `json:"op,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// WebSocketHandler returns a handler bound to one session. It relays the
// session's frames and reveal events from NATS and applies client messages
// to the session. Without NATS, frames are pushed after every operation.
// ?format=proto switches outbound messages to binary google.protobuf.Struct.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Params("id")
		useProto := c.Query("format") == "proto"
		logger := slog.With("session_id", id, "remote", c.RemoteAddr().String())
		ctx := context.Background()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		write := func(ev wsEvent) error {
			msgType, data, err := encodeEvent(ev, useProto)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(msgType, data)
		}

		sum, err := deps.Sessions.Get(ctx, id)
		if err != nil {
			_ = write(wsEvent{Type: "error", Error: err.Error()})
			return
		}
		logger.Info("ws client connected")
		_ = write(wsEvent{Type: "session", Data: sum})
		if frame, err := deps.Sessions.Frame(ctx, id); err == nil {
			_ = write(wsEvent{Type: "frame", Data: frame})
		}

		var subs []*nats.Subscription
		if deps.NATS != nil {
			relay := func(kind string) nats.MsgHandler {
				return func(msg *nats.Msg) {
					_ = write(wsEvent{Type: kind, Data: json.RawMessage(msg.Data)})
				}
			}
			for subject, kind := range map[string]string{
				natsadapter.FrameSubject(id):  "frame",
				natsadapter.RevealSubject(id): "reveal",
			} {
				sub, err := deps.NATS.Subscribe(subject, relay(kind))
				if err != nil {
					logger.Error("ws subscribe failed", "subject", subject, "error", err)
					continue
				}
				subs = append(subs, sub)
			}
		}
		pushFrames := len(subs) == 0

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = write(wsEvent{Type: "error", Error: "invalid JSON"})
				continue
			}

			result, err := applyMessage(ctx, deps, id, m)
			if err != nil {
				_ = write(wsEvent{Type: "error", Op: m.Type, Error: err.Error()})
				if errors.Is(err, domain.ErrSessionNotFound) {
					break
				}
				continue
			}
			if result != nil {
				_ = write(wsEvent{Type: "result", Op: m.Type, Data: result})
			}
			if pushFrames || m.Type == "frame" {
				if frame, err := deps.Sessions.Frame(ctx, id); err == nil {
					_ = write(wsEvent{Type: "frame", Data: frame})
				}
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		logger.Info("ws client disconnected")
	}
}

var errUnknownMessage = errors.New("unknown message type")

// applyMessage runs one client message against the session.
func applyMessage(ctx context.Context, deps *Dependencies, id string, m wsMessage) (interface{}, error) {
	switch m.Type {
	case "sample":
		if m.Lat == nil || m.Lon == nil {
			return nil, domain.ErrInvalidPoint
		}
		return deps.Sessions.IngestSample(ctx, id, domain.Sample{
			Point:  domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon},
			Source: m.Source,
			Time:   time.Now(),
		})
	case "click":
		var click domain.Click
		switch {
		case m.Lat != nil && m.Lon != nil:
			click.Point = &domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}
		case m.X != nil && m.Y != nil:
			click.Screen = &domain.ScreenPoint{X: *m.X, Y: *m.Y}
		default:
			return nil, domain.ErrInvalidPoint
		}
		return deps.Sessions.Click(ctx, id, click)
	case "view":
		if m.View == nil {
			return nil, domain.ErrInvalidView
		}
		_, err := deps.Sessions.SetView(ctx, id, *m.View)
		return nil, err
	case "mode":
		if m.Mode == nil {
			return nil, errors.New("mode is required")
		}
		return deps.Sessions.SetMode(ctx, id, *m.Mode)
	case "reset":
		return nil, deps.Sessions.ResetTrail(ctx, id)
	case "frame":
		return nil, nil
	default:
		return nil, errUnknownMessage
	}
}

// encodeEvent renders an event as a JSON text message, or as a binary
// google.protobuf.Struct.
func encodeEvent(ev wsEvent, useProto bool) (int, []byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, nil, err
	}
	if !useProto {
		return websocket.TextMessage, data, nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return 0, nil, err
	}
	out, err := proto.Marshal(st)
	if err != nil {
		return 0, nil, err
	}
	return websocket.BinaryMessage, out, nil
}
