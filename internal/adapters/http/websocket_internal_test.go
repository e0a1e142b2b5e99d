package http

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gofiber/websocket/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

func TestEncodeEvent_JSON(t *testing.T) {
	kind, data, err := encodeEvent(wsEvent{Type: "frame", Data: domain.Frame{Width: 10, Height: 20}}, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Errorf("expected text message, got %d", kind)
	}

	var got struct {
		Type string       `json:"type"`
		Data domain.Frame `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "frame" || got.Data.Width != 10 {
		t.Errorf("unexpected payload %s", data)
	}
}

func TestEncodeEvent_Proto(t *testing.T) {
	ev := wsEvent{Type: "reveal", Data: json.RawMessage(`{"session_id":"s1","circles":3}`)}
	kind, data, err := encodeEvent(ev, true)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("expected binary message, got %d", kind)
	}

	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m := st.AsMap()
	if m["type"] != "reveal" {
		t.Errorf("expected type reveal, got %v", m["type"])
	}
	payload, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %T", m["data"])
	}
	if payload["session_id"] != "s1" || payload["circles"] != 3.0 {
		t.Errorf("unexpected data %v", payload)
	}
}

func TestApplyMessage_Rejects(t *testing.T) {
	deps := &Dependencies{}
	ctx := context.Background()

	cases := map[string]struct {
		msg  wsMessage
		want error
	}{
		"unknown type":        {wsMessage{Type: "teleport"}, errUnknownMessage},
		"sample without lon":  {wsMessage{Type: "sample", Lat: new(float64)}, domain.ErrInvalidPoint},
		"click without point": {wsMessage{Type: "click"}, domain.ErrInvalidPoint},
		"view without body":   {wsMessage{Type: "view"}, domain.ErrInvalidView},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := applyMessage(ctx, deps, "s1", tc.msg)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
