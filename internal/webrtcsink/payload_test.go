package webrtcsink

import (
	"testing"

	"github.com/camfeed/camfeed/pkg/types"
)

func TestFramePayloadHeader(t *testing.T) {
	frame := types.NewPlanarFrame(64, 48)
	frame.Y[0] = 235

	payload := marshalFrame(frame, 1234567890)

	wantLen := headerSize + 64*48 + 2*32*24
	if len(payload) != wantLen {
		t.Fatalf("payload length = %d, want %d", len(payload), wantLen)
	}

	w, h, ts, err := parseHeader(payload)
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if w != 64 || h != 48 || ts != 1234567890 {
		t.Errorf("header = %dx%d ts=%d, want 64x48 ts=1234567890", w, h, ts)
	}
	if payload[headerSize] != 235 {
		t.Error("luma plane not copied after header")
	}
}

func TestParseHeaderRejectsGarbage(t *testing.T) {
	if _, _, _, err := parseHeader([]byte{1, 2, 3}); err == nil {
		t.Error("short message accepted")
	}

	frame := types.NewPlanarFrame(4, 4)
	payload := marshalFrame(frame, 0)
	payload[0] = 0xFF
	if _, _, _, err := parseHeader(payload); err == nil {
		t.Error("bad magic accepted")
	}

	payload = marshalFrame(frame, 0)
	if _, _, _, err := parseHeader(payload[:len(payload)-1]); err == nil {
		t.Error("truncated plane data accepted")
	}
}

func TestSubmitDropsWhenClientQueueFull(t *testing.T) {
	s := NewServer(nil, 4, nil)
	client := &Client{
		id:        "test",
		frameChan: make(chan []byte, 2),
		closeChan: make(chan struct{}),
	}
	s.clients[client.id] = client

	frame := types.NewPlanarFrame(4, 4)
	for i := 0; i < 5; i++ {
		s.Submit(frame, int64(i))
	}

	if client.framesSent != 2 {
		t.Errorf("framesSent = %d, want 2 (queue depth)", client.framesSent)
	}
	if client.framesDropped != 3 {
		t.Errorf("framesDropped = %d, want 3", client.framesDropped)
	}
}
