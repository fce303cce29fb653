package preview

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/camfeed/camfeed/pkg/types"
)

func grayFrame(w, h int) *types.PlanarFrame {
	f := types.NewPlanarFrame(w, h)
	for i := range f.Y {
		f.Y[i] = 128
	}
	for i := range f.U {
		f.U[i] = 128
	}
	for i := range f.V {
		f.V[i] = 128
	}
	return f
}

func TestSubmitWithoutClientsDoesNotEncode(t *testing.T) {
	b := NewBroadcaster(0)
	// Would panic on a malformed frame if encoding happened.
	b.Submit(&types.PlanarFrame{Width: 4, Height: 2}, 0)
}

func TestSubscriberReceivesDecodableJPEG(t *testing.T) {
	b := NewBroadcaster(0)
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	b.Submit(grayFrame(16, 8), 0)

	select {
	case data := <-ch:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("jpeg.Decode: %v", err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != 16 || bounds.Dy() != 8 {
			t.Fatalf("decoded size = %dx%d, want 16x8", bounds.Dx(), bounds.Dy())
		}
	default:
		t.Fatal("no frame delivered")
	}
}

func TestDownscaleBoundsOutput(t *testing.T) {
	b := NewBroadcaster(8)
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	b.Submit(grayFrame(32, 16), 0)

	select {
	case data := <-ch:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("jpeg.Decode: %v", err)
		}
		if got := img.Bounds().Dx(); got != 8 {
			t.Fatalf("width = %d, want 8", got)
		}
	default:
		t.Fatal("no frame delivered")
	}
}

func TestSlowClientSkipsFrames(t *testing.T) {
	b := NewBroadcaster(0)
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	for i := 0; i < clientBuffer+3; i++ {
		b.Submit(grayFrame(8, 4), 0)
	}
	if got := len(ch); got != clientBuffer {
		t.Fatalf("buffered frames = %d, want %d", got, clientBuffer)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(0)
	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", b.ClientCount())
	}
}
