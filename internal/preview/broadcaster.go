// Package preview serves the normalized stream as MJPEG over HTTP so a
// browser can watch the pipeline without a WebRTC client.
package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"

	"github.com/camfeed/camfeed/internal/logger"
	"github.com/camfeed/camfeed/pkg/types"
)

const (
	jpegQuality  = 75
	clientBuffer = 2 // frames buffered per client before skipping
)

// Broadcaster encodes normalized frames to JPEG and fans them out to
// subscribed HTTP clients. Encoding is skipped entirely while nobody is
// watching. Implements the pipeline sink contract.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[int]chan []byte
	nextID   int
	maxWidth int // downscale bound, 0 disables scaling
}

// NewBroadcaster creates a broadcaster. Frames wider than maxWidth are
// downscaled before encoding; pass 0 to keep the native size.
func NewBroadcaster(maxWidth int) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[int]chan []byte),
		maxWidth: maxWidth,
	}
}

// Subscribe adds a new client and returns a channel for receiving JPEG frames.
func (b *Broadcaster) Subscribe() (int, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan []byte, clientBuffer)
	b.clients[id] = ch

	logger.Debug("Preview", "Client #%d subscribed (total clients: %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		logger.Debug("Preview", "Client #%d unsubscribed (remaining clients: %d)", id, len(b.clients))
	}
}

// ClientCount returns the number of subscribed clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Submit encodes one frame and fans it out. With zero clients the frame
// is dropped before encoding. Slow clients skip frames rather than
// stalling the pipeline.
func (b *Broadcaster) Submit(frame *types.PlanarFrame, _ int64) {
	if b.ClientCount() == 0 {
		return
	}

	data, err := b.encode(frame)
	if err != nil {
		logger.Warn("Preview", "JPEG encode failed: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
		}
	}
}

func (b *Broadcaster) encode(frame *types.PlanarFrame) ([]byte, error) {
	var img image.Image = wrapYCbCr(frame)

	if b.maxWidth > 0 && frame.Width > b.maxWidth {
		h := frame.Height * b.maxWidth / frame.Width
		dst := image.NewRGBA(image.Rect(0, 0, b.maxWidth, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapYCbCr views the planes as an image without copying pixel data.
func wrapYCbCr(frame *types.PlanarFrame) *image.YCbCr {
	return &image.YCbCr{
		Y:              frame.Y,
		Cb:             frame.U,
		Cr:             frame.V,
		YStride:        frame.Width,
		CStride:        frame.Width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, frame.Width, frame.Height),
	}
}
