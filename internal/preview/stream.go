package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/camfeed/camfeed/internal/logger"
)

func blankJPEG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))

	// Color bars: White, Yellow, Cyan, Green, Magenta, Red, Blue, Black
	colors := []color.RGBA{
		{R: 255, G: 255, B: 255, A: 255},
		{R: 255, G: 255, B: 0, A: 255},
		{R: 0, G: 255, B: 255, A: 255},
		{R: 0, G: 255, B: 0, A: 255},
		{R: 255, G: 0, B: 255, A: 255},
		{R: 255, G: 0, B: 0, A: 255},
		{R: 0, G: 0, B: 255, A: 255},
		{R: 0, G: 0, B: 0, A: 255},
	}

	barWidth := 640 / len(colors)
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			barIndex := x / barWidth
			if barIndex >= len(colors) {
				barIndex = len(colors) - 1
			}
			img.Set(x, y, colors[barIndex])
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Handler returns an HTTP handler streaming MJPEG to each client.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		id, frameCh := b.Subscribe()
		defer b.Unsubscribe(id)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache")

		blank, err := blankJPEG()
		if err != nil {
			http.Error(w, "Failed to render frame", http.StatusInternalServerError)
			return
		}

		for {
			jpegData := blank
			select {
			case <-r.Context().Done():
				return
			case data, ok := <-frameCh:
				if !ok {
					return
				}
				if data != nil {
					jpegData = data
				}
			case <-time.After(5 * time.Second):
				// No frame for 5 seconds, send blank to keep connection alive
			}

			if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
				logger.Debug("Preview", "Client #%d disconnected during write: %v", id, err)
				return
			}
			if _, err := w.Write(jpegData); err != nil {
				logger.Debug("Preview", "Client #%d disconnected during frame write: %v", id, err)
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				logger.Debug("Preview", "Client #%d disconnected during delimiter write: %v", id, err)
				return
			}
			flusher.Flush()
		}
	}
}
