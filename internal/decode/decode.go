// Package decode normalizes raw capture buffers into planar I420 frames.
package decode

import (
	"errors"
	"fmt"
	"math"

	"github.com/camfeed/camfeed/pkg/types"
)

var (
	// ErrInsufficientSize means the raw buffer is shorter than the
	// declared dimensions require. Nothing is written on this error.
	ErrInsufficientSize = errors.New("raw buffer smaller than declared frame size")

	// ErrDecodeFailed means the compressed frame could not be turned
	// into pixels, or produced pixels of the wrong size.
	ErrDecodeFailed = errors.New("frame decode failed")

	// ErrOddDimensions means the declared width or height is not even.
	// Chroma subsampling requires even dimensions.
	ErrOddDimensions = errors.New("frame dimensions must be even")
)

// StillDecoder turns one compressed still image into interleaved RGB
// bytes of length width*height*3. Used for the MJPEG path only.
type StillDecoder interface {
	Decode(data []byte) ([]byte, error)
}

// Decoder converts raw frames in their declared encoding to I420.
// It is stateless apart from the still-image collaborator and safe
// for use from a single pipeline goroutine.
type Decoder struct {
	still StillDecoder
}

// New creates a Decoder. still may be nil if MJPEG input is never
// expected; MJPEG frames are then dropped as decode failures.
func New(still StillDecoder) *Decoder {
	return &Decoder{still: still}
}

// Decode converts one raw frame to a planar frame.
//
// A nil frame with a nil error means the declared encoding is not
// recognized and the frame was skipped on purpose. Any non-nil error
// is a per-frame condition; the caller drops the frame and continues.
func (d *Decoder) Decode(raw *types.RawFrame) (*types.PlanarFrame, error) {
	w, h := raw.Width, raw.Height
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrOddDimensions, w, h)
	}

	switch raw.Format {
	case types.FormatYUYV:
		return yuyvToPlanar(raw.Data, w, h)
	case types.FormatMJPEG:
		return d.mjpegToPlanar(raw.Data, w, h)
	default:
		// Unsupported encoding: skip, not a failure.
		return nil, nil
	}
}

// yuyvToPlanar unpacks packed YUYV 4:2:2 into I420. Every 4 source
// bytes hold two luma samples and one shared chroma pair per scanline.
// Luma is copied verbatim; chroma is averaged across each pair of
// scanlines with truncating integer division.
func yuyvToPlanar(src []byte, w, h int) (*types.PlanarFrame, error) {
	if len(src) < w*h*2 {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrInsufficientSize, len(src), w*h*2)
	}

	frame := types.NewPlanarFrame(w, h)

	for j := 0; j < h; j += 2 {
		row0 := j * w * 2
		row1 := (j + 1) * w * 2
		for i := 0; i < w; i += 2 {
			idx0 := row0 + i*2
			idx1 := row1 + i*2

			y00, u0, y01, v0 := src[idx0], src[idx0+1], src[idx0+2], src[idx0+3]
			y10, u1, y11, v1 := src[idx1], src[idx1+1], src[idx1+2], src[idx1+3]

			frame.Y[j*w+i] = y00
			frame.Y[j*w+i+1] = y01
			frame.Y[(j+1)*w+i] = y10
			frame.Y[(j+1)*w+i+1] = y11

			uvi := (j/2)*(w/2) + i/2
			frame.U[uvi] = byte((uint16(u0) + uint16(u1)) / 2)
			frame.V[uvi] = byte((uint16(v0) + uint16(v1)) / 2)
		}
	}

	return frame, nil
}

// mjpegToPlanar decodes one JPEG image to RGB via the still-image
// collaborator, then converts to I420 with BT.601 studio-swing
// coefficients. Chroma is the truncating mean of the four per-pixel
// values inside each 2x2 block.
func (d *Decoder) mjpegToPlanar(data []byte, w, h int) (*types.PlanarFrame, error) {
	if d.still == nil {
		return nil, fmt.Errorf("%w: no still-image decoder configured", ErrDecodeFailed)
	}

	rgb, err := d.still.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(rgb) != w*h*3 {
		return nil, fmt.Errorf("%w: decoder returned %d bytes, want %d", ErrDecodeFailed, len(rgb), w*h*3)
	}

	frame := types.NewPlanarFrame(w, h)

	for j := 0; j < h; j += 2 {
		for i := 0; i < w; i += 2 {
			var uAcc, vAcc int
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					x, y := i+dx, j+dy
					idx := (y*w + x) * 3
					r := float64(rgb[idx])
					g := float64(rgb[idx+1])
					b := float64(rgb[idx+2])

					yVal := int(math.Round(0.257*r + 0.504*g + 0.098*b + 16))
					frame.Y[y*w+x] = clamp255(yVal)

					uAcc += int(math.Round(-0.148*r - 0.291*g + 0.439*b + 128))
					vAcc += int(math.Round(0.439*r - 0.368*g - 0.071*b + 128))
				}
			}
			uvi := (j/2)*(w/2) + i/2
			frame.U[uvi] = clamp255(uAcc / 4)
			frame.V[uvi] = clamp255(vAcc / 4)
		}
	}

	return frame, nil
}

func clamp255(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
