package types

import (
	"strings"
	"time"
)

// PixelFormat identifies the source encoding a capture device declared
// for a raw frame.
type PixelFormat int

const (
	FormatYUYV PixelFormat = iota
	FormatMJPEG
	FormatOther
)

// ParsePixelFormat maps a FourCC-style tag to a PixelFormat. Anything
// unrecognized is FormatOther, which the decoder skips without error.
func ParsePixelFormat(tag string) PixelFormat {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "YUYV":
		return FormatYUYV
	case "MJPG", "MJPEG":
		return FormatMJPEG
	default:
		return FormatOther
	}
}

// String returns the FourCC tag for the format.
func (f PixelFormat) String() string {
	switch f {
	case FormatYUYV:
		return "YUYV"
	case FormatMJPEG:
		return "MJPG"
	default:
		return "OTHER"
	}
}

// RawFrame is one frame as pulled from the capture source: an encoded
// byte buffer with the dimensions and encoding the device declared.
// It is owned for a single pipeline cycle and discarded after decode.
type RawFrame struct {
	Data   []byte
	Width  int
	Height int
	Format PixelFormat
}

// PlanarFrame is a normalized I420 frame: full-resolution luma plane
// plus U and V chroma planes subsampled by two on each axis.
//
// Y has length Width*Height, U and V each (Width/2)*(Height/2).
// Width and Height are always even. A PlanarFrame is transferred to
// the sink on dispatch and never touched again by the pipeline.
type PlanarFrame struct {
	Y         []byte
	U         []byte
	V         []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// NewPlanarFrame allocates zeroed planes for the given even dimensions.
func NewPlanarFrame(width, height int) *PlanarFrame {
	return &PlanarFrame{
		Y:      make([]byte, width*height),
		U:      make([]byte, (width/2)*(height/2)),
		V:      make([]byte, (width/2)*(height/2)),
		Width:  width,
		Height: height,
	}
}
