package webrtcsink

import (
	"encoding/binary"
	"fmt"

	"github.com/camfeed/camfeed/pkg/types"
)

// Wire format for one frame message: a fixed 16-byte header followed
// by the Y, U and V planes in order.
//
//	magic       uint32  "I420"
//	width       uint16
//	height      uint16
//	timestampUS int64   capture wall clock, microseconds
const (
	payloadMagic = 0x49343230 // "I420"
	headerSize   = 16
)

// marshalFrame serializes a planar frame for the data channel. The
// payload is built once per dispatch and shared read-only across
// client queues.
func marshalFrame(f *types.PlanarFrame, timestampUS int64) []byte {
	buf := make([]byte, headerSize+len(f.Y)+len(f.U)+len(f.V))
	binary.BigEndian.PutUint32(buf[0:4], payloadMagic)
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.Width))
	binary.BigEndian.PutUint16(buf[6:8], uint16(f.Height))
	binary.BigEndian.PutUint64(buf[8:16], uint64(timestampUS))

	n := copy(buf[headerSize:], f.Y)
	n += copy(buf[headerSize+n:], f.U)
	copy(buf[headerSize+n:], f.V)
	return buf
}

// parseHeader validates a frame message header and returns the frame
// geometry and capture timestamp.
func parseHeader(buf []byte) (width, height int, timestampUS int64, err error) {
	if len(buf) < headerSize {
		return 0, 0, 0, fmt.Errorf("frame message too short: %d bytes", len(buf))
	}
	if binary.BigEndian.Uint32(buf[0:4]) != payloadMagic {
		return 0, 0, 0, fmt.Errorf("bad frame magic")
	}
	width = int(binary.BigEndian.Uint16(buf[4:6]))
	height = int(binary.BigEndian.Uint16(buf[6:8]))
	timestampUS = int64(binary.BigEndian.Uint64(buf[8:16]))

	want := headerSize + width*height + 2*(width/2)*(height/2)
	if len(buf) != want {
		return 0, 0, 0, fmt.Errorf("frame message length %d, want %d for %dx%d", len(buf), want, width, height)
	}
	return width, height, timestampUS, nil
}
