// Package v4l2 pulls raw frames from a Video4Linux2 capture device.
package v4l2

import (
	"fmt"

	"github.com/blackjack/webcam"

	"github.com/camfeed/camfeed/internal/logger"
	"github.com/camfeed/camfeed/internal/pipeline"
	"github.com/camfeed/camfeed/pkg/types"
)

// pullTimeout bounds a single wait for the next buffer. One timeout
// skips one pipeline cycle; the device stays open.
const pullTimeoutSec = 1

// Source streams raw frames from one capture device. Open it once at
// startup; after that it is read from a single pipeline goroutine.
type Source struct {
	cam    *webcam.Webcam
	device string
	width  int
	height int
	format types.PixelFormat
}

// Open configures the device for the requested mode and starts
// streaming. Failures here are fatal setup errors: the returned error
// means the process must not proceed.
func Open(device string, width, height, fps int, fourCC string) (*Source, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}

	code := fourCCCode(fourCC)
	f, w, h, err := cam.SetImageFormat(code, uint32(width), uint32(height))
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("set format %s %dx%d on %s: %w", fourCC, width, height, device, err)
	}
	if f != code {
		cam.Close()
		return nil, fmt.Errorf("%s does not support %s", device, fourCC)
	}
	if w != uint32(width) || h != uint32(height) {
		// The driver picked the nearest supported mode; declared
		// dimensions follow the device, not the request.
		logger.Warn("V4L2", "%s negotiated %dx%d instead of %dx%d", device, w, h, width, height)
	}

	if err := cam.SetFramerate(float32(fps)); err != nil {
		// Some drivers cannot set the rate programmatically; the
		// scheduler enforces cadence regardless.
		logger.Debug("V4L2", "Set framerate %d on %s: %v", fps, device, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, fmt.Errorf("start streaming on %s: %w", device, err)
	}

	logger.Info("V4L2", "Capturing %s %dx%d from %s", fourCC, w, h, device)

	return &Source{
		cam:    cam,
		device: device,
		width:  int(w),
		height: int(h),
		format: types.ParsePixelFormat(fourCC),
	}, nil
}

// PullFrame waits up to one timeout interval for the next buffer and
// returns it as a raw frame. The buffer is copied out of the driver's
// mmap region so the frame stays valid for the whole cycle.
func (s *Source) PullFrame() (*types.RawFrame, error) {
	err := s.cam.WaitForFrame(pullTimeoutSec)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, fmt.Errorf("%w: %s", pipeline.ErrPullTimeout, s.device)
	default:
		return nil, fmt.Errorf("wait for frame on %s: %w", s.device, err)
	}

	buf, err := s.cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame from %s: %w", s.device, err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: empty buffer from %s", pipeline.ErrPullTimeout, s.device)
	}

	data := make([]byte, len(buf))
	copy(data, buf)

	return &types.RawFrame{
		Data:   data,
		Width:  s.width,
		Height: s.height,
		Format: s.format,
	}, nil
}

// Width returns the negotiated frame width.
func (s *Source) Width() int { return s.width }

// Height returns the negotiated frame height.
func (s *Source) Height() int { return s.height }

// Close stops streaming and releases the device.
func (s *Source) Close() error {
	s.cam.StopStreaming()
	return s.cam.Close()
}

// fourCCCode packs a 4-character tag into the V4L2 pixel format code.
func fourCCCode(tag string) webcam.PixelFormat {
	b := []byte("    ")
	copy(b, tag)
	return webcam.PixelFormat(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}
