// Package pipeline drives the pull-decode-overlay-dispatch cycle at a
// fixed cadence. One cycle runs per tick; per-frame failures are
// counted and dropped so the loop survives any bad frame.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/camfeed/camfeed/internal/decode"
	"github.com/camfeed/camfeed/internal/logger"
	"github.com/camfeed/camfeed/internal/metrics"
	"github.com/camfeed/camfeed/internal/overlay"
	"github.com/camfeed/camfeed/pkg/types"
)

// ErrPullTimeout distinguishes a pull that timed out waiting for the
// device from a genuine I/O failure. Both skip the cycle; they are
// counted separately.
var ErrPullTimeout = errors.New("timed out waiting for frame")

// Source supplies raw frames. PullFrame performs a single
// timeout-bounded pull; the scheduler never retries within a cycle.
// A timeout is reported as an error wrapping ErrPullTimeout.
type Source interface {
	PullFrame() (*types.RawFrame, error)
}

// Sink receives normalized frames. Submit is fire-and-forget: the
// scheduler does not consult any outcome, and implementations must
// not block the calling goroutine.
type Sink interface {
	Submit(frame *types.PlanarFrame, timestampUS int64)
}

// FanOut bundles several sinks behind one Submit call.
func FanOut(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Submit(frame *types.PlanarFrame, timestampUS int64) {
	for _, s := range m {
		s.Submit(frame, timestampUS)
	}
}

// timestampLayout renders wall-clock time with millisecond precision
// for the burned-in overlay.
const timestampLayout = "15:04:05.000"

// Options configures a Scheduler.
type Options struct {
	Source  Source
	Decoder *decode.Decoder
	Sink    Sink
	Metrics *metrics.Metrics

	// FPS is the tick rate. Values below 1 are treated as 1.
	FPS int

	// Overlay placement for the burned-in timestamp.
	Position Position
	Scale    int

	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// Position aliases the overlay corner type so callers wiring a
// scheduler do not need to import the overlay package.
type Position = overlay.Position

// Scheduler owns the cadence loop. Construct with New, then call Run
// on its own goroutine; all collaborators are fixed at construction
// and treated as read-only afterwards.
type Scheduler struct {
	source  Source
	decoder *decode.Decoder
	sink    Sink
	metrics *metrics.Metrics
	fps     int
	pos     Position
	scale   int
	now     func() time.Time
}

// New creates a Scheduler from options.
func New(opts Options) *Scheduler {
	fps := opts.FPS
	if fps < 1 {
		fps = 1
	}
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		source:  opts.Source,
		decoder: opts.Decoder,
		sink:    opts.Sink,
		metrics: opts.Metrics,
		fps:     fps,
		pos:     opts.Position,
		scale:   scale,
		now:     now,
	}
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return time.Second / time.Duration(s.fps)
}

// Run executes the two-phase loop until ctx is cancelled. Each tick
// performs exactly one pull-decode-overlay-dispatch cycle; a failed
// pull or decode skips the rest of the cycle and waits for the next
// tick.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("Scheduler", "Starting cadence loop at %d fps (interval %v)", s.fps, s.Interval())

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler", "Cadence loop stopped")
			return
		case <-ticker.C:
		}

		s.Cycle()

		// Missed-tick policy is "delay": a tick that accumulated while
		// the cycle overran is discarded, so the next cycle starts on a
		// later boundary and ticks never fire back-to-back.
		select {
		case <-ticker.C:
		default:
		}
	}
}

// Cycle performs one pull-decode-overlay-dispatch pass. Exposed so
// tests can step the pipeline without the timer.
func (s *Scheduler) Cycle() {
	cycleStart := s.now()

	raw, err := s.source.PullFrame()
	if err != nil {
		if errors.Is(err, ErrPullTimeout) {
			s.metrics.PullTimeouts.Add(1)
		} else {
			s.metrics.PullErrors.Add(1)
		}
		logger.Debug("Scheduler", "Pull failed, skipping cycle: %v", err)
		return
	}
	s.metrics.FramesPulled.Add(1)

	decodeStart := s.now()
	frame, err := s.decoder.Decode(raw)
	if err != nil {
		s.metrics.DecodeErrors.Add(1)
		logger.Debug("Scheduler", "Decode failed, dropping frame: %v", err)
		return
	}
	if frame == nil {
		// Declared encoding not recognized: deliberate skip.
		s.metrics.UnsupportedFrames.Add(1)
		return
	}
	s.metrics.FramesDecoded.Add(1)

	now := s.now()
	overlay.Draw(frame, now.Format(timestampLayout), s.pos, s.scale)
	frame.Timestamp = now
	s.metrics.UpdateDecodeLatency(now.Sub(decodeStart))

	s.sink.Submit(frame, now.UnixMicro())
	s.metrics.FramesDispatched.Add(1)
	s.metrics.UpdateCycleLatency(s.now().Sub(cycleStart))
}
