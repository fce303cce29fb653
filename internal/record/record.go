// Package record writes normalized frames to Y4M files. Y4M keeps the
// planar layout byte-for-byte, so recordings replay exactly what was
// dispatched downstream.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/camfeed/camfeed/internal/logger"
	"github.com/camfeed/camfeed/internal/metrics"
	"github.com/camfeed/camfeed/pkg/types"
)

const frameQueueDepth = 60 // roughly three seconds at the default rate

// Recorder records planar frames to a Y4M file. It implements the
// pipeline sink contract: Submit never blocks, and frames that arrive
// faster than the disk drains them are dropped.
type Recorder struct {
	mu           sync.RWMutex
	file         *os.File
	filename     string
	basePath     string
	width        int
	height       int
	fps          int
	recording    bool
	frameCount   uint64
	bytesWritten uint64
	startTime    time.Time
	frameChan    chan *types.PlanarFrame
	wg           sync.WaitGroup
	metrics      *metrics.Metrics
}

// NewRecorder creates a recorder for frames of the given geometry.
func NewRecorder(basePath string, width, height, fps int, m *metrics.Metrics) *Recorder {
	return &Recorder{
		basePath:  basePath,
		width:     width,
		height:    height,
		fps:       fps,
		frameChan: make(chan *types.PlanarFrame, frameQueueDepth),
		metrics:   m,
	}
}

// Start opens a new timestamped Y4M file and begins draining frames.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("already recording")
	}

	name := fmt.Sprintf("recording_%s.y4m", time.Now().Format("20060102_150405"))
	path := filepath.Join(r.basePath, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	header := y4mHeader(r.width, r.height, r.fps)
	n, err := file.WriteString(header)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}

	r.file = file
	r.filename = name
	r.recording = true
	r.frameCount = 0
	r.bytesWritten = uint64(n)
	r.startTime = time.Now()

	if r.metrics != nil {
		r.metrics.RecordingActive.Store(1)
	}

	r.wg.Add(1)
	go r.writeFrames()

	logger.Info("Recorder", "Recording %dx%d@%d to %s", r.width, r.height, r.fps, name)
	return nil
}

// Stop finishes the current recording and closes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	r.recording = false
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordingActive.Store(0)
	}

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		if err := r.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync file: %w", err)
		}
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
		r.file = nil
	}
	return nil
}

// Submit queues one frame for writing. Not recording or a full queue
// both mean the frame is skipped; the pipeline is never held up.
// Implements the pipeline sink contract.
func (r *Recorder) Submit(frame *types.PlanarFrame, _ int64) {
	r.mu.RLock()
	recording := r.recording
	r.mu.RUnlock()
	if !recording {
		return
	}

	// Y4M streams cannot change geometry mid-file.
	if frame.Width != r.width || frame.Height != r.height {
		return
	}

	select {
	case r.frameChan <- frame:
		if r.metrics != nil {
			r.metrics.RecorderFramesSent.Add(1)
		}
	default:
		if r.metrics != nil {
			r.metrics.RecorderFramesDropped.Add(1)
		}
	}
}

func (r *Recorder) writeFrames() {
	defer r.wg.Done()

	for {
		r.mu.RLock()
		recording := r.recording
		r.mu.RUnlock()

		if !recording {
			for len(r.frameChan) > 0 {
				r.writeFrame(<-r.frameChan)
			}
			return
		}

		select {
		case frame := <-r.frameChan:
			r.writeFrame(frame)
		case <-time.After(100 * time.Millisecond):
			// Check recording state periodically
		}
	}
}

func (r *Recorder) writeFrame(frame *types.PlanarFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return
	}

	total := 0
	for _, chunk := range [][]byte{[]byte("FRAME\n"), frame.Y, frame.U, frame.V} {
		n, err := r.file.Write(chunk)
		total += n
		if err != nil {
			logger.Warn("Recorder", "Write failed, frame truncated: %v", err)
			break
		}
	}

	r.bytesWritten += uint64(total)
	r.frameCount++

	if r.metrics != nil {
		r.metrics.RecordingBytes.Store(r.bytesWritten)
		r.metrics.RecordingFrames.Store(r.frameCount)
	}
}

// IsRecording returns true if currently recording.
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Status holds a snapshot of the recorder state.
type Status struct {
	Recording    bool          `json:"recording"`
	Filename     string        `json:"filename"`
	FrameCount   uint64        `json:"frame_count"`
	BytesWritten uint64        `json:"bytes_written"`
	Duration     time.Duration `json:"duration_ms"`
	StartTime    time.Time     `json:"start_time"`
}

// GetStatus returns the current recording status.
func (r *Recorder) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}
	return Status{
		Recording:    r.recording,
		Filename:     r.filename,
		FrameCount:   r.frameCount,
		BytesWritten: r.bytesWritten,
		Duration:     duration,
		StartTime:    r.startTime,
	}
}

// Close stops any active recording.
func (r *Recorder) Close() error {
	if r.IsRecording() {
		return r.Stop()
	}
	return nil
}

// y4mHeader renders the stream header. C420jpeg matches the centered
// chroma siting produced by block-averaged subsampling.
func y4mHeader(width, height, fps int) string {
	return fmt.Sprintf("YUV4MPEG2 W%d H%d F%d:1 Ip A1:1 C420jpeg\n", width, height, fps)
}
