// Package media captures audio from a device into an in-memory clip.
// The recorder is the only part of the client core with background
// re-entries (the elapsed tick and the chunk collector), so it guards
// its own state; everything acquired by Start is released on every
// exit path: Stop, Cancel, and Close.
package media

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/logger"
)

var log = logger.New("media")

var (
	// ErrBusy means Start was called while a recording is active.
	ErrBusy = errors.New("recording already in progress")
	// ErrNotRecording means Stop or Cancel found no active recording.
	ErrNotRecording = errors.New("no recording in progress")
)

// Stream delivers captured audio chunks. Close stops capture and must
// close the chunk channel; the recorder drains it before finalizing.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Device opens a capture stream, the getUserMedia analog. Open fails
// with the device's own error when permission is denied; the recorder
// wraps it into a MediaAccessError.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Clip is a finished recording.
type Clip struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}

// Recorder buffers chunks from a capture stream and counts elapsed
// seconds at 1 Hz. Only one recording may be active at a time.
type Recorder struct {
	device   Device
	interval time.Duration
	onTick   func(seconds int)

	mu        sync.Mutex
	recording bool
	chunks    [][]byte
	elapsed   int
	startedAt time.Time
	stream    Stream
	ticker    *time.Ticker
	wg        sync.WaitGroup
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTickInterval overrides the 1s elapsed tick, for tests.
func WithTickInterval(d time.Duration) Option {
	return func(r *Recorder) { r.interval = d }
}

// WithTickFunc registers a callback invoked once per elapsed tick.
func WithTickFunc(fn func(seconds int)) Option {
	return func(r *Recorder) { r.onTick = fn }
}

// NewRecorder creates an idle recorder over the given device.
func NewRecorder(device Device, opts ...Option) *Recorder {
	r := &Recorder{device: device, interval: time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recording reports whether a capture is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Elapsed returns the seconds counted so far.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Start opens the capture stream and begins buffering. Starting while
// a recording is active fails with ErrBusy and leaves it untouched.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrBusy
	}

	stream, err := r.device.Open(ctx)
	if err != nil {
		return &errs.MediaAccessError{Err: err}
	}

	r.recording = true
	r.chunks = nil
	r.elapsed = 0
	r.startedAt = time.Now()
	r.stream = stream
	r.ticker = time.NewTicker(r.interval)

	r.wg.Add(1)
	go r.collect(stream, r.ticker.C)

	log.Debug("recording started")
	return nil
}

// collect runs until the stream's chunk channel closes.
func (r *Recorder) collect(stream Stream, ticks <-chan time.Time) {
	defer r.wg.Done()
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return
			}
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		case <-ticks:
			r.mu.Lock()
			r.elapsed++
			n, fn := r.elapsed, r.onTick
			r.mu.Unlock()
			if fn != nil {
				fn(n)
			}
		}
	}
}

// release tears down the ticker and stream and waits for the collector
// to drain. Callers must hold no lock.
func (r *Recorder) release() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	ticker, stream := r.ticker, r.stream
	r.ticker, r.stream = nil, nil
	r.mu.Unlock()

	ticker.Stop()
	if err := stream.Close(); err != nil {
		log.Warn("closing capture stream: %v", err)
	}
	r.wg.Wait()
}

// Stop finalizes the buffered chunks into a single clip.
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	started := r.startedAt
	r.mu.Unlock()

	r.release()

	r.mu.Lock()
	data := bytes.Join(r.chunks, nil)
	r.chunks = nil
	r.elapsed = 0
	r.mu.Unlock()

	log.Debug("recording stopped, %d bytes", len(data))
	return &Clip{
		Data:     data,
		MIME:     "audio/ogg",
		Duration: time.Since(started),
	}, nil
}

// Cancel discards the buffered chunks and resets the counter without
// producing a clip.
func (r *Recorder) Cancel() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	r.mu.Unlock()

	r.release()

	r.mu.Lock()
	r.chunks = nil
	r.elapsed = 0
	r.mu.Unlock()

	log.Debug("recording cancelled")
	return nil
}

// Close releases any active capture. Safe to call on an idle recorder;
// meant for component teardown mid-recording.
func (r *Recorder) Close() {
	r.release()
	r.mu.Lock()
	r.chunks = nil
	r.elapsed = 0
	r.mu.Unlock()
}
