package media

import (
	"context"
	"os"
	"time"
)

// FileDevice replays an audio file as the capture stream. It stands in
// for a real microphone in the CLI and in development setups.
type FileDevice struct {
	Path      string
	ChunkSize int
}

type fileStream struct {
	ch   chan []byte
	done chan struct{}
}

func (s *fileStream) Chunks() <-chan []byte { return s.ch }

func (s *fileStream) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// ToneDevice synthesizes a steady sawtooth, a microphone stand-in when
// no sample file is at hand. It emits one chunk per Interval until the
// stream is closed.
type ToneDevice struct {
	ChunkSize int
	Interval  time.Duration
}

func (d *ToneDevice) Open(ctx context.Context) (Stream, error) {
	size := d.ChunkSize
	if size <= 0 {
		size = 4096
	}
	interval := d.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	chunk := make([]byte, size)
	for i := range chunk {
		chunk[i] = byte(i % 64)
	}

	s := &fileStream{
		ch:   make(chan []byte),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case s.ch <- chunk:
				case <-s.done:
					return
				case <-ctx.Done():
					return
				}
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return s, nil
}

// Open reads the file and emits it in chunks until Close.
func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return nil, err
	}
	size := d.ChunkSize
	if size <= 0 {
		size = 4096
	}

	s := &fileStream{
		ch:   make(chan []byte),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.ch)
		for off := 0; off < len(data); off += size {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			select {
			case s.ch <- data[off:end]:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		// File exhausted; hold the stream open until Close so the
		// recorder, not the device, decides when capture ends.
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}()

	return s, nil
}
