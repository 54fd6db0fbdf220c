package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDeviceReplaysInChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.raw")
	require.NoError(t, os.WriteFile(path, []byte("abcdefghij"), 0o644))

	d := &FileDevice{Path: path, ChunkSize: 4}
	stream, err := d.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	var got []byte
	for i := 0; i < 3; i++ {
		select {
		case chunk := <-stream.Chunks():
			got = append(got, chunk...)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for chunk")
		}
	}
	assert.Equal(t, "abcdefghij", string(got))

	// Exhausted file keeps the stream open until Close.
	select {
	case chunk, ok := <-stream.Chunks():
		t.Fatalf("unexpected read after exhaustion: %q ok=%v", chunk, ok)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, stream.Close())
	select {
	case _, ok := <-stream.Chunks():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
}

func TestFileDeviceMissingFile(t *testing.T) {
	d := &FileDevice{Path: filepath.Join(t.TempDir(), "nope.raw")}
	_, err := d.Open(context.Background())
	assert.Error(t, err)
}

func TestToneDeviceEmitsChunks(t *testing.T) {
	d := &ToneDevice{ChunkSize: 8, Interval: 5 * time.Millisecond}
	stream, err := d.Open(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		select {
		case chunk := <-stream.Chunks():
			require.Len(t, chunk, 8)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for chunk")
		}
	}

	require.NoError(t, stream.Close())
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream.Chunks():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close")
		}
	}
}

func TestToneDeviceStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &ToneDevice{ChunkSize: 4, Interval: 5 * time.Millisecond}
	stream, err := d.Open(ctx)
	require.NoError(t, err)

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream.Chunks():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not drain after cancel")
		}
	}
}
