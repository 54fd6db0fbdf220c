package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/media"
	"github.com/lfarias/mensageiro/internal/models"
	"github.com/lfarias/mensageiro/internal/upload"
)

// StartRecording opens the capture device. Starting while a recording
// is active fails with media.ErrBusy.
func (e *Engine) StartRecording(ctx context.Context) error {
	if e.recorder == nil {
		return &errs.MediaAccessError{Err: fmt.Errorf("no capture device configured")}
	}
	if _, err := e.requireActive(); err != nil {
		return err
	}
	return e.recorder.Start(ctx)
}

// StopRecording finalizes the capture into a voice message and appends
// it to the active sequence.
func (e *Engine) StopRecording(ctx context.Context) (*models.Message, error) {
	if e.recorder == nil {
		return nil, media.ErrNotRecording
	}
	active, err := e.requireActive()
	if err != nil {
		// Release the device even when the conversation vanished
		// mid-recording.
		e.recorder.Cancel()
		return nil, err
	}

	clip, err := e.recorder.Stop()
	if err != nil {
		return nil, err
	}
	if err := upload.CheckAudio(int64(len(clip.Data))); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("voice-%d.ogg", time.Now().UnixMilli())
	url, err := e.store(ctx, active.ID, name, clip.MIME, clip.Data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := e.append(models.Message{
		Sender: models.SenderSelf,
		SentAt: now,
		Attachment: &models.Attachment{
			Kind: models.AttachmentAudio,
			URL:  url,
			Name: name,
		},
	})
	e.updatePreview(active, "Voice message", now)
	e.commit(Mutation{Op: OpAttach, ContactID: active.ID, Message: msg})
	return msg, nil
}

// CancelRecording discards the capture without appending a message.
func (e *Engine) CancelRecording() error {
	if e.recorder == nil {
		return media.ErrNotRecording
	}
	return e.recorder.Cancel()
}

// RecordingElapsed returns the seconds recorded so far, 0 when idle.
func (e *Engine) RecordingElapsed() int {
	if e.recorder == nil {
		return 0
	}
	return e.recorder.Elapsed()
}

// Close releases any resources held by the engine, including an
// in-flight recording.
func (e *Engine) Close() {
	if e.recorder != nil {
		e.recorder.Close()
	}
}
