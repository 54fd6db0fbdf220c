// Package upload enforces the file constraints shared by every
// file-accepting path: avatar changes, chat attachments, and finished
// voice recordings all go through the same checks.
package upload

import (
	"path/filepath"
	"strings"

	"github.com/lfarias/mensageiro/internal/errs"
	"github.com/lfarias/mensageiro/internal/models"
)

// MaxFileSize is the upload cap applied at the point of upload.
const MaxFileSize = 1 << 20 // 1 MiB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// Classify decides whether a file renders inline as an image or as a
// file-download row. Audio never comes through here; it is produced by
// the recorder.
func Classify(name, contentType string) models.AttachmentKind {
	if strings.HasPrefix(contentType, "image/") {
		return models.AttachmentImage
	}
	if imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return models.AttachmentImage
	}
	return models.AttachmentDocument
}

// Check validates a file before anything is uploaded or appended to
// local state, returning its kind. Violations come back as
// ValidationError with a user-facing reason.
func Check(name, contentType string, size int64) (models.AttachmentKind, error) {
	if strings.TrimSpace(name) == "" {
		return "", errs.Validation("file name is required")
	}
	if size <= 0 {
		return "", errs.Validation("file is empty")
	}
	if size > MaxFileSize {
		return "", errs.Validation("file exceeds the 1 MiB limit")
	}
	kind := Classify(name, contentType)
	if kind == models.AttachmentImage && !allowedImageTypes[contentType] {
		return "", errs.Validation("only JPEG and PNG images are supported")
	}
	return kind, nil
}

// CheckAudio applies the size cap to a finished recording.
func CheckAudio(size int64) error {
	if size <= 0 {
		return errs.Validation("recording is empty")
	}
	if size > MaxFileSize {
		return errs.Validation("recording exceeds the 1 MiB limit")
	}
	return nil
}
