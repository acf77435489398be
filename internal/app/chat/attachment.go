package chat

import (
	"path/filepath"
	"strings"
	"time"

	"chatrelay/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the maximum allowed file size in megabytes.
	MaxAttachmentSizeMB = 10

	// MaxAttachmentSize is the maximum allowed file size in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// PresignedURLDuration is the fixed duration for which a download URL is valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes defines the set of permitted MIME types for file attachments.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"audio/mpeg":      {},
	"audio/ogg":       {},
	"audio/webm":      {},
	"application/pdf": {},
	"text/plain":      {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".weba": "audio/webm",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrRequestEntityTooLarge)
	}

	return nil
}

// ValidateFileType checks if the provided file name and MIME type are allowed.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) < 2 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}
