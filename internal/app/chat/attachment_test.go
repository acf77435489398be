package chat

import (
	"testing"

	"chatrelay/internal/pkg/errs"
)

func TestValidateFileSize(t *testing.T) {
	t.Parallel()

	if err := ValidateFileSize(1024); err != nil {
		t.Fatalf("valid size rejected: %v", err)
	}
	if err := ValidateFileSize(MaxAttachmentSize); err != nil {
		t.Fatalf("size at the limit rejected: %v", err)
	}
	if err := ValidateFileSize(0); err == nil || err.Code != errs.ErrInvalidParams {
		t.Fatalf("zero size must be invalid, got %v", err)
	}
	if err := ValidateFileSize(MaxAttachmentSize + 1); err == nil || err.Code != errs.ErrRequestEntityTooLarge {
		t.Fatalf("oversized file must be rejected, got %v", err)
	}
}

func TestValidateFileType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		mimeType string
		ok       bool
	}{
		{"png", "cat.png", "image/png", true},
		{"jpeg alias", "cat.jpg", "image/jpeg", true},
		{"case insensitive mime", "cat.png", "IMAGE/PNG", true},
		{"audio", "note.mp3", "audio/mpeg", true},
		{"pdf", "doc.pdf", "application/pdf", true},
		{"disallowed mime", "run.exe", "application/x-msdownload", false},
		{"extension mismatch", "cat.png", "image/jpeg", false},
		{"missing extension", "catpng", "image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileType(tt.fileName, tt.mimeType)
			if tt.ok && err != nil {
				t.Fatalf("expected accept, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}
