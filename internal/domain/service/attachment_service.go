package service

import (
	"context"
	"io"

	"clubportal/internal/domain/entity"
)

// AttachmentUploader stores one file blob and resolves a stable URL for it.
// A multi-recipient compose uploads once and reuses the attachment across
// every fanned-out message record.
type AttachmentUploader interface {
	Upload(ctx context.Context, file io.Reader, fileName, contentType string) (*entity.Attachment, error)
	SignedDownloadURL(ctx context.Context, fileURL string) (string, error)
	Close() error
}
