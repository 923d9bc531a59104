// Package storage keeps uploaded videos and hands back opaque references.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/editorhub/editors/pkg/config"
)

// BlobStore persists opaque blobs
type BlobStore interface {
	// Put stores r under key and returns the reference to save on the row.
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// URL returns where clients can fetch ref from.
	URL(ref string) string
}

// New creates the blob store selected in cfg
func New(ctx context.Context, cfg *config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.MediaDir)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// VideoKey builds a unique key like "edits/42/<uuid>.mp4" for an upload.
func VideoKey(kind string, projectID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s/%d/%s%s", kind, projectID, uuid.NewString(), ext)
}

// ContentType returns declared unless it is empty or generic, in which case the
// type is sniffed from r. r is rewound before returning.
func ContentType(declared string, r io.ReadSeeker) (string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return mt.String(), nil
}
