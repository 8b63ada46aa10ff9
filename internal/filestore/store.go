// Package filestore holds uploaded import files on local disk or S3-compatible storage.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("file not found")

// Store saves uploads and hands them back to import workers.
type Store interface {
	// Save writes body under key and returns the path to pass to Download.
	Save(ctx context.Context, key string, body io.Reader) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	// Size reports the stored byte length without reading the object.
	Size(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// cleanKey normalizes a key to a relative slash path and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", errors.New("file key is required")
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || strings.Contains(key, "../") || strings.HasSuffix(key, "/..") || key == ".." {
		return "", fmt.Errorf("invalid file key %q", key)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

func hasExt(key string, ext string) bool {
	return strings.EqualFold(path.Ext(key), ext)
}
