package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps files under a base directory.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{BaseDir: baseDir}, nil
}

func (s *LocalStore) fullPath(key string) (string, string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(s.BaseDir, filepath.FromSlash(cleaned)), nil
}

func (s *LocalStore) Save(ctx context.Context, key string, body io.Reader) (string, error) {
	cleaned, fullPath, err := s.fullPath(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file content: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return cleaned, nil
}

func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return payload, nil
}

func (s *LocalStore) Size(ctx context.Context, key string) (int64, error) {
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return info.Size(), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	_, fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
