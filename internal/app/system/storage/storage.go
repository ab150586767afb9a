// internal/app/system/storage/storage.go

// Package storage persists uploaded files (profile images, payment
// vouchers) on local disk under opaque generated keys.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the file storage surface handlers depend on.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Local stores files under a base directory. Keys use forward slashes and
// must not escape the base.
type Local struct {
	base string
}

func NewLocal(base string) (*Local, error) {
	if base == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir %s: %w", base, err)
	}
	return &Local{base: base}, nil
}

func (l *Local) fullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.base, clean), nil
}

func (l *Local) Put(_ context.Context, key string, r io.Reader) error {
	path, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (l *Local) Delete(_ context.Context, key string) error {
	path, err := l.fullPath(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// UploadKey generates a unique storage key: prefix/YYYY/MM/uuid8-filename.
func UploadKey(prefix, filename string) string {
	now := time.Now().UTC()
	unique := fmt.Sprintf("%s-%s", uuid.New().String()[:8], SanitizeFilename(filename))
	return fmt.Sprintf("%s/%04d/%02d/%s", prefix, now.Year(), now.Month(), unique)
}

// SanitizeFilename strips path components and replaces characters that could
// be problematic in filenames.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		// Truncate but preserve the extension if present.
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
