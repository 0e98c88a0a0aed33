package license

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// KeySource yields the current license key.
type KeySource interface {
	Key(ctx context.Context) (string, error)
}

// StaticKey is a key supplied directly.
type StaticKey string

func (k StaticKey) Key(context.Context) (string, error) {
	return strings.TrimSpace(string(k)), nil
}

// FileKey reads the key from a file on every check so edits are picked up
// without a restart. A missing file means no key.
type FileKey struct {
	Path string
}

func (f FileKey) Key(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read license key file %s: %w", f.Path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// NewKeySource prefers a literal key over a key file.
func NewKeySource(key, path string) KeySource {
	if strings.TrimSpace(key) != "" || strings.TrimSpace(path) == "" {
		return StaticKey(key)
	}
	return FileKey{Path: path}
}
