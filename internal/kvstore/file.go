package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

var _ compliance.KVStore = (*File)(nil)

var errCorruptDocument = errors.New("decode compliance store")

const (
	fileDirPerm  = 0o700
	fileFilePerm = 0o600

	// FileName is the default document name inside the data directory.
	FileName = "compliance.json"
)

// File persists durable values in a single JSON document. Writes go through a temp
// file and rename so a crash never leaves a torn document. Non-durable values are
// held in memory only.
type File struct {
	path string

	mu        sync.RWMutex
	transient map[string]string
}

// NewFile returns a store backed by path. The file is created on first write.
func NewFile(path string) (*File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	return &File{
		path:      filepath.Clean(path),
		transient: make(map[string]string),
	}, nil
}

// Path returns the backing document path.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if v, ok := f.transient[key]; ok {
		return v, true, nil
	}
	doc, err := f.loadLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key, value string, durable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !durable {
		f.transient[key] = value
		return nil
	}
	delete(f.transient, key)

	doc, err := f.loadForWriteLocked()
	if err != nil {
		return err
	}
	doc[key] = value
	return f.saveLocked(doc)
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.transient, key)
	doc, err := f.loadForWriteLocked()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.saveLocked(doc)
}

func (f *File) Close() error { return nil }

// loadForWriteLocked is loadLocked for the write paths. A document that no
// longer decodes is moved to path+".corrupt" and replaced with an empty one, so
// the store recovers on the next write instead of failing forever.
func (f *File) loadForWriteLocked() (map[string]string, error) {
	doc, err := f.loadLocked()
	if !errors.Is(err, errCorruptDocument) {
		return doc, err
	}

	corruptPath := f.path + ".corrupt"
	if renameErr := os.Rename(f.path, corruptPath); renameErr != nil {
		return nil, fmt.Errorf("move aside corrupt compliance store: %w", renameErr)
	}
	log.Warn().
		Err(err).
		Str("path", f.path).
		Str("moved_to", corruptPath).
		Msg("Compliance store was corrupt; starting from an empty document")
	return map[string]string{}, nil
}

func (f *File) loadLocked() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read compliance store %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", errCorruptDocument, f.path, err)
	}
	if doc == nil {
		doc = map[string]string{}
	}
	return doc, nil
}

func (f *File) saveLocked(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode compliance store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), fileDirPerm); err != nil {
		return fmt.Errorf("create compliance store directory: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, fileFilePerm); err != nil {
		return fmt.Errorf("write temp compliance store: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit compliance store: %w", err)
	}
	return nil
}
