// Package kvstore provides the key-value backends the compliance state store
// persists through.
package kvstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store is a compliance.KVStore that owns resources.
type Store interface {
	compliance.KVStore
	io.Closer
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	DataDir  string
	RedisURL string
}

// Open constructs the configured backend. Redis connectivity is verified up front.
func Open(ctx context.Context, opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendSQLite:
		return NewSQLite(opts.DataDir)
	case BackendFile:
		if strings.TrimSpace(opts.DataDir) == "" {
			return nil, fmt.Errorf("dir is required")
		}
		return NewFile(filepath.Join(opts.DataDir, FileName))
	case BackendRedis:
		if strings.TrimSpace(opts.RedisURL) == "" {
			return nil, fmt.Errorf("redis backend requires a URL")
		}
		store, err := NewRedis(opts.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return store, nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
