package store

import (
	"fmt"
	"io"
)

// Backend names accepted by OpenKV.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenKV opens the named KV backend. The returned Closer releases it and is
// never nil.
func OpenKV(backend, dataDir, sqlitePath string) (KV, io.Closer, error) {
	switch backend {
	case BackendFile, "":
		return NewFileKV(dataDir), nopCloser{}, nil
	case BackendSQLite:
		kv, err := NewSQLiteKV(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv, nil
	case BackendMemory:
		return NewMemKV(), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
}
