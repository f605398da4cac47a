package blobval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// DirStore is a content-addressed Store writing each payload as one
// file in a directory, named by the hex form of its digest. The
// returned reference is the full digest string ("sha256:…"), so
// references are stable, deduplicating and self-verifying.
type DirStore struct {
	dir string
}

// Interface compliance.
var _ Store = (*DirStore)(nil)

// NewDirStore creates a DirStore rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobval: create store directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Put stores data under its content digest. Re-storing identical
// payloads is a no-op.
func (s *DirStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d := digest.FromBytes(data)
	path := filepath.Join(s.dir, d.Encoded())
	if _, err := os.Stat(path); err == nil {
		return d.String(), nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("blobval: write payload: %w", err)
	}
	return d.String(), nil
}

// Get retrieves a payload and verifies it still matches its digest.
func (s *DirStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := digest.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("blobval: invalid reference %q: %w", ref, err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, d.Encoded()))
	if err != nil {
		return nil, fmt.Errorf("blobval: read payload: %w", err)
	}
	if got := digest.FromBytes(data); got != d {
		return nil, fmt.Errorf("blobval: payload %q failed digest verification", ref)
	}
	return data, nil
}
