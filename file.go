package littleexport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// atomicFile writes through a temp file in the target directory and
// renames into place on Commit. Abort discards the temp file, which is
// how a failed export avoids leaving a partial archive behind.
type atomicFile struct {
	*os.File
	target string
	done   bool
}

func newAtomicFile(target string) (*atomicFile, error) {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("littleexport: create temp file: %w", err)
	}
	return &atomicFile{File: f, target: target}, nil
}

// Commit flushes, closes and renames the temp file over the target.
func (af *atomicFile) Commit() error {
	if af.done {
		return nil
	}
	af.done = true
	if err := af.File.Sync(); err != nil {
		af.discard()
		return err
	}
	if err := af.File.Close(); err != nil {
		os.Remove(af.File.Name())
		return err
	}
	return os.Rename(af.File.Name(), af.target)
}

// Abort implements Aborter: the temp file is removed and the target is
// untouched.
func (af *atomicFile) Abort() error {
	if af.done {
		return nil
	}
	af.done = true
	return af.discard()
}

func (af *atomicFile) discard() error {
	af.File.Close()
	return os.Remove(af.File.Name())
}

// ExportFile archives the sources to path. The archive is written to a
// temp file and renamed into place only on success, so path never holds
// a partial archive.
func ExportFile(ctx context.Context, path string, sources []Source, opts ...ExportOption) error {
	af, err := newAtomicFile(path)
	if err != nil {
		return err
	}
	if err := Export(ctx, af, sources, opts...); err != nil {
		// Export already invoked Abort through the Aborter interface.
		return err
	}
	return af.Commit()
}

// ImportFile restores state from the archive at path.
func ImportFile(ctx context.Context, path string, consumers []Consumer, opts ...ImportOption) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("littleexport: open archive: %w", err)
	}
	defer f.Close()
	return Import(ctx, f, consumers, opts...)
}

// InspectFile describes the archive at path without restoring it.
func InspectFile(ctx context.Context, path string, opts ...ImportOption) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("littleexport: open archive: %w", err)
	}
	defer f.Close()
	return Inspect(ctx, f, opts...)
}
