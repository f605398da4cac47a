package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/plasma4/littleexport"
)

// scanWorkers bounds the concurrent stat calls of the pre-scan.
const scanWorkers = 8

// treeSource archives a directory tree under the files/ area.
type treeSource struct {
	dir    string
	logger *slog.Logger

	totalFiles int
	totalBytes uint64
}

// newTreeSource pre-scans dir so progress reporting has totals to work
// against. Stats run concurrently; archive writes stay sequential.
func newTreeSource(dir string, logger *slog.Logger) (*treeSource, error) {
	s := &treeSource{dir: dir, logger: logger}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var bytes atomic.Uint64
	var g errgroup.Group
	g.SetLimit(scanWorkers)
	for _, path := range paths {
		g.Go(func() error {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			bytes.Add(uint64(info.Size()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	s.totalFiles = len(paths)
	s.totalBytes = bytes.Load()
	s.log().Info("scanned file tree", "dir", dir, "files", s.totalFiles, "bytes", s.totalBytes)
	return s, nil
}

func (s *treeSource) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

func (s *treeSource) Area() string {
	return littleexport.AreaFiles
}

// Entries walks the tree in directory order, streaming each regular
// file. Symlinks and other special files are skipped with a log line
// rather than failing the export.
func (s *treeSource) Entries(ctx context.Context) iter.Seq2[littleexport.Entry, error] {
	return func(yield func(littleexport.Entry, error) bool) {
		err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(s.dir, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			switch {
			case d.IsDir():
				if !yield(littleexport.Entry{Path: rel, IsDir: true}, nil) {
					return fs.SkipAll
				}
			case d.Type().IsRegular():
				info, err := d.Info()
				if err != nil {
					return err
				}
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				ok := yield(littleexport.Entry{
					Path: rel,
					Size: uint64(info.Size()),
					Data: f,
				}, nil)
				f.Close()
				if !ok {
					return fs.SkipAll
				}
			default:
				s.log().Debug("skipping special file", "path", path)
			}
			return nil
		})
		if err != nil {
			yield(littleexport.Entry{}, err)
		}
	}
}

// treeConsumer restores the files/ area into a directory.
type treeConsumer struct {
	dir    string
	logger *slog.Logger
}

func newTreeConsumer(dir string, logger *slog.Logger) *treeConsumer {
	return &treeConsumer{dir: dir, logger: logger}
}

func (c *treeConsumer) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *treeConsumer) Area() string {
	return littleexport.AreaFiles
}

// Consume writes one entry to disk. Files land atomically via a temp
// file and rename; hostile paths that would escape the destination are
// rejected.
func (c *treeConsumer) Consume(ctx context.Context, entry littleexport.EntryInfo, r io.Reader) error {
	rel := filepath.FromSlash(entry.Path)
	if rel == "" {
		// A bare entry for the area root itself, as foreign archives
		// sometimes carry. The destination already exists.
		if entry.IsDir {
			return os.MkdirAll(c.dir, 0o755)
		}
		return fmt.Errorf("refusing entry path %q", entry.Path)
	}
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("refusing entry path %q", entry.Path)
	}
	target := filepath.Join(c.dir, rel)

	if entry.IsDir {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}
	c.log().Debug("restored", "path", target, "bytes", entry.Size)
	return nil
}

// storageSource archives one JSON document as the storage dump.
type storageSource struct {
	path string
}

func (s *storageSource) Area() string {
	return littleexport.AreaStorage
}

func (s *storageSource) Entries(ctx context.Context) iter.Seq2[littleexport.Entry, error] {
	return func(yield func(littleexport.Entry, error) bool) {
		data, err := os.ReadFile(s.path)
		if err != nil {
			yield(littleexport.Entry{}, err)
			return
		}
		yield(littleexport.Entry{Bytes: data}, nil)
	}
}

// storageConsumer writes the storage dump to one path.
type storageConsumer struct {
	path string
}

func (c *storageConsumer) Area() string {
	return littleexport.AreaStorage
}

func (c *storageConsumer) Consume(ctx context.Context, entry littleexport.EntryInfo, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
