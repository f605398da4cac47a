package ustar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/plasma4/littleexport/internal/chunkio"
)

// zeroBlock supplies padding and the end-of-archive marker.
var zeroBlock [BlockSize]byte

// Writer appends entries to a container stream.
//
// Writers are not safe for concurrent use: a single byte-position
// cursor drives the padding math, so entries must be written
// sequentially.
type Writer struct {
	w      io.Writer
	pos    uint64 // bytes written to w so far
	mtime  int64  // shared modification time for every entry
	buf    []byte // copy buffer, reused across entries
	closed bool
}

// NewWriter creates a container writer. Every entry is stamped with the
// archive's creation time.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		mtime: time.Now().Unix(),
		buf:   make([]byte, 32*1024),
	}
}

// WriteBytes appends one fully-buffered entry.
func (tw *Writer) WriteBytes(ctx context.Context, path string, payload []byte) error {
	return tw.WriteEntry(ctx, path, bytes.NewReader(payload), uint64(len(payload)))
}

// WriteDir appends one directory entry. Directory paths are normalized
// to a trailing slash.
func (tw *Writer) WriteDir(path string) error {
	if tw.closed {
		return ErrClosed
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	h, err := buildHeader(path, 0, tw.mtime, true)
	if err != nil {
		return err
	}
	return tw.write(h[:])
}

// WriteEntry appends one entry whose payload streams from r. The reader
// must deliver exactly size bytes; a short or long payload aborts the
// archive, since the header's size field is already committed.
func (tw *Writer) WriteEntry(ctx context.Context, path string, r io.Reader, size uint64) error {
	if tw.closed {
		return ErrClosed
	}
	h, err := buildHeader(path, size, tw.mtime, false)
	if err != nil {
		return err
	}
	if err := tw.write(h[:]); err != nil {
		return err
	}

	n, err := chunkio.Copy(ctx, tw.countWriter(), io.LimitReader(r, int64(size)), tw.buf)
	if err != nil {
		return fmt.Errorf("ustar: entry %q payload: %w", path, err)
	}
	if n != size {
		return fmt.Errorf("ustar: entry %q delivered %d bytes, header declares %d", path, n, size)
	}
	return tw.pad()
}

// Close appends the end-of-archive marker: two consecutive all-zero
// blocks. It does not close the underlying sink.
func (tw *Writer) Close() error {
	if tw.closed {
		return nil
	}
	tw.closed = true
	if err := tw.write(zeroBlock[:]); err != nil {
		return err
	}
	return tw.write(zeroBlock[:])
}

// pad advances the cursor to the next block boundary.
func (tw *Writer) pad() error {
	if n := tw.pos % BlockSize; n != 0 {
		return tw.write(zeroBlock[:BlockSize-n])
	}
	return nil
}

// write sends p downstream and advances the position cursor.
func (tw *Writer) write(p []byte) error {
	n, err := tw.w.Write(p)
	tw.pos += uint64(n)
	return err
}

// countWriter exposes write as an io.Writer for payload streaming.
func (tw *Writer) countWriter() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		if err := tw.write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
