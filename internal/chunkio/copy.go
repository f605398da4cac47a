package chunkio

import (
	"context"
	"io"
)

// Copy copies from src to dst until EOF or error, checking for context
// cancellation between reads. It returns the number of bytes written.
//
// Follows the stdlib io.Copy pattern; the explicit loop is what lets
// cancellation interleave with back-pressured writes.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (uint64, error) {
	if len(buf) == 0 {
		buf = make([]byte, readSize)
	}
	var written uint64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				written += uint64(nw)
			}
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er == io.EOF {
				return written, nil
			}
			return written, er
		}
	}
}
