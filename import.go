package littleexport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/plasma4/littleexport/internal/chunkio"
	"github.com/plasma4/littleexport/internal/encstream"
	"github.com/plasma4/littleexport/internal/ustar"
)

// sniffSize is how many leading bytes format detection examines: enough
// for the 6-byte encryption signature with room to spare.
const sniffSize = 8

// Import reconstructs state from an archive, dispatching each decoded
// entry to the consumer owning its path prefix. Entries without an
// owner are skipped without being materialized.
//
// The layering is detected by sniffing the first bytes of r: the
// encryption signature, else the gzip magic, else a bare container.
// The three cases are mutually exclusive and checked in that order.
// An encrypted archive is always compressed underneath.
//
// A wrong password fails before any entry is dispatched. Decoding and
// decryption errors abort the whole import; an error from a consumer
// does too, so consumers wanting per-item resilience catch their own.
func Import(ctx context.Context, r io.Reader, consumers []Consumer, opts ...ImportOption) error {
	var cfg importConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	op := &importer{cfg: cfg}
	return op.run(ctx, r, consumers)
}

// importer holds state for one import operation.
type importer struct {
	cfg     importConfig
	bytes   uint64
	entries int
}

func (op *importer) log() *slog.Logger {
	if op.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return op.cfg.logger
}

func (op *importer) report(path string) {
	if op.cfg.progress == nil {
		return
	}
	op.cfg.progress(ProgressEvent{
		Stage:       StageRestoring,
		Path:        path,
		BytesDone:   op.bytes,
		EntriesDone: op.entries,
	})
}

func (op *importer) run(ctx context.Context, r io.Reader, consumers []Consumer) error {
	stream, encrypted, compressed, err := op.openStream(r)
	if err != nil {
		return err
	}
	op.log().Info("import started", "encrypted", encrypted, "compressed", compressed)

	tr := ustar.NewReader(stream, ustar.WithTruncationTolerance(op.cfg.tolerateEOF))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := op.dispatch(ctx, tr, hdr, consumers); err != nil {
			return err
		}
	}
	op.log().Info("import finished", "entries", op.entries, "payload_bytes", op.bytes)
	return nil
}

// openStream sniffs the source and assembles the pull chain: optional
// decryption, then decompression, feeding the container parser.
func (op *importer) openStream(r io.Reader) (stream io.Reader, encrypted, compressed bool, err error) {
	b := chunkio.New(r)
	if _, err := b.Ensure(sniffSize); err != nil {
		return nil, false, false, err
	}
	head := b.Peek(min(b.Buffered(), sniffSize))

	switch {
	case encstream.IsEncrypted(head):
		password, err := op.resolvePassword()
		if err != nil {
			return nil, false, false, err
		}
		dec, err := encstream.NewReader(b, password)
		if err != nil {
			return nil, false, false, err
		}
		// The encrypted stream is always compressed underneath.
		gz, err := gzip.NewReader(dec)
		if err != nil {
			return nil, false, false, fmt.Errorf("littleexport: decompressing encrypted archive: %w", err)
		}
		return gz, true, true, nil

	case len(head) >= 2 && head[0] == 0x1f && head[1] == 0x8b:
		gz, err := gzip.NewReader(b)
		if err != nil {
			return nil, false, false, fmt.Errorf("littleexport: decompressing archive: %w", err)
		}
		return gz, false, true, nil

	default:
		// Neither signature: an uncompressed container.
		return b, false, false, nil
	}
}

// resolvePassword returns the configured password, asking the callback
// only now that encryption is confirmed.
func (op *importer) resolvePassword() (string, error) {
	if op.cfg.password != "" {
		return op.cfg.password, nil
	}
	if op.cfg.passwordFn != nil {
		return op.cfg.passwordFn()
	}
	return "", ErrNoPassword
}

// dispatch routes one entry to the consumer owning its prefix. The
// container reader skips whatever the consumer leaves unread.
func (op *importer) dispatch(ctx context.Context, tr *ustar.Reader, hdr ustar.Header, consumers []Consumer) error {
	for _, c := range consumers {
		rel, ok := matchArea(c.Area(), hdr.Path)
		if !ok {
			continue
		}
		info := EntryInfo{Path: rel, Size: hdr.Size, IsDir: hdr.IsDir}
		if err := c.Consume(ctx, info, tr); err != nil {
			return fmt.Errorf("littleexport: consumer %q: entry %q: %w", c.Area(), hdr.Path, err)
		}
		op.bytes += hdr.Size
		op.entries++
		op.report(hdr.Path)
		return nil
	}
	op.log().Debug("no consumer for entry, skipping", "path", hdr.Path)
	return nil
}

// matchArea reports whether path belongs to area and returns the
// area-relative remainder.
func matchArea(area, path string) (string, bool) {
	if strings.HasSuffix(area, "/") {
		if rest, ok := strings.CutPrefix(path, area); ok {
			return rest, true
		}
		return "", false
	}
	if path == area {
		return "", true
	}
	return "", false
}
