package littleexport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/plasma4/littleexport/internal/encstream"
	"github.com/plasma4/littleexport/internal/ustar"
)

// Export archives the entries of every source into w.
//
// The pipeline is container framing → gzip → optional encryption → w,
// assembled as a single back-pressured stream: a slow sink stalls the
// sources, and nothing buffers more than one encryption chunk ahead.
// Sources are invoked in the fixed category order regardless of the
// order given.
//
// On any failure the chain is torn down: if w implements Aborter its
// Abort method is called, so a partially written archive never survives
// unflagged. The first error is returned.
func Export(ctx context.Context, w io.Writer, sources []Source, opts ...ExportOption) error {
	cfg := defaultExportConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	op := &exporter{cfg: cfg}

	err := op.run(ctx, w, sources)
	if err != nil {
		op.log().Error("export failed", "error", err)
		if aborter, ok := w.(Aborter); ok {
			if abortErr := aborter.Abort(); abortErr != nil {
				op.log().Error("sink abort failed", "error", abortErr)
			}
		}
	}
	return err
}

// exporter holds state for one export operation.
type exporter struct {
	cfg     exportConfig
	bytes   uint64
	entries int
}

func (op *exporter) log() *slog.Logger {
	if op.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return op.cfg.logger
}

func (op *exporter) report(stage ProgressStage, path string) {
	if op.cfg.progress == nil {
		return
	}
	op.cfg.progress(ProgressEvent{
		Stage:       stage,
		Path:        path,
		BytesDone:   op.bytes,
		EntriesDone: op.entries,
	})
}

func (op *exporter) run(ctx context.Context, w io.Writer, sources []Source) error {
	// Fixed category order: storage dump, records, cache, custom,
	// files, then anything else in caller order.
	ordered := slices.Clone(sources)
	slices.SortStableFunc(ordered, func(a, b Source) int {
		return areaRank(a.Area()) - areaRank(b.Area())
	})

	var sink io.Writer = w
	var enc *encstream.Writer
	if op.cfg.password != "" {
		var err error
		enc, err = encstream.NewWriter(w, op.cfg.password)
		if err != nil {
			return err
		}
		sink = enc
	}

	gz, err := gzip.NewWriterLevel(sink, op.cfg.gzipLevel)
	if err != nil {
		return fmt.Errorf("littleexport: gzip writer: %w", err)
	}
	tw := ustar.NewWriter(gz)

	op.log().Info("export started", "sources", len(ordered), "encrypted", enc != nil)
	op.report(StageEnumerating, "")

	for _, src := range ordered {
		if err := op.writeSource(ctx, tw, src); err != nil {
			return err
		}
	}

	// Finalize inner-to-outer; each layer flushes into the next.
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return err
		}
	}
	op.log().Info("export finished", "entries", op.entries, "payload_bytes", op.bytes)
	return nil
}

// writeSource drains one source's entry sequence into the container.
func (op *exporter) writeSource(ctx context.Context, tw *ustar.Writer, src Source) error {
	area := src.Area()
	for entry, err := range src.Entries(ctx) {
		if err != nil {
			return fmt.Errorf("littleexport: source %q: %w", area, err)
		}
		path, err := joinArea(area, entry.Path)
		if err != nil {
			return err
		}
		if err := op.writeEntry(ctx, tw, path, entry); err != nil {
			return err
		}
		op.entries++
		op.report(StageArchiving, path)
	}
	return nil
}

func (op *exporter) writeEntry(ctx context.Context, tw *ustar.Writer, path string, entry Entry) error {
	switch {
	case entry.IsDir:
		return tw.WriteDir(path)
	case entry.Bytes != nil:
		op.bytes += uint64(len(entry.Bytes))
		return tw.WriteBytes(ctx, path, entry.Bytes)
	case entry.Data != nil:
		op.bytes += entry.Size
		return tw.WriteEntry(ctx, path, entry.Data, entry.Size)
	default:
		return tw.WriteBytes(ctx, path, nil)
	}
}

// joinArea resolves an area-relative entry path to its archive path.
func joinArea(area, rel string) (string, error) {
	if !strings.HasSuffix(area, "/") {
		// Exact-file area: the prefix names the single entry.
		if rel != "" {
			return "", fmt.Errorf("littleexport: area %q holds exactly one entry, got path %q", area, rel)
		}
		return area, nil
	}
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "..") {
		return "", fmt.Errorf("littleexport: invalid entry path %q in area %q", rel, area)
	}
	return area + rel, nil
}
