package littleexport

import (
	"log/slog"

	"github.com/klauspost/compress/gzip"
)

// exportConfig holds configuration for one export operation.
type exportConfig struct {
	password  string
	gzipLevel int
	logger    *slog.Logger
	progress  ProgressFunc
}

// ExportOption configures an export.
type ExportOption func(*exportConfig)

// ExportWithPassword wraps the compressed archive in the chunked
// authenticated-encryption layer. An empty password leaves the archive
// unencrypted.
func ExportWithPassword(password string) ExportOption {
	return func(cfg *exportConfig) {
		cfg.password = password
	}
}

// ExportWithCompressionLevel sets the gzip level, gzip.BestSpeed through
// gzip.BestCompression. The default balances speed and size.
func ExportWithCompressionLevel(level int) ExportOption {
	return func(cfg *exportConfig) {
		cfg.gzipLevel = level
	}
}

// ExportWithLogger attaches a structured logger for a running record of
// progress and per-item errors. Nil discards all logging.
func ExportWithLogger(logger *slog.Logger) ExportOption {
	return func(cfg *exportConfig) {
		cfg.logger = logger
	}
}

// ExportWithProgress registers a progress callback.
func ExportWithProgress(fn ProgressFunc) ExportOption {
	return func(cfg *exportConfig) {
		cfg.progress = fn
	}
}

func defaultExportConfig() exportConfig {
	return exportConfig{gzipLevel: gzip.DefaultCompression}
}
