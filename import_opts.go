package littleexport

import "log/slog"

// importConfig holds configuration for one import operation.
type importConfig struct {
	password    string
	passwordFn  PasswordFunc
	tolerateEOF bool
	logger      *slog.Logger
	progress    ProgressFunc
}

// ImportOption configures an import.
type ImportOption func(*importConfig)

// ImportWithPassword supplies the password up front. It is consulted
// only when the archive turns out to be encrypted.
func ImportWithPassword(password string) ImportOption {
	return func(cfg *importConfig) {
		cfg.password = password
	}
}

// ImportWithPasswordFunc registers a callback invoked only after the
// sniff detects an encrypted archive, so unencrypted imports never
// prompt. A fixed ImportWithPassword takes precedence.
func ImportWithPasswordFunc(fn PasswordFunc) ImportOption {
	return func(cfg *importConfig) {
		cfg.passwordFn = fn
	}
}

// ImportWithTruncationTolerance accepts a container that ends without
// its end-of-archive marker, treating the cut as a clean stop instead
// of ErrTruncated. Truncation inside an entry's payload remains fatal.
func ImportWithTruncationTolerance(enabled bool) ImportOption {
	return func(cfg *importConfig) {
		cfg.tolerateEOF = enabled
	}
}

// ImportWithLogger attaches a structured logger. Nil discards all
// logging.
func ImportWithLogger(logger *slog.Logger) ImportOption {
	return func(cfg *importConfig) {
		cfg.logger = logger
	}
}

// ImportWithProgress registers a progress callback.
func ImportWithProgress(fn ProgressFunc) ImportOption {
	return func(cfg *importConfig) {
		cfg.progress = fn
	}
}
