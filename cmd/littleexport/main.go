// littleexport is a command-line front end for the archive engine: it
// exports a directory tree (and optionally a storage dump) into a
// portable archive, restores archives, and inspects them.
//
//	littleexport export -o site.export --files ./profile [--encrypt]
//	littleexport import -C ./restored site.export
//	littleexport inspect site.export
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/plasma4/littleexport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "export":
		return runExport(ctx, os.Args[2:])
	case "import":
		return runImport(ctx, os.Args[2:])
	case "inspect":
		return runInspect(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  littleexport export -o ARCHIVE [--files DIR] [--storage FILE] [--encrypt | --password PW] [--level N] [-v]
  littleexport import ARCHIVE [-C DIR] [--storage-out FILE] [--password PW] [--tolerate-truncation] [-v]
  littleexport inspect ARCHIVE [--password PW]`)
}

// newLogger builds the CLI logger: discard by default, text on stderr
// with -v.
func newLogger(verbose bool) *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func runExport(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "", "archive path to write (required)")
	filesDir := flags.String("files", "", "directory tree to archive under the files/ area")
	storageFile := flags.String("storage", "", "JSON document to archive as the storage dump")
	encrypt := flags.Bool("encrypt", false, "prompt for a password and encrypt the archive")
	password := flags.String("password", "", "encrypt with this password (prefer --encrypt's prompt)")
	level := flags.Int("level", -1, "gzip compression level (1-9, -1 for default)")
	verbose := flags.BoolP("verbose", "v", false, "log progress to stderr")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("export: -o is required")
	}
	if *filesDir == "" && *storageFile == "" {
		return fmt.Errorf("export: nothing to export; give --files and/or --storage")
	}

	pw := *password
	if *encrypt && pw == "" {
		var err error
		pw, err = promptNewPassword()
		if err != nil {
			return err
		}
	}

	logger := newLogger(*verbose)
	var sources []littleexport.Source
	if *storageFile != "" {
		sources = append(sources, &storageSource{path: *storageFile})
	}
	if *filesDir != "" {
		src, err := newTreeSource(*filesDir, logger)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	opts := []littleexport.ExportOption{
		littleexport.ExportWithLogger(logger),
		littleexport.ExportWithCompressionLevel(*level),
	}
	if pw != "" {
		opts = append(opts, littleexport.ExportWithPassword(pw))
	}
	return littleexport.ExportFile(ctx, *output, sources, opts...)
}

func runImport(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("import", pflag.ContinueOnError)
	destDir := flags.StringP("dir", "C", ".", "directory to restore the files/ area into")
	storageOut := flags.String("storage-out", "", "write the storage dump to this path (default: storage.json in -C)")
	password := flags.String("password", "", "decrypt with this password (default: prompt when encrypted)")
	tolerate := flags.Bool("tolerate-truncation", false, "accept archives cut off before the end-of-archive marker")
	verbose := flags.BoolP("verbose", "v", false, "log progress to stderr")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("import: exactly one archive path expected")
	}

	logger := newLogger(*verbose)
	out := *storageOut
	if out == "" {
		out = filepath.Join(*destDir, "storage.json")
	}
	consumers := []littleexport.Consumer{
		&storageConsumer{path: out},
		newTreeConsumer(*destDir, logger),
	}

	opts := []littleexport.ImportOption{
		littleexport.ImportWithLogger(logger),
		littleexport.ImportWithTruncationTolerance(*tolerate),
		littleexport.ImportWithPasswordFunc(promptPassword),
	}
	if *password != "" {
		opts = append(opts, littleexport.ImportWithPassword(*password))
	}
	return littleexport.ImportFile(ctx, flags.Arg(0), consumers, opts...)
}

func runInspect(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	password := flags.String("password", "", "list entries of an encrypted archive")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("inspect: exactly one archive path expected")
	}

	var opts []littleexport.ImportOption
	if *password != "" {
		opts = append(opts, littleexport.ImportWithPassword(*password))
	}
	info, err := littleexport.InspectFile(ctx, flags.Arg(0), opts...)
	if err != nil {
		return err
	}

	fmt.Printf("encrypted:  %v\ncompressed: %v\n", info.Encrypted, info.Compressed)
	if info.Entries == nil {
		fmt.Println("entries:    (locked; pass --password to list)")
		return nil
	}
	fmt.Printf("entries:    %d\n", len(info.Entries))
	for _, e := range info.Entries {
		kind := "file"
		if e.IsDir {
			kind = "dir "
		}
		fmt.Printf("  %s %10d  %s\n", kind, e.Size, e.Path)
	}
	return nil
}
