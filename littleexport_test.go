package littleexport_test

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plasma4/littleexport"
)

// memSource yields in-memory entries for one area.
type memSource struct {
	area    string
	entries []littleexport.Entry
	err     error // yielded after the entries, if set
}

func (s *memSource) Area() string { return s.area }

func (s *memSource) Entries(ctx context.Context) iter.Seq2[littleexport.Entry, error] {
	return func(yield func(littleexport.Entry, error) bool) {
		for _, e := range s.entries {
			if !yield(e, nil) {
				return
			}
		}
		if s.err != nil {
			yield(littleexport.Entry{}, s.err)
		}
	}
}

// memConsumer records everything dispatched to one area.
type memConsumer struct {
	area string
	got  map[string][]byte
	dirs []string
}

func newMemConsumer(area string) *memConsumer {
	return &memConsumer{area: area, got: map[string][]byte{}}
}

func (c *memConsumer) Area() string { return c.area }

func (c *memConsumer) Consume(ctx context.Context, entry littleexport.EntryInfo, r io.Reader) error {
	if entry.IsDir {
		c.dirs = append(c.dirs, entry.Path)
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.got[entry.Path] = data
	return nil
}

// fileSet builds the scenario payloads: a tiny text file and a large
// binary one.
func fileSet(t *testing.T) (*memSource, []byte) {
	t.Helper()
	big := make([]byte, 5_000_000)
	_, err := rand.Read(big)
	require.NoError(t, err)
	src := &memSource{
		area: littleexport.AreaFiles,
		entries: []littleexport.Entry{
			{Path: "a.txt", Bytes: []byte("hi")},
			{Path: "dir/", IsDir: true},
			{Path: "dir/b.bin", Size: uint64(len(big)), Data: bytes.NewReader(big)},
		},
	}
	return src, big
}

func TestRoundTripPlain(t *testing.T) {
	src, big := fileSet(t)

	var archive bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{src}))

	sink := newMemConsumer(littleexport.AreaFiles)
	require.NoError(t, littleexport.Import(context.Background(), &archive, []littleexport.Consumer{sink}))

	require.Len(t, sink.got, 2)
	assert.Equal(t, []byte("hi"), sink.got["a.txt"])
	assert.Equal(t, big, sink.got["dir/b.bin"])
	assert.Equal(t, []string{"dir/"}, sink.dirs)
}

func TestRoundTripEncrypted(t *testing.T) {
	src, big := fileSet(t)

	var archive bytes.Buffer
	err := littleexport.Export(context.Background(), &archive, []littleexport.Source{src},
		littleexport.ExportWithPassword("p"))
	require.NoError(t, err)

	sink := newMemConsumer(littleexport.AreaFiles)
	err = littleexport.Import(context.Background(), bytes.NewReader(archive.Bytes()),
		[]littleexport.Consumer{sink}, littleexport.ImportWithPassword("p"))
	require.NoError(t, err)
	assert.Equal(t, big, sink.got["dir/b.bin"])
}

func TestWrongPasswordFailsBeforeDispatch(t *testing.T) {
	src, _ := fileSet(t)

	var archive bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{src},
		littleexport.ExportWithPassword("p")))

	sink := newMemConsumer(littleexport.AreaFiles)
	err := littleexport.Import(context.Background(), &archive,
		[]littleexport.Consumer{sink}, littleexport.ImportWithPassword("wrong"))
	assert.ErrorIs(t, err, littleexport.ErrIncorrectPassword)
	assert.Empty(t, sink.got, "no entry may be dispatched on a wrong password")
	assert.Empty(t, sink.dirs)
}

func TestPasswordFuncOnlyCalledWhenEncrypted(t *testing.T) {
	src, _ := fileSet(t)

	var plain bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &plain, []littleexport.Source{src}))

	calls := 0
	sink := newMemConsumer(littleexport.AreaFiles)
	err := littleexport.Import(context.Background(), &plain, []littleexport.Consumer{sink},
		littleexport.ImportWithPasswordFunc(func() (string, error) {
			calls++
			return "p", nil
		}))
	require.NoError(t, err)
	assert.Zero(t, calls, "unencrypted import must not prompt")
}

func TestEncryptedWithoutPassword(t *testing.T) {
	src, _ := fileSet(t)

	var archive bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{src},
		littleexport.ExportWithPassword("p")))

	err := littleexport.Import(context.Background(), &archive, nil)
	assert.ErrorIs(t, err, littleexport.ErrNoPassword)
}

func TestImportBareContainer(t *testing.T) {
	// A container with neither the encryption signature nor the gzip
	// magic is read directly.
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "files/plain.txt", Mode: 0o644, Size: 4, Format: tar.FormatUSTAR}))
	_, err := tw.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	sink := newMemConsumer(littleexport.AreaFiles)
	require.NoError(t, littleexport.Import(context.Background(), &raw, []littleexport.Consumer{sink}))
	assert.Equal(t, []byte("data"), sink.got["plain.txt"])
}

func TestUnknownPrefixIgnored(t *testing.T) {
	src := &memSource{
		area: "mystery/",
		entries: []littleexport.Entry{
			{Path: "thing.bin", Bytes: []byte("???")},
		},
	}
	known := &memSource{
		area:    littleexport.AreaFiles,
		entries: []littleexport.Entry{{Path: "keep.txt", Bytes: []byte("ok")}},
	}

	var archive bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &archive,
		[]littleexport.Source{src, known}))

	sink := newMemConsumer(littleexport.AreaFiles)
	require.NoError(t, littleexport.Import(context.Background(), &archive, []littleexport.Consumer{sink}))
	assert.Equal(t, map[string][]byte{"keep.txt": []byte("ok")}, sink.got)
}

func TestCategoryOrder(t *testing.T) {
	// Sources are written in the fixed category order regardless of
	// the order supplied.
	files := &memSource{area: littleexport.AreaFiles,
		entries: []littleexport.Entry{{Path: "f.txt", Bytes: []byte("f")}}}
	storage := &memSource{area: littleexport.AreaStorage,
		entries: []littleexport.Entry{{Bytes: []byte("{}")}}}

	var archive bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &archive,
		[]littleexport.Source{files, storage}))

	info, err := littleexport.Inspect(context.Background(), &archive)
	require.NoError(t, err)
	require.Len(t, info.Entries, 2)
	assert.Equal(t, "storage.json", info.Entries[0].Path)
	assert.Equal(t, "files/f.txt", info.Entries[1].Path)
}

func TestSourceErrorAbortsSink(t *testing.T) {
	src := &memSource{
		area:    littleexport.AreaFiles,
		entries: []littleexport.Entry{{Path: "ok.txt", Bytes: []byte("x")}},
		err:     errors.New("backend exploded"),
	}

	dir := t.TempDir()
	target := filepath.Join(dir, "out.export")
	err := littleexport.ExportFile(context.Background(), target, []littleexport.Source{src})
	require.Error(t, err)
	assert.ErrorContains(t, err, "backend exploded")

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "failed export must not leave an archive behind")

	leftovers, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp file must be cleaned up")
}

func TestExportImportFile(t *testing.T) {
	src, big := fileSet(t)
	target := filepath.Join(t.TempDir(), "site.export")

	require.NoError(t, littleexport.ExportFile(context.Background(), target, []littleexport.Source{src}))

	sink := newMemConsumer(littleexport.AreaFiles)
	require.NoError(t, littleexport.ImportFile(context.Background(), target, []littleexport.Consumer{sink}))
	assert.Equal(t, big, sink.got["dir/b.bin"])
}

func TestInspect(t *testing.T) {
	src, _ := fileSet(t)

	t.Run("plain", func(t *testing.T) {
		var archive bytes.Buffer
		require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{src}))
		info, err := littleexport.Inspect(context.Background(), &archive)
		require.NoError(t, err)
		assert.False(t, info.Encrypted)
		assert.True(t, info.Compressed)
		require.Len(t, info.Entries, 3)
		assert.Equal(t, "files/a.txt", info.Entries[0].Path)
		assert.Equal(t, uint64(2), info.Entries[0].Size)
	})

	t.Run("encrypted without password", func(t *testing.T) {
		fresh, _ := fileSet(t)
		var archive bytes.Buffer
		require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{fresh},
			littleexport.ExportWithPassword("p")))
		info, err := littleexport.Inspect(context.Background(), &archive)
		require.NoError(t, err)
		assert.True(t, info.Encrypted)
		assert.True(t, info.Compressed)
		assert.Nil(t, info.Entries)
	})

	t.Run("encrypted with password", func(t *testing.T) {
		fresh, _ := fileSet(t)
		var archive bytes.Buffer
		require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{fresh},
			littleexport.ExportWithPassword("p")))
		info, err := littleexport.Inspect(context.Background(), &archive,
			littleexport.ImportWithPassword("p"))
		require.NoError(t, err)
		require.Len(t, info.Entries, 3)
	})
}

func TestProgressEvents(t *testing.T) {
	src, _ := fileSet(t)

	var events []littleexport.ProgressEvent
	var archive bytes.Buffer
	err := littleexport.Export(context.Background(), &archive, []littleexport.Source{src},
		littleexport.ExportWithProgress(func(e littleexport.ProgressEvent) {
			events = append(events, e)
		}))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, littleexport.StageEnumerating, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, littleexport.StageArchiving, last.Stage)
	assert.Equal(t, 3, last.EntriesDone)
	assert.Equal(t, uint64(5_000_002), last.BytesDone)
}

func TestImportCancellation(t *testing.T) {
	src, _ := fileSet(t)
	var archive bytes.Buffer
	require.NoError(t, littleexport.Export(context.Background(), &archive, []littleexport.Source{src}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := littleexport.Import(ctx, &archive, []littleexport.Consumer{newMemConsumer(littleexport.AreaFiles)})
	assert.ErrorIs(t, err, context.Canceled)
}
