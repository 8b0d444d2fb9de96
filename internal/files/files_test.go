package files

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/beamshare/internal/transfer"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", []byte("hello"))
	empty := writeFile(t, dir, "empty.bin", nil)

	infos, err := ValidateFiles([]string{txt, empty})
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "notes.txt", infos[0].Name)
	assert.Equal(t, int64(5), infos[0].Size)
	assert.Contains(t, infos[0].Type, "text/plain")
	assert.Greater(t, infos[0].LastModified, int64(0))
	assert.Equal(t, int64(0), infos[1].Size)
	assert.Equal(t, int64(5), TotalSize(infos))

	meta := infos[0].Metadata()
	assert.Equal(t, transfer.Metadata{
		Name:         "notes.txt",
		Size:         5,
		Type:         infos[0].Type,
		LastModified: infos[0].LastModified,
	}, meta)
}

func TestValidateFilesReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "ok.txt", []byte("x"))

	_, err := ValidateFiles([]string{ok, filepath.Join(dir, "missing.txt"), dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.txt: file does not exist")
	assert.Contains(t, err.Error(), "is a directory")

	_, err = ValidateFiles(nil)
	assert.EqualError(t, err, "no files specified")
}

func TestMimeTypeFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", MimeType("archive.unknownext"))
}

func TestUniqueFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	assert.Equal(t, path, UniqueFilename(path))

	writeFile(t, dir, "photo.jpg", []byte("a"))
	assert.Equal(t, filepath.Join(dir, "photo (1).jpg"), UniqueFilename(path))

	writeFile(t, dir, "photo (1).jpg", []byte("b"))
	assert.Equal(t, filepath.Join(dir, "photo (2).jpg"), UniqueFilename(path))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.50 KB", FormatSize(1536))
	assert.Equal(t, "2.00 MB", FormatSize(2*1024*1024))
	assert.Equal(t, "1.00 GB", FormatSize(1<<30))

	assert.Equal(t, "100 B/s", FormatSpeed(100))
	assert.Equal(t, "2.00 KB/s", FormatSpeed(2048))
	assert.Equal(t, "1.00 MB/s", FormatSpeed(1024*1024))

	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m 5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h 1m 1s", FormatDuration(time.Hour+time.Minute+time.Second))
}

func TestDiskAssemblerFinalize(t *testing.T) {
	dir := t.TempDir()
	meta := transfer.Metadata{Name: "report.pdf", Size: 6}

	asm, err := NewDiskAssembler(dir, meta)
	require.NoError(t, err)
	require.NoError(t, asm.Append([]byte("abc")))
	require.NoError(t, asm.Append([]byte("def")))

	art, err := asm.Finalize(meta)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), art.Path)
	assert.Equal(t, int64(6), art.Size)
	assert.Equal(t, meta, art.Metadata)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	_, err = os.Stat(asm.PartialPath())
	assert.True(t, os.IsNotExist(err))
}

func TestDiskAssemblerAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("old"))

	factory := NewDiskFactory(dir)
	asm, err := factory(transfer.Metadata{Name: "a.txt", Size: 3})
	require.NoError(t, err)
	require.NoError(t, asm.Append([]byte("new")))

	art, err := asm.Finalize(transfer.Metadata{Name: "a.txt", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a (1).txt"), art.Path)

	old, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestDiskAssemblerDiscardRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	asm, err := NewDiskAssembler(dir, transfer.Metadata{Name: "big.iso", Size: 100})
	require.NoError(t, err)
	require.NoError(t, asm.Append([]byte("partial")))

	asm.Discard()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskAssemblerWithReceiver(t *testing.T) {
	dir := t.TempDir()
	done := make(chan *transfer.Artifact, 1)
	r := transfer.NewReceiver(transfer.LegacyCodec{}, transfer.ReceiverConfig{
		NewAssembler: NewDiskFactory(dir),
		OnComplete:   func(a *transfer.Artifact) { done <- a },
	})
	r.Open()

	require.NoError(t, r.HandleFrame(transfer.Frame{Kind: transfer.FrameMetadata, Metadata: transfer.Metadata{Name: "x.bin", Size: 4}}))
	require.NoError(t, r.HandleFrame(transfer.Frame{Kind: transfer.FrameChunk, Data: []byte{1, 2}}))
	require.NoError(t, r.HandleFrame(transfer.Frame{Kind: transfer.FrameChunk, Data: []byte{3, 4}}))
	require.NoError(t, r.HandleFrame(transfer.Frame{Kind: transfer.FrameEnd}))

	art := <-done
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestSafeName(t *testing.T) {
	name, err := SafeName("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", name)

	name, err = SafeName(`C:\temp\file.txt`)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", name)

	_, err = SafeName("..")
	assert.Error(t, err)
	_, err = SafeName("")
	assert.Error(t, err)
}

func TestZipDirectory(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.txt", []byte("alpha"))
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub"), 0o755))
	writeFile(t, filepath.Join(src, "sub"), "b.txt", []byte("beta"))

	target := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, ZipDirectory(src, target))

	zr, err := zip.OpenReader(target)
	require.NoError(t, err)
	defer zr.Close()

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}
	assert.Equal(t, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"}, contents)
}

func TestZipDirectoryMissingSource(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.zip")
	require.Error(t, ZipDirectory(filepath.Join(t.TempDir(), "missing"), target))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}
