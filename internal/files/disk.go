package files

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BioHazard786/beamshare/internal/transfer"
)

const partSuffix = ".part"

// DiskAssembler streams a transfer into "<name>.part" in the output
// directory and renames it to a free name on success.
type DiskAssembler struct {
	dir  string
	name string
	tmp  *os.File
	w    *bufio.Writer
	size int64
}

var _ transfer.Assembler = (*DiskAssembler)(nil)

// NewDiskFactory returns an AssemblerFactory writing into dir.
func NewDiskFactory(dir string) transfer.AssemblerFactory {
	return func(meta transfer.Metadata) (transfer.Assembler, error) {
		return NewDiskAssembler(dir, meta)
	}
}

func NewDiskAssembler(dir string, meta transfer.Metadata) (*DiskAssembler, error) {
	name, err := SafeName(meta.Name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+"-*"+partSuffix)
	if err != nil {
		return nil, fmt.Errorf("create partial file: %w", err)
	}
	return &DiskAssembler{
		dir:  dir,
		name: name,
		tmp:  tmp,
		w:    bufio.NewWriterSize(tmp, 256*1024),
	}, nil
}

func (a *DiskAssembler) Append(chunk []byte) error {
	n, err := a.w.Write(chunk)
	a.size += int64(n)
	return err
}

func (a *DiskAssembler) Finalize(meta transfer.Metadata) (*transfer.Artifact, error) {
	if err := a.w.Flush(); err != nil {
		a.Discard()
		return nil, fmt.Errorf("flush: %w", err)
	}
	if err := a.tmp.Sync(); err != nil {
		a.Discard()
		return nil, fmt.Errorf("sync: %w", err)
	}
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return nil, fmt.Errorf("close: %w", err)
	}

	dest := UniqueFilename(filepath.Join(a.dir, a.name))
	if err := os.Rename(a.tmp.Name(), dest); err != nil {
		os.Remove(a.tmp.Name())
		return nil, fmt.Errorf("rename: %w", err)
	}
	return &transfer.Artifact{Metadata: meta, Path: dest, Size: a.size}, nil
}

// Discard removes the partial file.
func (a *DiskAssembler) Discard() {
	a.tmp.Close()
	os.Remove(a.tmp.Name())
}

// PartialPath is the temporary file being written.
func (a *DiskAssembler) PartialPath() string {
	return a.tmp.Name()
}

// SafeName strips any directory from a peer-supplied file name.
func SafeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return base, nil
}
