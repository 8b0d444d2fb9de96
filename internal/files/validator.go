package files

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/BioHazard786/beamshare/internal/transfer"
)

// FileInfo holds information about a file to be sent.
type FileInfo struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename without directory
	Name string

	Size int64

	// Type is the MIME type guessed from the extension
	Type string

	// LastModified is in Unix milliseconds
	LastModified int64
}

// Metadata is the transfer declaration for the file.
func (f FileInfo) Metadata() transfer.Metadata {
	return transfer.Metadata{
		Name:         f.Name,
		Size:         f.Size,
		Type:         f.Type,
		LastModified: f.LastModified,
	}
}

// ValidateFiles checks that every path is a readable regular file. All
// failures are reported together.
func ValidateFiles(paths []string) ([]FileInfo, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files specified")
	}

	var infos []FileInfo
	var problems []string
	for _, path := range paths {
		info, err := validateFile(path)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		infos = append(infos, info)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("file validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return infos, nil
}

func validateFile(path string) (FileInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	if stat.IsDir() {
		return FileInfo{}, fmt.Errorf("%s: is a directory", path)
	}
	if !stat.Mode().IsRegular() {
		return FileInfo{}, fmt.Errorf("%s: not a regular file", path)
	}

	f, err := os.Open(abs)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", path, err)
	}
	f.Close()

	return FileInfo{
		Path:         abs,
		Name:         filepath.Base(abs),
		Size:         stat.Size(),
		Type:         MimeType(abs),
		LastModified: stat.ModTime().UnixMilli(),
	}, nil
}

// MimeType guesses from the extension, defaulting to octet-stream.
func MimeType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func TotalSize(infos []FileInfo) int64 {
	var total int64
	for _, f := range infos {
		total += f.Size
	}
	return total
}
