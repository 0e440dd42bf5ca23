package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const DefaultMaxEntryBytes int64 = 2 << 30

var (
	ErrNoCSV            = errors.New("archive contains no CSV file")
	ErrUnsafeEntry      = errors.New("archive entry escapes the target directory")
	ErrMalformedArchive = errors.New("malformed report archive")
	ErrEntryTooLarge    = errors.New("archive entry exceeds the size limit")
)

// Extractor unpacks the CSV of a report archive.
type Extractor interface {
	// ExtractCSV writes the first CSV entry of data into dir and returns its path.
	ExtractCSV(data []byte, dir string) (string, error)
}

type zipExtractor struct {
	maxEntryBytes int64
}

func NewExtractor(maxEntryBytes int64) Extractor {
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}
	return &zipExtractor{maxEntryBytes: maxEntryBytes}
}

func (e *zipExtractor) ExtractCSV(data []byte, dir string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", ErrNoCSV
	}

	target, err := EntryTarget(dir, entry.Name)
	if err != nil {
		return "", err
	}
	if entry.UncompressedSize64 > uint64(e.maxEntryBytes) {
		return "", ErrEntryTooLarge
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if err := e.write(entry, target); err != nil {
		return "", err
	}
	return target, nil
}

// EntryTarget maps an archive entry name onto a path directly inside dir.
// Directory components are dropped; names that reduce to nothing are unsafe.
func EntryTarget(dir, name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: %q", ErrUnsafeEntry, name)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	target := filepath.Join(absDir, base)

	rel, err := filepath.Rel(absDir, target)
	if err != nil || rel != base || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeEntry, name)
	}
	return target, nil
}

func (e *zipExtractor) write(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), ".extract-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(src, e.maxEntryBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	if n > e.maxEntryBytes {
		return ErrEntryTooLarge
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move extracted file: %w", err)
	}
	return nil
}
