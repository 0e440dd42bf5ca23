package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrUnsafePath   = errors.New("path is outside the storage root")
	ErrNotCSV       = errors.New("only .csv files can be analysed")
	ErrFileNotFound = errors.New("csv file not found")
	ErrInvalidID    = errors.New("invalid request id")
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// Root confines report files to one directory tree.
type Root struct {
	path string
}

func NewRoot(path string) (*Root, error) {
	if path == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %s: %w", path, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", abs, err)
	}
	// symlinked roots (e.g. /tmp on macOS) must compare equal to resolved files
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %s: %w", abs, err)
	}
	return &Root{path: resolved}, nil
}

func (r *Root) Path() string {
	return r.path
}

// RequestDir returns the directory that holds the files of one request.
func (r *Root) RequestDir(requestID string) (string, error) {
	if !requestIDPattern.MatchString(requestID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, requestID)
	}
	return filepath.Join(r.path, requestID), nil
}

// ResolveCSV maps a user supplied path onto a regular .csv file inside the root.
// Relative paths are taken relative to the root.
func (r *Root) ResolveCSV(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnsafePath)
	}
	if !strings.EqualFold(filepath.Ext(p), ".csv") {
		return "", ErrNotCSV
	}

	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(r.path, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !r.contains(candidate) {
		return "", ErrUnsafePath
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrFileNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	if !r.contains(resolved) {
		return "", ErrUnsafePath
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.Mode().IsRegular() {
		return "", ErrFileNotFound
	}
	return resolved, nil
}

// Relative returns p relative to the root in slash form, which ResolveCSV
// accepts back. Paths outside the root are returned unchanged.
func (r *Root) Relative(p string) string {
	if !filepath.IsAbs(p) || !r.contains(filepath.Clean(p)) {
		return p
	}
	rel, err := filepath.Rel(r.path, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (r *Root) contains(p string) bool {
	rel, err := filepath.Rel(r.path, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
