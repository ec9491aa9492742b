// Package blob stores artifact attachments on the local file system under
// content-addressed names.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/agora/internal/apperr"
	"github.com/starford/agora/internal/checksum"
)

// MaxSize is the largest attachment accepted by Put.
const MaxSize = 50 << 20 // 50 MB

// hashPrefixLen is the number of hex digits of the content digest prepended
// to stored names.
const hashPrefixLen = 12

// Object describes a stored attachment.
type Object struct {
	Name string `json:"filename"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	// Created is false when identical content was already stored under the
	// same name. Only a caller that created an object may Remove it.
	Created bool `json:"-"`
}

// FS is a blob store backed by one flat directory.
type FS struct {
	root    string // absolute path to blob directory
	baseURL string
}

// NewFS creates the blob directory if needed. baseURL is the public prefix
// stored names are served under, for example "/files".
func NewFS(root, baseURL string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("blob: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob: root is not a directory: %s", abs)
	}
	return &FS{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the absolute blob directory.
func (f *FS) Root() string { return f.root }

// CleanName reduces a client-supplied file name to a plain base name and
// rejects names that would escape the blob directory.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	// Browsers on Windows may send full paths.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid filename %q", apperr.ErrInvalidArgument, name)
	}
	return name, nil
}

// safePath resolves a stored name inside the blob directory.
func (f *FS) safePath(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if name == "" || cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("%w: invalid filename %q", apperr.ErrInvalidArgument, name)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes blob directory", apperr.ErrInvalidArgument)
	}
	return abs, nil
}

// Put streams r into the store: tmp file → fsync → link to
// "<digest prefix>-<name>". Identical content under the same name maps to the
// same object, which is left untouched. Content larger than MaxSize is
// rejected.
func (f *FS) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	base, err := CleanName(name)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	tmp, err := os.CreateTemp(f.root, ".agora-tmp-*")
	if err != nil {
		return Object{}, fmt.Errorf("blob: create temp: %w", err)
	}
	tmpName := tmp.Name()

	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		_ = os.Remove(tmpName)
	}()

	d := checksum.NewDigest(tmp)
	if _, err := io.Copy(d, io.LimitReader(r, MaxSize+1)); err != nil {
		return Object{}, fmt.Errorf("blob: write temp: %w", err)
	}
	if d.Size() > MaxSize {
		return Object{}, fmt.Errorf("%w: attachment exceeds %d bytes", apperr.ErrInvalidArgument, MaxSize)
	}
	if err := tmp.Sync(); err != nil {
		return Object{}, fmt.Errorf("blob: fsync: %w", err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("blob: close temp: %w", err)
	}

	stored := d.Hex()[:hashPrefixLen] + "-" + base
	abs, err := f.safePath(stored)
	if err != nil {
		return Object{}, err
	}
	obj := Object{Name: stored, URL: f.URL(stored), Size: d.Size(), Created: true}
	// Link fails instead of replacing, so concurrent uploads of the same
	// content agree on which one created the object.
	if err := os.Link(tmpName, abs); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return Object{}, fmt.Errorf("blob: link: %w", err)
		}
		obj.Created = false
	}
	return obj, nil
}

// Remove deletes a stored object. Removing a missing object is not an error.
func (f *FS) Remove(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: remove %s: %w", name, err)
	}
	return nil
}

// Open returns a reader for a stored object.
func (f *FS) Open(name string) (*os.File, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s", apperr.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: open %s: %w", name, err)
	}
	return file, nil
}

// URL returns the public URL of a stored name.
func (f *FS) URL(name string) string {
	return f.baseURL + "/" + url.PathEscape(name)
}
