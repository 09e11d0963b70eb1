// Package archive gives access to stylesheet bundles packed as zip archives.
package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// WalkFunc is the type of the function called for each stylesheet in archive
// visited by Walk. The archive argument contains path to archive. If an error
// is returned, processing stops.
type WalkFunc func(archive string, file *zip.File) error

// Bundle is opened zip archive. Embedded zip.Reader implements fs.FS and may
// be used to read stylesheets directly.
type Bundle struct {
	*zip.ReadCloser
	Path string
}

// Open opens zip archive at path.
func Open(path string) (*Bundle, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open archive '%s': %w", path, err)
	}
	return &Bundle{ReadCloser: r, Path: path}, nil
}

// Walk walks all stylesheets (*.css) in the archive located under prefix,
// calling walkFn for each item in archive order. Prefix either names a single
// entry or a directory, empty prefix selects everything. Archives with entries
// having path traversal components ("..") or absolute paths are rejected.
func (b *Bundle) Walk(prefix string, walkFn WalkFunc) error {
	prefix = strings.Trim(prefix, "/")
	for _, f := range b.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(name), ".css") || !underPrefix(name, prefix) {
			continue
		}
		if err := walkFn(b.Path, f); err != nil {
			return err
		}
	}
	return nil
}

// Locate finds leading part of src naming existing zip archive and returns it
// along with the rest of src as slash separated path inside the archive. When
// src does not point into archive arc is empty.
func Locate(src string) (arc, inner string, err error) {
	var head string
	for head = src; len(head) != 0; head, _ = filepath.Split(head) {
		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}
		if !fi.Mode().IsRegular() {
			return "", "", nil
		}

		ok, err := IsArchive(head)
		if err != nil {
			return "", "", fmt.Errorf("unable to check archive type: %w", err)
		}
		if !ok {
			return "", "", nil
		}
		inner = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
		return head, filepath.ToSlash(inner), nil
	}
	return "", "", nil
}

// IsArchive reports whether file at path is zip archive.
func IsArchive(path string) (bool, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return false, err
	}
	return kind == matchers.TypeZip, nil
}

func underPrefix(name, prefix string) bool {
	return prefix == "" || name == prefix || strings.HasPrefix(name, prefix+"/")
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
