package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSkipDirs are never archived.
var DefaultSkipDirs = []string{"node_modules", ".next", ".git"}

// ArchiveDir writes every regular file below root into dest, using slash
// separated paths relative to root. Directories named in skip are pruned and
// the destination itself is never included.
func ArchiveDir(root, dest string, skip ...string) error {
	if len(skip) == 0 {
		skip = DefaultSkipDirs
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("zip: create archive: %w", err)
	}
	zw := zip.NewWriter(out)
	destAbs, _ := filepath.Abs(dest)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && contains(skip, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == destAbs {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	closeErr := zw.Close()
	fileErr := out.Close()
	switch {
	case walkErr != nil:
		return fmt.Errorf("zip: walk %s: %w", root, walkErr)
	case closeErr != nil:
		return closeErr
	default:
		return fileErr
	}
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}
