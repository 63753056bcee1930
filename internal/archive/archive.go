// Package archive packs content trees into zip bundles and unpacks them again.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Open opens a bundle for reading. The returned reader is an fs.FS over the bundle's entries.
func Open(zipPath string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return r, nil
}

// Pack writes every file under dir with one of the given extensions (all files when none are
// given) into a new bundle at zipPath. Entry names are slash-separated and relative to dir.
// Returns the number of files written.
func Pack(dir, zipPath string, exts ...string) (n int, err error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !hasExt(path, exts) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		zw.Close()
		return n, fmt.Errorf("archive: pack %s: %w", dir, err)
	}
	if err := zw.Close(); err != nil {
		return n, fmt.Errorf("archive: %w", err)
	}
	return n, nil
}

func hasExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Unzip extracts zipPath into destDir, preserving directory structure. destDir is created if
// needed. Entries that would land outside destDir are skipped. Returns the extracted file paths.
func Unzip(zipPath, destDir string) (extracted []string, err error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("archive: %w", err)
	}
	defer r.Close()
	absDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	for _, f := range r.File {
		dest := filepath.Join(absDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, absDir+string(os.PathSeparator)) {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return extracted, fmt.Errorf("archive: %w", err)
			}
			continue
		}
		if err := extract(f, dest); err != nil {
			return extracted, fmt.Errorf("archive: %s: %w", f.Name, err)
		}
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extract(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
