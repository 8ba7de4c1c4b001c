package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zip"

	"github.com/agentic-research/xmindctl/internal/errs"
)

// ReplaceEntry writes a copy of archivePath to outputPath in which entryName
// holds content. Every other entry is copied in its compressed form, so its
// bytes and header are unchanged. A missing entryName is appended.
//
// The new archive is written to a temp file next to outputPath and renamed
// into place; outputPath may equal archivePath. If anything fails before the
// rename, outputPath is left as it was.
func ReplaceEntry(fsys billy.Filesystem, archivePath, entryName string, content []byte, outputPath string) error {
	if outputPath == "" {
		outputPath = archivePath
	}

	r, err := open(fsys, archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	srcInfo, err := fsys.Stat(archivePath)
	if err != nil {
		return errs.Wrap(errs.KindNotFound, "replace", archivePath, err)
	}

	return commit(fsys, "replace", outputPath, srcInfo.Mode(), func(dst billy.File) error {
		err := rewrite(r.Reader, dst, entryName, content)
		// The source must be closed before an in-place rename.
		_ = r.Close()
		return err
	})
}

// WriteFile writes data to path through a temp file and rename, keeping the
// mode of an existing file.
func WriteFile(fsys billy.Filesystem, path string, data []byte, perm fs.FileMode) error {
	return commit(fsys, "write", path, perm, func(dst billy.File) error {
		_, err := dst.Write(data)
		return err
	})
}

// commit runs fill against a temp file next to path and renames it over
// path. On failure the temp file is removed and path is untouched.
func commit(fsys billy.Filesystem, op, path string, mode fs.FileMode, fill func(billy.File) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.KindWriteFailure, op, path, fmt.Errorf("create directory: %w", err))
		}
	}
	tmp, err := fsys.TempFile(filepath.Dir(path), ".xmindctl-")
	if err != nil {
		return errs.Wrap(errs.KindWriteFailure, op, path, fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()

	writeErr := fill(tmp)
	closeErr := tmp.Close()
	if writeErr == nil && closeErr != nil {
		writeErr = fmt.Errorf("close temp: %w", closeErr)
	}
	if writeErr != nil {
		_ = fsys.Remove(tmpName) // best-effort cleanup
		return errs.Wrap(errs.KindWriteFailure, op, path, writeErr)
	}

	if outInfo, err := fsys.Stat(path); err == nil {
		mode = outInfo.Mode()
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = fsys.Remove(tmpName)
		return errs.Wrap(errs.KindWriteFailure, op, path, err)
	}
	if ch, ok := fsys.(billy.Chmod); ok {
		if err := ch.Chmod(tmpName, mode.Perm()); err != nil {
			_ = fsys.Remove(tmpName)
			return errs.Wrap(errs.KindWriteFailure, op, path, fmt.Errorf("chmod temp: %w", err))
		}
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		_ = fsys.Remove(tmpName)
		return errs.Wrap(errs.KindWriteFailure, op, path, fmt.Errorf("rename temp: %w", err))
	}
	return nil
}

func rewrite(src *zip.Reader, dst billy.File, entryName string, content []byte) error {
	zw := zip.NewWriter(dst)
	if src.Comment != "" {
		if err := zw.SetComment(src.Comment); err != nil {
			return err
		}
	}

	replaced := false
	for _, f := range src.File {
		if f.Name != entryName {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy entry %s: %w", f.Name, err)
			}
			continue
		}
		if replaced {
			// Duplicate names: only the first occurrence is kept.
			continue
		}
		replaced = true

		method := f.Method
		if method != zip.Store {
			method = zip.Deflate
		}
		hdr := &zip.FileHeader{
			Name:          f.Name,
			Comment:       f.Comment,
			Method:        method,
			Modified:      time.Now(),
			ExternalAttrs: f.ExternalAttrs,
		}
		if err := writeEntry(zw, hdr, content); err != nil {
			return err
		}
	}

	if !replaced {
		hdr := &zip.FileHeader{Name: entryName, Method: zip.Deflate, Modified: time.Now()}
		if err := writeEntry(zw, hdr, content); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, hdr *zip.FileHeader, content []byte) error {
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", hdr.Name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write entry %s: %w", hdr.Name, err)
	}
	return nil
}

// NamedEntry is one member for Build.
type NamedEntry struct {
	Name    string
	Content []byte
}

// Build returns a new deflated archive containing entries in order.
func Build(entries []NamedEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Now()
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: modified}
		if err := writeEntry(zw, hdr, e.Content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
