// Package archive reads and rewrites the zip container of an XMind document.
//
// All access goes through a billy.Filesystem so the same code runs against
// the OS (osfs) and in-memory filesystems (memfs) in tests.
package archive

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"

	billy "github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/agentic-research/xmindctl/internal/errs"
)

// ContentEntry is the entry holding the JSON sheet list.
const ContentEntry = "content.json"

// Entry describes one member of an archive.
type Entry struct {
	Name             string `json:"name"`
	Method           uint16 `json:"method"`
	CompressedSize   uint64 `json:"compressed_size"`
	UncompressedSize uint64 `json:"size"`
	CRC32            uint32 `json:"crc32"`
	Digest           string `json:"blake3"` // hex BLAKE3-256 of the uncompressed content
}

// reader is an open archive. Close releases the underlying file.
type reader struct {
	*zip.Reader
	file billy.File
}

func (r *reader) Close() error {
	return r.file.Close()
}

func (r *reader) lookup(name string) *zip.File {
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func open(fsys billy.Filesystem, path string) (*reader, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.New(errs.KindNotFound, "open", path, "archive does not exist")
		}
		return nil, errs.Wrap(errs.KindNotFound, "open", path, err)
	}
	if info.IsDir() {
		return nil, errs.New(errs.KindInvalidFormat, "open", path, "path is a directory")
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, "open", path, err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(errs.KindInvalidFormat, "open", path, fmt.Errorf("not a zip archive: %w", err))
	}
	return &reader{Reader: zr, file: f}, nil
}

// Extract returns the uncompressed content of entryName.
func Extract(fsys billy.Filesystem, archivePath, entryName string) ([]byte, error) {
	r, err := open(fsys, archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	f := r.lookup(entryName)
	if f == nil {
		return nil, errs.New(errs.KindMissingEntry, "extract", archivePath, "archive has no %q entry", entryName)
	}
	data, err := readEntry(f)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidFormat, "extract", archivePath, err)
	}
	return data, nil
}

// List describes every entry of the archive in stored order.
func List(fsys billy.Filesystem, archivePath string) ([]Entry, error) {
	r, err := open(fsys, archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		digest, err := digestEntry(f)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidFormat, "list", archivePath, err)
		}
		entries = append(entries, Entry{
			Name:             f.Name,
			Method:           f.Method,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
			CRC32:            f.CRC32,
			Digest:           digest,
		})
	}
	return entries, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return data, nil
}

func digestEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, rc); err != nil {
		return "", fmt.Errorf("hashing entry %s: %w", f.Name, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
