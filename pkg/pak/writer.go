package pak

import (
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/halvect/remod/pkg/resolve"
)

// Writer emits an RPAK stream with zstd-compressed entries. The trailer
// checksum is blake2b-256 over all bytes preceding it.
type Writer struct {
	hasher   hash.Hash
	hashedW  io.Writer
	enc      *zstd.Encoder
	expected uint32
	written  uint32
	finished bool
}

// NewWriter initializes a Writer and emits the fixed header.
func NewWriter(out io.Writer, numEntries uint32) (*Writer, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("pak writer: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("pak writer: zstd: %w", err)
	}

	w := &Writer{
		hasher:   hasher,
		hashedW:  io.MultiWriter(out, hasher),
		enc:      enc,
		expected: numEntries,
	}

	header := Header{Version: supportedVersion, NumEntries: numEntries}
	if _, err := w.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pak header: %w", err)
	}
	return w, nil
}

// WriteEntry appends one resource under its normalized native path.
func (w *Writer) WriteEntry(path string, data []byte) error {
	if w.finished {
		return fmt.Errorf("pak writer: already finished")
	}
	if w.written >= w.expected {
		return fmt.Errorf("pak writer: entry count exceeded (expected %d)", w.expected)
	}

	norm := resolve.NormalizePath(path)
	if norm == "" {
		return fmt.Errorf("pak writer: empty entry path")
	}

	comp := w.enc.EncodeAll(data, nil)
	hdr := marshalEntryHeader(norm, uint64(len(data)), uint64(len(comp)))
	if _, err := w.hashedW.Write(hdr); err != nil {
		return fmt.Errorf("pak entry %q: header: %w", norm, err)
	}
	if _, err := w.hashedW.Write(comp); err != nil {
		return fmt.Errorf("pak entry %q: payload: %w", norm, err)
	}
	w.written++
	return nil
}

// Finish writes the trailer checksum. No entries may follow.
func (w *Writer) Finish() error {
	if w.finished {
		return fmt.Errorf("pak writer: already finished")
	}
	if w.written != w.expected {
		return fmt.Errorf("pak writer: wrote %d entries, expected %d", w.written, w.expected)
	}
	w.finished = true
	defer w.enc.Close()

	if _, err := w.hashedW.Write(w.hasher.Sum(nil)); err != nil {
		return fmt.Errorf("write pak trailer: %w", err)
	}
	return nil
}

// Create writes a complete archive file from a path-to-data map. Entries are
// emitted in sorted path order so identical inputs produce identical
// archives. The write is atomic: temp file, then rename.
func Create(pakPath string, entries map[string][]byte) error {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	tmp, err := os.CreateTemp(filepath.Dir(pakPath), ".pak-tmp-*")
	if err != nil {
		return fmt.Errorf("pak create: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	w, err := NewWriter(tmp, uint32(len(paths)))
	if err == nil {
		for _, p := range paths {
			if err = w.WriteEntry(p, entries[p]); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = w.Finish()
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pak create: close: %w", err)
	}
	if err := os.Rename(tmpName, pakPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("pak create: rename: %w", err)
	}
	return nil
}
