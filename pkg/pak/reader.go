package pak

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/halvect/remod/pkg/resolve"
)

// manifestNames are the archive entry paths checked by TryReadManifest,
// in preference order.
var manifestNames = []string{"modinfo.ini", "info.ini"}

type entry struct {
	rawSize uint64
	comp    []byte
}

// Archive is an opened RPAK file with an in-memory entry index keyed by
// normalized native path. Compressed payloads stay in memory; entries are
// decompressed on demand.
type Archive struct {
	label   string
	entries map[string]entry
}

// Open reads and verifies a full archive file.
func Open(pakPath string) (*Archive, error) {
	data, err := os.ReadFile(pakPath)
	if err != nil {
		return nil, fmt.Errorf("pak open: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pak open %s: %w", pakPath, err)
	}
	a.label = filepath.Base(pakPath)
	return a, nil
}

// Parse decodes a full archive byte slice, verifying the trailer checksum.
func Parse(data []byte) (*Archive, error) {
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("pak too short: %d bytes", len(data))
	}

	payload := data[:len(data)-checksumSize]
	trailer := data[len(data)-checksumSize:]

	sum := blake2b.Sum256(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pak checksum mismatch")
	}

	header, err := UnmarshalHeader(payload[:headerSize])
	if err != nil {
		return nil, err
	}

	offset := headerSize
	entries := make(map[string]entry, header.NumEntries)
	for i := uint32(0); i < header.NumEntries; i++ {
		path, rawSize, compSize, n, err := unmarshalEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n
		if uint64(len(payload)-offset) < compSize {
			return nil, fmt.Errorf("entry %d (%s): truncated payload", i, path)
		}
		entries[resolve.NormalizePath(path)] = entry{
			rawSize: rawSize,
			comp:    payload[offset : offset+int(compSize)],
		}
		offset += int(compSize)
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pak has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &Archive{entries: entries}, nil
}

// Label returns the archive's display name (its file basename).
func (a *Archive) Label() string { return a.label }

// HasEntry reports whether the archive contains the normalized path.
func (a *Archive) HasEntry(norm string) bool {
	_, ok := a.entries[norm]
	return ok
}

// Paths returns all entry paths in sorted order.
func (a *Archive) Paths() []string {
	out := make([]string, 0, len(a.entries))
	for p := range a.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Read decompresses and returns one entry's bytes.
func (a *Archive) Read(path string) ([]byte, error) {
	norm := resolve.NormalizePath(path)
	e, ok := a.entries[norm]
	if !ok {
		return nil, fmt.Errorf("pak %s: no entry %q", a.label, norm)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("pak %s: zstd: %w", a.label, err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(e.comp, nil)
	if err != nil {
		return nil, fmt.Errorf("pak %s entry %q: decompress: %w", a.label, norm, err)
	}
	if uint64(len(raw)) != e.rawSize {
		return nil, fmt.Errorf("pak %s entry %q: size mismatch header=%d decoded=%d", a.label, norm, e.rawSize, len(raw))
	}
	return raw, nil
}

// TryReadManifest returns the raw bytes of a mod manifest entry if the
// archive carries one under a recognized name at its root.
func (a *Archive) TryReadManifest() ([]byte, bool) {
	for _, name := range manifestNames {
		if a.HasEntry(name) {
			data, err := a.Read(name)
			if err != nil {
				continue
			}
			return data, true
		}
	}
	return nil, false
}

// UnpackTo extracts every entry beneath dir, recreating the entry paths as
// subdirectories.
func (a *Archive) UnpackTo(dir string) error {
	for _, p := range a.Paths() {
		data, err := a.Read(p)
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("pak unpack mkdir: %w", err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("pak unpack %s: %w", p, err)
		}
	}
	return nil
}

// AddFiles rewrites the archive at pakPath with the given files merged in.
// Existing entries with the same normalized path are replaced. A missing
// archive file is created from scratch.
func AddFiles(pakPath string, files map[string][]byte) error {
	merged := make(map[string][]byte)

	if _, err := os.Stat(pakPath); err == nil {
		a, err := Open(pakPath)
		if err != nil {
			return err
		}
		for _, p := range a.Paths() {
			data, err := a.Read(p)
			if err != nil {
				return err
			}
			merged[p] = data
		}
	}

	for p, data := range files {
		merged[resolve.NormalizePath(p)] = data
	}
	return Create(pakPath, merged)
}
