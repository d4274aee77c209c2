// Package pak reads and writes RPAK archives: a single-file container of
// zstd-compressed game resources indexed by normalized native path. The
// layout is header, entry table, payload blocks, trailer checksum.
package pak

import (
	"encoding/binary"
	"fmt"
)

const (
	headerSize       = 12
	supportedVersion = 1
	checksumSize     = 32 // blake2b-256
)

var magic = [4]byte{'R', 'P', 'A', 'K'}

// Header is the fixed-size archive header.
//
// Bytes:
//   - 0..3:  "RPAK"
//   - 4..7:  version (big-endian)
//   - 8..11: number of entries (big-endian)
type Header struct {
	Version    uint32
	NumEntries uint32
}

// Marshal serializes the header to its canonical 12 bytes.
func (h Header) Marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf[:4], magic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Version)
	binary.BigEndian.PutUint32(buf[8:12], h.NumEntries)
	return buf
}

// UnmarshalHeader parses a canonical RPAK header.
func UnmarshalHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("pak header too short: got %d bytes", len(data))
	}
	if string(data[:4]) != string(magic[:]) {
		return nil, fmt.Errorf("invalid pak magic %q", data[:4])
	}

	version := binary.BigEndian.Uint32(data[4:8])
	if version != supportedVersion {
		return nil, fmt.Errorf("unsupported pak version %d", version)
	}

	return &Header{
		Version:    version,
		NumEntries: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// entryHeader precedes each payload block:
//
//	path length (uint16 BE), path bytes (normalized, UTF-8),
//	uncompressed size (uint64 BE), compressed size (uint64 BE).
func marshalEntryHeader(path string, rawSize, compSize uint64) []byte {
	buf := make([]byte, 2+len(path)+16)
	binary.BigEndian.PutUint16(buf[:2], uint16(len(path)))
	copy(buf[2:], path)
	binary.BigEndian.PutUint64(buf[2+len(path):], rawSize)
	binary.BigEndian.PutUint64(buf[2+len(path)+8:], compSize)
	return buf
}

func unmarshalEntryHeader(data []byte) (path string, rawSize, compSize uint64, n int, err error) {
	if len(data) < 2 {
		return "", 0, 0, 0, fmt.Errorf("truncated entry header")
	}
	pathLen := int(binary.BigEndian.Uint16(data[:2]))
	need := 2 + pathLen + 16
	if len(data) < need {
		return "", 0, 0, 0, fmt.Errorf("truncated entry header (need %d bytes, have %d)", need, len(data))
	}
	path = string(data[2 : 2+pathLen])
	rawSize = binary.BigEndian.Uint64(data[2+pathLen:])
	compSize = binary.BigEndian.Uint64(data[2+pathLen+8:])
	return path, rawSize, compSize, need, nil
}
