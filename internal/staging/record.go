// Package staging implements the per-file staging artifact, persistent
// progress bitmap, and atomic finalize discipline (spec §4.F, §6).
package staging

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/leafsync/leafsync/internal/chunker"
)

const (
	recordMagic   = "LSYN"
	recordVersion = uint8(1)
)

// Record is the persistent StagingRecord (spec §3, on-disk format §6).
type Record struct {
	ExpectedRoot chunker.Hash
	ExpectedSize uint64
	ChunkSize    uint32
	ChunkCount   uint32
	Bitmap       []byte // ceil(ChunkCount/8) bytes, LSB = chunk 0
}

// NewRecord creates a fresh record with an all-zero bitmap.
func NewRecord(expectedRoot chunker.Hash, expectedSize uint64, chunkSize uint32, chunkCount uint32) *Record {
	return &Record{
		ExpectedRoot: expectedRoot,
		ExpectedSize: expectedSize,
		ChunkSize:    chunkSize,
		ChunkCount:   chunkCount,
		Bitmap:       make([]byte, (chunkCount+7)/8),
	}
}

// HasChunk reports whether chunk i has been verified and written.
func (r *Record) HasChunk(i uint32) bool {
	if i >= r.ChunkCount {
		return false
	}
	return r.Bitmap[i/8]&(1<<(i%8)) != 0
}

// SetChunk marks chunk i as verified and written.
func (r *Record) SetChunk(i uint32) {
	if i >= r.ChunkCount {
		return
	}
	r.Bitmap[i/8] |= 1 << (i % 8)
}

// MissingIndices returns the sorted indices whose bitmap bit is still zero.
func (r *Record) MissingIndices() []uint32 {
	var missing []uint32
	for i := uint32(0); i < r.ChunkCount; i++ {
		if !r.HasChunk(i) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Complete reports whether every bit is set.
func (r *Record) Complete() bool {
	for i := uint32(0); i < r.ChunkCount; i++ {
		if !r.HasChunk(i) {
			return false
		}
	}
	return true
}

// Matches reports whether this record's identity matches the given
// expected file identity (used to validate an existing .rec on open, and
// to decide whether resume is possible — spec §4.E "Resume").
func (r *Record) Matches(expectedRoot chunker.Hash, expectedSize uint64, chunkSize uint32) bool {
	return r.ExpectedRoot == expectedRoot && r.ExpectedSize == expectedSize && r.ChunkSize == chunkSize
}

// Encode serializes the record to the stable on-disk format:
// magic(4) version(1) expected_root(32) expected_size(8) chunk_size(4)
// chunk_count(4) bitmap(N) crc32(4).
func (r *Record) Encode() []byte {
	buf := make([]byte, 0, 4+1+32+8+4+4+len(r.Bitmap)+4)
	buf = append(buf, []byte(recordMagic)...)
	buf = append(buf, recordVersion)
	buf = append(buf, r.ExpectedRoot[:]...)

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], r.ExpectedSize)
	buf = append(buf, sizeBuf[:]...)

	var chunkSizeBuf [4]byte
	binary.LittleEndian.PutUint32(chunkSizeBuf[:], r.ChunkSize)
	buf = append(buf, chunkSizeBuf[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], r.ChunkCount)
	buf = append(buf, countBuf[:]...)

	buf = append(buf, r.Bitmap...)

	crc := crc32.ChecksumIEEE(buf)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	buf = append(buf, crcBuf[:]...)

	return buf
}

// Decode parses the stable on-disk format, verifying the CRC32 trailer.
func Decode(data []byte) (*Record, error) {
	const headerLen = 4 + 1 + 32 + 8 + 4 + 4
	if len(data) < headerLen+4 {
		return nil, fmt.Errorf("staging record too short: %d bytes", len(data))
	}
	if string(data[0:4]) != recordMagic {
		return nil, fmt.Errorf("bad staging record magic")
	}
	if data[4] != recordVersion {
		return nil, fmt.Errorf("unsupported staging record version: %d", data[4])
	}

	body := data[:len(data)-4]
	wantCRC := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, fmt.Errorf("staging record CRC32 mismatch")
	}

	r := &Record{}
	copy(r.ExpectedRoot[:], data[5:37])
	r.ExpectedSize = binary.LittleEndian.Uint64(data[37:45])
	r.ChunkSize = binary.LittleEndian.Uint32(data[45:49])
	r.ChunkCount = binary.LittleEndian.Uint32(data[49:53])

	bitmapLen := int((r.ChunkCount + 7) / 8)
	if len(data) != headerLen+bitmapLen+4 {
		return nil, fmt.Errorf("staging record bitmap length mismatch")
	}
	r.Bitmap = make([]byte, bitmapLen)
	copy(r.Bitmap, data[53:53+bitmapLen])

	return r, nil
}

// Load reads and decodes a .rec file from path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Save writes the record wholesale to path (rewrite, not patch — spec §9
// "Implementers should prefer rewriting the record wholesale").
func (r *Record) Save(path string) error {
	return os.WriteFile(path, r.Encode(), 0644)
}
