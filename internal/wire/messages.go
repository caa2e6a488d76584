package wire

import "github.com/leafsync/leafsync/internal/chunker"

// Tag identifies the payload type carried by a frame (spec §4.D).
type Tag byte

const (
	TagHello         Tag = 0x01
	TagHelloOK       Tag = 0x02
	TagReqSummary    Tag = 0x10
	TagRespSummary   Tag = 0x11
	TagReqManifest   Tag = 0x20
	TagRespManifest  Tag = 0x21
	TagReqChunks     Tag = 0x30
	TagRespChunk     Tag = 0x31
	TagRespChunksEnd Tag = 0x32
	TagError         Tag = 0x7F
	TagBye           Tag = 0xFF
)

// HashAlgo identifies the session hash primitive negotiated in HELLO.
type HashAlgo uint8

const HashAlgoBLAKE3 HashAlgo = 1

// ErrorCode classifies a protocol-level ERROR frame.
type ErrorCode uint16

const (
	ErrCodeVersion     ErrorCode = 1
	ErrCodeChunkSize   ErrorCode = 2
	ErrCodeNotFound    ErrorCode = 3
	ErrCodeBadPath     ErrorCode = 4
	ErrCodeProtocol    ErrorCode = 5
	ErrCodeInternal    ErrorCode = 6
)

// ProtocolVersion is the version negotiated in HELLO/HELLO_OK.
const ProtocolVersion uint16 = 1

// Hello is the client's opening message.
type Hello struct {
	Version   uint16
	ChunkSize uint32
	HashAlgo  HashAlgo
}

// HelloOK echoes the negotiated parameters.
type HelloOK struct {
	Version   uint16
	ChunkSize uint32
	HashAlgo  HashAlgo
}

// ReqSummary optionally scopes the summary request to one file.
type ReqSummary struct {
	ScopePath string // empty means whole tree
}

// RespSummaryEntry mirrors summary.Entry over the wire.
type RespSummaryEntry struct {
	RelativePath string       `json:"relative_path"`
	Size         uint64       `json:"size"`
	Root         chunker.Hash `json:"root"`
}

// RespSummary carries the directory summary.
type RespSummary struct {
	Entries []RespSummaryEntry `json:"entries"`
}

// ReqManifest requests one file's manifest.
type ReqManifest struct {
	RelativePath string
}

// RespManifest carries either a manifest or a not-found marker.
type RespManifest struct {
	NotFound bool                    `json:"not_found,omitempty"`
	Manifest *chunker.FileManifest   `json:"manifest,omitempty"`
}

// ReqChunks requests a sorted, deduplicated set of chunk indices for a file.
type ReqChunks struct {
	RelativePath string
	Indices      []uint32
}

// RespChunk carries one chunk's raw bytes.
type RespChunk struct {
	RelativePath string
	Index        uint32
	Data         []byte
}

// RespChunksEnd signals the end of a REQ_CHUNKS response stream for a file.
type RespChunksEnd struct {
	RelativePath string
}

// ErrorMsg is a protocol-level error in either direction.
type ErrorMsg struct {
	Code    ErrorCode
	Message string
}
