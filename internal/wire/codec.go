package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/leafsync/leafsync/internal/syncerr"
)

func putString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func getString(payload []byte, offset int) (string, int, error) {
	if offset+2 > len(payload) {
		return "", 0, fmt.Errorf("truncated string length")
	}
	n := int(binary.LittleEndian.Uint16(payload[offset : offset+2]))
	offset += 2
	if offset+n > len(payload) {
		return "", 0, fmt.Errorf("truncated string body")
	}
	return string(payload[offset : offset+n]), offset + n, nil
}

// EncodeHello encodes a HELLO frame payload (tag + fixed fields).
func EncodeHello(h Hello) []byte {
	buf := []byte{byte(TagHello)}
	var tmp [6]byte
	binary.LittleEndian.PutUint16(tmp[0:2], h.Version)
	binary.LittleEndian.PutUint32(tmp[2:6], h.ChunkSize)
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(h.HashAlgo))
	return buf
}

func DecodeHello(payload []byte) (Hello, error) {
	if len(payload) < 7 {
		return Hello{}, syncerr.New(syncerr.KindProtocol, "decode_hello", fmt.Errorf("short payload"))
	}
	return Hello{
		Version:   binary.LittleEndian.Uint16(payload[0:2]),
		ChunkSize: binary.LittleEndian.Uint32(payload[2:6]),
		HashAlgo:  HashAlgo(payload[6]),
	}, nil
}

// EncodeHelloOK encodes a HELLO_OK frame payload.
func EncodeHelloOK(h HelloOK) []byte {
	buf := []byte{byte(TagHelloOK)}
	var tmp [6]byte
	binary.LittleEndian.PutUint16(tmp[0:2], h.Version)
	binary.LittleEndian.PutUint32(tmp[2:6], h.ChunkSize)
	buf = append(buf, tmp[:]...)
	buf = append(buf, byte(h.HashAlgo))
	return buf
}

func DecodeHelloOK(payload []byte) (HelloOK, error) {
	if len(payload) < 7 {
		return HelloOK{}, syncerr.New(syncerr.KindProtocol, "decode_hello_ok", fmt.Errorf("short payload"))
	}
	return HelloOK{
		Version:   binary.LittleEndian.Uint16(payload[0:2]),
		ChunkSize: binary.LittleEndian.Uint32(payload[2:6]),
		HashAlgo:  HashAlgo(payload[6]),
	}, nil
}

// EncodeReqSummary encodes a REQ_SUMMARY frame payload.
func EncodeReqSummary(m ReqSummary) []byte {
	buf := []byte{byte(TagReqSummary)}
	return putString(buf, m.ScopePath)
}

func DecodeReqSummary(payload []byte) (ReqSummary, error) {
	s, _, err := getString(payload, 0)
	if err != nil {
		return ReqSummary{}, syncerr.New(syncerr.KindProtocol, "decode_req_summary", err)
	}
	return ReqSummary{ScopePath: s}, nil
}

// EncodeRespSummary encodes a RESP_SUMMARY frame payload as JSON (variable,
// nested entry list — spec allows any self-describing canonical encoding).
func EncodeRespSummary(m RespSummary) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(TagRespSummary)}, body...), nil
}

func DecodeRespSummary(payload []byte) (RespSummary, error) {
	var m RespSummary
	if err := json.Unmarshal(payload, &m); err != nil {
		return RespSummary{}, syncerr.New(syncerr.KindProtocol, "decode_resp_summary", err)
	}
	return m, nil
}

// EncodeReqManifest encodes a REQ_MANIFEST frame payload.
func EncodeReqManifest(m ReqManifest) []byte {
	buf := []byte{byte(TagReqManifest)}
	return putString(buf, m.RelativePath)
}

func DecodeReqManifest(payload []byte) (ReqManifest, error) {
	s, _, err := getString(payload, 0)
	if err != nil {
		return ReqManifest{}, syncerr.New(syncerr.KindProtocol, "decode_req_manifest", err)
	}
	return ReqManifest{RelativePath: s}, nil
}

// EncodeRespManifest encodes a RESP_MANIFEST frame payload as JSON.
func EncodeRespManifest(m RespManifest) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(TagRespManifest)}, body...), nil
}

func DecodeRespManifest(payload []byte) (RespManifest, error) {
	var m RespManifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return RespManifest{}, syncerr.New(syncerr.KindProtocol, "decode_resp_manifest", err)
	}
	return m, nil
}

// EncodeReqChunks encodes a REQ_CHUNKS frame payload.
func EncodeReqChunks(m ReqChunks) []byte {
	buf := []byte{byte(TagReqChunks)}
	buf = putString(buf, m.RelativePath)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m.Indices)))
	buf = append(buf, countBuf[:]...)
	for _, idx := range m.Indices {
		var idxBuf [4]byte
		binary.LittleEndian.PutUint32(idxBuf[:], idx)
		buf = append(buf, idxBuf[:]...)
	}
	return buf
}

func DecodeReqChunks(payload []byte) (ReqChunks, error) {
	path, offset, err := getString(payload, 0)
	if err != nil {
		return ReqChunks{}, syncerr.New(syncerr.KindProtocol, "decode_req_chunks", err)
	}
	if offset+4 > len(payload) {
		return ReqChunks{}, syncerr.New(syncerr.KindProtocol, "decode_req_chunks", fmt.Errorf("truncated count"))
	}
	count := int(binary.LittleEndian.Uint32(payload[offset : offset+4]))
	offset += 4
	indices := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		if offset+4 > len(payload) {
			return ReqChunks{}, syncerr.New(syncerr.KindProtocol, "decode_req_chunks", fmt.Errorf("truncated index list"))
		}
		indices = append(indices, binary.LittleEndian.Uint32(payload[offset:offset+4]))
		offset += 4
	}
	return ReqChunks{RelativePath: path, Indices: indices}, nil
}

// EncodeRespChunk encodes a RESP_CHUNK frame payload: path, index, then raw
// chunk bytes (not JSON-wrapped, to avoid base64 inflation of bulk data).
func EncodeRespChunk(m RespChunk) []byte {
	buf := []byte{byte(TagRespChunk)}
	buf = putString(buf, m.RelativePath)
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], m.Index)
	buf = append(buf, idxBuf[:]...)
	return append(buf, m.Data...)
}

func DecodeRespChunk(payload []byte) (RespChunk, error) {
	path, offset, err := getString(payload, 0)
	if err != nil {
		return RespChunk{}, syncerr.New(syncerr.KindProtocol, "decode_resp_chunk", err)
	}
	if offset+4 > len(payload) {
		return RespChunk{}, syncerr.New(syncerr.KindProtocol, "decode_resp_chunk", fmt.Errorf("truncated index"))
	}
	index := binary.LittleEndian.Uint32(payload[offset : offset+4])
	offset += 4
	data := payload[offset:]
	return RespChunk{RelativePath: path, Index: index, Data: data}, nil
}

// EncodeRespChunksEnd encodes a RESP_CHUNKS_END frame payload.
func EncodeRespChunksEnd(m RespChunksEnd) []byte {
	buf := []byte{byte(TagRespChunksEnd)}
	return putString(buf, m.RelativePath)
}

func DecodeRespChunksEnd(payload []byte) (RespChunksEnd, error) {
	s, _, err := getString(payload, 0)
	if err != nil {
		return RespChunksEnd{}, syncerr.New(syncerr.KindProtocol, "decode_resp_chunks_end", err)
	}
	return RespChunksEnd{RelativePath: s}, nil
}

// EncodeError encodes an ERROR frame payload.
func EncodeError(m ErrorMsg) []byte {
	buf := []byte{byte(TagError)}
	var codeBuf [2]byte
	binary.LittleEndian.PutUint16(codeBuf[:], uint16(m.Code))
	buf = append(buf, codeBuf[:]...)
	return putString(buf, m.Message)
}

func DecodeError(payload []byte) (ErrorMsg, error) {
	if len(payload) < 2 {
		return ErrorMsg{}, syncerr.New(syncerr.KindProtocol, "decode_error", fmt.Errorf("short payload"))
	}
	code := ErrorCode(binary.LittleEndian.Uint16(payload[0:2]))
	msg, _, err := getString(payload, 2)
	if err != nil {
		return ErrorMsg{}, syncerr.New(syncerr.KindProtocol, "decode_error", err)
	}
	return ErrorMsg{Code: code, Message: msg}, nil
}

// EncodeBye encodes a BYE frame payload (empty body).
func EncodeBye() []byte { return []byte{byte(TagBye)} }

// PeekTag returns the message tag from a frame payload without decoding
// the body.
func PeekTag(payload []byte) (Tag, []byte, error) {
	if len(payload) < 1 {
		return 0, nil, syncerr.New(syncerr.KindProtocol, "peek_tag", fmt.Errorf("empty frame"))
	}
	return Tag(payload[0]), payload[1:], nil
}
