package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello frame")
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: got %q want %q", got, payload)
	}
}

func TestFrameLengthIsLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte{0xAB}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	raw := buf.Bytes()
	// length=1 little-endian is 01 00 00 00, not 00 00 00 01.
	if raw[0] != 0x01 || raw[1] != 0x00 || raw[2] != 0x00 || raw[3] != 0x00 {
		t.Fatalf("expected little-endian length prefix, got % x", raw[:4])
	}
}

func TestFrameRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, 4)
	lenBuf[0] = 0xFF
	lenBuf[1] = 0xFF
	lenBuf[2] = 0xFF
	lenBuf[3] = 0x7F // far beyond MaxFrameLength
	buf.Write(lenBuf)

	_, err := ReadFrame(&buf)
	if err == nil {
		t.Fatal("expected error for oversize declared length")
	}
}

func TestHelloCodecRoundTrip(t *testing.T) {
	h := Hello{Version: ProtocolVersion, ChunkSize: 1 << 20, HashAlgo: HashAlgoBLAKE3}
	encoded := EncodeHello(h)

	tag, body, err := PeekTag(encoded)
	if err != nil {
		t.Fatalf("PeekTag: %v", err)
	}
	if tag != TagHello {
		t.Fatalf("expected TagHello, got %v", tag)
	}
	decoded, err := DecodeHello(body)
	if err != nil {
		t.Fatalf("DecodeHello: %v", err)
	}
	if decoded != h {
		t.Errorf("decoded hello mismatch: got %+v want %+v", decoded, h)
	}
}

func TestReqChunksCodecRoundTrip(t *testing.T) {
	m := ReqChunks{RelativePath: "dir/file.bin", Indices: []uint32{0, 2, 5}}
	encoded := EncodeReqChunks(m)

	tag, body, err := PeekTag(encoded)
	if err != nil {
		t.Fatalf("PeekTag: %v", err)
	}
	if tag != TagReqChunks {
		t.Fatalf("expected TagReqChunks, got %v", tag)
	}
	decoded, err := DecodeReqChunks(body)
	if err != nil {
		t.Fatalf("DecodeReqChunks: %v", err)
	}
	if decoded.RelativePath != m.RelativePath || len(decoded.Indices) != len(m.Indices) {
		t.Fatalf("decoded req chunks mismatch: got %+v", decoded)
	}
	for i, idx := range decoded.Indices {
		if idx != m.Indices[i] {
			t.Errorf("index %d mismatch: got %d want %d", i, idx, m.Indices[i])
		}
	}
}

func TestRespChunkCodecRoundTrip(t *testing.T) {
	m := RespChunk{RelativePath: "a.bin", Index: 3, Data: []byte{1, 2, 3, 4}}
	encoded := EncodeRespChunk(m)

	tag, body, err := PeekTag(encoded)
	if err != nil {
		t.Fatalf("PeekTag: %v", err)
	}
	if tag != TagRespChunk {
		t.Fatalf("expected TagRespChunk, got %v", tag)
	}
	decoded, err := DecodeRespChunk(body)
	if err != nil {
		t.Fatalf("DecodeRespChunk: %v", err)
	}
	if decoded.RelativePath != m.RelativePath || decoded.Index != m.Index || !bytes.Equal(decoded.Data, m.Data) {
		t.Errorf("decoded resp chunk mismatch: got %+v", decoded)
	}
}
