package index

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// Snapshot layout, all integers little-endian:
//
//	magic "RAGX" | version u16 | header length u32 | header JSON
//	body length u64 | zstd(body) | xxhash64(header JSON, zstd(body)) u64
//
// body is the flat float32 vector block followed by a u64 length and the JSON
// array of chunks in insertion order.
const (
	snapshotVersion uint16 = 2

	maxHeaderBytes = 1 << 20
	maxBodyBytes   = 1 << 36
)

var snapshotMagic = [4]byte{'R', 'A', 'G', 'X'}

// Expectation is what a loaded snapshot must agree with. An empty Model
// accepts any model name.
type Expectation struct {
	Dimension int
	Model     string
}

// Encode writes ix to w.
func Encode(w io.Writer, ix *MemoryIndex) error {
	s := ix.snap.Load()

	header := domain.IndexHeader{
		Dimension:      ix.dimension,
		EntryCount:     len(s.chunks),
		EmbeddingModel: s.model,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal index header: %w", err)
	}

	meta, err := json.Marshal(s.chunks)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk metadata: %w", err)
	}

	raw := make([]byte, 0, len(s.vectors)*4+8+len(meta))
	for _, v := range s.vectors {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	raw = binary.LittleEndian.AppendUint64(raw, uint64(len(meta)))
	raw = append(raw, meta...)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	body := enc.EncodeAll(raw, nil)
	enc.Close()

	var out bytes.Buffer
	out.Write(snapshotMagic[:])
	_ = binary.Write(&out, binary.LittleEndian, snapshotVersion)
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(headerJSON)))
	out.Write(headerJSON)
	_ = binary.Write(&out, binary.LittleEndian, uint64(len(body)))
	out.Write(body)
	_ = binary.Write(&out, binary.LittleEndian, checksum(headerJSON, body))

	if _, err := w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// DecodeHeader reads and validates only the snapshot preamble. The header is
// not covered by the checksum until the body has been read, so callers must
// not size allocations from it.
func DecodeHeader(r io.Reader) (domain.IndexHeader, error) {
	header, _, err := readHeader(r)
	return header, err
}

func readHeader(r io.Reader) (domain.IndexHeader, []byte, error) {
	var header domain.IndexHeader

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return header, nil, corrupt("read magic", err)
	}
	if magic != snapshotMagic {
		return header, nil, domain.IndexCorruptError("bad magic %q", magic[:])
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return header, nil, corrupt("read version", err)
	}
	if version != snapshotVersion {
		return header, nil, domain.IndexCorruptError("unsupported snapshot version %d", version)
	}

	var headerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return header, nil, corrupt("read header length", err)
	}
	if headerLen == 0 || headerLen > maxHeaderBytes {
		return header, nil, domain.IndexCorruptError("header length %d out of range", headerLen)
	}
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return header, nil, corrupt("read header", err)
	}
	if err := json.Unmarshal(buf, &header); err != nil {
		return header, nil, corrupt("parse header", err)
	}
	if header.Dimension <= 0 || header.EntryCount < 0 {
		return header, nil, domain.IndexCorruptError("invalid header: dimension=%d entries=%d", header.Dimension, header.EntryCount)
	}
	return header, buf, nil
}

// Decode reads a snapshot written by Encode. The header is checked against
// expect before the body is read.
func Decode(r io.Reader, expect Expectation) (*MemoryIndex, error) {
	header, headerJSON, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if header.Dimension != expect.Dimension {
		return nil, domain.IndexCorruptError("snapshot dimension %d does not match configured %d", header.Dimension, expect.Dimension)
	}
	if expect.Model != "" && header.EmbeddingModel != expect.Model {
		return nil, domain.IndexCorruptError("snapshot model %q does not match configured %q", header.EmbeddingModel, expect.Model)
	}

	var bodyLen uint64
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return nil, corrupt("read body length", err)
	}
	if bodyLen > maxBodyBytes {
		return nil, domain.IndexCorruptError("body length %d out of range", bodyLen)
	}
	body, err := io.ReadAll(io.LimitReader(r, int64(bodyLen)))
	if err != nil {
		return nil, corrupt("read body", err)
	}
	if uint64(len(body)) != bodyLen {
		return nil, domain.IndexCorruptError("truncated snapshot: body has %d of %d bytes", len(body), bodyLen)
	}
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, corrupt("read checksum", err)
	}
	if sum != checksum(headerJSON, body) {
		return nil, domain.IndexCorruptError("checksum mismatch")
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, corrupt("decompress body", err)
	}

	if len(raw) < 8 || header.EntryCount > (len(raw)-8)/(4*header.Dimension) {
		return nil, domain.IndexCorruptError("body too short for %d entries", header.EntryCount)
	}
	vecBytes := header.EntryCount * header.Dimension * 4
	vectors := make([]float32, header.EntryCount*header.Dimension)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	metaLen := binary.LittleEndian.Uint64(raw[vecBytes:])
	meta := raw[vecBytes+8:]
	if uint64(len(meta)) != metaLen {
		return nil, domain.IndexCorruptError("metadata length %d does not match recorded %d", len(meta), metaLen)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(meta, &chunks); err != nil {
		return nil, corrupt("parse chunk metadata", err)
	}
	if len(chunks) != header.EntryCount {
		return nil, domain.IndexCorruptError("metadata has %d entries, header records %d", len(chunks), header.EntryCount)
	}

	ix := NewMemoryIndex(header.Dimension, header.EmbeddingModel)
	ix.snap.Store(&snapshot{chunks: chunks, vectors: vectors, model: header.EmbeddingModel, generation: 1})
	return ix, nil
}

func checksum(headerJSON, body []byte) uint64 {
	d := xxhash.New()
	_, _ = d.Write(headerJSON)
	_, _ = d.Write(body)
	return d.Sum64()
}

func corrupt(step string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexCorrupt, "truncated snapshot: "+step, err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeIndexCorrupt, step, err)
}
