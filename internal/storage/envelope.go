package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// Entry layout: magic | version | xxhash64(payload) | zstd(payload).
var magic = []byte("DPRC")

const (
	envelopeVersion = 1
	headerSize      = 4 + 1 + 8
)

type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) seal(data []byte) []byte {
	payload := c.enc.EncodeAll(data, nil)
	out := make([]byte, headerSize, headerSize+len(payload))
	copy(out, magic)
	out[4] = envelopeVersion
	binary.BigEndian.PutUint64(out[5:headerSize], xxhash.Sum64(payload))
	return append(out, payload...)
}

func (c *codec) open(entry []byte) ([]byte, error) {
	if len(entry) < headerSize || !bytes.Equal(entry[:4], magic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if entry[4] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, entry[4])
	}
	payload := entry[headerSize:]
	if binary.BigEndian.Uint64(entry[5:headerSize]) != xxhash.Sum64(payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	data, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return data, nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}
