package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressionAlgo names how a stored payload is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which zstd is used.
const DefaultCompressThreshold = 4 * 1024

// PayloadCodec stores JSON payloads inline or zstd-compressed depending on size.
// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
type PayloadCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewPayloadCodec creates a codec. threshold <= 0 uses DefaultCompressThreshold.
func NewPayloadCodec(threshold int) (*PayloadCodec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &PayloadCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// EncodedPayload is a payload ready for the payload/payload_compressed/compression_algo columns.
type EncodedPayload struct {
	JSON       json.RawMessage
	Compressed []byte
	Algo       CompressionAlgo
}

// Encode marshals v; payloads over the threshold are compressed.
func (c *PayloadCodec) Encode(v any) (EncodedPayload, error) {
	if v == nil {
		return EncodedPayload{Algo: CompressionNone}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return EncodedPayload{}, fmt.Errorf("marshal payload: %w", err)
	}
	if len(raw) <= c.threshold {
		return EncodedPayload{JSON: raw, Algo: CompressionNone}, nil
	}
	return EncodedPayload{Compressed: c.encoder.EncodeAll(raw, nil), Algo: CompressionZstd}, nil
}

// Decode restores the JSON of a stored payload into dest.
func (c *PayloadCodec) Decode(p EncodedPayload, dest any) error {
	raw := p.JSON
	if p.Algo == CompressionZstd && len(p.Compressed) > 0 {
		var err error
		raw, err = c.decoder.DecodeAll(p.Compressed, nil)
		if err != nil {
			return fmt.Errorf("decompress payload: %w", err)
		}
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
