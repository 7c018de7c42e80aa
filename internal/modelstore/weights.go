package modelstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const float32ByteSize = 4

// decoderPool provides reusable zstd decoders.
var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return d
	},
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// parseFloat32s converts raw little-endian bytes into float32 values.
func parseFloat32s(data []byte) ([]float32, error) {
	if len(data)%float32ByteSize != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of %d bytes", len(data), float32ByteSize)
	}
	out := make([]float32, len(data)/float32ByteSize)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*float32ByteSize:]))
	}
	return out, nil
}

// EncodeWeights serializes values as zstd-compressed little-endian float32.
func EncodeWeights(values []float32) ([]byte, error) {
	raw := make([]byte, len(values)*float32ByteSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*float32ByteSize:], math.Float32bits(v))
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}
