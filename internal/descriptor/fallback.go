package descriptor

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// fallbackDescriptor derives a deterministic pseudo-descriptor from the
// normalized input buffer. The same image always yields the same vector, so
// repeated queries stay comparable with each other while the model is down,
// but the vector carries no facial information and must never be confused
// with genuine output.
func fallbackDescriptor(normalized []float32, length int) []float32 {
	raw := make([]byte, len(normalized)*4)
	for i, v := range normalized {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	seed := sha256.Sum256(raw)

	// Stretch the seed into enough bytes by chained hashing, then map
	// 4-byte words onto [-1, 1].
	out := make([]float32, 0, length)
	block := seed[:]
	for len(out) < length {
		block2 := sha256.Sum256(block)
		block = block2[:]
		for i := 0; i+4 <= len(block) && len(out) < length; i += 4 {
			u := binary.LittleEndian.Uint32(block[i:])
			out = append(out, float32(u)/float32(math.MaxUint32)*2-1)
		}
	}

	return L2Normalize(out)
}
