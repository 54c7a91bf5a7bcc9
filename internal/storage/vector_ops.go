package storage

import (
	"encoding/binary"
	"math"
)

// Vectors are stored as little-endian float32 blobs, 4 bytes per component.
// The same encoding backs the embedding memo and the vector index file.

// SerializeVector encodes a vector as a little-endian float32 blob
func SerializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// DeserializeVector decodes a blob written by SerializeVector. Trailing
// bytes that do not form a whole component are ignored.
func DeserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// InnerProduct returns the dot product of a and b, 0 on dimension mismatch.
// For unit vectors this is the cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 on
// mismatch or zero norm
func CosineSimilarity(a, b []float32) float64 {
	na, nb := norm(a), norm(b)
	if len(a) != len(b) || na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}

// L2Distance returns the euclidean distance between a and b, +Inf on dimension mismatch
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func norm(v []float32) float64 {
	return math.Sqrt(InnerProduct(v, v))
}
