// Package vector provides similarity metrics and the in-memory index used for
// top-K retrieval over document chunks.
package vector

import "math"

// Metric selects the similarity function used by the index.
//
// Cosine and euclidean scores are normalized to [0,1] where higher means more
// similar; dot product is the raw inner product and is NOT normalized, so
// callers picking Dot must set their minimum-similarity threshold in the
// query's own scale.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

// Valid reports whether the metric is one of the supported values.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricDot, MetricEuclidean:
		return true
	}
	return false
}

// Score computes the similarity between two equal-length vectors under the
// metric.
func (m Metric) Score(a, b []float32) float64 {
	switch m {
	case MetricDot:
		return DotProduct(a, b)
	case MetricEuclidean:
		return EuclideanSimilarity(a, b)
	default:
		return CosineSimilarity(a, b)
	}
}

// CosineSimilarity returns (cos(a,b)+1)/2, rescaled into [0,1]. A zero-norm
// operand yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

// DotProduct returns the raw inner product of a and b.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// EuclideanSimilarity returns 1/(1+d) where d is the euclidean distance, so
// identical vectors score 1 and the score decays toward 0 with distance.
func EuclideanSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return 1 / (1 + math.Sqrt(sum))
}

// Normalize scales the vector to unit length (L2 norm) in place and returns it.
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
