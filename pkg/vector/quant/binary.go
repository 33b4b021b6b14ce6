// Package quant implements the two VectorStorage representations named in
// spec.md §3 ("Entity: VectorStorage"): 1-bit binary quantization and
// Extended RaBitQ. Both trade full-precision distance accuracy for a
// packed representation cheap enough to rank the whole index, followed by
// a full-precision rerank over a small expanded candidate set.
package quant

import (
	"math/bits"
	"sort"

	"github.com/omendb/omendb/pkg/errs"
)

// BinaryQuantizer maps each float32 dimension to one bit: 1 if the
// dimension is above that dimension's trained threshold, 0 otherwise.
// Distance between two codes is their Hamming distance, computed via
// popcount over 64-bit words.
type BinaryQuantizer struct {
	dim       int
	threshold []float32
}

// TrainBinaryQuantizer sets each dimension's threshold to the mean of
// that dimension across the sample. A symmetric per-dimension mean
// threshold gives roughly balanced 0/1 bit assignment for centered data,
// which is what embedding models typically produce.
func TrainBinaryQuantizer(dim int, sample [][]float32) (*BinaryQuantizer, error) {
	const op = "quant.TrainBinaryQuantizer"
	if dim <= 0 {
		return nil, errs.NewBadInput(op, nil)
	}
	threshold := make([]float32, dim)
	if len(sample) == 0 {
		return &BinaryQuantizer{dim: dim, threshold: threshold}, nil
	}
	for _, v := range sample {
		if len(v) != dim {
			return nil, errs.Newf(errs.BadInput, op, "sample vector has %d dims, want %d", len(v), dim)
		}
		for i, x := range v {
			threshold[i] += x
		}
	}
	n := float32(len(sample))
	for i := range threshold {
		threshold[i] /= n
	}
	return &BinaryQuantizer{dim: dim, threshold: threshold}, nil
}

// Dim reports the quantizer's input dimensionality.
func (q *BinaryQuantizer) Dim() int { return q.dim }

// CodeWords is how many uint64 words Encode packs dim bits into.
func (q *BinaryQuantizer) CodeWords() int { return (q.dim + 63) / 64 }

// Encode packs v into ceil(dim/64) words, one bit per dimension.
func (q *BinaryQuantizer) Encode(v []float32) ([]uint64, error) {
	const op = "quant.BinaryQuantizer.Encode"
	if len(v) != q.dim {
		return nil, errs.Newf(errs.BadInput, op, "vector has %d dims, want %d", len(v), q.dim)
	}
	code := make([]uint64, q.CodeWords())
	for i, x := range v {
		if x > q.threshold[i] {
			code[i/64] |= 1 << uint(i%64)
		}
	}
	return code, nil
}

// Hamming returns the Hamming distance between two packed codes.
func Hamming(a, b []uint64) int {
	dist := 0
	for i := range a {
		dist += bits.OnesCount64(a[i] ^ b[i])
	}
	return dist
}

// Rerank takes an already-ranked-by-Hamming candidate list of (id, raw
// vector) pairs and returns the top k by full-precision distance,
// computed with fullDist. This is the "rerank with full-precision
// distances" step spec.md §2's data-flow summary describes for vector
// k-NN: quantized search narrows to `expansionFactor * k` candidates,
// then this restores accuracy before truncating to k.
func Rerank(query []float32, candidates []Candidate, k int, fullDist func(a, b []float32) float32) []Candidate {
	scored := make([]Candidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].Distance = fullDist(query, scored[i].Vector)
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// Candidate is one quantized-search hit carried through to rerank.
type Candidate struct {
	ID       uint32
	Vector   []float32
	Distance float32
}
