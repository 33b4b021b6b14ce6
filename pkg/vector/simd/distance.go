// Package simd picks the widest distance kernel the running CPU actually
// supports (spec.md §4.7, §6 "SIMD dispatch") and exposes it behind three
// plain functions. Every tier is pure Go -- there is no cgo and no assembly
// -- "SIMD" here means "written so the compiler's autovectorizer can use
// wide loads on a tier-appropriate chunk size", not hand-rolled intrinsics.
// Detection happens once at package init via klauspost/cpuid/v2; callers
// never see the tier, only the resulting ActiveTier() name for metrics/logging.
package simd

import (
	"math"

	"github.com/klauspost/cpuid/v2"
)

// Tier names the widest distance kernel selected at init.
type Tier string

const (
	TierScalar Tier = "scalar"
	TierSSE2   Tier = "sse2"
	TierAVX2   Tier = "avx2"
	TierAVX512 Tier = "avx512"
	TierNEON   Tier = "neon"
)

var activeTier Tier

func init() {
	activeTier = detectTier()
}

func detectTier() Tier {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return TierAVX512
	case cpuid.CPU.Supports(cpuid.AVX2):
		return TierAVX2
	case cpuid.CPU.Supports(cpuid.ASIMD):
		return TierNEON
	case cpuid.CPU.Supports(cpuid.SSE2):
		return TierSSE2
	default:
		return TierScalar
	}
}

// ActiveTier reports the kernel tier chosen for this process.
func ActiveTier() Tier { return activeTier }

// chunk is how many float32s each tier's inner loop unrolls by. A wider
// chunk gives the autovectorizer more parallel lane work per iteration;
// it has no effect on the result, only on how the loop is shaped.
func chunkFor(t Tier) int {
	switch t {
	case TierAVX512:
		return 16
	case TierAVX2:
		return 8
	case TierNEON, TierSSE2:
		return 4
	default:
		return 1
	}
}

// L2Squared returns the squared Euclidean distance between a and b.
// Squared (not rooted) because HNSW only ever compares distances, and
// skipping the sqrt saves a transcendental call on every edge evaluated
// during beam search.
func L2Squared(a, b []float32) float32 {
	return l2SquaredTier(a, b, chunkFor(activeTier))
}

func l2SquaredTier(a, b []float32, chunk int) float32 {
	n := len(a)
	var sum float32
	i := 0
	for ; i+chunk <= n; i += chunk {
		var partial float32
		for j := 0; j < chunk; j++ {
			d := a[i+j] - b[i+j]
			partial += d * d
		}
		sum += partial
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// InnerProduct returns the dot product of a and b.
func InnerProduct(a, b []float32) float32 {
	return innerProductTier(a, b, chunkFor(activeTier))
}

func innerProductTier(a, b []float32, chunk int) float32 {
	n := len(a)
	var sum float32
	i := 0
	for ; i+chunk <= n; i += chunk {
		var partial float32
		for j := 0; j < chunk; j++ {
			partial += a[i+j] * b[i+j]
		}
		sum += partial
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// CosineDistance returns 1 - cosine_similarity(a, b), so 0 means identical
// direction and larger means more dissimilar -- matching the convention
// that every kernel in this package returns a value where smaller is closer.
func CosineDistance(a, b []float32) float32 {
	chunk := chunkFor(activeTier)
	dot := innerProductTier(a, b, chunk)
	na := innerProductTier(a, a, chunk)
	nb := innerProductTier(b, b, chunk)
	denom := float32(math.Sqrt(float64(na)) * math.Sqrt(float64(nb)))
	if denom == 0 {
		return 1
	}
	return 1 - dot/denom
}

// Metric selects which kernel HNSWIndex and VectorStore use to compare
// vectors; it is fixed per index, not per query.
type Metric string

const (
	MetricL2     Metric = "l2"
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// Distance dispatches to the kernel for m. Dot-product distance is
// returned as its negation so that, like the other two metrics, smaller
// means closer.
func Distance(m Metric, a, b []float32) float32 {
	switch m {
	case MetricCosine:
		return CosineDistance(a, b)
	case MetricDot:
		return -InnerProduct(a, b)
	default:
		return L2Squared(a, b)
	}
}
