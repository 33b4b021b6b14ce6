/*
Package simd supplies the distance kernels HNSWIndex and the quantizers in
pkg/vector/quant call on every edge comparison.

# Tier selection

	init() ──► cpuid.CPU.Supports(...) ──► activeTier (scalar/sse2/avx2/avx512/neon)
	L2Squared/InnerProduct/CosineDistance ──► chunkFor(activeTier) unrolled loop

There is exactly one code path per function; the tier only changes the
unroll width fed to the compiler's autovectorizer. Correctness is
identical across tiers -- see distance_test.go's cross-tier equivalence
check -- only throughput differs.

# Usage

	d := simd.Distance(simd.MetricL2, query, candidate)
	if d < best { best = d }
*/
package simd
