/*
Package quant implements the two quantized VectorStorage representations
from spec.md's VectorIndexParams.Quantization: 1-bit binary and
multi-bit Extended RaBitQ.

	QuantizationNone   -> full float32 vectors only, no quant package involved
	QuantizationBinary -> BinaryQuantizer: one bit/dim, Hamming-ranked
	QuantizationRaBitQ -> RaBitQQuantizer: bitsPerDim levels/dim, dynamic per-vector range

Both quantizers are used the same way by pkg/vectorstore: quantized codes
rank the whole index cheaply, the top `expansionFactor * k` candidates are
then reranked with pkg/vector/simd's full-precision kernels via Rerank,
and only the top k of that reranked list are returned.
*/
package quant
