package hnsw

import "sync"

// QueryBuffers holds the per-query scratch state Search would otherwise
// allocate fresh on every call: visited-set, candidate heap, and result
// heap backing arrays. spec.md §6 calls out thread-local query buffers
// as the one exception to "no global state in the core"; a sync.Pool is
// the idiomatic Go stand-in for a thread-local scratch arena, since
// goroutines (unlike OS threads) don't have stable per-goroutine
// storage to hang a buffer off of.
type QueryBuffers struct {
	visited    map[uint32]bool
	candidates candidateSlice
	results    maxCandidateSlice
}

var bufferPool = sync.Pool{
	New: func() any {
		return &QueryBuffers{visited: make(map[uint32]bool)}
	},
}

// AcquireQueryBuffers takes a QueryBuffers from the pool, already reset
// to empty.
func AcquireQueryBuffers() *QueryBuffers {
	b := bufferPool.Get().(*QueryBuffers)
	b.reset()
	return b
}

// Release returns b to the pool for reuse by a later query.
func (b *QueryBuffers) Release() {
	bufferPool.Put(b)
}

func (b *QueryBuffers) reset() {
	for k := range b.visited {
		delete(b.visited, k)
	}
	b.candidates = b.candidates[:0]
	b.results = b.results[:0]
}
