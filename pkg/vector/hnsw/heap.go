package hnsw

import "container/heap"

// minHeap orders candidates nearest-first; searchLayer pops from it to
// expand the closest unvisited candidate next.
type minHeap struct{ items candidateSlice }

func newMinHeap() *minHeap { return &minHeap{} }

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) push(c candidate) { heap.Push(&h.items, c) }

func (h *minHeap) pop() candidate { return heap.Pop(&h.items).(candidate) }

// maxHeap orders candidates farthest-first, so peek/popWorst give the
// current worst member of the running top-ef result set.
type maxHeap struct{ items maxCandidateSlice }

func newMaxHeap() *maxHeap { return &maxHeap{} }

func (h *maxHeap) Len() int { return len(h.items) }

func (h *maxHeap) push(c candidate) { heap.Push(&h.items, c) }

func (h *maxHeap) peek() candidate { return h.items[0] }

func (h *maxHeap) popWorst() candidate { return heap.Pop(&h.items).(candidate) }

// drainSorted empties the heap into a nearest-first slice.
func (h *maxHeap) drainSorted() []candidate {
	out := make([]candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h.items).(candidate)
	}
	return out
}

type candidateSlice []candidate

func (s candidateSlice) Len() int            { return len(s) }
func (s candidateSlice) Less(i, j int) bool  { return s[i].dist < s[j].dist }
func (s candidateSlice) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s *candidateSlice) Push(x interface{}) { *s = append(*s, x.(candidate)) }
func (s *candidateSlice) Pop() interface{} {
	old := *s
	n := len(old)
	item := old[n-1]
	*s = old[:n-1]
	return item
}

type maxCandidateSlice []candidate

func (s maxCandidateSlice) Len() int            { return len(s) }
func (s maxCandidateSlice) Less(i, j int) bool  { return s[i].dist > s[j].dist }
func (s maxCandidateSlice) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s *maxCandidateSlice) Push(x interface{}) { *s = append(*s, x.(candidate)) }
func (s *maxCandidateSlice) Pop() interface{} {
	old := *s
	n := len(old)
	item := old[n-1]
	*s = old[:n-1]
	return item
}
