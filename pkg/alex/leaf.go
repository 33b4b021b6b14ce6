package alex

import (
	"errors"

	"github.com/omendb/omendb/pkg/errs"
	"github.com/omendb/omendb/pkg/metrics"
)

// ErrDuplicateKey is returned by Insert when key is already present in
// the leaf -- GappedNode is where primary-key uniqueness is enforced.
var ErrDuplicateKey = errors.New("alex: duplicate key")

// InsertOutcome reports what a leaf-level Insert did, so AlexTree knows
// whether to cascade a split or retrain up to its parent.
type InsertOutcome int

const (
	InsertOK InsertOutcome = iota
	NeedsRetrain
	NeedsSplit
)

// defaultHighWatermark is the density above which a leaf prefers to
// split rather than retrain (spec.md §4.4).
const defaultHighWatermark = 0.8

// targetBuildDensity is the density bulk_load aims for when sizing a
// fresh leaf's slot array.
const targetBuildDensity = 0.6

// slot holds one (key, payload) pair, or is empty.
type slot struct {
	key      int64
	payload  int64
	occupied bool
}

// GappedNode is one leaf of the ALEX tree: a sorted, gap-padded array
// of slots with a trained linear model predicting a key's slot.
type GappedNode struct {
	slots         []slot
	model         Model
	maxError      int
	count         int
	highWatermark float64
	lo, hi        int64
}

// BulkLoad builds a leaf from pairs already sorted ascending by key.
// Duplicate keys in pairs are the caller's error to avoid, not
// GappedNode's to detect (bulk_load trusts its input is already a
// valid keyspace partition).
func BulkLoad(keys []int64, payloads []int64) *GappedNode {
	n := len(keys)
	if n == 0 {
		return &GappedNode{highWatermark: defaultHighWatermark}
	}

	capacity := n
	if want := int(float64(n)/targetBuildDensity + 0.999); want > capacity {
		capacity = want
	}

	targets := make([]int64, n)
	if n == 1 {
		targets[0] = 0
	} else {
		for i := range keys {
			targets[i] = int64(i) * int64(capacity-1) / int64(n-1)
		}
	}
	model := trainOnTargets(keys, targets, capacity)

	slots := make([]slot, capacity)
	last := -1
	for i, k := range keys {
		predicted := model.Predict(k, capacity)
		pos := predicted
		if pos <= last {
			pos = last + 1
		}
		if pos >= len(slots) {
			grown := make([]slot, pos+1)
			copy(grown, slots)
			slots = grown
		}
		slots[pos] = slot{key: k, payload: payloads[i], occupied: true}
		last = pos
	}

	leaf := &GappedNode{
		slots:         slots,
		model:         model,
		count:         n,
		highWatermark: defaultHighWatermark,
		lo:            keys[0],
		hi:            keys[n-1],
	}
	leaf.maxError = leaf.recomputeMaxError()
	return leaf
}

// trainOnTargets fits a Model directly in slot-space rather than
// rank-space, so the predicted slot for keys[i] is close to targets[i].
func trainOnTargets(keys, targets []int64, capacity int) Model {
	n := len(keys)
	if n == 0 {
		return Model{}
	}
	if n == 1 {
		return Model{Slope: 0, Intercept: float64(targets[0])}
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, k := range keys {
		x := float64(k)
		y := float64(targets[i])
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return Model{Slope: 0, Intercept: float64(capacity) / 2}
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf
	return Model{Slope: slope, Intercept: intercept}
}

func (l *GappedNode) recomputeMaxError() int {
	maxErr := 0
	for i, s := range l.slots {
		if !s.occupied {
			continue
		}
		predicted := l.model.Predict(s.key, len(l.slots))
		diff := predicted - i
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			maxErr = diff
		}
	}
	return maxErr
}

// Get looks up key, predicting its slot with the trained model then
// searching an expanding window bounded by maxError.
func (l *GappedNode) Get(key int64) (payload int64, found bool) {
	if len(l.slots) == 0 {
		return 0, false
	}
	predicted := l.model.Predict(key, len(l.slots))

	if l.slots[predicted].occupied && l.slots[predicted].key == key {
		metrics.AlexLeafHitsTotal.Inc()
		return l.slots[predicted].payload, true
	}

	radius := 1
	for radius <= l.maxError+1 {
		lo := predicted - radius
		hi := predicted + radius
		if lo < 0 {
			lo = 0
		}
		if hi >= len(l.slots) {
			hi = len(l.slots) - 1
		}
		for i := lo; i <= hi; i++ {
			if l.slots[i].occupied && l.slots[i].key == key {
				metrics.AlexPositionErrorAbs.Observe(float64(abs(predicted - i)))
				metrics.AlexLeafHitsTotal.Inc()
				return l.slots[i].payload, true
			}
		}
		if lo == 0 && hi == len(l.slots)-1 {
			break
		}
		radius *= 2
	}
	return 0, false
}

// Insert places (key, payload), or reports that the caller must split
// or retrain this leaf first.
func (l *GappedNode) Insert(key, payload int64) (InsertOutcome, error) {
	if _, found := l.Get(key); found {
		return InsertOK, errs.NewBadInput("alex.GappedNode.Insert", ErrDuplicateKey)
	}
	if len(l.slots) == 0 {
		l.slots = make([]slot, 1)
		l.slots[0] = slot{key: key, payload: payload, occupied: true}
		l.count = 1
		l.lo, l.hi = key, key
		return InsertOK, nil
	}

	predicted := l.model.Predict(key, len(l.slots))
	for _, offset := range []int{0, 1, -1, 2, -2} {
		pos := predicted + offset
		if pos < 0 || pos >= len(l.slots) || l.slots[pos].occupied {
			continue
		}
		if !l.respectsOrder(pos, key) {
			continue
		}
		l.slots[pos] = slot{key: key, payload: payload, occupied: true}
		l.count++
		if diff := abs(predicted - pos); diff > l.maxError {
			l.maxError = diff
		}
		if key < l.lo {
			l.lo = key
		}
		if key > l.hi {
			l.hi = key
		}
		return InsertOK, nil
	}

	density := float64(l.count+1) / float64(len(l.slots))
	if density > l.highWatermark {
		return NeedsSplit, nil
	}
	return NeedsRetrain, nil
}

// respectsOrder reports whether placing key at pos keeps the slot
// array's sortedness invariant, by checking the nearest occupied
// neighbors on each side.
func (l *GappedNode) respectsOrder(pos int, key int64) bool {
	for i := pos - 1; i >= 0; i-- {
		if l.slots[i].occupied {
			if l.slots[i].key >= key {
				return false
			}
			break
		}
	}
	for i := pos + 1; i < len(l.slots); i++ {
		if l.slots[i].occupied {
			return l.slots[i].key > key
		}
	}
	return true
}

// Delete removes key from the leaf, reporting whether it was present.
func (l *GappedNode) Delete(key int64) bool {
	predicted := l.model.Predict(key, len(l.slots))
	radius := 0
	for {
		lo := predicted - radius
		hi := predicted + radius
		if lo < 0 {
			lo = 0
		}
		if hi >= len(l.slots) {
			hi = len(l.slots) - 1
		}
		for i := lo; i <= hi; i++ {
			if l.slots[i].occupied && l.slots[i].key == key {
				l.slots[i] = slot{}
				l.count--
				return true
			}
		}
		if lo == 0 && hi == len(l.slots)-1 {
			return false
		}
		radius++
		if radius > l.maxError*2+len(l.slots) {
			return false
		}
	}
}

// Range calls fn for every key in [lo, hi) in ascending order. Returning
// false from fn stops the scan.
func (l *GappedNode) Range(lo, hi int64, fn func(key, payload int64) bool) {
	for _, s := range l.slots {
		if !s.occupied || s.key < lo {
			continue
		}
		if s.key >= hi {
			return
		}
		if !fn(s.key, s.payload) {
			return
		}
	}
}

// Split partitions the leaf at its median occupied key, rebuilding
// both halves from scratch so each gets a freshly trained model.
func (l *GappedNode) Split() (splitKey int64, right *GappedNode) {
	var keys, payloads []int64
	for _, s := range l.slots {
		if s.occupied {
			keys = append(keys, s.key)
			payloads = append(payloads, s.payload)
		}
	}
	mid := len(keys) / 2

	left := BulkLoad(keys[:mid], payloads[:mid])
	right = BulkLoad(keys[mid:], payloads[mid:])
	*l = *left

	metrics.AlexSplitsTotal.Inc()
	return keys[mid], right
}

// Retrain rebuilds this leaf's model (and slot layout) from its
// current contents, without changing the set of keys it holds.
func (l *GappedNode) Retrain() {
	var keys, payloads []int64
	for _, s := range l.slots {
		if s.occupied {
			keys = append(keys, s.key)
			payloads = append(payloads, s.payload)
		}
	}
	*l = *BulkLoad(keys, payloads)
	metrics.AlexRetrainsTotal.Inc()
}

// Density returns the leaf's current occupied-slot fraction.
func (l *GappedNode) Density() float64 {
	if len(l.slots) == 0 {
		return 0
	}
	return float64(l.count) / float64(len(l.slots))
}

// Count returns the number of keys currently stored in the leaf.
func (l *GappedNode) Count() int { return l.count }

// Bounds returns the leaf's observed key range.
func (l *GappedNode) Bounds() (lo, hi int64) { return l.lo, l.hi }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
