package alex

import "sort"

// defaultLeafCapacity and defaultFanout are spec.md §4 mid-range
// defaults (leaf slots "typ. 256-4096", inner fanout "256-1024").
const (
	defaultLeafCapacity = 1024
	defaultFanout       = 512
)

// innerNode routes a key to one of its children using a trained model
// for an initial guess, corrected by exact binary search over
// splitKeys -- splitKeys always fits comfortably in an L1/L2 cache
// line at the configured fanout, so the correction step is cheap.
type innerNode struct {
	splitKeys []int64 // len(children)-1; splitKeys[i] is the first key of children[i+1]
	children  []*node
	model     Model
}

// node is either a leaf or an inner routing node.
type node struct {
	isLeaf bool
	leaf   *GappedNode
	inner  *innerNode
}

// AlexTree is the multi-level learned index: a root InnerNode over a
// tree of InnerNodes bottoming out at GappedNode leaves.
type AlexTree struct {
	root         *node
	height       int
	leafCapacity int
	fanout       int
	count        int
}

// pathStep records one hop taken while descending to a leaf, so an
// Insert that triggers a split can walk back up and patch each
// ancestor in turn.
type pathStep struct {
	inner    *innerNode
	childIdx int
}

// NewAlexTree returns an empty tree with spec.md's default leaf
// capacity and fanout.
func NewAlexTree() *AlexTree {
	return &AlexTree{
		root:         &node{isLeaf: true, leaf: BulkLoad(nil, nil)},
		leafCapacity: defaultLeafCapacity,
		fanout:       defaultFanout,
	}
}

// BulkBuild constructs a tree from pairs already sorted ascending by
// key, choosing height = ceil(log_fanout(n/leafCapacity)) by building
// bottom-up until a single root remains.
func BulkBuild(keys, payloads []int64, leafCapacity, fanout int) *AlexTree {
	if leafCapacity <= 0 {
		leafCapacity = defaultLeafCapacity
	}
	if fanout <= 0 {
		fanout = defaultFanout
	}
	if len(keys) == 0 {
		return &AlexTree{root: &node{isLeaf: true, leaf: BulkLoad(nil, nil)}, leafCapacity: leafCapacity, fanout: fanout}
	}

	var level []*node
	for start := 0; start < len(keys); start += leafCapacity {
		end := start + leafCapacity
		if end > len(keys) {
			end = len(keys)
		}
		leaf := BulkLoad(keys[start:end], payloads[start:end])
		level = append(level, &node{isLeaf: true, leaf: leaf})
	}

	height := 0
	for len(level) > 1 {
		var next []*node
		for start := 0; start < len(level); start += fanout {
			end := start + fanout
			if end > len(level) {
				end = len(level)
			}
			next = append(next, &node{inner: buildInner(level[start:end])})
		}
		level = next
		height++
	}

	return &AlexTree{root: level[0], height: height, leafCapacity: leafCapacity, fanout: fanout, count: len(keys)}
}

func buildInner(children []*node) *innerNode {
	boundaries := make([]int64, len(children))
	for i, c := range children {
		lo, _ := nodeBounds(c)
		boundaries[i] = lo
	}
	splitKeys := append([]int64(nil), boundaries[1:]...)
	return &innerNode{
		splitKeys: splitKeys,
		children:  children,
		model:     TrainOLS(boundaries),
	}
}

func nodeBounds(n *node) (lo, hi int64) {
	if n.isLeaf {
		return n.leaf.Bounds()
	}
	loChild, _ := nodeBounds(n.inner.children[0])
	_, hiChild := nodeBounds(n.inner.children[len(n.inner.children)-1])
	return loChild, hiChild
}

// route picks which child key belongs under. The model's prediction is
// the first guess; a binary search over splitKeys on the side of the
// guess where the answer lies then corrects it, so the result is exact
// however good the guess was.
func (in *innerNode) route(key int64) int {
	if len(in.splitKeys) == 0 {
		return 0
	}
	g := in.model.Predict(key, len(in.children))
	if g > 0 && in.splitKeys[g-1] > key {
		return sort.Search(g, func(i int) bool { return in.splitKeys[i] > key })
	}
	return g + sort.Search(len(in.splitKeys)-g, func(i int) bool { return in.splitKeys[g+i] > key })
}

// Get returns the payload stored under key, if present.
func (t *AlexTree) Get(key int64) (payload int64, found bool) {
	n := t.root
	for !n.isLeaf {
		n = n.inner.children[n.inner.route(key)]
	}
	return n.leaf.Get(key)
}

// Range calls fn for every (key, payload) pair in [lo, hi) in
// ascending key order. Returning false from fn stops the scan.
func (t *AlexTree) Range(lo, hi int64, fn func(key, payload int64) bool) {
	walkRange(t.root, lo, hi, fn)
}

func walkRange(n *node, lo, hi int64, fn func(int64, int64) bool) bool {
	nlo, nhi := nodeBounds(n)
	if n.leaf != nil && n.leaf.Count() == 0 {
		return true
	}
	if nhi < lo || nlo >= hi {
		return true
	}
	if n.isLeaf {
		cont := true
		n.leaf.Range(lo, hi, func(k, p int64) bool {
			cont = fn(k, p)
			return cont
		})
		return cont
	}
	for _, c := range n.inner.children {
		if !walkRange(c, lo, hi, fn) {
			return false
		}
	}
	return true
}

// Insert adds (key, payload), cascading leaf and inner-node splits up
// to the root as needed, growing the tree's height by one if the root
// itself must split.
func (t *AlexTree) Insert(key, payload int64) error {
	n := t.root
	var path []pathStep
	for !n.isLeaf {
		idx := n.inner.route(key)
		path = append(path, pathStep{inner: n.inner, childIdx: idx})
		n = n.inner.children[idx]
	}
	leaf := n.leaf

	outcome, err := leaf.Insert(key, payload)
	if err != nil {
		return err
	}
	if outcome == NeedsRetrain {
		leaf.Retrain()
		outcome, err = leaf.Insert(key, payload)
		if err != nil {
			return err
		}
	}
	if outcome == InsertOK {
		t.count++
		return nil
	}

	// outcome == NeedsSplit (or retrain still didn't free a slot).
	splitKey, right := leaf.Split()
	rightNode := &node{isLeaf: true, leaf: right}
	t.insertChildAfter(path, n, rightNode, splitKey)

	target := leaf
	if key >= splitKey {
		target = right
	}
	outcome, err = target.Insert(key, payload)
	if err != nil {
		return err
	}
	if outcome != InsertOK {
		return t.Insert(key, payload)
	}
	t.count++
	return nil
}

// insertChildAfter patches newChild into the tree immediately after
// leftNode in its parent's children, cascading a parent split if that
// overflows the configured fanout, up to growing a new root.
func (t *AlexTree) insertChildAfter(path []pathStep, leftNode *node, newChild *node, splitKey int64) {
	if len(path) == 0 {
		// leftNode was the root: wrap both halves in a fresh InnerNode
		// and grow the tree's height by one.
		t.root = &node{inner: buildInner([]*node{leftNode, newChild})}
		t.height++
		return
	}

	step := path[len(path)-1]
	in := step.inner
	idx := step.childIdx

	children := make([]*node, 0, len(in.children)+1)
	children = append(children, in.children[:idx+1]...)
	children = append(children, newChild)
	children = append(children, in.children[idx+1:]...)

	keys := make([]int64, 0, len(in.splitKeys)+1)
	keys = append(keys, in.splitKeys[:idx]...)
	keys = append(keys, splitKey)
	keys = append(keys, in.splitKeys[idx:]...)

	in.children = children
	in.splitKeys = keys

	if len(in.children) <= t.fanout {
		in.model = TrainOLS(boundaryKeysOf(in.children))
		return
	}

	// Parent overflowed fanout: split it into two InnerNodes and
	// cascade the new split key up to its own parent.
	mid := len(in.children) / 2
	leftChildren := in.children[:mid]
	rightChildren := in.children[mid:]
	rightSplitKey, _ := nodeBounds(rightChildren[0])

	*in = *buildInner(leftChildren)
	leftInner := &node{inner: in}
	rightInner := &node{inner: buildInner(rightChildren)}

	t.insertChildAfter(path[:len(path)-1], leftInner, rightInner, rightSplitKey)
}

func boundaryKeysOf(children []*node) []int64 {
	keys := make([]int64, len(children))
	for i, c := range children {
		keys[i], _ = nodeBounds(c)
	}
	return keys
}

// Delete removes key, reporting whether it was present. Leaves are
// never merged after a delete-induced underflow; spec.md's state
// machine only names split transitions.
func (t *AlexTree) Delete(key int64) bool {
	n := t.root
	for !n.isLeaf {
		n = n.inner.children[n.inner.route(key)]
	}
	if n.leaf.Delete(key) {
		t.count--
		return true
	}
	return false
}

// Count returns the number of keys currently stored in the tree.
func (t *AlexTree) Count() int { return t.count }

// Height returns the tree's current height (0 for a single-leaf tree).
func (t *AlexTree) Height() int { return t.height }
