/*
Package alex implements the learned index over primary keys: a
GappedNode leaf (a trained linear model over a sorted, gap-padded slot
array) composed into a multi-level AlexTree by InnerNodes.

# Architecture

	┌─────────────────────────── ALEXTREE ───────────────────────────┐
	│                                                                  │
	│                         InnerNode (root)                        │
	│              model: key ──► guessed child index                │
	│              splitKeys: exact boundary correction (binary search)│
	│                    /           |            \                   │
	│            InnerNode      InnerNode      InnerNode   (height-1) │
	│              /    \          /    \          /    \              │
	│          Gapped  Gapped  Gapped  Gapped  Gapped  Gapped  (leaves)│
	│          Node    Node    Node    Node    Node    Node            │
	│                                                                  │
	│  Each GappedNode: sorted slots with gaps, e.g.                  │
	│    [ k3 | _ | k7 | k9 | _ | _ | k15 | _ | k20 ]                 │
	│  Get(key): model.Predict ──► slot guess ──► expanding window    │
	│  scan bounded by the leaf's observed maxError.                  │
	└──────────────────────────────────────────────────────────────────┘

# Leaf state machine

A GappedNode's Insert reports one of three outcomes:

  - InsertOK: the key landed in a free slot near its prediction.
  - NeedsRetrain: no free slot nearby, but density is still low enough
    that rebuilding the model in place (same keys, fresh slot layout)
    should make room.
  - NeedsSplit: density has crossed the leaf's high watermark; the
    caller must split the leaf at its median key instead.

AlexTree.Insert drives this machine: retrain once, and if that still
doesn't yield a slot, split. A leaf split's new split-key is inserted
into the parent InnerNode, which may itself overflow its fanout and
split in turn -- cascading all the way to the root, where the tree's
height grows by one.

# Usage

	tree := alex.BulkBuild(sortedKeys, payloads, leafCapacity, fanout)
	payload, found := tree.Get(key)
	tree.Range(lo, hi, func(k, p int64) bool { return true })
	err := tree.Insert(key, payload)
	tree.Delete(key)
*/
package alex
