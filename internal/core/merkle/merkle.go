// Package merkle implements the deterministic standard Merkle tree used
// for both the storage tree and the receipt tree: a power-of-two
// array-backed tree with duplicate-last-node padding and sibling-path
// membership proofs.
//
// Directly grounded on domain/consensus/utils/merkle/merkle.go
// (nextPowerOfTwo, hashMerkleBranches, the array-backed layout), extended
// here to record the sibling path for each leaf so PointerValue/Receipt
// rows can carry a membership proof (that earlier version only needed the
// root, not proofs).
package merkle

import (
	"crypto/sha256"
	"math/bits"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Leaf is one (key, value) pair hashed into the tree.
type Leaf struct {
	Key   []byte
	Value []byte
}

// EncodeLeaf is the standardized leaf encoding: a domain-separated hash of
// the concatenated key and value bytes.
func EncodeLeaf(key, value []byte) types.Hash {
	h := sha256.New()
	h.Write([]byte{0x00}) // leaf domain tag, distinct from the 0x01 node tag below
	h.Write(key)
	h.Write(value)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashNode(left, right types.Hash) types.Hash {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(left[:])
	h.Write(right[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Tree is a built Merkle tree: the full array-backed layout plus the
// leaf count, kept so Proof can recompute sibling paths.
type Tree struct {
	levels [][]types.Hash // levels[0] is the leaf level (power-of-two padded)
	nLeafs int
}

// Build constructs a Tree over the given leaves, in the order given.
// Callers in internal/core/statecommit are responsible for resolving
// last-write-wins ordering before calling this.
func Build(leaves []Leaf) *Tree {
	if len(leaves) == 0 {
		return &Tree{levels: [][]types.Hash{{EmptyRoot}}, nLeafs: 0}
	}

	hashes := make([]types.Hash, len(leaves))
	for i, l := range leaves {
		hashes[i] = EncodeLeaf(l.Key, l.Value)
	}

	padded := nextPowerOfTwo(len(hashes))
	level := make([]types.Hash, padded)
	copy(level, hashes)
	for i := len(hashes); i < padded; i++ {
		level[i] = level[len(hashes)-1] // duplicate-last-node padding
	}

	levels := [][]types.Hash{level}
	for len(level) > 1 {
		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = hashNode(level[2*i], level[2*i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels, nLeafs: len(leaves)}
}

// Root returns the tree's root hash.
func (t *Tree) Root() types.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// Proof returns the sibling path for the leaf at index i (0-based, in
// build order). Valid for i in [0, nLeafs).
func (t *Tree) Proof(i int) types.MerkleProof {
	path := make([]types.Hash, 0, len(t.levels)-1)
	idx := i
	for level := 0; level < len(t.levels)-1; level++ {
		siblingIdx := idx ^ 1
		path = append(path, t.levels[level][siblingIdx])
		idx /= 2
	}
	return types.MerkleProof{LeafIndex: uint64(i), Siblings: path}
}

// Verify checks a membership proof for (key, value) against root.
func Verify(root types.Hash, key, value []byte, proof types.MerkleProof) bool {
	cur := EncodeLeaf(key, value)
	idx := proof.LeafIndex
	for _, sib := range proof.Siblings {
		if idx%2 == 0 {
			cur = hashNode(cur, sib)
		} else {
			cur = hashNode(sib, cur)
		}
		idx /= 2
	}
	return cur == root
}

func nextPowerOfTwo(n int) int {
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}
