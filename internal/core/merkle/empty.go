package merkle

import "github.com/btc-vision/opnet-node-sub009/internal/core/types"

// EmptyRoot is the well-defined empty-tree root: the all-zero hash,
// frozen once at process start as a read-only, process-wide constant.
//
// Both the storage tree and the receipt tree use the same EmptyRoot value:
// EMPTY_STORAGE_ROOT and EMPTY_RECEIPT_ROOT are only distinguished by
// name, not by value, since an empty tree carries no type-specific leaf
// data.
var EmptyRoot = computeEmptyRoot()

func computeEmptyRoot() types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = 0 // the canonical "no transactions this block" root is the zero hash
	}
	return h
}

// EmptyStorageRoot is the empty storage tree's root.
var EmptyStorageRoot = EmptyRoot

// EmptyReceiptRoot is the empty receipt tree's root.
var EmptyReceiptRoot = EmptyRoot
