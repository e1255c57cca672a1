// Package statecommit implements the per-block state commitment flow
// (spec §4.4): build the storage and receipt Merkle trees, derive the
// checksum root chaining them to the previous block, and produce
// membership proofs for every written key. Grounded on the commit-pipeline
// shape of domain/consensus/processes/blockprocessor/blockprocessor.go
// (decode -> validate -> build commitment -> persist), here narrowed to
// the commitment-building step alone; persistence is internal/core/ports.Store's
// job.
package statecommit

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btc-vision/opnet-node-sub009/internal/core/codec"
	"github.com/btc-vision/opnet-node-sub009/internal/core/merkle"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// PointerWrite is one resolved storage write headed into the storage
// tree, already reduced to last-write-wins per (contract, pointer) across
// every transaction in the block.
type PointerWrite struct {
	Contract types.Address
	Pointer  [32]byte
	Value    [32]byte
}

// Result is everything one block's commitment flow produces.
type Result struct {
	StorageRoot    types.Hash
	ReceiptRoot    types.Hash
	ChecksumRoot   types.Hash
	ChecksumProofs []types.ChecksumProof
	PointerValues  []types.PointerValue // with Proof populated, LastSeenAt unset (caller stamps height)
	Receipts       []ports.Receipt      // with no field changes; ordering preserved
}

// lastWriteWins collapses a sequence of writes (in execution order) to one
// entry per (contract, pointer) key, keeping the last value seen.
func lastWriteWins(writes []PointerWrite) []PointerWrite {
	type key struct {
		contract [32]byte
		pointer  [32]byte
	}
	order := make([]key, 0, len(writes))
	latest := make(map[key]PointerWrite, len(writes))
	for _, w := range writes {
		k := key{contract: codec.ContractKey(w.Contract), pointer: w.Pointer}
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = w
	}
	out := make([]PointerWrite, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}

// Commit runs the five-step flow of spec §4.4 for one block: collect
// writes (reduced here to last-write-wins across txs),
// build both trees, derive the checksum root, and return membership
// proofs for every persisted tuple.
func Commit(writes []PointerWrite, receipts []ports.Receipt, h *types.BlockHeader) Result {
	writes = lastWriteWins(writes)

	storageLeaves := make([]merkle.Leaf, len(writes))
	for i, w := range writes {
		contractKey := codec.ContractKey(w.Contract)
		storageLeaves[i] = merkle.Leaf{
			Key:   codec.StorageKey(contractKey, w.Pointer),
			Value: w.Value[:],
		}
	}
	storageTree := merkle.Build(storageLeaves)

	receiptLeaves := make([]merkle.Leaf, len(receipts))
	for i, r := range receipts {
		rh := receiptHash(&r)
		receiptLeaves[i] = merkle.Leaf{
			Key:   codec.ReceiptKey(r.TxID, r.Index),
			Value: rh[:],
		}
	}
	receiptTree := merkle.Build(receiptLeaves)

	storageRoot := storageTree.Root()
	receiptRoot := receiptTree.Root()

	pointerValues := make([]types.PointerValue, len(writes))
	for i, w := range writes {
		pointerValues[i] = types.PointerValue{
			ContractAddress: w.Contract,
			Pointer:         w.Pointer,
			Value:           w.Value,
			Proof:           storageTree.Proof(i),
		}
	}

	proofs := make([]types.ChecksumProof, len(writes))
	for i := range writes {
		p := storageTree.Proof(i)
		proofs[i] = types.ChecksumProof{Index: uint32(i), Hashes: p.Siblings}
	}

	checksum := checksumRoot(h.PrevChecksum, storageRoot, receiptRoot, h)

	return Result{
		StorageRoot:    storageRoot,
		ReceiptRoot:    receiptRoot,
		ChecksumRoot:   checksum,
		ChecksumProofs: proofs,
		PointerValues:  pointerValues,
		Receipts:       receipts,
	}
}

// receiptHash hashes a receipt's observable fields into the 32-byte value
// the receipt tree commits to.
func receiptHash(r *ports.Receipt) types.Hash {
	h := sha256.New()
	h.Write(r.TxID[:])
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], r.Index)
	h.Write(idx[:])
	h.Write(r.Result)
	h.Write([]byte(r.Revert))
	for _, e := range r.Events {
		h.Write(e)
	}
	var gasBuf [8]byte
	binary.BigEndian.PutUint64(gasBuf[:], r.GasUsed.Uint64())
	h.Write(gasBuf[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// checksumRoot computes Commit(prev_checksum, storage_root, receipt_root,
// merkle_root, misc_header_fields) per spec §3.1/§4.4 step 4.
func checksumRoot(prevChecksum, storageRoot, receiptRoot types.Hash, h *types.BlockHeader) types.Hash {
	hasher := sha256.New()
	hasher.Write(prevChecksum[:])
	hasher.Write(storageRoot[:])
	hasher.Write(receiptRoot[:])
	hasher.Write(h.MerkleRoot[:])

	var misc [32]byte
	binary.BigEndian.PutUint64(misc[0:8], h.Height)
	binary.BigEndian.PutUint32(misc[8:12], h.Bits)
	binary.BigEndian.PutUint64(misc[12:20], h.Nonce)
	binary.BigEndian.PutUint32(misc[20:24], uint32(h.Version))
	binary.BigEndian.PutUint64(misc[24:32], uint64(h.Time))
	hasher.Write(misc[:])

	var out types.Hash
	copy(out[:], hasher.Sum(nil))
	return out
}

// EmptyRoots reports the roots an empty block (TxCount == 0) must carry.
func EmptyRoots() (storageRoot, receiptRoot types.Hash) {
	return merkle.EmptyStorageRoot, merkle.EmptyReceiptRoot
}
