package codec

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// ContractKey reduces a variable-length Address script down to the fixed
// 32-byte key the storage tree commits to. A P2TR contract address's
// script is already close to 32 bytes of entropy (the tweaked output
// key); hashing keeps the reduction well-defined for every AddressKind.
func ContractKey(addr types.Address) [32]byte {
	return sha256.Sum256(addr.Script)
}

// StorageKey returns the canonical (contract_address, pointer) key bytes
// for a storage-tree leaf: both operands are fixed at 32 bytes, so the
// concatenation needs no length prefix to stay unambiguous.
func StorageKey(contract [32]byte, pointer [32]byte) []byte {
	out := make([]byte, 0, 64)
	out = append(out, contract[:]...)
	out = append(out, pointer[:]...)
	return out
}

// ReceiptKey returns the canonical (txid, receipt_index) key bytes for a
// receipt-tree leaf.
func ReceiptKey(txid types.Hash, index uint32) []byte {
	out := make([]byte, 0, types.HashSize+4)
	out = append(out, txid[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	return append(out, idx[:]...)
}

// ReceiptHash returns the bytes of an already-computed receipt hash, the
// 32-byte value a receipt-tree leaf commits to; it does no hashing itself.
func ReceiptHash(r *types.Hash) []byte {
	return r[:]
}
