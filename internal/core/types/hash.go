// Package types defines the data model shared by every subsystem of the
// node: hashes, addresses, overlay transactions, contracts, storage
// pointer-values, UTXOs, witnesses, mempool entries, and epochs.
package types

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the length in bytes of an H256.
const HashSize = 32

// Hash is a 32-byte opaque hash (block hash, txid, checksum root, ...).
type Hash [HashSize]byte

// String returns the big-endian hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash's underlying bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// HashFromBytes builds a Hash from a byte slice, which must be exactly
// HashSize long.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errors.Errorf("invalid hash length %d, expected %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex decodes a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errors.Wrap(err, "decoding hash hex")
	}
	return HashFromBytes(b)
}
