package types

// UTXO is a base-chain unspent-transaction-output row. Invariant: an
// input consumed at height H sets DeletedAtBlock = H; a DeletedAtBlock of
// nil (here: DeletedAtSet == false) marks the row live.
type UTXO struct {
	TxID          Hash
	Vout          uint32
	Value         U256
	Script        []byte
	Address       Address
	BlockHeight   uint64
	DeletedAt     uint64
	DeletedAtSet  bool
}

// IsLive reports whether the UTXO has not yet been consumed.
func (u *UTXO) IsLive() bool {
	return !u.DeletedAtSet
}

// Outpoint identifies a UTXO by (txid, vout).
type Outpoint struct {
	TxID Hash
	Vout uint32
}

// OutpointOf returns the outpoint for this UTXO.
func (u *UTXO) OutpointOf() Outpoint {
	return Outpoint{TxID: u.TxID, Vout: u.Vout}
}
