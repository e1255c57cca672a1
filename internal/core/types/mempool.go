package types

import "time"

// MempoolEntry is an admitted mempool document. Unique by ID;
// evicted on inclusion, expiry, or invalidation.
type MempoolEntry struct {
	ID                  Hash
	FirstSeen           time.Time
	PSBT                bool
	Inputs              []TxInput
	Outputs             []TxOutput
	Raw                 []byte
	PriorityFee         U256
	TheoreticalGasLimit U256
	Kind                OverlayKind

	From            *Address
	ContractAddress *Address
	Calldata        []byte
	Bytecode        []byte
}

// ByteLength returns the size used for the mempool's admission size gate.
func (e *MempoolEntry) ByteLength() int {
	return len(e.Raw)
}
