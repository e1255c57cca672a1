package ports

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Receipt is the execution outcome of one overlay transaction, persisted
// alongside the block it was included in. See internal/core/vm for the
// structure produced during execution.
type Receipt struct {
	TxID           types.Hash
	Index          uint32 // receipt_index within the block, for the receipt tree key
	Result         []byte
	Revert         string
	Events         [][]byte
	GasUsed        types.U256
	AccessList     [][]byte
	Deployed       []types.Address
	ChangedStorage []types.PointerValue
}

// ReorgRecord is an appended {from_block, to_block, timestamp} entry.
type ReorgRecord struct {
	FromBlock uint64
	ToBlock   uint64
	Timestamp int64
}

// BlockCommit bundles everything the indexer writes atomically when it
// commits a processed height.
type BlockCommit struct {
	Header         types.BlockHeader
	NewContracts   []types.Contract
	UTXOInserts    []types.UTXO
	UTXODeletes    []types.Outpoint // marks DeletedAtBlock = Header.Height
	PointerWrites  []types.PointerValue
	Receipts       []Receipt
	Witnesses      []types.Witness
}

// Tx is an atomic store transaction. Store.WithTx hands one of these to the
// callback; any error returned from the callback rolls the transaction
// back, matching the DatabaseContext.Begin()/Rollback()/Commit() shape in
// infrastructure/db/dbaccess.
type Tx interface {
	CommitBlock(ctx context.Context, c *BlockCommit) error
	AppendReorg(ctx context.Context, r *ReorgRecord) error
	DeleteAboveHeight(ctx context.Context, height uint64) error
	RestorePointerValues(ctx context.Context, values []types.PointerValue) error
	ClearUTXODeletedAbove(ctx context.Context, height uint64) error
}

// Store is the persistent document repository the core reads and writes
// through, specified only by the interface the core consumes. A
// conforming implementation maintains the logical collections and
// indexes internal/store/ldbstore and internal/store/sqlstore document.
type Store interface {
	// WithTx runs fn inside a single atomic transaction spanning every
	// collection the Tx methods touch.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	HeaderByHeight(ctx context.Context, height uint64) (*types.BlockHeader, bool, error)
	HeaderByHash(ctx context.Context, hash types.Hash) (*types.BlockHeader, bool, error)
	LatestHeader(ctx context.Context) (*types.BlockHeader, bool, error)

	TransactionByHash(ctx context.Context, hash types.Hash) (*types.OverlayTx, bool, error)
	ReceiptByTxID(ctx context.Context, txID types.Hash) ([]Receipt, error)

	ContractByAddress(ctx context.Context, addr types.Address) (*types.Contract, bool, error)

	// PointerValueAt returns the latest write with LastSeenAt <= height.
	PointerValueAt(ctx context.Context, contract types.Address, pointer [32]byte, height uint64) (*types.PointerValue, bool, error)

	// LiveUTXOsByAddress returns UTXOs with DeletedAtBlock == null.
	LiveUTXOsByAddress(ctx context.Context, addr types.Address) ([]types.UTXO, error)
	UTXOByOutpoint(ctx context.Context, o types.Outpoint) (*types.UTXO, bool, error)

	WitnessesByBlock(ctx context.Context, blockNumber uint64, trustedOnly bool, limit, page int) ([]types.Witness, error)
	AppendWitness(ctx context.Context, w *types.Witness) error

	ReorgsBetween(ctx context.Context, from, to uint64) ([]ReorgRecord, error)

	EpochByNumber(ctx context.Context, n uint64) (*types.Epoch, bool, error)
	EpochByHash(ctx context.Context, targetHash types.Hash) (*types.Epoch, bool, error)
	PutEpoch(ctx context.Context, e *types.Epoch) error
}
