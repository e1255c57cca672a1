// Package sqlstore is a SQL-backed reference implementation of
// internal/core/ports.Store, grounded on the teacher's
// infrastructure/db/dbaccess layer's "one DatabaseContext, explicit
// Begin/Commit/Rollback" shape but swapping the hand-rolled
// database/sql wrapper for github.com/jinzhu/gorm as the ORM and
// github.com/golang-migrate/migrate/v4 for schema management
// (SPEC_FULL §A/§B), matching internal/store/ldbstore's method set
// field-for-field so the two backends are interchangeable behind
// ports.Store.
package sqlstore

import (
	"encoding/json"

	"github.com/btc-vision/opnet-node-sub009/internal/core/codec"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// headerRow mirrors the headers table's explicit columns (the one
// collection worth first-class columns rather than a raw_json blob,
// since every height/hash lookup and reorg truncation queries it
// directly).
type headerRow struct {
	Height       uint64 `gorm:"column:height;primary_key"`
	Hash         []byte `gorm:"column:hash"`
	PrevHash     []byte `gorm:"column:prev_hash"`
	PrevChecksum []byte `gorm:"column:prev_checksum"`
	MerkleRoot   []byte `gorm:"column:merkle_root"`
	StorageRoot  []byte `gorm:"column:storage_root"`
	ReceiptRoot  []byte `gorm:"column:receipt_root"`
	ChecksumRoot []byte `gorm:"column:checksum_root"`
	TxCount      uint32 `gorm:"column:tx_count"`
	EMA          []byte `gorm:"column:ema"`
	BaseGas      string `gorm:"column:base_gas"`
	Bits         uint32 `gorm:"column:bits"`
	Nonce        uint64 `gorm:"column:nonce"`
	Version      int32  `gorm:"column:version"`
	Size         uint32 `gorm:"column:size"`
	Weight       uint32 `gorm:"column:weight"`
	StrippedSize uint32 `gorm:"column:stripped_size"`
	Time         int64  `gorm:"column:time"`
	MedianTime   int64  `gorm:"column:median_time"`

	// ChecksumProofs is JSON-encoded since the proof list is
	// variable-length and only ever read back whole, not queried.
	ChecksumProofs string `gorm:"column:checksum_proofs"`
}

func (headerRow) TableName() string { return "headers" }

func headerToRow(h *types.BlockHeader) (*headerRow, error) {
	baseGas, err := json.Marshal(h.BaseGas)
	if err != nil {
		return nil, err
	}
	proofs, err := json.Marshal(h.ChecksumProofs)
	if err != nil {
		return nil, err
	}
	return &headerRow{
		Height:         h.Height,
		Hash:           h.Hash.Bytes(),
		PrevHash:       h.PrevHash.Bytes(),
		PrevChecksum:   h.PrevChecksum.Bytes(),
		MerkleRoot:     h.MerkleRoot.Bytes(),
		StorageRoot:    h.StorageRoot.Bytes(),
		ReceiptRoot:    h.ReceiptRoot.Bytes(),
		ChecksumRoot:   h.ChecksumRoot.Bytes(),
		TxCount:        h.TxCount,
		EMA:            h.EMA[:],
		BaseGas:        string(baseGas),
		Bits:           h.Bits,
		Nonce:          h.Nonce,
		Version:        h.Version,
		Size:           h.Size,
		Weight:         h.Weight,
		StrippedSize:   h.StrippedSize,
		Time:           h.Time,
		MedianTime:     h.MedianTime,
		ChecksumProofs: string(proofs),
	}, nil
}

func rowToHeader(r *headerRow) (*types.BlockHeader, error) {
	hash, err := types.HashFromBytes(r.Hash)
	if err != nil {
		return nil, err
	}
	prevHash, err := types.HashFromBytes(r.PrevHash)
	if err != nil {
		return nil, err
	}
	prevChecksum, err := types.HashFromBytes(r.PrevChecksum)
	if err != nil {
		return nil, err
	}
	merkleRoot, err := types.HashFromBytes(r.MerkleRoot)
	if err != nil {
		return nil, err
	}
	storageRoot, err := types.HashFromBytes(r.StorageRoot)
	if err != nil {
		return nil, err
	}
	receiptRoot, err := types.HashFromBytes(r.ReceiptRoot)
	if err != nil {
		return nil, err
	}
	checksumRoot, err := types.HashFromBytes(r.ChecksumRoot)
	if err != nil {
		return nil, err
	}
	var baseGas types.U256
	if err := json.Unmarshal([]byte(r.BaseGas), &baseGas); err != nil {
		return nil, err
	}
	var proofs []types.ChecksumProof
	if r.ChecksumProofs != "" {
		if err := json.Unmarshal([]byte(r.ChecksumProofs), &proofs); err != nil {
			return nil, err
		}
	}
	h := &types.BlockHeader{
		Height:         r.Height,
		Hash:           hash,
		PrevHash:       prevHash,
		PrevChecksum:   prevChecksum,
		MerkleRoot:     merkleRoot,
		StorageRoot:    storageRoot,
		ReceiptRoot:    receiptRoot,
		ChecksumRoot:   checksumRoot,
		ChecksumProofs: proofs,
		TxCount:        r.TxCount,
		BaseGas:        baseGas,
		Bits:           r.Bits,
		Nonce:          r.Nonce,
		Version:        r.Version,
		Size:           r.Size,
		Weight:         r.Weight,
		StrippedSize:   r.StrippedSize,
		Time:           r.Time,
		MedianTime:     r.MedianTime,
	}
	copy(h.EMA[:], r.EMA)
	return h, nil
}

// Every other collection is a thin (id, natural keys for indexing,
// raw_json) row, matching ldbstore's json.Marshal-the-whole-value
// approach but through SQL columns for the keys that need to be
// queried or uniqued by the database itself.

type transactionRow struct {
	ID          uint64 `gorm:"column:id;primary_key"`
	TxID        []byte `gorm:"column:tx_id"`
	Kind        uint8  `gorm:"column:kind"`
	BlockHeight uint64 `gorm:"column:block_height"`
	RawJSON     string `gorm:"column:raw_json"`
}

func (transactionRow) TableName() string { return "transactions" }

type receiptRow struct {
	ID           uint64 `gorm:"column:id;primary_key"`
	TxID         []byte `gorm:"column:tx_id"`
	ReceiptIndex uint32 `gorm:"column:receipt_index"`
	RawJSON      string `gorm:"column:raw_json"`
}

func (receiptRow) TableName() string { return "receipts" }

type contractRow struct {
	ID               uint64 `gorm:"column:id;primary_key"`
	ContractAddress  string `gorm:"column:contract_address"`
	DeploymentHeight uint64 `gorm:"column:deployment_height"`
	RawJSON          string `gorm:"column:raw_json"`
}

func (contractRow) TableName() string { return "contracts" }

type pointerValueRow struct {
	ID          uint64 `gorm:"column:id;primary_key"`
	ContractKey []byte `gorm:"column:contract_key"`
	Pointer     []byte `gorm:"column:pointer"`
	LastSeenAt  uint64 `gorm:"column:last_seen_at"`
	RawJSON     string `gorm:"column:raw_json"`
}

func (pointerValueRow) TableName() string { return "pointer_values" }

type utxoRow struct {
	ID           uint64 `gorm:"column:id;primary_key"`
	TxID         []byte `gorm:"column:tx_id"`
	Vout         uint32 `gorm:"column:vout"`
	Address      string `gorm:"column:address"`
	DeletedAtSet bool   `gorm:"column:deleted_at_set"`
	DeletedAt    uint64 `gorm:"column:deleted_at"`
	RawJSON      string `gorm:"column:raw_json"`
}

func (utxoRow) TableName() string { return "utxos" }

type witnessRow struct {
	ID          uint64 `gorm:"column:id;primary_key"`
	BlockNumber uint64 `gorm:"column:block_number"`
	PubKey      []byte `gorm:"column:pub_key"`
	Trusted     bool   `gorm:"column:trusted"`
	RawJSON     string `gorm:"column:raw_json"`
}

func (witnessRow) TableName() string { return "witnesses" }

type reorgRow struct {
	ID        uint64 `gorm:"column:id;primary_key"`
	FromBlock uint64 `gorm:"column:from_block"`
	ToBlock   uint64 `gorm:"column:to_block"`
	Timestamp int64  `gorm:"column:timestamp"`
}

func (reorgRow) TableName() string { return "reorg_records" }

type epochRow struct {
	EpochNumber uint64 `gorm:"column:epoch_number;primary_key"`
	TargetHash  []byte `gorm:"column:target_hash"`
	RawJSON     string `gorm:"column:raw_json"`
}

func (epochRow) TableName() string { return "epochs" }

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errs.New(errs.KindStore, err)
	}
	return string(data), nil
}

func jsonUnmarshal(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

func contractKeyBytes(addr types.Address) []byte {
	k := codec.ContractKey(addr)
	return k[:]
}
