package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql" // registers the "mysql" dialect with gorm.Open

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Store wraps one *gorm.DB handle, mirroring DatabaseContext's "one db,
// one context" shape from infrastructure/db/dbaccess.
type Store struct {
	db *gorm.DB
}

// Open opens a SQL store against dsn using dialect (e.g. "mysql"),
// matching gorm.Open's own signature.
func Open(dialect, dsn string) (*Store, error) {
	db, err := gorm.Open(dialect, dsn)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB, for callers (cmd/opnetd's startup
// wiring) that need to run golang-migrate's Migrate against the same
// connection this Store reads and writes through.
func (s *Store) DB() *sql.DB {
	return s.db.DB()
}

var _ ports.Store = (*Store)(nil)

// HeaderByHeight implements ports.Store.
func (s *Store) HeaderByHeight(_ context.Context, height uint64) (*types.BlockHeader, bool, error) {
	var row headerRow
	err := s.db.Where("height = ?", height).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	h, err := rowToHeader(&row)
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return h, true, nil
}

// HeaderByHash implements ports.Store.
func (s *Store) HeaderByHash(_ context.Context, hash types.Hash) (*types.BlockHeader, bool, error) {
	var row headerRow
	err := s.db.Where("hash = ?", hash.Bytes()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	h, err := rowToHeader(&row)
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return h, true, nil
}

// LatestHeader implements ports.Store.
func (s *Store) LatestHeader(_ context.Context) (*types.BlockHeader, bool, error) {
	var row headerRow
	err := s.db.Order("height desc").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	h, err := rowToHeader(&row)
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return h, true, nil
}

// TransactionByHash implements ports.Store.
func (s *Store) TransactionByHash(_ context.Context, hash types.Hash) (*types.OverlayTx, bool, error) {
	var row transactionRow
	err := s.db.Where("tx_id = ?", hash.Bytes()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var tx types.OverlayTx
	if err := json.Unmarshal([]byte(row.RawJSON), &tx); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &tx, true, nil
}

// ReceiptByTxID implements ports.Store.
func (s *Store) ReceiptByTxID(_ context.Context, txID types.Hash) ([]ports.Receipt, error) {
	var rows []receiptRow
	if err := s.db.Where("tx_id = ?", txID.Bytes()).Order("receipt_index asc").Find(&rows).Error; err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	out := make([]ports.Receipt, 0, len(rows))
	for _, row := range rows {
		var r ports.Receipt
		if err := json.Unmarshal([]byte(row.RawJSON), &r); err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ContractByAddress implements ports.Store.
func (s *Store) ContractByAddress(_ context.Context, addr types.Address) (*types.Contract, bool, error) {
	var row contractRow
	err := s.db.Where("contract_address = ?", addr.String()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var c types.Contract
	if err := json.Unmarshal([]byte(row.RawJSON), &c); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &c, true, nil
}

// PointerValueAt implements ports.Store: latest write with
// LastSeenAt <= height.
func (s *Store) PointerValueAt(_ context.Context, contract types.Address, pointer [32]byte, height uint64) (*types.PointerValue, bool, error) {
	var row pointerValueRow
	err := s.db.
		Where("contract_key = ? AND pointer = ? AND last_seen_at <= ?", contractKeyBytes(contract), pointer[:], height).
		Order("last_seen_at desc").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var pv types.PointerValue
	if err := json.Unmarshal([]byte(row.RawJSON), &pv); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &pv, true, nil
}

// LiveUTXOsByAddress implements ports.Store.
func (s *Store) LiveUTXOsByAddress(_ context.Context, addr types.Address) ([]types.UTXO, error) {
	var rows []utxoRow
	if err := s.db.Where("address = ? AND deleted_at_set = ?", addr.String(), false).Find(&rows).Error; err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	out := make([]types.UTXO, 0, len(rows))
	for _, row := range rows {
		var u types.UTXO
		if err := json.Unmarshal([]byte(row.RawJSON), &u); err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		out = append(out, u)
	}
	return out, nil
}

// UTXOByOutpoint implements ports.Store.
func (s *Store) UTXOByOutpoint(_ context.Context, o types.Outpoint) (*types.UTXO, bool, error) {
	var row utxoRow
	err := s.db.Where("tx_id = ? AND vout = ?", o.TxID.Bytes(), o.Vout).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var u types.UTXO
	if err := json.Unmarshal([]byte(row.RawJSON), &u); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &u, true, nil
}

// WitnessesByBlock implements ports.Store.
func (s *Store) WitnessesByBlock(_ context.Context, blockNumber uint64, trustedOnly bool, limit, page int) ([]types.Witness, error) {
	q := s.db.Where("block_number = ?", blockNumber)
	if trustedOnly {
		q = q.Where("trusted = ?", true)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(page * limit)
	}
	var rows []witnessRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	out := make([]types.Witness, 0, len(rows))
	for _, row := range rows {
		var w types.Witness
		if err := json.Unmarshal([]byte(row.RawJSON), &w); err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// AppendWitness implements ports.Store.
func (s *Store) AppendWitness(_ context.Context, w *types.Witness) error {
	raw, err := marshalJSON(w)
	if err != nil {
		return err
	}
	row := witnessRow{BlockNumber: w.BlockNumber, PubKey: w.PubKey[:], Trusted: w.Trusted, RawJSON: raw}
	if err := s.db.Create(&row).Error; err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

// ReorgsBetween implements ports.Store.
func (s *Store) ReorgsBetween(_ context.Context, from, to uint64) ([]ports.ReorgRecord, error) {
	var rows []reorgRow
	if err := s.db.Where("from_block >= ? AND to_block <= ?", from, to).Find(&rows).Error; err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	out := make([]ports.ReorgRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.ReorgRecord{FromBlock: row.FromBlock, ToBlock: row.ToBlock, Timestamp: row.Timestamp})
	}
	return out, nil
}

// EpochByNumber implements ports.Store.
func (s *Store) EpochByNumber(_ context.Context, n uint64) (*types.Epoch, bool, error) {
	var row epochRow
	err := s.db.Where("epoch_number = ?", n).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var e types.Epoch
	if err := json.Unmarshal([]byte(row.RawJSON), &e); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &e, true, nil
}

// EpochByHash implements ports.Store.
func (s *Store) EpochByHash(_ context.Context, targetHash types.Hash) (*types.Epoch, bool, error) {
	var row epochRow
	err := s.db.Where("target_hash = ?", targetHash.Bytes()).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var e types.Epoch
	if err := json.Unmarshal([]byte(row.RawJSON), &e); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &e, true, nil
}

// PutEpoch implements ports.Store.
func (s *Store) PutEpoch(_ context.Context, e *types.Epoch) error {
	raw, err := marshalJSON(e)
	if err != nil {
		return err
	}
	row := epochRow{EpochNumber: e.EpochNumber, TargetHash: e.TargetHash.Bytes(), RawJSON: raw}
	if err := s.db.Save(&row).Error; err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}
