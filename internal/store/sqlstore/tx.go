package sqlstore

import (
	"context"

	"github.com/jinzhu/gorm"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// tx wraps one *gorm.DB transaction handle, the SQL counterpart of
// ldbstore's batched-writes tx, mirroring
// infrastructure/db/dbaccess.DatabaseContext's Begin()/Commit()/Rollback()
// shape with gorm.DB.Begin standing in for the raw *sql.Tx.
type tx struct {
	db *gorm.DB
}

// WithTx implements ports.Store. fn's writes are committed only if fn
// returns nil; any error rolls the transaction back.
func (s *Store) WithTx(_ context.Context, fn func(ports.Tx) error) error {
	gtx := s.db.Begin()
	if gtx.Error != nil {
		return errs.New(errs.KindStore, gtx.Error)
	}
	t := &tx{db: gtx}
	if err := fn(t); err != nil {
		gtx.Rollback()
		return err
	}
	if err := gtx.Commit().Error; err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

// CommitBlock implements ports.Tx.
func (t *tx) CommitBlock(_ context.Context, c *ports.BlockCommit) error {
	row, err := headerToRow(&c.Header)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	if err := t.db.Save(row).Error; err != nil {
		return errs.New(errs.KindStore, err)
	}

	for i := range c.NewContracts {
		ct := c.NewContracts[i]
		raw, err := marshalJSON(&ct)
		if err != nil {
			return err
		}
		crow := contractRow{ContractAddress: ct.ContractAddress.String(), DeploymentHeight: ct.DeploymentHeight, RawJSON: raw}
		if err := t.db.Create(&crow).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}

	for i := range c.UTXOInserts {
		u := c.UTXOInserts[i]
		raw, err := marshalJSON(&u)
		if err != nil {
			return err
		}
		urow := utxoRow{TxID: u.TxID.Bytes(), Vout: u.Vout, Address: u.Address.String(), RawJSON: raw}
		if err := t.db.Create(&urow).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}

	for _, o := range c.UTXODeletes {
		var existing utxoRow
		err := t.db.Where("tx_id = ? AND vout = ?", o.TxID.Bytes(), o.Vout).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		var u types.UTXO
		if err := jsonUnmarshal(existing.RawJSON, &u); err != nil {
			return err
		}
		u.DeletedAtSet = true
		u.DeletedAt = c.Header.Height
		raw, err := marshalJSON(&u)
		if err != nil {
			return err
		}
		existing.DeletedAtSet = true
		existing.DeletedAt = c.Header.Height
		existing.RawJSON = raw
		if err := t.db.Save(&existing).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}

	for i := range c.PointerWrites {
		pv := c.PointerWrites[i]
		raw, err := marshalJSON(&pv)
		if err != nil {
			return err
		}
		prow := pointerValueRow{
			ContractKey: contractKeyBytes(pv.ContractAddress),
			Pointer:     pv.Pointer[:],
			LastSeenAt:  pv.LastSeenAt,
			RawJSON:     raw,
		}
		if err := t.db.Create(&prow).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}

	for i := range c.Receipts {
		r := c.Receipts[i]
		raw, err := marshalJSON(&r)
		if err != nil {
			return err
		}
		rrow := receiptRow{TxID: r.TxID.Bytes(), ReceiptIndex: r.Index, RawJSON: raw}
		if err := t.db.Create(&rrow).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}

	for i := range c.Witnesses {
		w := c.Witnesses[i]
		raw, err := marshalJSON(&w)
		if err != nil {
			return err
		}
		wrow := witnessRow{BlockNumber: w.BlockNumber, PubKey: w.PubKey[:], Trusted: w.Trusted, RawJSON: raw}
		if err := t.db.Create(&wrow).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}

	return nil
}

// AppendReorg implements ports.Tx.
func (t *tx) AppendReorg(_ context.Context, r *ports.ReorgRecord) error {
	row := reorgRow{FromBlock: r.FromBlock, ToBlock: r.ToBlock, Timestamp: r.Timestamp}
	if err := t.db.Create(&row).Error; err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

// DeleteAboveHeight implements ports.Tx.
func (t *tx) DeleteAboveHeight(_ context.Context, height uint64) error {
	if err := t.db.Where("height > ?", height).Delete(headerRow{}).Error; err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

// RestorePointerValues implements ports.Tx.
func (t *tx) RestorePointerValues(_ context.Context, values []types.PointerValue) error {
	for i := range values {
		pv := values[i]
		raw, err := marshalJSON(&pv)
		if err != nil {
			return err
		}
		row := pointerValueRow{
			ContractKey: contractKeyBytes(pv.ContractAddress),
			Pointer:     pv.Pointer[:],
			LastSeenAt:  pv.LastSeenAt,
			RawJSON:     raw,
		}
		if err := t.db.Create(&row).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}
	return nil
}

// ClearUTXODeletedAbove implements ports.Tx.
func (t *tx) ClearUTXODeletedAbove(_ context.Context, height uint64) error {
	var rows []utxoRow
	if err := t.db.Where("deleted_at_set = ? AND deleted_at > ?", true, height).Find(&rows).Error; err != nil {
		return errs.New(errs.KindStore, err)
	}
	for _, row := range rows {
		var u types.UTXO
		if err := jsonUnmarshal(row.RawJSON, &u); err != nil {
			return err
		}
		u.DeletedAtSet = false
		u.DeletedAt = 0
		raw, err := marshalJSON(&u)
		if err != nil {
			return err
		}
		row.DeletedAtSet = false
		row.DeletedAt = 0
		row.RawJSON = raw
		if err := t.db.Save(&row).Error; err != nil {
			return errs.New(errs.KindStore, err)
		}
	}
	return nil
}
