package ldbstore

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/btc-vision/opnet-node-sub009/internal/core/codec"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// tx batches every write CommitBlock/AppendReorg/DeleteAboveHeight make
// into one leveldb.Batch, applied atomically by WithTx's deferred Write,
// mirroring DatabaseContext's Begin()/Commit()/Rollback() transaction
// shape with LevelDB's own atomic-batch primitive standing in for SQL's
// transaction.
type tx struct {
	store *Store
	batch *leveldb.Batch
}

// WithTx implements ports.Store. fn's batched writes are only applied if
// fn returns nil; any error propagates without touching the database.
func (s *Store) WithTx(_ context.Context, fn func(ports.Tx) error) error {
	t := &tx{store: s, batch: new(leveldb.Batch)}
	if err := fn(t); err != nil {
		return err
	}
	if err := s.db.Write(t.batch, nil); err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

// CommitBlock implements ports.Tx.
func (t *tx) CommitBlock(_ context.Context, c *ports.BlockCommit) error {
	headerBytes, err := encodeHeader(&c.Header)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	t.batch.Put(heightKey(prefixHeaderByHeight, c.Header.Height), headerBytes)

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], c.Header.Height)
	t.batch.Put(hashKey(prefixHeaderByHash, c.Header.Hash), heightBuf[:])
	t.batch.Put([]byte{prefixLatestHeight}, heightBuf[:])

	for i := range c.NewContracts {
		ct := c.NewContracts[i]
		data, err := json.Marshal(&ct)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		key := append([]byte{prefixContract}, []byte(ct.ContractAddress.String())...)
		t.batch.Put(key, data)
	}

	for i := range c.UTXOInserts {
		u := c.UTXOInserts[i]
		data, err := json.Marshal(&u)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		t.batch.Put(utxoKey(u.OutpointOf()), data)
		addrKey := append(utxoByAddrPrefix(u.Address), u.TxID[:]...)
		addrKey = binary.BigEndian.AppendUint32(addrKey, u.Vout)
		t.batch.Put(addrKey, utxoKey(u.OutpointOf()))
	}

	for _, o := range c.UTXODeletes {
		existing, found, err := t.store.UTXOByOutpoint(context.Background(), o)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		existing.DeletedAtSet = true
		existing.DeletedAt = c.Header.Height
		data, err := json.Marshal(existing)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		t.batch.Put(utxoKey(o), data)
	}

	for i := range c.PointerWrites {
		pv := c.PointerWrites[i]
		data, err := json.Marshal(&pv)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		contractKey := codec.ContractKey(pv.ContractAddress)
		t.batch.Put(pointerValueKey(contractKey, pv.Pointer, pv.LastSeenAt), data)
	}

	for i := range c.Receipts {
		r := c.Receipts[i]
		existing, err := t.store.ReceiptByTxID(context.Background(), r.TxID)
		if err != nil {
			return err
		}
		existing = append(existing, r)
		data, err := json.Marshal(existing)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		t.batch.Put(hashKey(prefixReceipts, r.TxID), data)
	}

	for i := range c.Witnesses {
		w := c.Witnesses[i]
		data, err := json.Marshal(&w)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		key := append(heightKey(prefixWitness, w.BlockNumber), w.PubKey[:]...)
		t.batch.Put(key, data)
	}

	return nil
}

// AppendReorg implements ports.Tx.
func (t *tx) AppendReorg(_ context.Context, r *ports.ReorgRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	t.batch.Put(heightKey(prefixReorg, r.ToBlock), data)
	return nil
}

// DeleteAboveHeight implements ports.Tx: removes the by-height and
// by-hash entries of every header above height, and resets the
// latest-height pointer to height.
func (t *tx) DeleteAboveHeight(_ context.Context, height uint64) error {
	iter := t.store.db.NewIterator(&util.Range{Start: heightKey(prefixHeaderByHeight, height + 1)}, nil)
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if key[0] != prefixHeaderByHeight {
			break
		}
		h, err := decodeHeader(iter.Value())
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		t.batch.Delete(key)
		t.batch.Delete(hashKey(prefixHeaderByHash, h.Hash))
	}
	if err := iter.Error(); err != nil {
		return errs.New(errs.KindStore, err)
	}

	var newLatest [8]byte
	binary.BigEndian.PutUint64(newLatest[:], height)
	t.batch.Put([]byte{prefixLatestHeight}, newLatest[:])
	return nil
}

// RestorePointerValues implements ports.Tx: re-inserts the given pointer
// values, each under its (contract, pointer, LastSeenAt) key.
func (t *tx) RestorePointerValues(_ context.Context, values []types.PointerValue) error {
	for i := range values {
		pv := values[i]
		data, err := json.Marshal(&pv)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		contractKey := codec.ContractKey(pv.ContractAddress)
		t.batch.Put(pointerValueKey(contractKey, pv.Pointer, pv.LastSeenAt), data)
	}
	return nil
}

// ClearUTXODeletedAbove implements ports.Tx: revives UTXOs whose
// DeletedAtBlock exceeds height, the inverse of CommitBlock's UTXODeletes.
func (t *tx) ClearUTXODeletedAbove(_ context.Context, height uint64) error {
	iter := t.store.db.NewIterator(util.BytesPrefix([]byte{prefixUTXO}), nil)
	defer iter.Release()
	for iter.Next() {
		var u types.UTXO
		if err := json.Unmarshal(iter.Value(), &u); err != nil {
			return errs.New(errs.KindStore, err)
		}
		if u.DeletedAtSet && u.DeletedAt > height {
			u.DeletedAtSet = false
			u.DeletedAt = 0
			data, err := json.Marshal(&u)
			if err != nil {
				return errs.New(errs.KindStore, err)
			}
			t.batch.Put(append([]byte{}, iter.Key()...), data)
		}
	}
	return iter.Error()
}
