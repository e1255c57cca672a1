// Package ldbstore is a LevelDB-backed reference implementation of
// internal/core/ports.Store, grounded on
// infrastructure/db/dbaccess/db.go's DatabaseContext (a thin wrapper
// opening one database.Database handle, here github.com/syndtr/goleveldb
// directly rather than the teacher's ldb.NewLevelDB fork wrapper) and its
// surrounding infrastructure/db/database/ldb package's key-prefix
// convention. Deliberately thin per SPEC_FULL §B: not itself "the
// non-trivial engineering".
package ldbstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/btc-vision/opnet-node-sub009/internal/core/codec"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Key prefixes, one byte each, matching the teacher's short binary-prefix
// convention (infrastructure/db/database/ldb bucket prefixes) rather than
// human-readable strings.
const (
	prefixHeaderByHeight byte = 0x01
	prefixHeaderByHash   byte = 0x02
	prefixLatestHeight   byte = 0x03
	prefixTx             byte = 0x04
	prefixReceipts       byte = 0x05
	prefixContract       byte = 0x06
	prefixPointerValue   byte = 0x07
	prefixUTXO           byte = 0x08
	prefixUTXOByAddr     byte = 0x09
	prefixWitness        byte = 0x0A
	prefixReorg          byte = 0x0B
	prefixEpochByNumber  byte = 0x0C
	prefixEpochByHash    byte = 0x0D
)

// Store wraps one LevelDB handle, matching DatabaseContext's "one db, one
// context" shape.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening leveldb database")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func heightKey(prefix byte, height uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

func hashKey(prefix byte, h types.Hash) []byte {
	key := make([]byte, 1+types.HashSize)
	key[0] = prefix
	copy(key[1:], h[:])
	return key
}

func pointerValueKey(contract [32]byte, pointer [32]byte, height uint64) []byte {
	key := make([]byte, 1+32+32+8)
	key[0] = prefixPointerValue
	copy(key[1:33], contract[:])
	copy(key[33:65], pointer[:])
	binary.BigEndian.PutUint64(key[65:], height)
	return key
}

func pointerValuePrefix(contract [32]byte, pointer [32]byte) []byte {
	key := make([]byte, 1+32+32)
	key[0] = prefixPointerValue
	copy(key[1:33], contract[:])
	copy(key[33:65], pointer[:])
	return key
}

func utxoKey(o types.Outpoint) []byte {
	key := make([]byte, 1+types.HashSize+4)
	key[0] = prefixUTXO
	copy(key[1:], o.TxID[:])
	binary.BigEndian.PutUint32(key[1+types.HashSize:], o.Vout)
	return key
}

func utxoByAddrPrefix(addr types.Address) []byte {
	key := []byte{prefixUTXOByAddr}
	return append(key, []byte(addr.String())...)
}

// HeaderByHeight implements ports.Store.
func (s *Store) HeaderByHeight(_ context.Context, height uint64) (*types.BlockHeader, bool, error) {
	data, err := s.db.Get(heightKey(prefixHeaderByHeight, height), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	h, err := decodeHeader(data)
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return h, true, nil
}

// HeaderByHash implements ports.Store.
func (s *Store) HeaderByHash(ctx context.Context, hash types.Hash) (*types.BlockHeader, bool, error) {
	heightBytes, err := s.db.Get(hashKey(prefixHeaderByHash, hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	height := binary.BigEndian.Uint64(heightBytes)
	return s.HeaderByHeight(ctx, height)
}

// LatestHeader implements ports.Store.
func (s *Store) LatestHeader(ctx context.Context) (*types.BlockHeader, bool, error) {
	data, err := s.db.Get([]byte{prefixLatestHeight}, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	height := binary.BigEndian.Uint64(data)
	return s.HeaderByHeight(ctx, height)
}

// TransactionByHash implements ports.Store.
func (s *Store) TransactionByHash(_ context.Context, hash types.Hash) (*types.OverlayTx, bool, error) {
	data, err := s.db.Get(hashKey(prefixTx, hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var tx types.OverlayTx
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &tx, true, nil
}

// ReceiptByTxID implements ports.Store.
func (s *Store) ReceiptByTxID(_ context.Context, txID types.Hash) ([]ports.Receipt, error) {
	data, err := s.db.Get(hashKey(prefixReceipts, txID), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	var receipts []ports.Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	return receipts, nil
}

// ContractByAddress implements ports.Store.
func (s *Store) ContractByAddress(_ context.Context, addr types.Address) (*types.Contract, bool, error) {
	key := append([]byte{prefixContract}, []byte(addr.String())...)
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var c types.Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &c, true, nil
}

// PointerValueAt implements ports.Store: latest write with
// LastSeenAt <= height, found by scanning the key range
// [prefix, height=0 .. height] in reverse.
func (s *Store) PointerValueAt(_ context.Context, contract types.Address, pointer [32]byte, height uint64) (*types.PointerValue, bool, error) {
	contractKey := codec.ContractKey(contract)
	prefix := pointerValuePrefix(contractKey, pointer)
	upper := pointerValueKey(contractKey, pointer, height+1)

	iter := s.db.NewIterator(&util.Range{Start: prefix, Limit: upper}, nil)
	defer iter.Release()

	var best *types.PointerValue
	for iter.Next() {
		var pv types.PointerValue
		if err := json.Unmarshal(iter.Value(), &pv); err != nil {
			return nil, false, errs.New(errs.KindStore, err)
		}
		v := pv
		best = &v
	}
	if err := iter.Error(); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	if best == nil {
		return nil, false, nil
	}
	return best, true, nil
}

// LiveUTXOsByAddress implements ports.Store.
func (s *Store) LiveUTXOsByAddress(_ context.Context, addr types.Address) ([]types.UTXO, error) {
	prefix := utxoByAddrPrefix(addr)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []types.UTXO
	for iter.Next() {
		data, err := s.db.Get(iter.Value(), nil)
		if err == leveldb.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		var u types.UTXO
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if u.IsLive() {
			out = append(out, u)
		}
	}
	return out, iter.Error()
}

// UTXOByOutpoint implements ports.Store.
func (s *Store) UTXOByOutpoint(_ context.Context, o types.Outpoint) (*types.UTXO, bool, error) {
	data, err := s.db.Get(utxoKey(o), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var u types.UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &u, true, nil
}

// WitnessesByBlock implements ports.Store.
func (s *Store) WitnessesByBlock(_ context.Context, blockNumber uint64, trustedOnly bool, limit, page int) ([]types.Witness, error) {
	prefix := heightKey(prefixWitness, blockNumber)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var all []types.Witness
	for iter.Next() {
		var w types.Witness
		if err := json.Unmarshal(iter.Value(), &w); err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if trustedOnly && !w.Trusted {
			continue
		}
		all = append(all, w)
	}
	if err := iter.Error(); err != nil {
		return nil, errs.New(errs.KindStore, err)
	}

	if limit <= 0 {
		return all, nil
	}
	start := page * limit
	if start >= len(all) {
		return nil, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// AppendWitness implements ports.Store.
func (s *Store) AppendWitness(_ context.Context, w *types.Witness) error {
	key := append(heightKey(prefixWitness, w.BlockNumber), w.PubKey[:]...)
	data, err := json.Marshal(w)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	if err := s.db.Put(key, data, nil); err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

// ReorgsBetween implements ports.Store.
func (s *Store) ReorgsBetween(_ context.Context, from, to uint64) ([]ports.ReorgRecord, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixReorg}), nil)
	defer iter.Release()

	var out []ports.ReorgRecord
	for iter.Next() {
		var r ports.ReorgRecord
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if r.FromBlock >= from && r.ToBlock <= to {
			out = append(out, r)
		}
	}
	return out, iter.Error()
}

// EpochByNumber implements ports.Store.
func (s *Store) EpochByNumber(_ context.Context, n uint64) (*types.Epoch, bool, error) {
	data, err := s.db.Get(heightKey(prefixEpochByNumber, n), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	var e types.Epoch
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return &e, true, nil
}

// EpochByHash implements ports.Store.
func (s *Store) EpochByHash(ctx context.Context, targetHash types.Hash) (*types.Epoch, bool, error) {
	numBytes, err := s.db.Get(hashKey(prefixEpochByHash, targetHash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.New(errs.KindStore, err)
	}
	return s.EpochByNumber(ctx, binary.BigEndian.Uint64(numBytes))
}

// PutEpoch implements ports.Store.
func (s *Store) PutEpoch(_ context.Context, e *types.Epoch) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	batch := new(leveldb.Batch)
	batch.Put(heightKey(prefixEpochByNumber, e.EpochNumber), data)
	var numBuf [8]byte
	binary.BigEndian.PutUint64(numBuf[:], e.EpochNumber)
	batch.Put(hashKey(prefixEpochByHash, e.TargetHash), numBuf[:])
	if err := s.db.Write(batch, nil); err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}

func decodeHeader(data []byte) (*types.BlockHeader, error) {
	return codec.DecodeHeader(bytes.NewReader(data))
}

func encodeHeader(h *types.BlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.EncodeHeader(&buf, h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
