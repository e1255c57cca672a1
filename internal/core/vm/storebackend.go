package vm

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// StoreBackend adapts a ports.Store into the Host's PersistentStorage
// seam, the same "wrap the generic Store interface behind the narrow
// thing this package actually needs" shape the indexer itself uses for
// ports.ChainRpc. Grounded on internal/core/indexer's own constructor
// wiring pattern.
type StoreBackend struct {
	store ports.Store
}

// NewStoreBackend builds a StoreBackend over store.
func NewStoreBackend(store ports.Store) *StoreBackend {
	return &StoreBackend{store: store}
}

var _ PersistentStorage = (*StoreBackend)(nil)

// Load implements PersistentStorage.
func (b *StoreBackend) Load(ctx context.Context, contract types.Address, key [32]byte, atHeight uint64) ([32]byte, bool, error) {
	pv, ok, err := b.store.PointerValueAt(ctx, contract, key, atHeight)
	if err != nil {
		return [32]byte{}, false, errs.New(errs.KindStore, err)
	}
	if !ok {
		return [32]byte{}, false, nil
	}
	return pv.Value, true, nil
}
