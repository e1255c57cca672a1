// Package ports declares the interfaces the core consumes from external
// collaborators: the base-chain RPC client, the base-chain notification
// tap, the persistent document store, and the peer-to-peer overlay. None
// of these are implemented here — see internal/chainrpcpool,
// internal/chaintap, internal/store/ldbstore and internal/store/sqlstore
// for reference implementations.
package ports

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// RawBlock is what a ChainRpc fetch returns: a decoded header plus the raw
// transactions in base-chain wire order (decoding/classification into
// OverlayTx happens in internal/core/classify, not here).
type RawBlock struct {
	Header       types.BlockHeader
	Transactions [][]byte // raw tx bytes, base-chain wire order
}

// ChainRpc is the base-chain RPC client surface the indexer, mempool, and
// epoch modules consume. A single implementation is wrapped N times by
// ChainRpcPool for load-balancing and failover across multiple endpoints.
type ChainRpc interface {
	BlockHashAtHeight(ctx context.Context, height uint64) (types.Hash, error)
	FetchBlock(ctx context.Context, hash types.Hash) (*RawBlock, error)
	BroadcastRawTransaction(ctx context.Context, raw []byte) (types.Hash, error)
	ResolveUTXO(ctx context.Context, outpoint types.Outpoint) (*types.UTXO, error)
	EstimateFee(ctx context.Context, confTarget uint32) (types.U256, error)
	CurrentTipHeight(ctx context.Context) (uint64, error)
}

// ChainTapEvent is a new-block notification forwarded by ChainTap.
type ChainTapEvent struct {
	Height uint64
	Hash   types.Hash
}

// ChainTap subscribes to base-chain notifications and forwards new-block
// events on the returned channel until the context is cancelled.
type ChainTap interface {
	Subscribe(ctx context.Context) (<-chan ChainTapEvent, error)
}

// Peering is the peer-to-peer overlay used to gossip witnesses and mempool
// candidates between nodes.
type Peering interface {
	BroadcastWitness(ctx context.Context, w *types.Witness) error
	BroadcastTransaction(ctx context.Context, raw []byte) error
}
