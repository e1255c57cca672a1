// Package chainrpcpool is a reference ChainRpc implementation: N workers,
// each wrapping one base-chain JSON-RPC HTTP client, load-balanced
// round-robin and failed over on a transient error (spec §2's
// ChainRpcPool unit). Grounded on infrastructure/network/rpcclient's
// Client-per-connection shape and app/protocol/flowcontext's retry-on-
// failure idiom, generalized here from "one client" to "a pool of
// interchangeable clients round-robining over the same interface".
package chainrpcpool

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Pool round-robins ports.ChainRpc calls across a fixed set of workers,
// matching spec §2's "N workers, each wrapping one base-chain RPC
// client".
type Pool struct {
	workers []ports.ChainRpc
	next    uint64
}

// New builds a Pool over workers. At least one worker is required.
func New(workers []ports.ChainRpc) (*Pool, error) {
	if len(workers) == 0 {
		return nil, errors.New("chainrpcpool: at least one worker required")
	}
	return &Pool{workers: workers}, nil
}

func (p *Pool) pick() ports.ChainRpc {
	n := atomic.AddUint64(&p.next, 1) - 1
	return p.workers[n%uint64(len(p.workers))]
}

// withFailover tries every worker in round-robin order until one
// succeeds or all of them fail with a non-retryable or exhausted
// ChainRpc error.
func withFailover[T any](p *Pool, call func(ports.ChainRpc) (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < len(p.workers); i++ {
		v, err := call(p.pick())
		if err == nil {
			return v, nil
		}
		last = err
		if !errs.Is(err, errs.KindChainRPC) {
			return zero, err
		}
	}
	return zero, last
}

// BlockHashAtHeight resolves a height to its base-chain block hash,
// failing over to the next worker on a transient ChainRpc error.
func (p *Pool) BlockHashAtHeight(ctx context.Context, height uint64) (types.Hash, error) {
	return withFailover(p, func(c ports.ChainRpc) (types.Hash, error) {
		return c.BlockHashAtHeight(ctx, height)
	})
}

// FetchBlock fetches the full block at hash.
func (p *Pool) FetchBlock(ctx context.Context, hash types.Hash) (*ports.RawBlock, error) {
	return withFailover(p, func(c ports.ChainRpc) (*ports.RawBlock, error) {
		return c.FetchBlock(ctx, hash)
	})
}

// BroadcastRawTransaction relays raw to the base chain's mempool.
func (p *Pool) BroadcastRawTransaction(ctx context.Context, raw []byte) (types.Hash, error) {
	return withFailover(p, func(c ports.ChainRpc) (types.Hash, error) {
		return c.BroadcastRawTransaction(ctx, raw)
	})
}

// ResolveUTXO looks up the live UTXO at outpoint, if any.
func (p *Pool) ResolveUTXO(ctx context.Context, outpoint types.Outpoint) (*types.UTXO, error) {
	return withFailover(p, func(c ports.ChainRpc) (*types.UTXO, error) {
		return c.ResolveUTXO(ctx, outpoint)
	})
}

// EstimateFee asks the base chain for a fee estimate at the given
// confirmation target.
func (p *Pool) EstimateFee(ctx context.Context, confTarget uint32) (types.U256, error) {
	return withFailover(p, func(c ports.ChainRpc) (types.U256, error) {
		return c.EstimateFee(ctx, confTarget)
	})
}

// CurrentTipHeight returns the base chain's current tip height.
func (p *Pool) CurrentTipHeight(ctx context.Context) (uint64, error) {
	return withFailover(p, func(c ports.ChainRpc) (uint64, error) {
		return c.CurrentTipHeight(ctx)
	})
}
