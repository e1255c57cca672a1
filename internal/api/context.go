// Package api implements the JSON-RPC 2.0 / WebSocket gateway (spec
// §6.1, §6.3): it forwards calls, submissions, and simulations to the
// indexer, mempool, consensus, and epoch units without owning any state
// of its own. Grounded directly on app/rpc/rpccontext/context.go's
// aggregating-Context idiom (one struct of manager pointers built by a
// single constructor) and infrastructure/network/rpc/rpcserver.go's
// commandHandler/rpcHandlers map-of-handlers dispatch shape.
package api

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/classify"
	"github.com/btc-vision/opnet-node-sub009/internal/core/consensus"
	"github.com/btc-vision/opnet-node-sub009/internal/core/epoch"
	"github.com/btc-vision/opnet-node-sub009/internal/core/indexer"
	"github.com/btc-vision/opnet-node-sub009/internal/core/mempool"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

// Simulator is the seam btc_simulateTransaction/btc_call invoke into the
// VM host without this package importing indexer's wiring directly.
type Simulator interface {
	Simulate(ctx context.Context, call vm.Call) vm.Receipt
}

// Context aggregates every unit the API forwards requests to. Built once
// at process start by cmd/opnetd and handed to Server.
type Context struct {
	ChainID    uint32
	Indexer    *indexer.Indexer
	Store      ports.Store
	Chain      ports.ChainRpc
	Mempool    *mempool.Pool
	Consensus  *consensus.Manager
	Epoch      *epoch.Manager
	Simulator  Simulator
	MempoolDecode func([]byte) (*classify.RawTx, error)
}

// NewContext builds a Context from its collaborators.
func NewContext(
	chainID uint32,
	idx *indexer.Indexer,
	store ports.Store,
	chain ports.ChainRpc,
	mp *mempool.Pool,
	cons *consensus.Manager,
	ep *epoch.Manager,
	sim Simulator,
) *Context {
	return &Context{
		ChainID:   chainID,
		Indexer:   idx,
		Store:     store,
		Chain:     chain,
		Mempool:   mp,
		Consensus: cons,
		Epoch:     ep,
		Simulator: sim,
	}
}
