// Package reorg implements divergence detection and state unwinding
// (spec §4.5). Grounded on domain/blockdag/virtualblock.go's selected-tip
// reorganization (walking back from a new candidate tip to find the
// common ancestor with the current selected parent) adapted from
// DAG-tip-set semantics to a linear chain's fork-point scan, and
// dagtraversalmanager's walk-back idiom for the ancestor search itself.
package reorg

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Detector holds the chain/store handles needed to detect and recover
// from a reorg. Stateless beyond those handles; safe for one Indexer to
// own exclusively (spec §5: block pipeline processes heights strictly in
// ascending order, so only one reorg can be in flight at a time).
type Detector struct {
	chain ports.ChainRpc
	store ports.Store
}

// NewDetector builds a Detector.
func NewDetector(chain ports.ChainRpc, store ports.Store) *Detector {
	return &Detector{chain: chain, store: store}
}

// Check reports whether the block fetched at height h has diverged from
// the locally committed chain: true iff fetchedPrevHash doesn't match the
// local header at h-1.
func (d *Detector) Check(ctx context.Context, h uint64, fetchedPrevHash types.Hash) (bool, error) {
	local, ok, err := d.store.HeaderByHeight(ctx, h-1)
	if err != nil {
		return false, errs.New(errs.KindStore, err)
	}
	if !ok {
		// Nothing committed at h-1 yet; not a reorg, just the first block
		// this indexer is processing.
		return false, nil
	}
	return local.Hash != fetchedPrevHash, nil
}

// Recover scans back from the mismatch at divergedAt to find the fork
// point F, unwinds every height above F, and returns F+1, the height the
// pipeline should resume at.
func (d *Detector) Recover(ctx context.Context, divergedAt uint64) (uint64, error) {
	fork, err := d.scan(ctx, divergedAt)
	if err != nil {
		return 0, err
	}

	current, ok, err := d.store.LatestHeader(ctx)
	if err != nil {
		return 0, errs.New(errs.KindStore, err)
	}
	if !ok {
		return fork + 1, nil
	}

	if err := d.unwind(ctx, fork, current.Height); err != nil {
		return 0, err
	}
	return fork + 1, nil
}

// scan walks back from divergedAt-1 comparing the base chain's hash at
// each height against the locally committed hash, returning the greatest
// height F where they agree.
func (d *Detector) scan(ctx context.Context, divergedAt uint64) (uint64, error) {
	height := divergedAt - 1
	for {
		local, ok, err := d.store.HeaderByHeight(ctx, height)
		if err != nil {
			return 0, errs.New(errs.KindStore, err)
		}
		if !ok {
			if height == 0 {
				return 0, nil
			}
			height--
			continue
		}

		chainHash, err := d.chain.BlockHashAtHeight(ctx, height)
		if err != nil {
			return 0, errs.New(errs.KindChainRPC, err)
		}
		if local.Hash == chainHash {
			return height, nil
		}
		if height == 0 {
			return 0, nil
		}
		height--
	}
}

// unwind removes every committed height above fork in a single store
// transaction spanning [fork+1, currentLocal], per spec §4.5's failure
// semantics ("the unwind runs in a single store transaction per height" —
// DeleteAboveHeight/ClearUTXODeletedAbove are range operations over that
// whole span, so one transaction attempt covers it; a persistent failure
// is fatal and is surfaced to the caller for that escalation).
func (d *Detector) unwind(ctx context.Context, fork, currentLocal uint64) error {
	if currentLocal <= fork {
		return nil
	}
	err := d.store.WithTx(ctx, func(tx ports.Tx) error {
		if err := tx.ClearUTXODeletedAbove(ctx, fork); err != nil {
			return err
		}
		if err := tx.DeleteAboveHeight(ctx, fork); err != nil {
			return err
		}
		return tx.AppendReorg(ctx, &ports.ReorgRecord{
			FromBlock: fork,
			ToBlock:   currentLocal,
		})
	})
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	return nil
}
