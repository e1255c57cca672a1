// Package indexer implements the block pipeline orchestrator (spec §4.1):
// fetch-decode-classify-sort-execute-commit for each base-chain height,
// chain-follower catch-up, reorg delegation, and sync-status reporting.
//
// Grounded directly on domain/consensus/factory.go's manager-wiring shape
// (one constructor assembling every collaborator by interface) and
// blockprocessor.go's ValidateAndInsertBlock pipeline (decode, validate,
// build commitment, persist, notify) — generalized here from "insert one
// DAG block" to "process one linear-chain height". Retry/backoff on
// transient ChainRpc/Store failures is internal/core/retry, grounded on
// connmanager.go's reconnect loop.
package indexer

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/classify"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/reorg"
	"github.com/btc-vision/opnet-node-sub009/internal/core/retry"
	"github.com/btc-vision/opnet-node-sub009/internal/core/sortorder"
	"github.com/btc-vision/opnet-node-sub009/internal/core/statecommit"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

// defaultDeploymentGas is the gas budget given to a deployment's
// constructor call; deployments carry no declared gas limit field of
// their own per spec §3.2 (only Interaction does), so the host applies a
// fixed generous ceiling instead.
const defaultDeploymentGas = 100_000_000

// TxDecoder turns one raw base-chain transaction into the shape classify
// needs. The base-chain wire codec itself is out of scope (spec §1); this
// is the seam a concrete codec plugs into.
type TxDecoder func(raw []byte) (*classify.RawTx, error)

// Executor runs one classified Deployment or Interaction through the VM
// host and returns its receipt. Satisfied by *vm.Host in production.
type Executor interface {
	Execute(ctx context.Context, call vm.Call, inputs, outputs []byte) vm.Receipt
}

// BlockProcessedEvent is what the indexer emits after committing a
// height, carrying what internal/core/consensus needs to sign a witness
// (spec §4.1 step 7) and what internal/api needs to notify subscribers.
type BlockProcessedEvent struct {
	Header         types.BlockHeader
	ChecksumRoot   types.Hash
	ChecksumProofs []types.ChecksumProof
}

// Status reports chain-follower progress (supplemented per SPEC_FULL §C.1:
// spec.md names status() but doesn't enumerate these fields; we keep the
// ones the teacher's getBlockDagInfo/getInfo RPCs always track).
type Status struct {
	Current    uint64
	Target     uint64
	IsSyncing  bool
	IsReorging bool
	BestHash   types.Hash
}

// Progress is CatchUp's return value.
type Progress struct {
	StartHeight uint64
	EndHeight   uint64
}

// Indexer is the block pipeline orchestrator.
type Indexer struct {
	chain    ports.ChainRpc
	store    ports.Store
	decode   TxDecoder
	executor Executor
	detector *reorg.Detector
	special  vm.SpecialContracts
	retry    retry.Policy

	onBlockProcessed func(BlockProcessedEvent)

	mu         sync.RWMutex
	status     Status
}

// New builds an Indexer. onBlockProcessed may be nil; it is invoked
// synchronously after each height commits.
func New(chain ports.ChainRpc, store ports.Store, decode TxDecoder, executor Executor, onBlockProcessed func(BlockProcessedEvent)) *Indexer {
	return &Indexer{
		chain:            chain,
		store:            store,
		decode:           decode,
		executor:         executor,
		detector:         reorg.NewDetector(chain, store),
		retry:            retry.DefaultPolicy,
		onBlockProcessed: onBlockProcessed,
	}
}

// Status returns the current sync status.
func (ix *Indexer) Status() Status {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.status
}

func (ix *Indexer) setStatus(mutate func(*Status)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	mutate(&ix.status)
}

// CatchUp processes every height from startHeight (or the local tip + 1,
// if nil) up to the base chain's current tip.
func (ix *Indexer) CatchUp(ctx context.Context, startHeight *uint64) (Progress, error) {
	var start uint64
	if startHeight != nil {
		start = *startHeight
	} else {
		head, ok, err := ix.store.LatestHeader(ctx)
		if err != nil {
			return Progress{}, errs.New(errs.KindStore, err)
		}
		if ok {
			start = head.Height + 1
		}
	}

	target, err := ix.chain.CurrentTipHeight(ctx)
	if err != nil {
		return Progress{}, errs.New(errs.KindChainRPC, err)
	}

	ix.setStatus(func(s *Status) {
		s.IsSyncing = true
		s.Target = target
	})
	defer ix.setStatus(func(s *Status) { s.IsSyncing = false })

	h := start
	for h <= target {
		if err := ctx.Err(); err != nil {
			return Progress{StartHeight: start, EndHeight: h - 1}, err
		}
		next, err := ix.processHeight(ctx, h)
		if err != nil {
			if errs.Is(err, errs.KindReorgInProgress) {
				// The detector already unwound to the fork point; resume
				// there instead of at h.
				h = next
				continue
			}
			return Progress{StartHeight: start, EndHeight: h - 1}, err
		}
		h = next
	}

	return Progress{StartHeight: start, EndHeight: h - 1}, nil
}

// HandleNewTip is ChainTap's new-block notification entry point: process
// straight through to the reported height.
func (ix *Indexer) HandleNewTip(ctx context.Context, height uint64, hash types.Hash) error {
	ix.setStatus(func(s *Status) {
		s.Target = height
		s.BestHash = hash
	})
	_, err := ix.CatchUp(ctx, nil)
	return err
}

// processHeight runs the fetch-decode-classify-sort-execute-commit
// pipeline for one height and returns the next height to process (h+1 on
// success, or the reorg's resume height on KindReorgInProgress).
func (ix *Indexer) processHeight(ctx context.Context, h uint64) (uint64, error) {
	var raw *ports.RawBlock
	err := retry.Do(ctx, ix.retry, func(ctx context.Context) error {
		hash, err := ix.chain.BlockHashAtHeight(ctx, h)
		if err != nil {
			return errs.New(errs.KindChainRPC, err)
		}
		block, err := ix.chain.FetchBlock(ctx, hash)
		if err != nil {
			return errs.New(errs.KindChainRPC, err)
		}
		raw = block
		return nil
	})
	if err != nil {
		return h, err
	}

	raw.Header.Height = h

	if h > 0 {
		diverged, err := ix.detector.Check(ctx, h, raw.Header.PrevHash)
		if err != nil {
			return h, err
		}
		if diverged {
			ix.setStatus(func(s *Status) { s.IsReorging = true })
			defer ix.setStatus(func(s *Status) { s.IsReorging = false })

			resumeAt, err := ix.detector.Recover(ctx, h)
			if err != nil {
				return h, err
			}
			return resumeAt, errs.New(errs.KindReorgInProgress, errors.Errorf("reorg unwound to height %d", resumeAt-1))
		}
	}

	overlays, err := ix.classifyAll(h, raw)
	if err != nil {
		return h, err
	}

	ordered := sortorder.Order(filterExecutable(overlays))

	var writes []statecommit.PointerWrite
	var receipts []ports.Receipt
	var newContracts []types.Contract
	var idx uint32
	for _, tx := range ordered {
		receipt, contract := ix.executeOne(ctx, h, tx)
		receipt.Index = idx
		idx++
		receipts = append(receipts, receipt)
		if contract != nil {
			newContracts = append(newContracts, *contract)
		}
		for _, cs := range receipt.ChangedStorage {
			writes = append(writes, statecommit.PointerWrite{Contract: cs.ContractAddress, Pointer: cs.Pointer, Value: cs.Value})
		}
	}

	if len(overlays) == 0 {
		raw.Header.StorageRoot, raw.Header.ReceiptRoot = statecommit.EmptyRoots()
	}
	raw.Header.TxCount = uint32(len(overlays))

	result := statecommit.Commit(writes, receipts, &raw.Header)
	raw.Header.StorageRoot = result.StorageRoot
	raw.Header.ReceiptRoot = result.ReceiptRoot
	raw.Header.ChecksumRoot = result.ChecksumRoot
	raw.Header.ChecksumProofs = result.ChecksumProofs

	for i := range result.PointerValues {
		result.PointerValues[i].LastSeenAt = h
	}

	utxoInserts, utxoDeletes := utxoDiff(overlays)

	commit := &ports.BlockCommit{
		Header:        raw.Header,
		NewContracts:  newContracts,
		UTXOInserts:   utxoInserts,
		UTXODeletes:   utxoDeletes,
		PointerWrites: result.PointerValues,
		Receipts:      result.Receipts,
	}

	err = retry.Do(ctx, ix.retry, func(ctx context.Context) error {
		return ix.store.WithTx(ctx, func(tx ports.Tx) error {
			return tx.CommitBlock(ctx, commit)
		})
	})
	if err != nil {
		return h, errs.New(errs.KindStore, err)
	}

	ix.setStatus(func(s *Status) {
		s.Current = h
		s.BestHash = raw.Header.Hash
	})

	if ix.onBlockProcessed != nil {
		ix.onBlockProcessed(BlockProcessedEvent{
			Header:         raw.Header,
			ChecksumRoot:   result.ChecksumRoot,
			ChecksumProofs: result.ChecksumProofs,
		})
	}

	return h + 1, nil
}

func (ix *Indexer) classifyAll(h uint64, raw *ports.RawBlock) ([]*types.OverlayTx, error) {
	overlays := make([]*types.OverlayTx, 0, len(raw.Transactions))
	for _, rawTx := range raw.Transactions {
		decoded, err := ix.decode(rawTx)
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		overlay, err := classify.Classify(h, decoded)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, overlay)
	}
	return overlays, nil
}

// filterExecutable returns only Deployment/Interaction transactions; §4.2
// sorting and §4.3 execution never touch Generic transactions.
func filterExecutable(overlays []*types.OverlayTx) []*types.OverlayTx {
	out := make([]*types.OverlayTx, 0, len(overlays))
	for _, tx := range overlays {
		if tx.Kind != types.OverlayGeneric {
			out = append(out, tx)
		}
	}
	return out
}

// executeOne runs a single Deployment or Interaction through the VM host,
// returning its receipt and, for a successful deployment, the new
// Contract record.
func (ix *Indexer) executeOne(ctx context.Context, height uint64, tx *types.OverlayTx) (ports.Receipt, *types.Contract) {
	switch tx.Kind {
	case types.OverlayDeployment:
		call := vm.Call{
			Contract:     tx.Deployment.ContractAddr,
			Height:       height,
			MaxGas:       defaultDeploymentGas,
			IsDeployment: true,
			DeployCode:   vm.Bytecode(tx.Deployment.Bytecode),
		}
		receipt := ix.executor.Execute(ctx, call, nil, nil)
		out := ports.Receipt{
			TxID:           tx.TxID,
			Result:         receipt.Result,
			Revert:         receipt.Revert,
			Events:         receipt.Events,
			GasUsed:        types.NewU256FromUint64(receipt.GasUsed),
			AccessList:     receipt.AccessList,
			Deployed:       receipt.DeployedContracts,
			ChangedStorage: receipt.ChangedStorage,
		}
		if receipt.Revert != "" {
			return out, nil
		}
		return out, &types.Contract{
			ContractAddress:  tx.Deployment.ContractAddr,
			Deployer:         tx.Deployment.DeployerPubKey,
			DeploymentTxID:   tx.TxID,
			DeploymentHeight: height,
		}

	case types.OverlayInteraction:
		call := vm.Call{
			Contract: tx.Interaction.ContractAddr,
			Calldata: tx.Interaction.Calldata,
			Height:   height,
			MaxGas:   tx.Interaction.TheoreticalGasLimit.Uint64(),
		}
		receipt := ix.executor.Execute(ctx, call, nil, nil)
		return ports.Receipt{
			TxID:           tx.TxID,
			Result:         receipt.Result,
			Revert:         receipt.Revert,
			Events:         receipt.Events,
			GasUsed:        types.NewU256FromUint64(receipt.GasUsed),
			AccessList:     receipt.AccessList,
			Deployed:       receipt.DeployedContracts,
			ChangedStorage: receipt.ChangedStorage,
		}, nil

	default:
		return ports.Receipt{TxID: tx.TxID}, nil
	}
}

// utxoDiff derives the UTXO inserts/deletes every overlay tx in a block
// implies: every output becomes a live UTXO, every input deletes the
// UTXO it spends. Inputs
// spending a pre-existing UTXO are handled by the caller via
// Tx.CommitBlock marking DeletedAtBlock on the store's existing row; here
// we only report outpoints, leaving resolution to the store.
func utxoDiff(overlays []*types.OverlayTx) ([]types.UTXO, []types.Outpoint) {
	var inserts []types.UTXO
	var deletes []types.Outpoint
	for _, tx := range overlays {
		for i, out := range tx.Outputs {
			inserts = append(inserts, types.UTXO{
				TxID:        tx.TxID,
				Vout:        uint32(i),
				Value:       out.Value,
				Script:      out.Script,
				Address:     out.Address,
				BlockHeight: tx.BlockHeight,
			})
		}
		for _, in := range tx.Inputs {
			deletes = append(deletes, types.Outpoint{TxID: in.PrevTxID, Vout: in.PrevVout})
		}
	}
	return inserts, deletes
}
