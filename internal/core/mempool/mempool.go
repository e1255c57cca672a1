// Package mempool implements admission, dedup, ordering, and eviction of
// pending overlay transactions and PSBTs (spec §4.7). Directly grounded
// on domain/miningmanager/mempool/transactions_pool.go and orphan_pool.go
// (pool-of-pools structure: a primary map keyed by id plus a secondary
// fee-ordered index, expiry sweep over a score) — adapted here from
// DAA-score expiry to wall-clock expiry, since this system has no DAA
// score. The PSBT processor dispatch table (spec's design note, §4.7
// step 6) lives in psbt.go.
package mempool

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/btc-vision/opnet-node-sub009/internal/core/classify"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Limits bounds admission (spec §4.7 step 1).
type Limits struct {
	MaxRawBytes  int
	MaxPSBTBytes int
	MaxLimit     int // cap on get_latest's limit param
	Expiry       time.Duration
}

// DefaultLimits mirrors the teacher's mempool defaults in spirit (generous
// but bounded).
var DefaultLimits = Limits{
	MaxRawBytes:  400_000,
	MaxPSBTBytes: 400_000,
	MaxLimit:     1000,
	Expiry:       24 * time.Hour,
}

// Info is get_info()'s result.
type Info struct {
	Count      int
	OpnetCount int // non-PSBT, non-Generic overlay tx count
	Size       int // total bytes
}

// Pool is the in-memory mempool: an id-keyed map (the "pool of pools"
// idiom's primary index) plus a secondary per-address index rebuilt
// lazily at admission time (SPEC_FULL §C's "per-address mempool
// transaction index with lazy materialisation").
type Pool struct {
	limits   Limits
	chain    ports.ChainRpc
	store    ports.Store
	psbtTypes map[PSBTType]PSBTProcessor

	mu        sync.RWMutex
	byID      map[types.Hash]*types.MempoolEntry
	byAddress map[string][]types.Hash
}

// New builds an empty Pool.
func New(limits Limits, chain ports.ChainRpc, store ports.Store) *Pool {
	return &Pool{
		limits:    limits,
		chain:     chain,
		store:     store,
		psbtTypes: defaultPSBTDispatch(),
		byID:      make(map[types.Hash]*types.MempoolEntry),
		byAddress: make(map[string][]types.Hash),
	}
}

// AdmitResult is what Admit reports back to the caller (API/consensus
// relay), mirroring the JSON-RPC btc_sendRawTransaction result shape.
type AdmitResult struct {
	Success             bool
	Modified            []byte // PSBT path only
	Finalized           bool   // PSBT path only
	Error               string
}

// Admit runs the full admission pipeline (spec §4.7 steps 1-7) for a raw
// overlay transaction or a PSBT.
func (p *Pool) Admit(ctx context.Context, raw []byte, isPSBT bool, decode func([]byte) (*classify.RawTx, error)) (AdmitResult, error) {
	if err := p.sizeGate(raw, isPSBT); err != nil {
		return AdmitResult{}, err
	}

	if isPSBT {
		return p.admitPSBT(ctx, raw)
	}
	return p.admitRaw(ctx, raw, decode)
}

func (p *Pool) sizeGate(raw []byte, isPSBT bool) error {
	max := p.limits.MaxRawBytes
	if isPSBT {
		max = p.limits.MaxPSBTBytes
	}
	if len(raw) > max {
		return errs.Wrapf(errs.KindValidation, "transaction of %d bytes exceeds limit %d", len(raw), max)
	}
	return nil
}

func (p *Pool) admitRaw(ctx context.Context, raw []byte, decode func([]byte) (*classify.RawTx, error)) (AdmitResult, error) {
	decoded, err := decode(raw)
	if err != nil {
		return AdmitResult{}, errs.New(errs.KindValidation, err)
	}

	id := decoded.TxID
	p.mu.RLock()
	_, dup := p.byID[id]
	p.mu.RUnlock()
	if dup {
		return AdmitResult{}, errs.Wrapf(errs.KindValidation, "duplicate mempool entry %s", id)
	}

	overlay, err := classify.Classify(0, decoded)
	if err != nil {
		return AdmitResult{}, err
	}

	if err := staticValidate(overlay); err != nil {
		return AdmitResult{}, err
	}

	if err := p.chainValidate(ctx, overlay); err != nil {
		return AdmitResult{}, err
	}

	entry := entryFromOverlay(overlay, raw)
	p.insert(entry)

	return AdmitResult{Success: true}, nil
}

// staticValidate checks signatures/addresses/gas bounds/calldata shape
// (spec §4.7 step 4). The base-chain signature check itself is out of
// scope (it lives in the wire codec's domain); this enforces the fields
// the core owns.
func staticValidate(tx *types.OverlayTx) error {
	if len(tx.Outputs) == 0 {
		return errs.Wrapf(errs.KindValidation, "transaction %s has no outputs", tx.TxID)
	}
	if tx.Interaction != nil {
		if tx.Interaction.TheoreticalGasLimit.IsZero() {
			return errs.Wrapf(errs.KindValidation, "interaction %s declares zero gas limit", tx.TxID)
		}
		if len(tx.Interaction.Calldata) == 0 {
			return errs.Wrapf(errs.KindValidation, "interaction %s has empty calldata", tx.TxID)
		}
	}
	if tx.Deployment != nil && len(tx.Deployment.Bytecode) == 0 {
		return errs.Wrapf(errs.KindValidation, "deployment %s has empty bytecode", tx.TxID)
	}
	return nil
}

// chainValidate resolves every input against the live UTXO set at the
// current tip (spec §4.7 step 5). The first admission to spend a given
// UTXO wins; a second conflicting admission is rejected here.
func (p *Pool) chainValidate(ctx context.Context, tx *types.OverlayTx) error {
	p.mu.RLock()
	for _, e := range p.byID {
		for _, pending := range e.Inputs {
			for _, in := range tx.Inputs {
				if pending.PrevTxID == in.PrevTxID && pending.PrevVout == in.PrevVout {
					p.mu.RUnlock()
					return errs.Wrapf(errs.KindValidation, "input %s:%d is already spent by pending %s", in.PrevTxID, in.PrevVout, e.ID)
				}
			}
		}
	}
	p.mu.RUnlock()
	for _, in := range tx.Inputs {
		outpoint := types.Outpoint{TxID: in.PrevTxID, Vout: in.PrevVout}
		utxo, found, err := p.store.UTXOByOutpoint(ctx, outpoint)
		if err != nil {
			return errs.New(errs.KindStore, err)
		}
		if !found {
			utxo2, err := p.chain.ResolveUTXO(ctx, outpoint)
			if err != nil {
				return errs.New(errs.KindChainRPC, err)
			}
			if utxo2 == nil {
				return errs.Wrapf(errs.KindValidation, "input %s:%d does not resolve to a UTXO", in.PrevTxID, in.PrevVout)
			}
			continue
		}
		if !utxo.IsLive() {
			return errs.Wrapf(errs.KindValidation, "input %s:%d is already spent", in.PrevTxID, in.PrevVout)
		}
	}
	return nil
}

func entryFromOverlay(tx *types.OverlayTx, raw []byte) *types.MempoolEntry {
	e := &types.MempoolEntry{
		ID:        tx.TxID,
		FirstSeen: time.Now(),
		Inputs:    tx.Inputs,
		Outputs:   tx.Outputs,
		Raw:       raw,
		Kind:      tx.Kind,
	}
	if tx.Interaction != nil {
		e.ContractAddress = &tx.Interaction.ContractAddr
		e.Calldata = tx.Interaction.Calldata
		e.PriorityFee = tx.Interaction.PriorityFee
		e.TheoreticalGasLimit = tx.Interaction.TheoreticalGasLimit
	}
	if tx.Deployment != nil {
		e.ContractAddress = &tx.Deployment.ContractAddr
		e.Bytecode = tx.Deployment.Bytecode
	}
	if len(tx.Outputs) > 0 {
		e.From = &tx.Outputs[0].Address
	}
	return e
}

func (p *Pool) insert(e *types.MempoolEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byID[e.ID] = e
	for _, out := range e.Outputs {
		key := out.Address.String()
		p.byAddress[key] = append(p.byAddress[key], e.ID)
	}
}

// GetPending returns the mempool entry with the given id.
func (p *Pool) GetPending(id types.Hash) (*types.MempoolEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byID[id]
	return e, ok
}

// GetLatest returns up to limit entries, optionally filtered to one or
// more addresses, most-recent first.
func (p *Pool) GetLatest(addresses []types.Address, limit int) []*types.MempoolEntry {
	if limit <= 0 || limit > p.limits.MaxLimit {
		limit = p.limits.MaxLimit
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var candidates []*types.MempoolEntry
	if len(addresses) == 0 {
		candidates = make([]*types.MempoolEntry, 0, len(p.byID))
		for _, e := range p.byID {
			candidates = append(candidates, e)
		}
	} else {
		seen := make(map[types.Hash]bool)
		for _, addr := range addresses {
			for _, id := range p.byAddress[addr.String()] {
				if e, ok := p.byID[id]; ok && !seen[id] {
					seen[id] = true
					candidates = append(candidates, e)
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].FirstSeen.After(candidates[j].FirstSeen)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// GetInfo returns aggregate mempool stats.
func (p *Pool) GetInfo() Info {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := Info{Count: len(p.byID)}
	for _, e := range p.byID {
		info.Size += e.ByteLength()
		if e.Kind != types.OverlayGeneric {
			info.OpnetCount++
		}
	}
	return info
}

// EvictIncluded removes every entry whose id is in the committed block,
// called on block commit (spec §4.7 eviction).
func (p *Pool) EvictIncluded(ids []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.remove(id)
	}
}

// SweepExpired removes entries older than the configured expiry,
// intended to run on a periodic timer.
func (p *Pool) SweepExpired(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var expired []types.Hash
	for id, e := range p.byID {
		if now.Sub(e.FirstSeen) > p.limits.Expiry {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		p.remove(id)
	}
	return len(expired)
}

// Restore reinserts entries a reorg resurrected (their including block
// was unwound, so they go back to pending).
func (p *Pool) Restore(entries []*types.MempoolEntry) {
	for _, e := range entries {
		p.insert(e)
	}
}

// remove deletes an entry; caller must hold p.mu.
func (p *Pool) remove(id types.Hash) {
	e, ok := p.byID[id]
	if !ok {
		return
	}
	delete(p.byID, id)
	for _, out := range e.Outputs {
		key := out.Address.String()
		ids := p.byAddress[key]
		for i, existing := range ids {
			if existing == id {
				p.byAddress[key] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}
