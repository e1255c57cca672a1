// Package consensus manages the trusted-validator set, block-witness
// signing/verification, and finality determination (spec §4.6). Grounded
// on the teacher's threshold/set-membership query shape in
// domain/consensus/processes/reachabilitymanager (is-this-descendant-of
// queries against a precomputed set) and the Manager construction pattern
// in app/protocol/protocol.go. Signature verification reuses
// internal/core/taproot's Schnorr primitives.
package consensus

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/taproot"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// ValidatorIdentity maps a configured validator to its signing key and
// the trusted entity it belongs to.
type ValidatorIdentity struct {
	Name     string
	PubKey   [32]byte
	EntityID string
}

// NetworkParams are the per-network finality thresholds (spec §4.6).
type NetworkParams struct {
	Minimum                            int
	TransactionMinimum                 int
	MinimumValidatorTransactionGeneration int
	MaximumValidatorPerTrustedEntities  int
}

// TrustedSet is the static per-chain/network validator configuration.
type TrustedSet struct {
	Validators map[[32]byte]ValidatorIdentity
	Params     NetworkParams
}

// IsTrusted reports whether pubKey belongs to the configured set.
func (s *TrustedSet) IsTrusted(pubKey [32]byte) (ValidatorIdentity, bool) {
	v, ok := s.Validators[pubKey]
	return v, ok
}

// Signer is held by a node that runs one of the configured validator
// identities, letting Manager sign outgoing witnesses.
type Signer interface {
	PubKey() [32]byte
	Sign(msg []byte) ([]byte, error)
}

// Manager tracks inbound witnesses per block and determines finality.
// Witnesses for a block can arrive in any order; dedup by (block, pubkey)
// per spec §5.
type Manager struct {
	set    *TrustedSet
	signer Signer // nil if this node holds no configured identity
	peers  ports.Peering

	mu       sync.RWMutex
	byBlock  map[uint64]map[types.WitnessKey]types.Witness
}

// NewManager builds a Manager. signer may be nil.
func NewManager(set *TrustedSet, signer Signer, peers ports.Peering) *Manager {
	return &Manager{
		set:     set,
		signer:  signer,
		peers:   peers,
		byBlock: make(map[uint64]map[types.WitnessKey]types.Witness),
	}
}

// OnBlockProcessed signs the given checksum root (if this node holds a
// configured identity) and broadcasts the resulting witness to peers.
func (m *Manager) OnBlockProcessed(ctx context.Context, blockNumber uint64, checksumRoot types.Hash) error {
	if m.signer == nil {
		return nil
	}
	sig, err := m.signer.Sign(checksumRoot[:])
	if err != nil {
		return errors.Wrap(err, "signing checksum root")
	}
	w := types.Witness{
		BlockNumber: blockNumber,
		Signature:   sig,
		PubKey:      m.signer.PubKey(),
		Trusted:     true,
	}
	m.record(w)
	if m.peers != nil {
		if err := m.peers.BroadcastWitness(ctx, &w); err != nil {
			return errors.Wrap(err, "broadcasting witness")
		}
	}
	return nil
}

// RecordInbound records a witness received from a peer, verifying its
// signature against the trusted set and marking it Trusted accordingly.
// Untrusted witnesses (signature valid but pubkey not configured, or
// invalid) are still recorded for audit but never count toward finality.
func (m *Manager) RecordInbound(checksumRoot types.Hash, w types.Witness) error {
	_, trusted := m.set.IsTrusted(w.PubKey)
	if trusted {
		ok, err := taproot.VerifySchnorr(w.PubKey, checksumRoot[:], w.Signature)
		if err != nil {
			return errors.Wrap(err, "verifying witness signature")
		}
		w.Trusted = ok
	} else {
		w.Trusted = false
	}
	m.record(w)
	return nil
}

func (m *Manager) record(w types.Witness) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.byBlock[w.BlockNumber]
	if !ok {
		byKey = make(map[types.WitnessKey]types.Witness)
		m.byBlock[w.BlockNumber] = byKey
	}
	byKey[w.KeyOf()] = w // dedup by (block, pubkey): last write wins
}

// IsFinalised reports whether blockNumber has signatures from >= Minimum
// distinct trusted validators across >= MinimumValidatorTransactionGeneration
// distinct entities.
func (m *Manager) IsFinalised(blockNumber uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKey, ok := m.byBlock[blockNumber]
	if !ok {
		return false
	}

	entities := make(map[string]bool)
	validators := 0
	for key, w := range byKey {
		if !w.Trusted {
			continue
		}
		identity, ok := m.set.IsTrusted(key.PubKey)
		if !ok {
			continue
		}
		validators++
		entities[identity.EntityID] = true
	}

	return validators >= m.set.Params.Minimum && len(entities) >= m.set.Params.MinimumValidatorTransactionGeneration
}

// Witnesses returns the page of witnesses recorded for blockNumber,
// optionally filtered to trusted-only, per spec §4.6's paginated API.
func (m *Manager) Witnesses(blockNumber uint64, trustedOnly bool, limit, page int) []types.Witness {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKey := m.byBlock[blockNumber]
	all := make([]types.Witness, 0, len(byKey))
	for _, w := range byKey {
		if trustedOnly && !w.Trusted {
			continue
		}
		all = append(all, w)
	}

	if limit <= 0 {
		return all
	}
	start := page * limit
	if start >= len(all) {
		return nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
