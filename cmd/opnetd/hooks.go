package main

import (
	"context"
	"crypto/sha256"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/taproot"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

// hostHooks builds the three store-backed callbacks vm.NewHost needs:
// account classification, historical block hashes, and child-contract
// deployment address derivation. Kept together since all three close over
// the same ports.Store.
type hostHooks struct {
	store ports.Store
}

func newHostHooks(store ports.Store) *hostHooks {
	return &hostHooks{store: store}
}

// classifyAccount reports whether addr is a deployed contract or, absent
// a contract record, an externally-owned account (spec §4.5's
// account_type capability).
func (h *hostHooks) classifyAccount(ctx context.Context, addr types.Address) (vm.AccountType, error) {
	contract, ok, err := h.store.ContractByAddress(ctx, addr)
	if err != nil {
		return vm.AccountUnknown, errs.New(errs.KindStore, err)
	}
	if ok && contract != nil {
		return vm.AccountContract, nil
	}
	return vm.AccountEOA, nil
}

// blockHash satisfies the host's block_hash capability by looking up an
// already-committed header.
func (h *hostHooks) blockHash(ctx context.Context, height uint64) (types.Hash, error) {
	header, ok, err := h.store.HeaderByHeight(ctx, height)
	if err != nil {
		return types.Hash{}, errs.New(errs.KindStore, err)
	}
	if !ok {
		return types.Hash{}, errs.Wrapf(errs.KindNotFound, "no committed header at height %d", height)
	}
	return header.Hash, nil
}

// deployChild derives a child contract's deployment address for a
// constructor-triggered nested deployment (spec §4.3's deploy_from_contract
// capability). The parent's tweaked output key stands in for a deployer
// key, and the salt is hashed with the parent address script to
// derive a saltPubKey-shaped 32 bytes; this is a reference derivation, not
// a normative key schedule (SPEC_FULL's wallet/key-management Non-goal
// leaves the real scheme unspecified).
func (h *hostHooks) deployChild(ctx context.Context, parent types.Address, bytecode []byte, salt [32]byte) (types.Address, error) {
	contract, ok, err := h.store.ContractByAddress(ctx, parent)
	if err != nil {
		return types.Address{}, errs.New(errs.KindStore, err)
	}
	if !ok {
		return types.Address{}, errs.Wrapf(errs.KindNotFound, "deployChild: parent %s has no contract record", parent.String())
	}

	saltPubKey := sha256.Sum256(append(append([]byte{}, parent.Script...), salt[:]...))

	addr, _, err := taproot.DeploymentAddress(contract.TweakedPubKey, saltPubKey, salt, bytecode)
	if err != nil {
		return types.Address{}, errs.Wrapf(errs.KindVM, "deriving child deployment address: %s", err)
	}
	return addr, nil
}
