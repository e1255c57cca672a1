package vm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

type fakeBackend struct {
	values map[string][32]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{values: make(map[string][32]byte)}
}

func backendKey(contract types.Address, key [32]byte) string {
	return contract.String() + string(key[:])
}

func (b *fakeBackend) Load(ctx context.Context, contract types.Address, key [32]byte, atHeight uint64) ([32]byte, bool, error) {
	v, ok := b.values[backendKey(contract, key)]
	return v, ok, nil
}

func (b *fakeBackend) set(contract types.Address, key, value [32]byte) {
	b.values[backendKey(contract, key)] = value
}

// scriptedRunner drives a frame through a fixed list of storage writes,
// optionally a nested call, and a final outcome — enough to exercise
// Host.Execute without needing a real bytecode interpreter.
type scriptedRunner struct {
	writes     [][2][32]byte // key, value pairs to store before returning
	nestedCall *types.Address
	reason     error // non-nil: runner returns this error (triggers revert)
	result     []byte
}

func (r *scriptedRunner) Run(ctx context.Context, frame *vm.Frame, code vm.Bytecode, calldata []byte) ([]byte, error) {
	for _, kv := range r.writes {
		if err := frame.Store(ctx, types.Address{Script: []byte("self")}, kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	if r.nestedCall != nil {
		if _, err := frame.Call(ctx, *r.nestedCall, calldata, 1_000_000); err != nil {
			return nil, err
		}
	}
	if r.reason != nil {
		return nil, r.reason
	}
	return r.result, nil
}

func keyFor(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	return k
}

func valFor(b byte) [32]byte {
	var v [32]byte
	v[31] = b
	return v
}

func noopHooks() (
	func(ctx context.Context, addr types.Address) (vm.AccountType, error),
	func(ctx context.Context, height uint64) (types.Hash, error),
	func(ctx context.Context, parent types.Address, bytecode []byte, salt [32]byte) (types.Address, error),
) {
	classify := func(ctx context.Context, addr types.Address) (vm.AccountType, error) {
		return vm.AccountEOA, nil
	}
	blockHash := func(ctx context.Context, height uint64) (types.Hash, error) {
		return types.Hash{}, nil
	}
	deploy := func(ctx context.Context, parent types.Address, bytecode []byte, salt [32]byte) (types.Address, error) {
		return types.Address{}, errs.Wrapf(errs.KindVM, "deploy not supported in this test")
	}
	return classify, blockHash, deploy
}

func TestExecuteCommitsStorageOnSuccess(t *testing.T) {
	backend := newFakeBackend()
	runner := &scriptedRunner{
		writes: [][2][32]byte{{keyFor(1), valFor(42)}},
		result: []byte("ok"),
	}
	classify, blockHash, deploy := noopHooks()
	host := vm.NewHost(backend, runner, nil, classify, blockHash, deploy, time.Second)

	receipt := host.Execute(context.Background(), vm.Call{
		Contract: types.Address{Script: []byte("contract-a")},
		MaxGas:   1_000_000,
	}, nil, nil)

	require.Empty(t, receipt.Revert)
	require.Equal(t, []byte("ok"), receipt.Result)
	require.Len(t, receipt.ChangedStorage, 1)
	require.Equal(t, valFor(42), receipt.ChangedStorage[0].Value)
}

func TestExecuteRevertLeavesNoStorageWrites(t *testing.T) {
	backend := newFakeBackend()
	runner := &scriptedRunner{
		writes: [][2][32]byte{{keyFor(1), valFor(99)}},
		reason: errs.Wrapf(errs.KindVM, "deliberate failure"),
	}
	classify, blockHash, deploy := noopHooks()
	host := vm.NewHost(backend, runner, nil, classify, blockHash, deploy, time.Second)

	receipt := host.Execute(context.Background(), vm.Call{
		Contract: types.Address{Script: []byte("contract-a")},
		MaxGas:   1_000_000,
	}, nil, nil)

	require.NotEmpty(t, receipt.Revert)
	require.Empty(t, receipt.ChangedStorage)

	_, found, err := backend.Load(context.Background(), types.Address{Script: []byte("self")}, keyFor(1), 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestExecuteOutOfGasReportsFullBudget(t *testing.T) {
	backend := newFakeBackend()
	writes := make([][2][32]byte, 0, 100)
	for i := 0; i < 100; i++ {
		writes = append(writes, [2][32]byte{keyFor(byte(i)), valFor(byte(i))})
	}
	runner := &scriptedRunner{writes: writes}
	classify, blockHash, deploy := noopHooks()
	host := vm.NewHost(backend, runner, nil, classify, blockHash, deploy, time.Second)

	receipt := host.Execute(context.Background(), vm.Call{
		Contract: types.Address{Script: []byte("contract-a")},
		MaxGas:   vm.GasCostStorageStore, // enough for exactly one store, not a hundred
	}, nil, nil)

	require.NotEmpty(t, receipt.Revert)
	require.Equal(t, vm.GasCostStorageStore, receipt.GasUsed)
	require.Empty(t, receipt.ChangedStorage)
}

func TestExecuteNestedCallSharesJournal(t *testing.T) {
	backend := newFakeBackend()
	callee := types.Address{Script: []byte("callee")}
	calleeRunner := &scriptedRunner{writes: [][2][32]byte{{keyFor(7), valFor(7)}}}
	caller := types.Address{Script: []byte("caller")}

	callerRunner := &scriptedRunner{nestedCall: &callee}

	// The host only drives one runner; to exercise a nested call the test
	// wires a small dispatcher in front of the two scripted runners.
	dispatch := &dispatchRunner{byContract: map[string]vm.Runner{
		caller.String(): callerRunner,
		callee.String(): calleeRunner,
	}}

	classify, blockHash, deploy := noopHooks()
	host := vm.NewHost(backend, dispatch, nil, classify, blockHash, deploy, time.Second)

	receipt := host.Execute(context.Background(), vm.Call{
		Contract: caller,
		MaxGas:   1_000_000,
	}, nil, nil)

	require.Empty(t, receipt.Revert)
	require.Positive(t, receipt.GasUsed)
	require.Len(t, receipt.ChangedStorage, 1)
}

// dispatchRunner routes Run to a different scriptedRunner depending on
// which contract the frame belongs to, simulating Host.invoke's re-entry
// into a different contract's code on a nested Call.
type dispatchRunner struct {
	byContract map[string]vm.Runner
}

func (d *dispatchRunner) Run(ctx context.Context, frame *vm.Frame, code vm.Bytecode, calldata []byte) ([]byte, error) {
	r, ok := d.byContract[frame.Contract().String()]
	if !ok {
		return nil, errs.Wrapf(errs.KindVM, "no runner for contract")
	}
	return r.Run(ctx, frame, code, calldata)
}
