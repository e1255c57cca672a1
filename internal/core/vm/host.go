package vm

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// MaxCallDepth bounds the re-entrant call stack.
const MaxCallDepth = 64

// AccountType classifies an address for the host's account_type capability.
type AccountType uint8

const (
	AccountUnknown AccountType = iota
	AccountContract
	AccountEOA
)

// PersistentStorage is the commitment-backed storage backend the host
// reads/writes through when a journal entry isn't already buffering the
// key. Backed, in production, by internal/core/statecommit's view of the
// storage tree at a given height.
type PersistentStorage interface {
	Load(ctx context.Context, contract types.Address, key [32]byte, atHeight uint64) ([32]byte, bool, error)
}

// Bytecode is the raw executable payload deployed under a contract address.
// The instruction set it encodes is treated as an opaque capability here;
// Runner is whatever interprets it, and the host only needs to invoke it
// and observe gas/result/revert.
type Bytecode []byte

// Runner is the pluggable bytecode interpreter the host invokes for both
// deployments and interactions. A real interpreter is an external
// collaborator; this package ships no implementation, only the interface
// a Host needs to drive one.
type Runner interface {
	Run(ctx context.Context, frame *Frame, code Bytecode, calldata []byte) (result []byte, err error)
}

// Call is one invocation request into the VM host: a contract address,
// calldata, caller, value transferred, the height it executes at, and a
// gas budget.
type Call struct {
	Contract      types.Address
	Calldata      []byte
	Caller        types.Address
	Value         types.U256
	Height        uint64
	MaxGas        uint64
	IsDeployment  bool
	DeployCode    Bytecode // set when IsDeployment
}

// Receipt is the execution outcome.
type Receipt struct {
	Result             []byte
	Revert             string
	Events             [][]byte
	GasUsed            uint64
	AccessList         [][]byte
	DeployedContracts  []types.Address
	ChangedStorage     []types.PointerValue
}

// Frame is one call-stack entry: its own gas meter and transient storage,
// sharing the outer call's journal and deadline.
type Frame struct {
	depth     int
	meter     *GasMeter
	transient map[string][32]byte
	host      *Host
	contract  types.Address
	caller    types.Address
	height    uint64
}

func newFrame(host *Host, depth int, contract, caller types.Address, height uint64, gasLimit uint64) *Frame {
	return &Frame{
		depth:     depth,
		meter:     NewGasMeter(gasLimit),
		transient: make(map[string][32]byte),
		host:      host,
		contract:  contract,
		caller:    caller,
		height:    height,
	}
}

func transientKey(contract types.Address, key [32]byte) string {
	return contract.String() + string(key[:])
}

// Contract returns the address this frame is executing under.
func (f *Frame) Contract() types.Address {
	return f.contract
}

// Caller returns the address that invoked this frame.
func (f *Frame) Caller() types.Address {
	return f.caller
}

// GasRemaining exposes the frame's remaining gas budget to a Runner.
func (f *Frame) GasRemaining() uint64 {
	return f.meter.Remaining()
}

// TLoad reads this frame's transient storage, discarded once the
// top-level call returns.
func (f *Frame) TLoad(contract types.Address, key [32]byte) ([32]byte, bool) {
	v, ok := f.transient[transientKey(contract, key)]
	return v, ok
}

// TStore writes this frame's transient storage.
func (f *Frame) TStore(contract types.Address, key, value [32]byte) {
	f.transient[transientKey(contract, key)] = value
}

// Load reads persistent storage: the journal's buffered value if present,
// else the committed backend.
func (f *Frame) Load(ctx context.Context, contract types.Address, key [32]byte) ([32]byte, error) {
	if err := f.meter.Consume(GasCostStorageLoad); err != nil {
		return [32]byte{}, err
	}
	if v, ok := f.host.journal.Read(contract, key); ok {
		return v, nil
	}
	v, found, err := f.host.backend.Load(ctx, contract, key, f.height)
	if err != nil {
		return [32]byte{}, errs.New(errs.KindStore, err)
	}
	if !found {
		return [32]byte{}, nil
	}
	return v, nil
}

// Store buffers a persistent storage write into the shared journal.
func (f *Frame) Store(ctx context.Context, contract types.Address, key, value [32]byte) error {
	if err := f.meter.Consume(GasCostStorageStore); err != nil {
		return err
	}
	old, hadOld, err := f.host.backend.Load(ctx, contract, key, f.height)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	if buffered, ok := f.host.journal.Read(contract, key); ok {
		old, hadOld = buffered, true
	}
	f.host.journal.Write(contract, key, value, old, hadOld)
	return nil
}

// Emit appends to the call's event log.
func (f *Frame) Emit(event []byte) error {
	if err := f.meter.Consume(GasCostEmit); err != nil {
		return err
	}
	f.host.events = append(f.host.events, event)
	return nil
}

// Inputs exposes the underlying base-chain tx inputs.
func (f *Frame) Inputs() []byte {
	return f.host.inputsBytes
}

// Outputs exposes the underlying base-chain tx outputs.
func (f *Frame) Outputs() []byte {
	return f.host.outputsBytes
}

// AccountType classifies an address.
func (f *Frame) AccountType(ctx context.Context, addr types.Address) (AccountType, error) {
	if err := f.meter.Consume(GasCostAccountType); err != nil {
		return AccountUnknown, err
	}
	return f.host.classifyAccount(ctx, addr)
}

// BlockHash returns the hash at the given height.
func (f *Frame) BlockHash(ctx context.Context, height uint64) (types.Hash, error) {
	if err := f.meter.Consume(GasCostBlockHash); err != nil {
		return types.Hash{}, err
	}
	return f.host.blockHash(ctx, height)
}

// Call performs a nested invocation with its own gas accounting. Failures
// propagate as reverts unless caught by the caller.
func (f *Frame) Call(ctx context.Context, contract types.Address, calldata []byte, gasLimit uint64) ([]byte, error) {
	if gasLimit > f.meter.Remaining() {
		gasLimit = f.meter.Remaining()
	}
	if err := f.meter.Consume(GasCostExternalCall); err != nil {
		return nil, err
	}
	result, gasUsed, err := f.host.invoke(ctx, f.depth+1, contract, f.contract, calldata, gasLimit, f.height, nil, types.ZeroU256())
	// The nested frame's consumption is charged against this frame too,
	// so a chain of calls cannot collectively exceed the outer budget.
	_ = f.meter.Consume(gasUsed)
	return result, err
}

// Deploy deploys a child contract from within a running contract.
func (f *Frame) Deploy(ctx context.Context, bytecode []byte, salt [32]byte) (types.Address, error) {
	if err := f.meter.Consume(GasCostDeploy); err != nil {
		return types.Address{}, err
	}
	addr, err := f.host.deployChild(ctx, f.contract, bytecode, salt)
	if err != nil {
		return types.Address{}, err
	}
	f.host.deployedChildren = append(f.host.deployedChildren, addr)
	return addr, nil
}

// Host drives a single top-level call (one overlay Interaction or
// Deployment), threading one journal, one event log, and one deadline
// across however many nested frames the runner opens.
type Host struct {
	backend          PersistentStorage
	runner           Runner
	journal          *Journal
	events           [][]byte
	deployedChildren []types.Address
	inputsBytes      []byte
	outputsBytes     []byte
	special          SpecialContracts
	classifyAccount  func(ctx context.Context, addr types.Address) (AccountType, error)
	blockHash        func(ctx context.Context, height uint64) (types.Hash, error)
	deployChild      func(ctx context.Context, parent types.Address, bytecode []byte, salt [32]byte) (types.Address, error)
	deadline         time.Duration
}

// NewHost builds a Host. The classifyAccount/blockHash/deployChild hooks
// let cmd/opnetd wire the VM to the rest of the node (UTXO set,
// header store, deployment-address derivation) without this package
// importing them directly.
func NewHost(
	backend PersistentStorage,
	runner Runner,
	special SpecialContracts,
	classifyAccount func(ctx context.Context, addr types.Address) (AccountType, error),
	blockHash func(ctx context.Context, height uint64) (types.Hash, error),
	deployChild func(ctx context.Context, parent types.Address, bytecode []byte, salt [32]byte) (types.Address, error),
	deadline time.Duration,
) *Host {
	return &Host{
		backend:         backend,
		runner:          runner,
		special:         special,
		classifyAccount: classifyAccount,
		blockHash:       blockHash,
		deployChild:     deployChild,
		deadline:        deadline,
	}
}

// Execute runs a top-level Call, enforcing the gas budget and a
// wall-clock deadline, and assembling the receipt from whatever the
// journal/events accumulated.
func (h *Host) Execute(ctx context.Context, call Call, inputsBytes, outputsBytes []byte) Receipt {
	h.journal = NewJournal()
	h.events = nil
	h.deployedChildren = nil
	h.inputsBytes = inputsBytes
	h.outputsBytes = outputsBytes

	maxGas := call.MaxGas
	if limits, ok := h.special.LimitsFor(call.Contract); ok {
		if limits.FreeGas > maxGas {
			maxGas = limits.FreeGas
		}
	}

	deadline := h.deadline
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result, gasUsed, err := h.invoke(callCtx, 0, call.Contract, call.Caller, call.Calldata, maxGas, call.Height, call.DeployCode, call.Value)

	receipt := Receipt{
		GasUsed:           gasUsed,
		Events:            h.events,
		DeployedContracts: h.deployedChildren,
	}

	if err != nil {
		if vmErr, ok := errs.AsVMError(err); ok {
			receipt.Revert = vmErr.Error()
			if vmErr.Reason == errs.VMOutOfGas {
				receipt.GasUsed = maxGas // reverts on exhaustion report the full budget as spent; no partial counter survives a trap
			}
			return receipt
		}
		receipt.Revert = err.Error()
		return receipt
	}

	receipt.Result = result
	receipt.ChangedStorage = h.journal.ChangedStorage(func(s string) types.Address {
		script, _ := hex.DecodeString(s)
		return types.Address{Script: script}
	})
	return receipt
}

// invoke runs one frame (top-level or nested), enforcing the call-depth
// cap and reverting the journal back to its pre-call snapshot on failure.
func (h *Host) invoke(ctx context.Context, depth int, contract, caller types.Address, calldata []byte, gasLimit uint64, height uint64, deployCode Bytecode, value types.U256) ([]byte, uint64, error) {
	if depth >= MaxCallDepth {
		return nil, 0, errs.NewVMError(errs.VMTrap, "call depth exceeded")
	}

	select {
	case <-ctx.Done():
		return nil, 0, errs.NewVMError(errs.VMTimeout, "")
	default:
	}

	snapshot := h.journal.Snapshot()
	frame := newFrame(h, depth, contract, caller, height, gasLimit)

	code := Bytecode(deployCode)
	result, err := h.runner.Run(ctx, frame, code, calldata)
	if err != nil {
		h.journal.Revert(snapshot)
		if ctx.Err() != nil {
			return nil, frame.meter.Consumed(), errs.NewVMError(errs.VMTimeout, "")
		}
		return nil, frame.meter.Consumed(), wrapRunnerError(err)
	}
	return result, frame.meter.Consumed(), nil
}

func wrapRunnerError(err error) error {
	if _, ok := err.(*errs.Error); ok {
		return err
	}
	return errs.NewVMError(errs.VMRevert, err.Error())
}
