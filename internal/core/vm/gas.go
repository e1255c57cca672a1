// Package vm hosts gas-metered contract execution. The contract bytecode
// instruction set itself is treated as an opaque capability; this package
// owns only the host side: gas accounting, the re-entrant call stack, the
// storage journal, and receipt assembly.
//
// The call-stack/journal shape is grounded on
// domain/consensus/processes/consensusstatemanager, which stages UTXO-diff
// writes per block and only commits them once the block is accepted;
// here the same stage-then-commit-or-discard shape applies per call frame
// instead of per block.
package vm

import (
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// SatToGasRatio converts satoshis to gas units: sat * SatToGasRatio,
// clamped to the caller's max gas.
const SatToGasRatio = 1000

// GasMeter tracks a single call frame's gas consumption against its budget.
type GasMeter struct {
	limit    uint64
	consumed uint64
}

// NewGasMeter builds a meter with the given budget.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Consume deducts amount from the remaining budget, returning an OutOfGas
// error when the budget is exhausted. It never lets Consumed exceed Limit.
func (g *GasMeter) Consume(amount uint64) error {
	if g.consumed+amount > g.limit {
		g.consumed = g.limit
		return errs.NewVMError(errs.VMOutOfGas, "")
	}
	g.consumed += amount
	return nil
}

// Remaining returns the unspent gas budget.
func (g *GasMeter) Remaining() uint64 {
	return g.limit - g.consumed
}

// Consumed returns the gas spent so far.
func (g *GasMeter) Consumed() uint64 {
	return g.consumed
}

// SatToGas converts a satoshi amount to a gas budget, clamped to maxGas.
func SatToGas(sat uint64, maxGas uint64) uint64 {
	gas := sat * SatToGasRatio
	if gas > maxGas {
		return maxGas
	}
	return gas
}

// GasToSatRoundedUp converts a gas amount back to satoshis, rounding the
// final result up to the next SatToGasRatio boundary. Only the outer
// result rounds up; intermediate conversions never do.
func GasToSatRoundedUp(gas uint64) uint64 {
	sat := gas / SatToGasRatio
	if gas%SatToGasRatio != 0 {
		sat++
	}
	return sat
}

// Per-capability gas costs charged by the Frame methods in host.go. These
// are flat surcharges on top of whatever the bytecode interpreter itself
// bills through the frame's meter; they exist so capability calls are
// never free relative to ordinary computation.
const (
	GasCostStorageLoad  uint64 = 200
	GasCostStorageStore uint64 = 5000
	GasCostEmit         uint64 = 375
	GasCostAccountType  uint64 = 100
	GasCostBlockHash    uint64 = 100
	GasCostExternalCall uint64 = 700
	GasCostDeploy       uint64 = 32000
)

// SpecialContractLimits overrides the default limits for a designated
// system contract.
type SpecialContractLimits struct {
	FreeGas          uint64
	BypassBlockLimit bool
	MaxExternalGas   uint64
}

// SpecialContracts is the process-wide addr -> limits mapping.
type SpecialContracts map[string]SpecialContractLimits

// LimitsFor looks up the special-contract override for addr, if any.
func (s SpecialContracts) LimitsFor(addr types.Address) (SpecialContractLimits, bool) {
	l, ok := s[addr.String()]
	return l, ok
}
