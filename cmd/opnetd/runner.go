package main

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

// opaqueRunner is the bytecode interpreter seam spec.md §1 names as a
// Non-goal ("defining the contract bytecode instruction set (treated as
// an opaque capability)"). vm.Host needs a concrete vm.Runner to drive;
// this one always reports the instruction set as unavailable rather than
// silently no-opping, so a caller sees a clear VmError instead of an
// empty, misleadingly-successful receipt.
type opaqueRunner struct{}

var _ vm.Runner = opaqueRunner{}

func (opaqueRunner) Run(_ context.Context, _ *vm.Frame, _ vm.Bytecode, _ []byte) ([]byte, error) {
	return nil, errs.Wrapf(errs.KindVM, "no bytecode runner configured: the instruction set is an opaque external capability")
}
