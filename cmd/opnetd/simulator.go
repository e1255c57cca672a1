package main

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

// hostSimulator adapts *vm.Host's Execute to api.Simulator's narrower
// Simulate signature for btc_simulateTransaction/btc_call (spec §6.2),
// always passing empty input/output byte buffers since a simulation never
// persists a PSBT's attached witness data.
type hostSimulator struct {
	host *vm.Host
}

func newHostSimulator(host *vm.Host) *hostSimulator {
	return &hostSimulator{host: host}
}

func (s *hostSimulator) Simulate(ctx context.Context, call vm.Call) vm.Receipt {
	return s.host.Execute(ctx, call, nil, nil)
}
