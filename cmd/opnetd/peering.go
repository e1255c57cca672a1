package main

import (
	"context"

	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
	"github.com/btc-vision/opnet-node-sub009/internal/logging"
)

var peerLog = logging.For(logging.SubsystemFabric)

// localPeering is a single-node stand-in for ports.Peering: it logs what
// would have gone out over the overlay gossip network instead of
// actually dialing peers, the same role a "null" network transport plays
// in a single-process deployment. A real P2P client is out of this
// exercise's scope (SPEC_FULL §B only ships reference Store/ChainRpc/
// ChainTap implementations).
type localPeering struct{}

var _ ports.Peering = localPeering{}

func (localPeering) BroadcastWitness(_ context.Context, w *types.Witness) error {
	peerLog.WithField("block", w.BlockNumber).Debug("peering: broadcast witness (single-node, no-op)")
	return nil
}

func (localPeering) BroadcastTransaction(_ context.Context, raw []byte) error {
	peerLog.WithField("bytes", len(raw)).Debug("peering: broadcast transaction (single-node, no-op)")
	return nil
}
