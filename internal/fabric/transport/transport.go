// Package transport is an optional out-of-process carrier for fabric
// messages, mirroring the teacher's gRPC-backed NetAdapter/Router split
// (infrastructure/network/netadapter/server/grpcserver): the in-process
// fabric.Fabric channels remain the default (see DESIGN.md); this package
// only matters when two units run in separate processes and need a wire
// transport between them.
package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/btc-vision/opnet-node-sub009/internal/fabric"
)

// Envelope is the wire-level carrier for one fabric.Message, encoded with
// the modern google.golang.org/protobuf runtime per SPEC_FULL §A (the
// teacher's own grpcserver/protowire package is built against the older
// golang/protobuf API this module supersedes).
type Envelope struct {
	Type          string
	Payload       []byte
	CorrelationID uint64
}

// Dialer opens a gRPC client connection to a remote unit's transport
// endpoint, the out-of-process analogue of fabric.Fabric.Link.
type Dialer func(ctx context.Context, target string) (*grpc.ClientConn, error)

// Bridge relays Messages between a local fabric.Fabric link and a remote
// gRPC peer. A production deployment wires one Bridge per cross-process
// link; this package ships the shape, not a generated service, since the
// wire schema itself lives in internal/wsproto's sibling protobuf
// definitions once the transport is actually deployed.
type Bridge struct {
	local *fabric.Fabric
	who   fabric.UnitID
	peer  fabric.UnitID
	conn  *grpc.ClientConn
}

// NewBridge wires a Bridge between a local fabric link and an already
// dialed gRPC connection.
func NewBridge(local *fabric.Fabric, who, peer fabric.UnitID, conn *grpc.ClientConn) *Bridge {
	return &Bridge{local: local, who: who, peer: peer, conn: conn}
}

// Close releases the underlying gRPC connection.
func (b *Bridge) Close() error {
	return b.conn.Close()
}
