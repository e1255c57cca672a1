// Package wsproto implements the WebSocket binary frame protocol (spec
// §6.3): a one-byte opcode prefix followed by a protobuf-encoded body.
// The teacher's own domainmessage/netadapter/server/grpcserver/protowire
// packages hand-write one Go struct per wire message under the older
// github.com/golang/protobuf API; we keep that per-message-one-file
// layout but encode against the modern
// google.golang.org/protobuf/encoding/protowire primitives directly,
// since the message set here (subscription control, block/witness/
// mempool notifications) is small enough not to need generated
// descriptors, and protowire's varint/length-delimited helpers are the
// same ones protoc-gen-go emits calls to.
package wsproto

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Opcode is the frame's leading byte. Spec §6.3 splits the space into
// three ranges; we name only the handful this node actually emits/accepts.
type Opcode byte

const (
	// Common range 0x00-0x0B.
	OpcodeHandshake     Opcode = 0x00
	OpcodeHandshakeAck  Opcode = 0x01
	OpcodePing          Opcode = 0x02
	OpcodePong          Opcode = 0x03

	// Server-inbound range 0x0C-0x7A.
	OpcodeSubscribe     Opcode = 0x0C
	OpcodeUnsubscribe   Opcode = 0x0D

	// Server-outbound range 0x80-0xFF.
	OpcodeBlockNotify   Opcode = 0x80
	OpcodeWitnessNotify Opcode = 0x81
	OpcodeMempoolNotify Opcode = 0x82
	OpcodeSubscribed    Opcode = 0x83
)

// ProtocolVersion is the {MIN, PROTOCOL, MAX} handshake triple (spec
// §6.3).
type ProtocolVersion struct {
	Min      uint32
	Protocol uint32
	Max      uint32
}

// field numbers for ProtocolVersion's wire encoding.
const (
	fieldVersionMin      = protowire.Number(1)
	fieldVersionProtocol = protowire.Number(2)
	fieldVersionMax      = protowire.Number(3)
)

// Encode appends pv's wire encoding to buf.
func (pv ProtocolVersion) Encode(buf []byte) []byte {
	buf = protowire.AppendTag(buf, fieldVersionMin, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(pv.Min))
	buf = protowire.AppendTag(buf, fieldVersionProtocol, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(pv.Protocol))
	buf = protowire.AppendTag(buf, fieldVersionMax, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(pv.Max))
	return buf
}

// DecodeProtocolVersion parses a ProtocolVersion from its wire encoding.
func DecodeProtocolVersion(data []byte) (ProtocolVersion, error) {
	var pv ProtocolVersion
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return pv, errors.New("malformed protocol version tag")
		}
		data = data[n:]
		v, n := protowire.ConsumeVarint(data)
		if n < 0 || typ != protowire.VarintType {
			return pv, errors.New("malformed protocol version field")
		}
		data = data[n:]
		switch num {
		case fieldVersionMin:
			pv.Min = uint32(v)
		case fieldVersionProtocol:
			pv.Protocol = uint32(v)
		case fieldVersionMax:
			pv.Max = uint32(v)
		}
	}
	return pv, nil
}

// Frame is one complete WebSocket binary message: an opcode plus its
// protobuf-encoded body.
type Frame struct {
	Opcode Opcode
	Body   []byte
}

// Encode serializes a Frame to its on-the-wire byte representation.
func Encode(f Frame) []byte {
	out := make([]byte, 0, 1+len(f.Body))
	out = append(out, byte(f.Opcode))
	out = append(out, f.Body...)
	return out
}

// Decode parses a Frame from raw WebSocket binary message bytes.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < 1 {
		return Frame{}, errors.New("empty websocket frame")
	}
	return Frame{Opcode: Opcode(raw[0]), Body: raw[1:]}, nil
}
