// Package codec implements the fixed-width binary encoding for the values
// that cross a commitment boundary: block headers and the two Merkle
// trees' leaf encodings. Grounded on wire/blockheader.go's
// BtcEncode/BtcDecode pair idiom (fixed field order, fixed width, no
// self-describing framing) and domain/consensus/database/serialization's
// struct-to-struct conversion shape. Round-trip is exact:
// Decode(Encode(h)) == h for every BlockHeader.
package codec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// EncodeHeader writes h in the node's canonical wire layout.
func EncodeHeader(w io.Writer, h *types.BlockHeader) error {
	fields := []interface{}{
		h.Height,
		h.Hash,
		h.PrevHash,
		h.PrevChecksum,
		h.MerkleRoot,
		h.StorageRoot,
		h.ReceiptRoot,
		h.ChecksumRoot,
		h.TxCount,
		h.EMA,
		h.Bits,
		h.Nonce,
		h.Version,
		h.Size,
		h.Weight,
		h.StrippedSize,
		h.Time,
		h.MedianTime,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return errors.Wrap(err, "encoding header field")
		}
	}

	baseGas := h.BaseGas.Bytes()
	if err := binary.Write(w, binary.BigEndian, uint32(len(baseGas))); err != nil {
		return errors.Wrap(err, "encoding base gas length")
	}
	if _, err := w.Write(baseGas); err != nil {
		return errors.Wrap(err, "encoding base gas")
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(h.ChecksumProofs))); err != nil {
		return errors.Wrap(err, "encoding checksum proof count")
	}
	for _, p := range h.ChecksumProofs {
		if err := binary.Write(w, binary.BigEndian, p.Index); err != nil {
			return errors.Wrap(err, "encoding checksum proof index")
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(p.Hashes))); err != nil {
			return errors.Wrap(err, "encoding checksum proof hash count")
		}
		for _, hh := range p.Hashes {
			if _, err := w.Write(hh[:]); err != nil {
				return errors.Wrap(err, "encoding checksum proof hash")
			}
		}
	}
	return nil
}

// DecodeHeader is the inverse of EncodeHeader.
func DecodeHeader(r io.Reader) (*types.BlockHeader, error) {
	h := &types.BlockHeader{}
	fields := []interface{}{
		&h.Height,
		&h.Hash,
		&h.PrevHash,
		&h.PrevChecksum,
		&h.MerkleRoot,
		&h.StorageRoot,
		&h.ReceiptRoot,
		&h.ChecksumRoot,
		&h.TxCount,
		&h.EMA,
		&h.Bits,
		&h.Nonce,
		&h.Version,
		&h.Size,
		&h.Weight,
		&h.StrippedSize,
		&h.Time,
		&h.MedianTime,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return nil, errors.Wrap(err, "decoding header field")
		}
	}

	var baseGasLen uint32
	if err := binary.Read(r, binary.BigEndian, &baseGasLen); err != nil {
		return nil, errors.Wrap(err, "decoding base gas length")
	}
	baseGas := make([]byte, baseGasLen)
	if _, err := io.ReadFull(r, baseGas); err != nil {
		return nil, errors.Wrap(err, "decoding base gas")
	}
	h.BaseGas = types.NewU256FromBytes(baseGas)

	var proofCount uint32
	if err := binary.Read(r, binary.BigEndian, &proofCount); err != nil {
		return nil, errors.Wrap(err, "decoding checksum proof count")
	}
	h.ChecksumProofs = make([]types.ChecksumProof, proofCount)
	for i := range h.ChecksumProofs {
		if err := binary.Read(r, binary.BigEndian, &h.ChecksumProofs[i].Index); err != nil {
			return nil, errors.Wrap(err, "decoding checksum proof index")
		}
		var hashCount uint32
		if err := binary.Read(r, binary.BigEndian, &hashCount); err != nil {
			return nil, errors.Wrap(err, "decoding checksum proof hash count")
		}
		h.ChecksumProofs[i].Hashes = make([]types.Hash, hashCount)
		for j := range h.ChecksumProofs[i].Hashes {
			if _, err := io.ReadFull(r, h.ChecksumProofs[i].Hashes[j][:]); err != nil {
				return nil, errors.Wrap(err, "decoding checksum proof hash")
			}
		}
	}
	return h, nil
}
