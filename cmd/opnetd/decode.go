package main

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"

	"github.com/btc-vision/opnet-node-sub009/internal/core/classify"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// decodeBlock turns one base-chain block's raw wire bytes into a
// ports.RawBlock: the header fields the indexer's reorg detector and
// commitment pipeline need, plus the raw transactions in wire order for
// decodeRawTx/classify to pick apart. Height is left for the indexer to
// stamp in, since a lone block carries no notion of its own chain height.
func decodeBlock(raw []byte) (*ports.RawBlock, error) {
	var msgBlock wire.MsgBlock
	if err := msgBlock.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	hash, err := types.HashFromBytes(reverseBytes(msgBlock.BlockHash().CloneBytes()))
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	prevHash, err := types.HashFromBytes(reverseBytes(msgBlock.Header.PrevBlock.CloneBytes()))
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	merkleRoot, err := types.HashFromBytes(reverseBytes(msgBlock.Header.MerkleRoot.CloneBytes()))
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	out := &ports.RawBlock{
		Header: types.BlockHeader{
			Hash:       hash,
			PrevHash:   prevHash,
			MerkleRoot: merkleRoot,
			Bits:       msgBlock.Header.Bits,
			Nonce:      uint64(msgBlock.Header.Nonce),
			Version:    msgBlock.Header.Version,
			Time:       msgBlock.Header.Timestamp.Unix(),
			MedianTime: msgBlock.Header.Timestamp.Unix(),
		},
		Transactions: make([][]byte, len(msgBlock.Transactions)),
	}

	var buf bytes.Buffer
	for i, tx := range msgBlock.Transactions {
		buf.Reset()
		if err := tx.Serialize(&buf); err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		raw := make([]byte, buf.Len())
		copy(raw, buf.Bytes())
		out.Transactions[i] = raw
	}

	return out, nil
}

// decodeRawTx is the base-chain wire codec classify.RawTx's doc comment
// calls "out of scope" for the overlay protocol proper, but something has
// to turn ports.RawBlock's raw transaction bytes into classify.RawTx for
// the indexer/mempool to consume. Decoding a standard Bitcoin transaction
// is not "implementing the base chain" (spec.md's Non-goal); it is
// reading the wire format the already-imported github.com/btcsuite/btcd
// already knows, the same way infrastructure/network/rpcclient's
// FutureGetBlockResult.Receive deserializes a *wire.MsgBlock.
func decodeRawTx(raw []byte) (*classify.RawTx, error) {
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	txHash, err := types.HashFromBytes(reverseBytes(msgTx.TxHash().CloneBytes()))
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	rawTx := &classify.RawTx{
		TxID:    txHash,
		Inputs:  make([]types.TxInput, len(msgTx.TxIn)),
		Outputs: make([]types.TxOutput, len(msgTx.TxOut)),
	}

	for i, in := range msgTx.TxIn {
		prevTxID, err := types.HashFromBytes(reverseBytes(in.PreviousOutPoint.Hash.CloneBytes()))
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		rawTx.Inputs[i] = types.TxInput{
			PrevTxID: prevTxID,
			PrevVout: in.PreviousOutPoint.Index,
			Witness:  in.Witness,
		}
	}

	for i, out := range msgTx.TxOut {
		rawTx.Outputs[i] = types.TxOutput{
			Value:   types.NewU256FromUint64(uint64(out.Value)),
			Script:  out.PkScript,
			Address: classifyScript(out.PkScript),
		}
	}

	return rawTx, nil
}

// reverseBytes copies b reversed, since wire.MsgTx hashes are internally
// little-endian while types.Hash is the big-endian display order used
// throughout the rest of this system.
func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// classifyScript tags a scriptPubKey's destination shape by its fixed
// byte pattern, avoiding a dependency on txscript's higher-level (and
// version-sensitive) script-class helpers for what is a handful of fixed
// templates.
func classifyScript(script []byte) types.Address {
	switch {
	case len(script) == 34 && script[0] == 0x51 && script[1] == 0x20: // OP_1 <32 bytes>
		return types.Address{Kind: types.AddressKindP2TR, Script: script}
	case len(script) == 22 && script[0] == 0x00 && script[1] == 0x14: // OP_0 <20 bytes>
		return types.Address{Kind: types.AddressKindP2WPKH, Script: script}
	case len(script) == 34 && script[0] == 0x00 && script[1] == 0x20: // OP_0 <32 bytes>
		return types.Address{Kind: types.AddressKindP2WSH, Script: script}
	case len(script) == 25 && script[0] == 0x76 && script[1] == 0xa9: // OP_DUP OP_HASH160 ...
		return types.Address{Kind: types.AddressKindP2PKH, Script: script}
	case len(script) == 23 && script[0] == 0xa9: // OP_HASH160 <20 bytes> OP_EQUAL
		return types.Address{Kind: types.AddressKindP2SH, Script: script}
	default:
		return types.Address{Kind: types.AddressKindUnknown, Script: script}
	}
}
