// Package classify implements a fixed-order table of classifiers
// (Deployment, Interaction, fallback Generic) examining the first input's
// witness stack. Grounded on the ordered-registration idiom in
// app/protocol/protocol.go (registerFlows) and the fixed-order
// rpcHandlers/btcjson command tables, which never reorder at runtime.
package classify

import (
	"crypto/sha256"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/taproot"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// RawTx is the minimal shape classify needs out of a decoded base-chain
// transaction; internal/core/ports.RawBlock's per-tx bytes are decoded
// into this by the out-of-scope base-chain wire codec before reaching
// here.
type RawTx struct {
	TxID    types.Hash
	Inputs  []types.TxInput
	Outputs []types.TxOutput
}

// classifier examines a RawTx and either returns a classified OverlayTx or
// (nil, false, nil) to let the chain fall through to the next classifier.
type classifier func(height uint64, tx *RawTx) (*types.OverlayTx, bool, error)

// chain is the fixed-order classifier table: Deployment, then Interaction,
// then the Generic fallback, in that exact order.
var chain = []classifier{
	classifyDeployment,
	classifyInteraction,
}

// Classify runs the ordered parser chain against a raw transaction,
// falling back to Generic when no classifier matches. Classify is
// idempotent and stable under re-parsing: the same RawTx always yields
// the same OverlayTx.
func Classify(height uint64, tx *RawTx) (*types.OverlayTx, error) {
	for _, c := range chain {
		overlay, matched, err := c(height, tx)
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		if matched {
			return overlay, nil
		}
	}
	return classifyGeneric(height, tx), nil
}

func indexingHash(txid types.Hash, vin int) types.Hash {
	h := sha256.New()
	h.Write(txid[:])
	var vinBytes [4]byte
	vinBytes[0] = byte(vin)
	vinBytes[1] = byte(vin >> 8)
	vinBytes[2] = byte(vin >> 16)
	vinBytes[3] = byte(vin >> 24)
	h.Write(vinBytes[:])
	sum := h.Sum(nil)
	var out types.Hash
	copy(out[:], sum)
	return out
}

func classifyGeneric(height uint64, tx *RawTx) *types.OverlayTx {
	return &types.OverlayTx{
		Kind:         types.OverlayGeneric,
		TxID:         tx.TxID,
		IndexingHash: indexingHash(tx.TxID, 0),
		BlockHeight:  height,
		Inputs:       tx.Inputs,
		Outputs:      tx.Outputs,
	}
}

// leafScriptOf returns the leaf script from the first input's witness
// stack; the control block itself is not decoded. Real taproot witness
// stacks are [... signature(s) ..., leafScript,
// controlBlock]; we only need the leaf script to tell Deployment from
// Interaction from Generic, so we look at the second-to-last witness
// element.
func leafScriptOf(tx *RawTx) []byte {
	if len(tx.Inputs) == 0 {
		return nil
	}
	stack := tx.Inputs[0].Witness
	if len(stack) < 2 {
		return nil
	}
	return stack[len(stack)-2]
}

func classifyDeployment(height uint64, tx *RawTx) (*types.OverlayTx, bool, error) {
	leaf := leafScriptOf(tx)
	fields, ok := parseDeploymentLeaf(leaf)
	if !ok {
		return nil, false, nil
	}

	addr, _, err := taproot.DeploymentAddress(fields.DeployerPubKey, fields.SaltPubKey, fields.Salt, fields.Bytecode)
	if err != nil {
		return nil, false, err
	}

	return &types.OverlayTx{
		Kind:         types.OverlayDeployment,
		TxID:         tx.TxID,
		IndexingHash: indexingHash(tx.TxID, 0),
		BlockHeight:  height,
		Inputs:       tx.Inputs,
		Outputs:      tx.Outputs,
		Deployment: &types.DeploymentData{
			DeployerPubKey: fields.DeployerPubKey,
			SaltPubKey:     fields.SaltPubKey,
			Salt:           fields.Salt,
			Bytecode:       fields.Bytecode,
			ContractAddr:   addr,
		},
	}, true, nil
}

func classifyInteraction(height uint64, tx *RawTx) (*types.OverlayTx, bool, error) {
	leaf := leafScriptOf(tx)
	fields, ok := parseInteractionLeaf(leaf)
	if !ok {
		return nil, false, nil
	}

	return &types.OverlayTx{
		Kind:         types.OverlayInteraction,
		TxID:         tx.TxID,
		IndexingHash: indexingHash(tx.TxID, 0),
		BlockHeight:  height,
		Inputs:       tx.Inputs,
		Outputs:      tx.Outputs,
		Interaction: &types.InteractionData{
			ContractAddr:        fields.ContractAddr,
			Calldata:            fields.Calldata,
			TheoreticalGasLimit: fields.TheoreticalGasLimit,
			PriorityFee:         fields.PriorityFee,
			Features:            fields.Features,
		},
	}, true, nil
}
