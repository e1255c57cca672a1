package classify

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// deploymentFields is what classifyDeployment extracts from a matching
// tapscript leaf.
type deploymentFields struct {
	DeployerPubKey [32]byte
	SaltPubKey     [32]byte
	Salt           [32]byte
	Bytecode       []byte
}

// dataPushes tokenizes a script and returns every data push in order,
// skipping the framing opcodes (OP_CHECKSIGVERIFY/OP_DROP/OP_TRUE). This
// mirrors the exact shape taproot.buildDeploymentScript/BuildInteractionScript
// emit, so classification is the inverse of address/leaf derivation: the
// same script always classifies the same way.
func dataPushes(script []byte) [][]byte {
	var pushes [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if d := tokenizer.Data(); d != nil {
			pushes = append(pushes, d)
		}
	}
	if tokenizer.Err() != nil {
		return nil
	}
	return pushes
}

// parseDeploymentLeaf recognises a deployment tapscript leaf carrying
// exactly four data pushes — salt public key (32B), salt (32B), deployer
// public key (32B), bytecode (any length) — with the framing opcodes
// between them skipped.
//
// The deployer public key is the taproot internal key, which a real
// witness carries in its control block rather than in the leaf. The
// control block is not decoded here, so the key is read only from the
// third push: leaves without it fall through to Interaction/Generic
// classification.
func parseDeploymentLeaf(script []byte) (deploymentFields, bool) {
	pushes := dataPushes(script)
	if len(pushes) != 4 {
		return deploymentFields{}, false
	}
	if len(pushes[0]) != 32 || len(pushes[1]) != 32 || len(pushes[2]) != 32 {
		return deploymentFields{}, false
	}

	var fields deploymentFields
	copy(fields.SaltPubKey[:], pushes[0])
	copy(fields.Salt[:], pushes[1])
	copy(fields.DeployerPubKey[:], pushes[2])
	fields.Bytecode = pushes[3]
	return fields, true
}

// interactionFields is what classifyInteraction extracts from a matching
// tapscript leaf.
type interactionFields struct {
	ContractAddr        types.Address
	Calldata             []byte
	TheoreticalGasLimit  types.U256
	PriorityFee          types.U256
	Features             types.InteractionFeature
}

// parseInteractionLeaf recognises the interaction tapscript leaf built by
// taproot.BuildInteractionScript: contract script, calldata, 8-byte gas
// limit, 8-byte priority fee, 1-byte features bitset.
func parseInteractionLeaf(script []byte) (interactionFields, bool) {
	pushes := dataPushes(script)
	if len(pushes) != 5 {
		return interactionFields{}, false
	}
	if len(pushes[2]) != 8 || len(pushes[3]) != 8 || len(pushes[4]) != 1 {
		return interactionFields{}, false
	}

	return interactionFields{
		ContractAddr:        types.Address{Kind: types.AddressKindP2TR, Script: pushes[0]},
		Calldata:            pushes[1],
		TheoreticalGasLimit: types.NewU256FromBytes(pushes[2]),
		PriorityFee:         types.NewU256FromBytes(pushes[3]),
		Features:            types.InteractionFeature(pushes[4][0]),
	}, true
}
