// Package taproot derives overlay contract addresses and verifies the
// Schnorr signatures the node relies on elsewhere (block witnesses, epoch
// submissions). It is the one place in this repo that reaches directly
// into Bitcoin taproot primitives, grounded on the same
// github.com/btcsuite/btcd module family the mempool's PSBT path already
// depends on.
package taproot

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// LeafVersion is the tap-script version both the deployment leaf and the
// fixed lock leaf are built at. Implementers should treat this as
// normative and not attempt to simplify the tree.
const LeafVersion = 192

// lockScript is the fixed second leaf of every deployment's tapscript
// tree: a single OP_0.
var lockScript = []byte{txscript.OP_0}

// DeploymentAddress derives the P2TR contract address for a deployment:
// a tapscript tree with the deployment leaf (compiled from
// saltPubKey/salt/bytecode) and a fixed OP_0 lock leaf,
// both at LeafVersion, with deployerPubKey as the internal key.
func DeploymentAddress(deployerPubKey, saltPubKey [32]byte, salt [32]byte, bytecode []byte) (types.Address, [32]byte, error) {
	internalKey, err := schnorr.ParsePubKey(deployerPubKey[:])
	if err != nil {
		return types.Address{}, [32]byte{}, errors.Wrap(err, "parsing deployer x-only pubkey")
	}

	deploymentScript := buildDeploymentScript(saltPubKey, salt, bytecode)

	deploymentLeaf := txscript.NewTapLeaf(LeafVersion, deploymentScript)
	lockLeaf := txscript.NewTapLeaf(LeafVersion, lockScript)

	tree := txscript.AssembleTaprootScriptTree(deploymentLeaf, lockLeaf)
	rootHash := tree.RootNode.TapHash()

	outputKey := txscript.ComputeTaprootOutputKey(internalKey, rootHash[:])

	script, err := txscript.PayToTaprootScript(outputKey)
	if err != nil {
		return types.Address{}, [32]byte{}, errors.Wrap(err, "building p2tr script")
	}

	var tweaked [32]byte
	copy(tweaked[:], schnorr.SerializePubKey(outputKey))

	return types.Address{Kind: types.AddressKindP2TR, Script: script}, tweaked, nil
}

// buildDeploymentScript compiles the deployment tapscript leaf: the salt
// public key followed by OP_CHECKSIGVERIFY, the salt followed by OP_DROP,
// the bytecode followed by OP_DROP, and a final OP_TRUE, mirroring the "BSIContractScriptBuilder"
// leaf internal/core/classify looks for.
func buildDeploymentScript(saltPubKey [32]byte, salt [32]byte, bytecode []byte) []byte {
	builder := txscript.NewScriptBuilder()
	builder.AddData(saltPubKey[:])
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddData(salt[:])
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(bytecode)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_TRUE)
	script, err := builder.Script()
	if err != nil {
		// Only reachable if bytecode somehow exceeds script data-push
		// limits; callers are expected to size-check calldata/bytecode
		// upstream during mempool static validation.
		panic(errors.Wrap(err, "building deployment tapscript leaf"))
	}
	return script
}

// BuildInteractionScript compiles the interaction tapscript leaf: it
// embeds the target contract's tapscript, the calldata, the theoretical
// gas limit, the priority fee, and the features bitset as data pushes
// ahead of an OP_TRUE, mirroring buildDeploymentScript's shape. Exported
// so internal/core/classify can parse the exact encoding back out.
func BuildInteractionScript(contractScript []byte, calldata []byte, theoreticalGasLimit, priorityFee [8]byte, features byte) []byte {
	builder := txscript.NewScriptBuilder()
	builder.AddData(contractScript)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(calldata)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(theoreticalGasLimit[:])
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(priorityFee[:])
	builder.AddOp(txscript.OP_DROP)
	builder.AddData([]byte{features})
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_TRUE)
	script, err := builder.Script()
	if err != nil {
		panic(errors.Wrap(err, "building interaction tapscript leaf"))
	}
	return script
}

// SignSchnorr produces a BIP340 Schnorr signature over msg with the given
// secp256k1 private key, the counterpart VerifySchnorr checks against.
// Used by a validator identity to sign outgoing block witnesses.
func SignSchnorr(priv *btcec.PrivateKey, msg []byte) ([]byte, error) {
	sig, err := schnorr.Sign(priv, msg)
	if err != nil {
		return nil, errors.Wrap(err, "signing schnorr message")
	}
	return sig.Serialize(), nil
}

// VerifySchnorr verifies a BIP340 Schnorr signature over msg by the given
// x-only public key. Used for block witnesses and epoch submissions.
func VerifySchnorr(pubKey [32]byte, msg, sig []byte) (bool, error) {
	key, err := schnorr.ParsePubKey(pubKey[:])
	if err != nil {
		return false, errors.Wrap(err, "parsing x-only pubkey")
	}
	parsedSig, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, errors.Wrap(err, "parsing schnorr signature")
	}
	return parsedSig.Verify(msg, key), nil
}

// XOnly returns the x-only (32-byte) encoding of a secp256k1 public key.
func XOnly(pub *btcec.PublicKey) [32]byte {
	var out [32]byte
	copy(out[:], schnorr.SerializePubKey(pub))
	return out
}
