package main

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/taproot"
)

// validatorSigner is a consensus.Signer backed by one secp256k1 private
// key loaded from configuration. This is a validator's block-witness
// signing identity, distinct from the wallet key management spec.md §1
// excludes (that governs spending UTXOs, not attesting to checksum
// roots).
type validatorSigner struct {
	priv   *btcec.PrivateKey
	pubKey [32]byte
}

// newValidatorSigner parses keyHex (a 32-byte secp256k1 private key) into
// a validatorSigner.
func newValidatorSigner(keyHex string) (*validatorSigner, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, errors.Wrap(err, "decoding validator identity key")
	}
	priv, pub := btcec.PrivKeyFromBytes(raw)
	return &validatorSigner{priv: priv, pubKey: taproot.XOnly(pub)}, nil
}

// PubKey implements consensus.Signer.
func (s *validatorSigner) PubKey() [32]byte {
	return s.pubKey
}

// Sign implements consensus.Signer.
func (s *validatorSigner) Sign(msg []byte) ([]byte, error) {
	return taproot.SignSchnorr(s.priv, msg)
}
