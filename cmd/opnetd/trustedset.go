package main

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/config"
	"github.com/btc-vision/opnet-node-sub009/internal/core/consensus"
)

// parseTrustedSet turns the repeatable --trusted-validator flag entries
// ("name:xonlypubkeyhex:entityID") into a consensus.TrustedSet, paired
// with the configured network's finality thresholds (spec §4.6).
func parseTrustedSet(entries []string, network string) (*consensus.TrustedSet, error) {
	set := &consensus.TrustedSet{
		Validators: make(map[[32]byte]consensus.ValidatorIdentity, len(entries)),
		Params:     networkParamsToConsensus(config.NetworkParamsFor(network)),
	}

	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, errors.Errorf("trusted-validator entry %q: want name:pubkeyhex:entityID", entry)
		}
		name, pubHex, entityID := parts[0], parts[1], parts[2]

		raw, err := hex.DecodeString(pubHex)
		if err != nil {
			return nil, errors.Wrapf(err, "trusted-validator %q: decoding pubkey", entry)
		}
		if len(raw) != 32 {
			return nil, errors.Errorf("trusted-validator %q: pubkey must be 32 bytes, got %d", entry, len(raw))
		}

		var pubKey [32]byte
		copy(pubKey[:], raw)

		set.Validators[pubKey] = consensus.ValidatorIdentity{
			Name:     name,
			PubKey:   pubKey,
			EntityID: entityID,
		}
	}

	return set, nil
}

func networkParamsToConsensus(p config.NetworkParams) consensus.NetworkParams {
	return consensus.NetworkParams{
		Minimum:                            p.Minimum,
		TransactionMinimum:                 p.TransactionMinimum,
		MinimumValidatorTransactionGeneration: p.MinimumValidatorTransactionGeneration,
		MaximumValidatorPerTrustedEntities: p.MaximumValidatorPerTrustedEntities,
	}
}
