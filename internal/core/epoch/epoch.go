// Package epoch implements the epoch mining protocol (spec §4.8):
// template generation, submission validation, and winner selection.
// Grounded on mining/mining.go's template-construction shape (resolve the
// current tip, derive a deterministic target from it, hand the template
// to callers) and mining/simulator's submission-and-score flow, adapted
// from proof-of-work block templates to this system's
// matching-bits-against-a-target submission scheme.
package epoch

import (
	"crypto/sha1" //nolint:gosec // spec mandates SHA-1 for target_hash; a normative, not cryptographic-strength, choice.
	"crypto/sha256"
	"math/bits"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/taproot"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// BlocksPerEpoch is the width of one epoch window (spec §3.8).
const BlocksPerEpoch = 2016

// EpochNumber returns floor(height / BlocksPerEpoch).
func EpochNumber(height uint64) uint64 {
	return height / BlocksPerEpoch
}

// Template is btc_getEpochTemplate's result.
type Template struct {
	EpochNumber uint64
	EpochTarget types.Hash // the checksum root at the epoch's start height
	TargetHash  types.Hash // SHA-1 of EpochTarget, left-padded into a Hash
}

// shaHashToHash left-pads a SHA-1 digest (20 bytes) into a 32-byte Hash so
// it composes with the rest of the type system's fixed-width hashes.
func shaHashToHash(sum [sha1.Size]byte) types.Hash {
	var out types.Hash
	copy(out[types.HashSize-sha1.Size:], sum[:])
	return out
}

// BuildTemplate computes the current epoch's template given the header at
// its start height (spec §4.8: "pick the header at start, or the latest
// if still on it").
func BuildTemplate(currentHeight uint64, startHeader *types.BlockHeader) Template {
	epochNum := EpochNumber(currentHeight)
	target := startHeader.ChecksumRoot
	return Template{
		EpochNumber: epochNum,
		EpochTarget: target,
		TargetHash:  shaHashToHash(sha1.Sum(target[:])),
	}
}

// Submission is the inbound btc_submitEpoch payload.
type Submission struct {
	EpochNumber uint64
	TargetHash  types.Hash
	Salt        [32]byte
	MLDSAPubKey []byte
	LegacyPubKey [32]byte
	Graffiti    []byte
	Signature   []byte
}

// canonicalSubmissionBytes is the byte sequence a submission's Signature
// is verified over: epoch number, target hash, salt, pubkey, graffiti, in
// that fixed field order, so both signer and verifier agree on encoding
// without a separate serialization schema.
func canonicalSubmissionBytes(s *Submission) []byte {
	buf := make([]byte, 0, 8+types.HashSize+32+len(s.MLDSAPubKey)+len(s.Graffiti))
	var epochBuf [8]byte
	for i := 0; i < 8; i++ {
		epochBuf[i] = byte(s.EpochNumber >> (8 * (7 - i)))
	}
	buf = append(buf, epochBuf[:]...)
	buf = append(buf, s.TargetHash[:]...)
	buf = append(buf, s.Salt[:]...)
	buf = append(buf, s.MLDSAPubKey...)
	buf = append(buf, s.Graffiti...)
	return buf
}

// Solution computes H(mldsa_pubkey || salt).
func Solution(pubKey []byte, salt [32]byte) types.Hash {
	h := sha256.New()
	h.Write(pubKey)
	h.Write(salt[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// MatchingBits counts the leading equal bits between a and b.
func MatchingBits(a, b types.Hash) int {
	count := 0
	for i := 0; i < types.HashSize; i++ {
		x := a[i] ^ b[i]
		if x == 0 {
			count += 8
			continue
		}
		count += bits.LeadingZeros8(x)
		break
	}
	return count
}

// Manager tracks epoch records and their submissions.
type Manager struct {
	store ports.Store
}

// NewManager builds a Manager.
func NewManager(store ports.Store) *Manager {
	return &Manager{store: store}
}

// Submit validates and records a submission against its epoch's current
// template (spec §4.8 "Submission"), returning the recorded entry.
func (m *Manager) Submit(tmpl Template, sub Submission) (*types.EpochSubmission, error) {
	if sub.TargetHash != tmpl.TargetHash {
		return nil, errs.Wrapf(errs.KindValidation, "submission target hash does not match epoch %d's template", sub.EpochNumber)
	}

	ok, err := taproot.VerifySchnorr(sub.LegacyPubKey, canonicalSubmissionBytes(&sub), sub.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "verifying submission signature")
	}
	if !ok {
		return &types.EpochSubmission{
			EpochNumber: sub.EpochNumber,
			Status:      types.SubmissionRejected,
		}, errs.Wrapf(errs.KindValidation, "invalid submission signature for epoch %d", sub.EpochNumber)
	}

	solution := Solution(sub.MLDSAPubKey, sub.Salt)
	entry := &types.EpochSubmission{
		EpochNumber: sub.EpochNumber,
		Proposer: types.Proposer{
			MLDSAPubKey:  sub.MLDSAPubKey,
			LegacyPubKey: sub.LegacyPubKey,
			Salt:         sub.Salt,
			Graffiti:     sub.Graffiti,
			Solution:     solution,
		},
		MatchingBits: MatchingBits(solution, sub.TargetHash),
		Status:       types.SubmissionAccepted,
		ConfirmedAt:  time.Now(),
		SubmissionID: submissionID(&sub, solution),
	}
	return entry, nil
}

func submissionID(sub *Submission, solution types.Hash) types.Hash {
	h := sha256.New()
	h.Write(canonicalSubmissionBytes(sub))
	h.Write(solution[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// SelectWinner picks the submission with the highest MatchingBits, tied
// broken by earliest ConfirmedAt (spec §4.8 and §9's open-question
// decision: this spec adopts earliest confirmed_at as the documented,
// configurable tie-break rule).
func SelectWinner(submissions []types.EpochSubmission) *types.EpochSubmission {
	if len(submissions) == 0 {
		return nil
	}
	sorted := make([]types.EpochSubmission, len(submissions))
	copy(sorted, submissions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].MatchingBits != sorted[j].MatchingBits {
			return sorted[i].MatchingBits > sorted[j].MatchingBits
		}
		return sorted[i].ConfirmedAt.Before(sorted[j].ConfirmedAt)
	})
	return &sorted[0]
}
