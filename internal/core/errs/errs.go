// Package errs defines the node's error taxonomy. Each kind carries a
// retry/escalation policy that callers in internal/core/indexer,
// internal/core/mempool, and internal/api apply uniformly instead of
// re-deriving one from the error's dynamic type each time.
package errs

import "github.com/pkg/errors"

// Kind tags which error-handling policy applies.
type Kind uint8

const (
	// KindValidation: malformed parameters, wrong lengths, bad checksums.
	// Surfaced as a JSON-RPC application error; never retried.
	KindValidation Kind = iota
	// KindNotFound: unknown block, tx, epoch, or address. Returned as a
	// typed null/empty result, not an error page.
	KindNotFound
	// KindChainRPC: transient base-chain RPC failure. Retried with
	// exponential backoff up to a cap; escalates to Fatal if uninterrupted.
	KindChainRPC
	// KindStore: transient database failure. Retried per operation;
	// persistent failure halts the indexer and logs fatal.
	KindStore
	// KindVM: local to a single transaction. Captured into the receipt;
	// never fails the block.
	KindVM
	// KindReorgInProgress: pipeline signals callers to back off.
	KindReorgInProgress
	// KindFatal: unrecoverable invariant violation. The owning unit shuts
	// down cleanly.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindChainRPC:
		return "ChainRpcError"
	case KindStore:
		return "StoreError"
	case KindVM:
		return "VmError"
	case KindReorgInProgress:
		return "ReorgInProgress"
	case KindFatal:
		return "Fatal"
	default:
		return "UnknownError"
	}
}

// Error is the node-wide typed error. It wraps an underlying cause the way
// pkg/errors wraps a stack, and additionally tags a Kind so supervisors can
// decide retry vs. escalate without string-matching.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New wraps cause as an Error of the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: errors.WithStack(cause)}
}

// Wrapf wraps a formatted message as an Error of the given kind.
func Wrapf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Cause: errors.Errorf(format, args...)}
}

// Is reports whether err is an *Error of the given kind (used instead of
// sentinel values so callers can branch on policy, not on identity).
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the error kind is one the owning supervisor
// should retry (ChainRpc/Store transient failures) as opposed to one that
// is terminal for the call (Validation/NotFound/VM) or for the unit (Fatal).
func Retryable(err error) bool {
	return Is(err, KindChainRPC) || Is(err, KindStore)
}
