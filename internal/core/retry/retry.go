// Package retry implements bounded exponential backoff for the two
// transient error kinds the node's supervisors treat specially: ChainRpc
// and Store failures. Grounded on the teacher's connmanager.go
// Connect/retry timer loop (connmanager retries a failed outbound
// connection with a growing delay up to a cap, then gives up) —
// generalized here from "reconnect a peer" to "retry any operation that
// returns a retryable *errs.Error".
package retry

import (
	"context"
	"time"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
)

// Policy bounds a retry loop's backoff schedule.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int // 0 means unbounded
}

// DefaultPolicy mirrors connmanager's own constants: start small, double,
// cap at 30 seconds.
var DefaultPolicy = Policy{
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     30 * time.Second,
	MaxAttempts:  8,
}

// Do runs fn, retrying on errs.Retryable failures with exponential
// backoff per p until it succeeds, a non-retryable error surfaces, the
// attempt cap is reached, or ctx is cancelled. A persistent failure past
// the attempt cap is escalated to errs.KindFatal, matching connmanager's
// "give up and let the supervisor decide" behavior.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	attempt := 0
	for {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return errs.New(errs.KindFatal, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
