// Package chaintap is a reference ports.ChainTap implementation: it
// polls the base chain's tip height through a ports.ChainRpc and
// forwards one ChainTapEvent per newly observed height, the same
// "notice a new tip, forward it, let the consumer pull the rest"
// shape app/protocol/flowcontext/blocks.go uses to hand an incoming
// block off to the DAG rather than processing it inline. A
// production deployment would replace this polling loop with a push
// subscription against the base-chain node (a websocket
// notification client, in the rpcclient idiom); polling is the
// thinnest thing that satisfies the ports.ChainTap contract without
// inventing a second wire protocol (SPEC_FULL §B).
package chaintap

import (
	"context"
	"time"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/logging"
)

var log = logging.For(logging.SubsystemChainRPC)

// Poller implements ports.ChainTap by polling a ports.ChainRpc for its
// current tip height at a fixed interval.
type Poller struct {
	chain    ports.ChainRpc
	interval time.Duration
}

// NewPoller builds a Poller. interval defaults to 2s when zero or
// negative, matching a base chain's typical block spacing.
func NewPoller(chain ports.ChainRpc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{chain: chain, interval: interval}
}

var _ ports.ChainTap = (*Poller)(nil)

// Subscribe starts the polling loop and returns a channel of
// ChainTapEvent, one per newly observed tip height. The channel is
// closed when ctx is cancelled.
func (p *Poller) Subscribe(ctx context.Context) (<-chan ports.ChainTapEvent, error) {
	lastHeight, err := p.chain.CurrentTipHeight(ctx)
	if err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}

	out := make(chan ports.ChainTapEvent, 16)
	go p.run(ctx, out, lastHeight)
	return out, nil
}

func (p *Poller) run(ctx context.Context, out chan<- ports.ChainTapEvent, lastHeight uint64) {
	defer close(out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tip, err := p.chain.CurrentTipHeight(ctx)
			if err != nil {
				log.WithError(err).Warn("chaintap: polling tip height failed")
				continue
			}
			for h := lastHeight + 1; h <= tip; h++ {
				hash, err := p.chain.BlockHashAtHeight(ctx, h)
				if err != nil {
					log.WithError(err).WithField("height", h).Warn("chaintap: resolving block hash failed")
					break
				}
				event := ports.ChainTapEvent{Height: h, Hash: hash}
				select {
				case out <- event:
					lastHeight = h
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
