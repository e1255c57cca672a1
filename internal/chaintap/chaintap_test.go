package chaintap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

type fakeChain struct {
	tip uint64
}

func (f *fakeChain) BlockHashAtHeight(_ context.Context, height uint64) (types.Hash, error) {
	var h types.Hash
	h[0] = byte(height)
	return h, nil
}

func (f *fakeChain) FetchBlock(_ context.Context, _ types.Hash) (*ports.RawBlock, error) {
	return &ports.RawBlock{}, nil
}

func (f *fakeChain) BroadcastRawTransaction(_ context.Context, _ []byte) (types.Hash, error) {
	return types.Hash{}, nil
}

func (f *fakeChain) ResolveUTXO(_ context.Context, _ types.Outpoint) (*types.UTXO, error) {
	return nil, nil
}

func (f *fakeChain) EstimateFee(_ context.Context, _ uint32) (types.U256, error) {
	return types.ZeroU256(), nil
}

func (f *fakeChain) CurrentTipHeight(_ context.Context) (uint64, error) {
	return f.tip, nil
}

func TestPollerForwardsNewHeights(t *testing.T) {
	chain := &fakeChain{tip: 10}
	poller := NewPoller(chain, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := poller.Subscribe(ctx)
	require.NoError(t, err)

	chain.tip = 12

	var got []ports.ChainTapEvent
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for chaintap events")
		}
	}

	require.Equal(t, uint64(11), got[0].Height)
	require.Equal(t, uint64(12), got[1].Height)
}

func TestPollerClosesChannelOnCancel(t *testing.T) {
	chain := &fakeChain{tip: 5}
	poller := NewPoller(chain, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := poller.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		if ok {
			// a pending event may still drain before close; keep waiting.
			for range events {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
