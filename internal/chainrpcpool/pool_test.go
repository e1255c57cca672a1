package chainrpcpool

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// fakeChainRpc is a minimal ports.ChainRpc stand-in for exercising Pool's
// round-robin and failover behavior without a real base-chain node.
type fakeChainRpc struct {
	failHeight map[uint64]bool
	tipHeight  uint64
	tipCalls   int
}

func (f *fakeChainRpc) BlockHashAtHeight(_ context.Context, height uint64) (types.Hash, error) {
	if f.failHeight[height] {
		return types.Hash{}, errs.New(errs.KindChainRPC, errors.New("simulated rpc failure"))
	}
	var h types.Hash
	h[0] = byte(height)
	return h, nil
}

func (f *fakeChainRpc) FetchBlock(_ context.Context, _ types.Hash) (*ports.RawBlock, error) {
	return &ports.RawBlock{}, nil
}

func (f *fakeChainRpc) BroadcastRawTransaction(_ context.Context, _ []byte) (types.Hash, error) {
	return types.Hash{}, nil
}

func (f *fakeChainRpc) ResolveUTXO(_ context.Context, _ types.Outpoint) (*types.UTXO, error) {
	return nil, nil
}

func (f *fakeChainRpc) EstimateFee(_ context.Context, _ uint32) (types.U256, error) {
	return types.ZeroU256(), nil
}

func (f *fakeChainRpc) CurrentTipHeight(_ context.Context) (uint64, error) {
	f.tipCalls++
	return f.tipHeight, nil
}

func TestPoolFailsOverOnChainRPCError(t *testing.T) {
	bad := &fakeChainRpc{failHeight: map[uint64]bool{5: true}}
	good := &fakeChainRpc{}

	pool, err := New([]ports.ChainRpc{bad, good})
	require.NoError(t, err)

	h, err := pool.BlockHashAtHeight(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, byte(5), h[0])
}

func TestPoolRequiresAtLeastOneWorker(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestPoolRoundRobins(t *testing.T) {
	a := &fakeChainRpc{tipHeight: 10}
	b := &fakeChainRpc{tipHeight: 20}
	pool, err := New([]ports.ChainRpc{a, b})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := pool.CurrentTipHeight(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 2, a.tipCalls)
	require.Equal(t, 2, b.tipCalls)
}
