package sortorder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-vision/opnet-node-sub009/internal/core/sortorder"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

func hashOf(b byte) types.Hash {
	var h types.Hash
	h[types.HashSize-1] = b
	return h
}

func fee(n uint64) *types.InteractionData {
	return &types.InteractionData{PriorityFee: types.NewU256FromUint64(n)}
}

// buildScenario5 builds a canonical "sort determinism" scenario:
// t2 depends on t1, t4 depends on t3, fees {t1:1, t2:10, t3:100, t4:5}.
// Expected final order: t3, t4, t1, t2.
func buildScenario5() (t1, t2, t3, t4 *types.OverlayTx) {
	t1 = &types.OverlayTx{TxID: hashOf(1), IndexingHash: hashOf(1), Interaction: fee(1)}
	t3 = &types.OverlayTx{TxID: hashOf(3), IndexingHash: hashOf(3), Interaction: fee(100)}
	t2 = &types.OverlayTx{
		TxID: hashOf(2), IndexingHash: hashOf(2), Interaction: fee(10),
		Inputs: []types.TxInput{{PrevTxID: t1.TxID}},
	}
	t4 = &types.OverlayTx{
		TxID: hashOf(4), IndexingHash: hashOf(4), Interaction: fee(5),
		Inputs: []types.TxInput{{PrevTxID: t3.TxID}},
	}
	return
}

func TestOrderScenario5(t *testing.T) {
	t1, t2, t3, t4 := buildScenario5()

	got := sortorder.Order([]*types.OverlayTx{t1, t2, t3, t4})
	require.Len(t, got, 4)
	require.Equal(t, []types.Hash{t3.TxID, t4.TxID, t1.TxID, t2.TxID},
		[]types.Hash{got[0].TxID, got[1].TxID, got[2].TxID, got[3].TxID})
}

func TestOrderIsPermutationInvariant(t *testing.T) {
	t1, t2, t3, t4 := buildScenario5()

	perm1 := sortorder.Order([]*types.OverlayTx{t1, t2, t3, t4})
	perm2 := sortorder.Order([]*types.OverlayTx{t4, t3, t2, t1})
	perm3 := sortorder.Order([]*types.OverlayTx{t2, t4, t1, t3})

	idsOf := func(txs []*types.OverlayTx) []types.Hash {
		ids := make([]types.Hash, len(txs))
		for i, tx := range txs {
			ids[i] = tx.TxID
		}
		return ids
	}

	require.Equal(t, idsOf(perm1), idsOf(perm2))
	require.Equal(t, idsOf(perm1), idsOf(perm3))
}

func TestOrderEmpty(t *testing.T) {
	require.Nil(t, sortorder.Order(nil))
}
