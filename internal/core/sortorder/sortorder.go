// Package sortorder implements the deterministic execution order:
// transactions group by intra-block dependency, each group topologically
// sorts (ties by ascending IndexingHash), and groups order by descending
// total burned fee (ties by lexicographic concatenation of member
// IndexingHashes). The result is total, deterministic, and stable under
// permutation of the input.
//
// Grounded on the DAG ancestor/descendant traversal idiom in
// domain/consensus/processes/dagtopologymanager and ghostdagmanager: both
// walk a parent-pointer graph to a stable order, the same shape this
// package's union-find + topological sort uses, generalized from "DAG
// blocks" to "transactions within one block".
package sortorder

import (
	"bytes"
	"sort"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// Order returns txs reordered into the deterministic execution order.
// Order does not mutate its input slice.
func Order(txs []*types.OverlayTx) []*types.OverlayTx {
	if len(txs) == 0 {
		return nil
	}

	byTxID := make(map[types.Hash]*types.OverlayTx, len(txs))
	for _, tx := range txs {
		byTxID[tx.TxID] = tx
	}

	groups := groupByDependency(txs, byTxID)

	ordered := make([]txGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, txGroup{
			members: topoSortGroup(g, byTxID),
		})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return groupLess(ordered[i], ordered[j])
	})

	result := make([]*types.OverlayTx, 0, len(txs))
	for _, g := range ordered {
		result = append(result, g.members...)
	}
	return result
}

type txGroup struct {
	members []*types.OverlayTx
}

// totalFee sums each member's priority fee.
func (g txGroup) totalFee() types.U256 {
	total := types.ZeroU256()
	for _, tx := range g.members {
		total = total.Add(tx.PriorityFeeOf())
	}
	return total
}

// concatIndexingHashes concatenates member IndexingHash bytes in group
// order, used as the step-3 tie-break key.
func (g txGroup) concatIndexingHashes() []byte {
	buf := make([]byte, 0, len(g.members)*types.HashSize)
	for _, tx := range g.members {
		buf = append(buf, tx.IndexingHash[:]...)
	}
	return buf
}

func groupLess(a, b txGroup) bool {
	feeCmp := a.totalFee().Cmp(b.totalFee())
	if feeCmp != 0 {
		return feeCmp > 0 // descending total fee
	}
	return bytes.Compare(a.concatIndexingHashes(), b.concatIndexingHashes()) < 0
}

// groupByDependency partitions txs into connected components under the
// "B depends on A iff B has an input whose prev_txid equals A's txid"
// relation, resolved transitively via union-find.
func groupByDependency(txs []*types.OverlayTx, byTxID map[types.Hash]*types.OverlayTx) [][]*types.OverlayTx {
	index := make(map[types.Hash]int, len(txs))
	for i, tx := range txs {
		index[tx.TxID] = i
	}

	parent := make([]int, len(txs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i, tx := range txs {
		for _, in := range tx.Inputs {
			if _, ok := byTxID[in.PrevTxID]; !ok {
				continue // input spends something outside this block's overlay set
			}
			if j, ok := index[in.PrevTxID]; ok {
				union(i, j)
			}
		}
	}

	buckets := make(map[int][]*types.OverlayTx)
	for i, tx := range txs {
		root := find(i)
		buckets[root] = append(buckets[root], tx)
	}

	groups := make([][]*types.OverlayTx, 0, len(buckets))
	for _, g := range buckets {
		groups = append(groups, g)
	}
	return groups
}

// topoSortGroup orders one dependency component by Kahn's algorithm on
// the intra-group DAG, breaking ties by ascending IndexingHash, which
// keeps the sort stable and independent of input order (shuffling inputs
// yields the same output order).
func topoSortGroup(group []*types.OverlayTx, byTxID map[types.Hash]*types.OverlayTx) []*types.OverlayTx {
	inGroup := make(map[types.Hash]bool, len(group))
	for _, tx := range group {
		inGroup[tx.TxID] = true
	}

	indegree := make(map[types.Hash]int, len(group))
	children := make(map[types.Hash][]types.Hash, len(group))
	for _, tx := range group {
		indegree[tx.TxID] = 0
	}
	for _, tx := range group {
		for _, in := range tx.Inputs {
			if inGroup[in.PrevTxID] {
				children[in.PrevTxID] = append(children[in.PrevTxID], tx.TxID)
				indegree[tx.TxID]++
			}
		}
	}

	var ready []*types.OverlayTx
	for _, tx := range group {
		if indegree[tx.TxID] == 0 {
			ready = append(ready, tx)
		}
	}

	result := make([]*types.OverlayTx, 0, len(group))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return bytes.Compare(ready[i].IndexingHash[:], ready[j].IndexingHash[:]) < 0
		})
		next := ready[0]
		ready = ready[1:]

		result = append(result, next)

		for _, childID := range children[next.TxID] {
			indegree[childID]--
			if indegree[childID] == 0 {
				ready = append(ready, byTxID[childID])
			}
		}
	}

	return result
}
