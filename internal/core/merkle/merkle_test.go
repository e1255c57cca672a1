package merkle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-vision/opnet-node-sub009/internal/core/merkle"
)

func TestEmptyTreeRoot(t *testing.T) {
	tree := merkle.Build(nil)
	require.Equal(t, merkle.EmptyRoot, tree.Root())
	require.Equal(t, merkle.EmptyStorageRoot, tree.Root())
	require.Equal(t, merkle.EmptyReceiptRoot, tree.Root())
}

func TestProofRoundTrip(t *testing.T) {
	leaves := []merkle.Leaf{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
		{Key: []byte("k3"), Value: []byte("v3")},
	}
	tree := merkle.Build(leaves)
	root := tree.Root()

	for i, l := range leaves {
		proof := tree.Proof(i)
		require.True(t, merkle.Verify(root, l.Key, l.Value, proof))
	}
}

func TestProofRejectsWrongValue(t *testing.T) {
	leaves := []merkle.Leaf{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
	}
	tree := merkle.Build(leaves)
	root := tree.Root()
	proof := tree.Proof(0)

	require.False(t, merkle.Verify(root, []byte("k1"), []byte("wrong"), proof))
}

func TestSingleLeafTree(t *testing.T) {
	leaves := []merkle.Leaf{{Key: []byte("only"), Value: []byte("v")}}
	tree := merkle.Build(leaves)
	proof := tree.Proof(0)
	require.True(t, merkle.Verify(tree.Root(), []byte("only"), []byte("v"), proof))
}
