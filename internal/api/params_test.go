package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeightDecimalHexLatest(t *testing.T) {
	h, latest, err := parseHeight(json.RawMessage(`1001`))
	require.NoError(t, err)
	require.False(t, latest)
	require.Equal(t, int64(1001), h)

	h, latest, err = parseHeight(json.RawMessage(`"0x3e9"`))
	require.NoError(t, err)
	require.False(t, latest)
	require.Equal(t, int64(1001), h)

	_, latest, err = parseHeight(json.RawMessage(`-1`))
	require.NoError(t, err)
	require.True(t, latest)

	_, latest, err = parseHeight(json.RawMessage(`"-1"`))
	require.NoError(t, err)
	require.True(t, latest)

	_, latest, err = parseHeight(json.RawMessage(``))
	require.NoError(t, err)
	require.True(t, latest)
}

func TestPositionalFieldsObjectAndArrayForms(t *testing.T) {
	objForm := json.RawMessage(`{"blockHash":"ab","sendTransactions":true}`)
	fields, err := positionalFields(objForm, "blockHash", "sendTransactions")
	require.NoError(t, err)
	require.Equal(t, `"ab"`, string(fields[0]))
	require.Equal(t, `true`, string(fields[1]))

	arrForm := json.RawMessage(`["ab", true]`)
	fields, err = positionalFields(arrForm, "blockHash", "sendTransactions")
	require.NoError(t, err)
	require.Equal(t, `"ab"`, string(fields[0]))
	require.Equal(t, `true`, string(fields[1]))
}

func TestHexUint64(t *testing.T) {
	require.Equal(t, "0x3e9", hexUint64(1001))
	require.Equal(t, "0x0", hexUint64(0))
}
