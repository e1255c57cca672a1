package api

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// LatestHeightSentinel is the -1 value meaning "latest" (spec §6.1).
const LatestHeightSentinel = -1

// Request is one JSON-RPC 2.0 request envelope. Params accepts both the
// object form ({"blockHash": "..."}) and the positional array form
// (["..."]) per spec §6.1 ("Both object and positional parameter forms
// are accepted").
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC 2.0 application error.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// decodeParams unmarshals req.Params into an object form; for a
// positional array it decodes the array's first element into out (the
// params object spelled positionally). Scalar positional params such as
// [hash] go through positionalFields instead.
func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return errors.Wrap(err, "decoding positional params")
		}
		if len(arr) == 0 {
			return nil
		}
		// A positional call with one element whose value is an object is
		// the object form spelled positionally; anything else is handled
		// by the caller via positionalFields.
		return json.Unmarshal(arr[0], out)
	}
	return json.Unmarshal(raw, out)
}

// positionalFields returns req.Params as a flat slice of raw values
// regardless of whether the caller used the array or object form,
// looking object-form values up by key in declared order. Used by
// methods with more than one scalar param where the object form's key
// names matter (e.g. {blockHash, sendTransactions}).
func positionalFields(raw json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return make([]json.RawMessage, len(keys)), nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, errors.Wrap(err, "decoding positional params")
		}
		out := make([]json.RawMessage, len(keys))
		copy(out, arr)
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrap(err, "decoding object params")
	}
	out := make([]json.RawMessage, len(keys))
	for i, k := range keys {
		out[i] = obj[k]
	}
	return out, nil
}

// parseHeight accepts decimal, hex ("0x..."), or the -1 "latest" sentinel
// (spec §6.1: "Heights accept decimal, hex, or the sentinel -1 meaning
// 'latest'").
func parseHeight(raw json.RawMessage) (height int64, isLatest bool, err error) {
	if len(raw) == 0 {
		return 0, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseHeightString(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false, errors.Wrap(err, "parsing height")
	}
	if n == LatestHeightSentinel {
		return 0, true, nil
	}
	return n, false, nil
}

func parseHeightString(s string) (int64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-1" {
		return 0, true, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return 0, false, errors.Wrap(err, "parsing hex height")
		}
		return n, false, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "parsing decimal height")
	}
	if n == LatestHeightSentinel {
		return 0, true, nil
	}
	return n, false, nil
}

// hexUint64 renders n as a "0x"-prefixed hex string, the form every
// height/balance/chain-id result in spec §6.1 uses.
func hexUint64(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func decodeHashField(raw json.RawMessage) (types.Hash, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Hash{}, errors.Wrap(err, "decoding hash field")
	}
	s = strings.TrimPrefix(s, "0x")
	return types.HashFromHex(s)
}

func decodeBytesField(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrap(err, "decoding bytes field")
	}
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

func decodeBoolField(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	_ = json.Unmarshal(raw, &b)
	return b
}

func decodeIntField(raw json.RawMessage, def int) int {
	if len(raw) == 0 {
		return def
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return def
	}
	return n
}

func decodeStringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}
