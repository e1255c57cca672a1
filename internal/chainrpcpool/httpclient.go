package chainrpcpool

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/ports"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
)

// HTTPClient is one worker's concrete ports.ChainRpc: a plain JSON-RPC
// 1.0 HTTP client against a Bitcoin-like base-chain node, the shape
// infrastructure/network/rpcclient wraps around a persistent websocket
// connection. A full-duplex client is out of this exercise's scope; this
// reference implementation is deliberately thin (SPEC_FULL §B).
type HTTPClient struct {
	endpoint string
	user     string
	pass     string
	http     *http.Client

	// decodeBlock turns the node's raw getblock hex payload into a
	// ports.RawBlock. The base-chain wire codec is out of scope (spec
	// §1); production wires a real one in here.
	decodeBlock func(raw []byte) (*ports.RawBlock, error)
}

// NewHTTPClient builds an HTTPClient. decodeBlock may be nil during
// tests that never call FetchBlock.
func NewHTTPClient(endpoint, user, pass string, decodeBlock func([]byte) (*ports.RawBlock, error)) *HTTPClient {
	return &HTTPClient{
		endpoint:    endpoint,
		user:        user,
		pass:        pass,
		http:        &http.Client{Timeout: 30 * time.Second},
		decodeBlock: decodeBlock,
	}
}

var _ ports.ChainRpc = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	if rr.Error != nil {
		return nil, errs.New(errs.KindChainRPC, errors.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message))
	}
	return rr.Result, nil
}

// BlockHashAtHeight calls getblockhash.
func (c *HTTPClient) BlockHashAtHeight(ctx context.Context, height uint64) (types.Hash, error) {
	raw, err := c.call(ctx, "getblockhash", height)
	if err != nil {
		return types.Hash{}, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Hash{}, errs.New(errs.KindChainRPC, err)
	}
	h, err := types.HashFromHex(s)
	if err != nil {
		return types.Hash{}, errs.New(errs.KindChainRPC, err)
	}
	return h, nil
}

// FetchBlock calls getblock with verbosity 0 (raw hex), then decodes it
// via the injected decoder.
func (c *HTTPClient) FetchBlock(ctx context.Context, hash types.Hash) (*ports.RawBlock, error) {
	raw, err := c.call(ctx, "getblock", hash.String(), 0)
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	if c.decodeBlock == nil {
		return nil, errs.Wrapf(errs.KindFatal, "chainrpcpool: no block decoder configured")
	}
	blockBytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	return c.decodeBlock(blockBytes)
}

// BroadcastRawTransaction calls sendrawtransaction.
func (c *HTTPClient) BroadcastRawTransaction(ctx context.Context, raw []byte) (types.Hash, error) {
	result, err := c.call(ctx, "sendrawtransaction", fmt.Sprintf("%x", raw))
	if err != nil {
		return types.Hash{}, err
	}
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return types.Hash{}, errs.New(errs.KindChainRPC, err)
	}
	h, err := types.HashFromHex(s)
	if err != nil {
		return types.Hash{}, errs.New(errs.KindChainRPC, err)
	}
	return h, nil
}

// ResolveUTXO calls gettxout; a nil response means the outpoint is
// already spent or never existed.
func (c *HTTPClient) ResolveUTXO(ctx context.Context, outpoint types.Outpoint) (*types.UTXO, error) {
	raw, err := c.call(ctx, "gettxout", outpoint.TxID.String(), outpoint.Vout)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var out struct {
		Value         float64 `json:"value"`
		Confirmations uint64  `json:"confirmations"`
		ScriptPubKey  struct {
			Hex string `json:"hex"`
		} `json:"scriptPubKey"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	script, err := hex.DecodeString(out.ScriptPubKey.Hex)
	if err != nil {
		return nil, errs.New(errs.KindChainRPC, err)
	}
	return &types.UTXO{
		TxID:   outpoint.TxID,
		Vout:   outpoint.Vout,
		Value:  types.NewU256FromUint64(uint64(out.Value * 1e8)),
		Script: script,
	}, nil
}

// EstimateFee calls estimatesmartfee.
func (c *HTTPClient) EstimateFee(ctx context.Context, confTarget uint32) (types.U256, error) {
	raw, err := c.call(ctx, "estimatesmartfee", confTarget)
	if err != nil {
		return types.U256{}, err
	}
	var out struct {
		FeeRate float64 `json:"feerate"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.U256{}, errs.New(errs.KindChainRPC, err)
	}
	return types.NewU256FromUint64(uint64(out.FeeRate * 1e8)), nil
}

// CurrentTipHeight calls getblockcount.
func (c *HTTPClient) CurrentTipHeight(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "getblockcount")
	if err != nil {
		return 0, err
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errs.New(errs.KindChainRPC, err)
	}
	return n, nil
}
