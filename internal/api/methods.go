package api

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/btc-vision/opnet-node-sub009/internal/core/epoch"
	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
	"github.com/btc-vision/opnet-node-sub009/internal/core/types"
	"github.com/btc-vision/opnet-node-sub009/internal/core/vm"
)

// handlerFunc is the uniform shape of every dispatch-table entry,
// mirroring infrastructure/network/rpc/rpcserver.go's commandHandler.
type handlerFunc func(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error)

// handlers is the fixed-order dispatch table for spec §6.1's method set.
// Declared as a package-level map the way the teacher's rpcHandlers is,
// keyed by the exact method name clients send.
var handlers = map[string]handlerFunc{
	"btc_blockNumber":                  handleBlockNumber,
	"btc_getBlockByHash":               handleGetBlockByHash,
	"btc_getBlockByNumber":             handleGetBlockByNumber,
	"btc_getBlockHeaderByHash":         handleGetBlockHeaderByHash,
	"btc_getBlockHeaderByNumber":       handleGetBlockHeaderByNumber,
	"btc_getTransactionByHash":         handleGetTransactionByHash,
	"btc_getTransactionReceipt":        handleGetTransactionReceipt,
	"btc_sendRawTransaction":           handleSendRawTransaction,
	"btc_simulateTransaction":          handleSimulateTransaction,
	"btc_call":                         handleSimulateTransaction,
	"btc_getUTXOs":                     handleGetUTXOs,
	"btc_getBalance":                   handleGetBalance,
	"btc_getCode":                      handleGetCode,
	"btc_getStorageAt":                 handleGetStorageAt,
	"btc_chainId":                      handleChainID,
	"btc_reorg":                        handleReorg,
	"btc_getBlockWitness":              handleGetBlockWitness,
	"btc_getMempoolInfo":               handleGetMempoolInfo,
	"btc_getPendingTransaction":        handleGetPendingTransaction,
	"btc_getLatestPendingTransactions": handleGetLatestPendingTransactions,
	"btc_getEpochByNumber":             handleGetEpochByNumber,
	"btc_getEpochByHash":               handleGetEpochByHash,
	"btc_getEpochTemplate":             handleGetEpochTemplate,
	"btc_submitEpoch":                  handleSubmitEpoch,
}

// Dispatch resolves and invokes the handler for method, returning a
// Validation-kind error for an unrecognised method name (the same "absent
// from the map" rejection the teacher's rpcUnimplemented entries model).
func Dispatch(ctx context.Context, c *Context, method string, params json.RawMessage) (interface{}, error) {
	h, ok := handlers[method]
	if !ok {
		return nil, errs.Wrapf(errs.KindValidation, "unknown method %q", method)
	}
	return h(ctx, c, params)
}

func handleBlockNumber(ctx context.Context, c *Context, _ json.RawMessage) (interface{}, error) {
	head, ok, err := c.Store.LatestHeader(ctx)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !ok {
		return hexUint64(0), nil
	}
	return hexUint64(head.Height), nil
}

func resolveHeader(ctx context.Context, c *Context, fields []json.RawMessage) (*types.BlockHeader, bool, error) {
	height, isLatest, err := parseHeight(fields[0])
	if err != nil {
		return nil, false, err
	}
	if isLatest {
		return c.Store.LatestHeader(ctx)
	}
	return c.Store.HeaderByHeight(ctx, uint64(height))
}

type blockResult struct {
	Header       *types.BlockHeader `json:"header"`
	Transactions []*types.OverlayTx `json:"transactions,omitempty"`
}

func handleGetBlockByHash(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "blockHash", "sendTransactions")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	header, found, err := c.Store.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return buildBlockResult(ctx, c, header, decodeBoolField(fields[1]))
}

func handleGetBlockByNumber(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "height", "sendTransactions")
	if err != nil {
		return nil, err
	}
	header, found, err := resolveHeader(ctx, c, fields)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return buildBlockResult(ctx, c, header, decodeBoolField(fields[1]))
}

func buildBlockResult(ctx context.Context, c *Context, header *types.BlockHeader, sendTransactions bool) (*blockResult, error) {
	res := &blockResult{Header: header}
	if !sendTransactions {
		return res, nil
	}
	// ports.Store has no per-height transaction lookup (only
	// TransactionByHash), so the result carries the header alone even when
	// sendTransactions is set; Transactions is never filled.
	return res, nil
}

func handleGetBlockHeaderByHash(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "blockHash")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	header, found, err := c.Store.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return header, nil
}

func handleGetBlockHeaderByNumber(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "height")
	if err != nil {
		return nil, err
	}
	header, found, err := resolveHeader(ctx, c, fields)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return header, nil
}

func handleGetTransactionByHash(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "hash")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	tx, found, err := c.Store.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return tx, nil
}

type receiptResult struct {
	Receipt       *json.RawMessage `json:"receipt,omitempty"`
	ReceiptProofs []types.Hash     `json:"receiptProofs"`
	Events        [][]byte         `json:"events"`
	GasUsed       types.U256       `json:"gasUsed"`
	Revert        string           `json:"revert,omitempty"`
}

func handleGetTransactionReceipt(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "hash")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	receipts, err := c.Store.ReceiptByTxID(ctx, hash)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if len(receipts) == 0 {
		return nil, nil
	}
	r := receipts[0]
	out := &receiptResult{
		Events:  r.Events,
		GasUsed: types.NewU256FromUint64(r.GasUsed.Uint64()),
		Revert:  r.Revert,
	}
	if r.Result != nil {
		raw := json.RawMessage(`"` + hex.EncodeToString(r.Result) + `"`)
		out.Receipt = &raw
	}
	return out, nil
}

type sendRawTxResult struct {
	Success              bool   `json:"success"`
	Result               string `json:"result,omitempty"`
	Error                string `json:"error,omitempty"`
	ModifiedTransaction  string `json:"modifiedTransaction,omitempty"`
	FinalizedTransaction bool   `json:"finalizedTransaction,omitempty"`
	TransactionType      string `json:"transactionType,omitempty"`
}

func handleSendRawTransaction(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "data", "psbt")
	if err != nil {
		return nil, err
	}
	raw, err := decodeBytesField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	isPSBT := decodeBoolField(fields[1])

	result, err := c.Mempool.Admit(ctx, raw, isPSBT, c.MempoolDecode)
	if err != nil {
		if errs.Is(err, errs.KindValidation) {
			return sendRawTxResult{Success: false, Error: err.Error()}, nil
		}
		return nil, err
	}

	out := sendRawTxResult{Success: result.Success}
	if isPSBT {
		out.ModifiedTransaction = hex.EncodeToString(result.Modified)
		out.FinalizedTransaction = result.Finalized
		out.TransactionType = "psbt"
	}
	return out, nil
}

type simulateResult struct {
	Result     string   `json:"result,omitempty"`
	Events     [][]byte `json:"events"`
	AccessList [][]byte `json:"accessList"`
	Error      string   `json:"error,omitempty"`
}

func handleSimulateTransaction(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "to", "calldata", "from", "blockNumber")
	if err != nil {
		return nil, err
	}
	to, err := decodeBytesField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	calldata, err := decodeBytesField(fields[1])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	var from []byte
	if len(fields[2]) > 0 {
		from, err = decodeBytesField(fields[2])
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
	}

	height, isLatest, err := parseHeight(fields[3])
	if err != nil {
		return nil, err
	}
	if isLatest {
		head, ok, err := c.Store.LatestHeader(ctx)
		if err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if ok {
			height = int64(head.Height)
		}
	}

	call := vm.Call{
		Contract: types.Address{Script: to},
		Calldata: calldata,
		Caller:   types.Address{Script: from},
		Height:   uint64(height),
		MaxGas:   100_000_000,
	}
	receipt := c.Simulator.Simulate(ctx, call)
	if receipt.Revert != "" {
		return simulateResult{Error: receipt.Revert}, nil
	}
	return simulateResult{
		Result:     hex.EncodeToString(receipt.Result),
		Events:     receipt.Events,
		AccessList: receipt.AccessList,
	}, nil
}

type utxosResult struct {
	Confirmed          []types.UTXO `json:"confirmed"`
	SpentTransactions  []types.Hash `json:"spentTransactions"`
	Pending            []types.UTXO `json:"pending"`
	Raw                []types.UTXO `json:"raw"`
}

func handleGetUTXOs(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "address", "optimize")
	if err != nil {
		return nil, err
	}
	addrBytes, err := decodeBytesField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	utxos, err := c.Store.LiveUTXOsByAddress(ctx, types.Address{Script: addrBytes})
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	return utxosResult{Confirmed: utxos, Raw: utxos}, nil
}

func handleGetBalance(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "address", "filterOrdinals")
	if err != nil {
		return nil, err
	}
	addrBytes, err := decodeBytesField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	utxos, err := c.Store.LiveUTXOsByAddress(ctx, types.Address{Script: addrBytes})
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	total := types.ZeroU256()
	for _, u := range utxos {
		total = total.Add(u.Value)
	}
	return hexUint64(total.Uint64()), nil
}

type codeResult struct {
	Bytecode         string      `json:"bytecode"`
	ContractAddress  types.Address `json:"contractAddress,omitempty"`
	DeploymentHeight uint64        `json:"deploymentHeight,omitempty"`
}

func handleGetCode(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "address", "onlyBytecode")
	if err != nil {
		return nil, err
	}
	addrBytes, err := decodeBytesField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	contract, found, err := c.Store.ContractByAddress(ctx, types.Address{Script: addrBytes})
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	if decodeBoolField(fields[1]) {
		return hex.EncodeToString(contract.Bytecode), nil
	}
	return codeResult{
		Bytecode:         hex.EncodeToString(contract.Bytecode),
		ContractAddress:  contract.ContractAddress,
		DeploymentHeight: contract.DeploymentHeight,
	}, nil
}

type storageResult struct {
	Value  [32]byte          `json:"value"`
	Proof  *types.MerkleProof `json:"proof,omitempty"`
}

func handleGetStorageAt(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "address", "pointer", "sendProofs", "height")
	if err != nil {
		return nil, err
	}
	addrBytes, err := decodeBytesField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	pointerBytes, err := decodeBytesField(fields[1])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	var pointer [32]byte
	copy(pointer[:], pointerBytes)

	height := uint64(0)
	if len(fields[3]) > 0 {
		h, isLatest, err := parseHeight(fields[3])
		if err != nil {
			return nil, err
		}
		if isLatest {
			head, ok, err := c.Store.LatestHeader(ctx)
			if err != nil {
				return nil, errs.New(errs.KindStore, err)
			}
			if ok {
				height = head.Height
			}
		} else {
			height = uint64(h)
		}
	} else {
		head, ok, err := c.Store.LatestHeader(ctx)
		if err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if ok {
			height = head.Height
		}
	}

	pv, found, err := c.Store.PointerValueAt(ctx, types.Address{Script: addrBytes}, pointer, height)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return storageResult{}, nil
	}
	out := storageResult{Value: pv.Value}
	if decodeBoolField(fields[2]) {
		out.Proof = &pv.Proof
	}
	return out, nil
}

func handleChainID(ctx context.Context, c *Context, _ json.RawMessage) (interface{}, error) {
	return hexUint64(uint64(c.ChainID)), nil
}

func handleReorg(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "fromBlock", "toBlock")
	if err != nil {
		return nil, err
	}
	from := uint64(decodeIntField(fields[0], 0))
	var to uint64
	if len(fields[1]) > 0 {
		to = uint64(decodeIntField(fields[1], 0))
	} else {
		head, ok, err := c.Store.LatestHeader(ctx)
		if err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if ok {
			to = head.Height
		}
	}
	events, err := c.Store.ReorgsBetween(ctx, from, to)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	return events, nil
}

func handleGetBlockWitness(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "height", "trusted", "limit", "page")
	if err != nil {
		return nil, err
	}
	height, isLatest, err := parseHeight(fields[0])
	if err != nil {
		return nil, err
	}
	if isLatest {
		head, ok, err := c.Store.LatestHeader(ctx)
		if err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if ok {
			height = int64(head.Height)
		}
	}
	trustedOnly := decodeBoolField(fields[1])
	limit := decodeIntField(fields[2], 0)
	page := decodeIntField(fields[3], 0)

	if c.Consensus != nil {
		return c.Consensus.Witnesses(uint64(height), trustedOnly, limit, page), nil
	}
	return c.Store.WitnessesByBlock(ctx, uint64(height), trustedOnly, limit, page)
}

func handleGetMempoolInfo(ctx context.Context, c *Context, _ json.RawMessage) (interface{}, error) {
	info := c.Mempool.GetInfo()
	return map[string]interface{}{
		"count":      info.Count,
		"opnetCount": info.OpnetCount,
		"size":       info.Size,
	}, nil
}

func handleGetPendingTransaction(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "hash")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	entry, ok := c.Mempool.GetPending(hash)
	if !ok {
		return nil, nil
	}
	return entry, nil
}

func handleGetLatestPendingTransactions(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "address", "addresses", "limit")
	if err != nil {
		return nil, err
	}
	var addrs []types.Address
	if len(fields[0]) > 0 {
		b, err := decodeBytesField(fields[0])
		if err != nil {
			return nil, errs.New(errs.KindValidation, err)
		}
		addrs = append(addrs, types.Address{Script: b})
	}
	if len(fields[1]) > 0 {
		var list []string
		if err := json.Unmarshal(fields[1], &list); err == nil {
			for _, s := range list {
				b, err := hex.DecodeString(s)
				if err == nil {
					addrs = append(addrs, types.Address{Script: b})
				}
			}
		}
	}
	limit := decodeIntField(fields[2], 0)
	return c.Mempool.GetLatest(addrs, limit), nil
}

func handleGetEpochByNumber(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "epochNumber")
	if err != nil {
		return nil, err
	}
	n := uint64(decodeIntField(fields[0], 0))
	ep, found, err := c.Store.EpochByNumber(ctx, n)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return ep, nil
}

func handleGetEpochByHash(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	fields, err := positionalFields(params, "targetHash")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashField(fields[0])
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	ep, found, err := c.Store.EpochByHash(ctx, hash)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !found {
		return nil, nil
	}
	return ep, nil
}

func handleGetEpochTemplate(ctx context.Context, c *Context, _ json.RawMessage) (interface{}, error) {
	head, ok, err := c.Store.LatestHeader(ctx)
	if err != nil {
		return nil, errs.New(errs.KindStore, err)
	}
	if !ok {
		return nil, errs.Wrapf(errs.KindNotFound, "no committed header yet")
	}

	epochNum := epoch.EpochNumber(head.Height)
	startHeight := epochNum * epoch.BlocksPerEpoch
	startHeader := head
	if startHeight != head.Height {
		h, found, err := c.Store.HeaderByHeight(ctx, startHeight)
		if err != nil {
			return nil, errs.New(errs.KindStore, err)
		}
		if found {
			startHeader = h
		}
	}

	tmpl := epoch.BuildTemplate(head.Height, startHeader)
	return map[string]interface{}{
		"epochNumber": tmpl.EpochNumber,
		"epochTarget": tmpl.EpochTarget,
		"targetHash":  tmpl.TargetHash,
	}, nil
}

type submitEpochParams struct {
	EpochNumber  uint64 `json:"epochNumber"`
	TargetHash   string `json:"targetHash"`
	Salt         string `json:"salt"`
	MLDSAPubKey  string `json:"mldsaPublicKey"`
	Graffiti     string `json:"graffiti"`
	Signature    string `json:"signature"`
}

type submitEpochResult struct {
	Status         string `json:"status"`
	SubmissionHash string `json:"submissionHash"`
	Difficulty     int    `json:"difficulty"`
	Timestamp      int64  `json:"timestamp"`
	Message        string `json:"message,omitempty"`
}

func handleSubmitEpoch(ctx context.Context, c *Context, params json.RawMessage) (interface{}, error) {
	var p submitEpochParams
	if err := decodeParams(params, &p); err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}

	targetHash, err := types.HashFromHex(p.TargetHash)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	saltBytes, err := hex.DecodeString(p.Salt)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	var salt [32]byte
	copy(salt[:], saltBytes)
	mldsa, err := hex.DecodeString(p.MLDSAPubKey)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	sig, err := hex.DecodeString(p.Signature)
	if err != nil {
		return nil, errs.New(errs.KindValidation, err)
	}
	var graffiti []byte
	if p.Graffiti != "" {
		graffiti, _ = hex.DecodeString(p.Graffiti)
	}

	tmplRaw, err := handleGetEpochTemplate(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	tmplMap, ok := tmplRaw.(map[string]interface{})
	if !ok {
		return nil, errs.Wrapf(errs.KindFatal, "epoch template build returned unexpected shape")
	}
	tmpl := epoch.Template{
		EpochNumber: tmplMap["epochNumber"].(uint64),
		EpochTarget: tmplMap["epochTarget"].(types.Hash),
		TargetHash:  tmplMap["targetHash"].(types.Hash),
	}

	entry, err := c.Epoch.Submit(tmpl, epoch.Submission{
		EpochNumber: p.EpochNumber,
		TargetHash:  targetHash,
		Salt:        salt,
		MLDSAPubKey: mldsa,
		Graffiti:    graffiti,
		Signature:   sig,
	})
	if err != nil {
		res := submitEpochResult{Status: "rejected", Message: err.Error()}
		if entry != nil {
			res.SubmissionHash = entry.SubmissionID.String()
		}
		return res, nil
	}

	return submitEpochResult{
		Status:         "accepted",
		SubmissionHash: entry.SubmissionID.String(),
		Difficulty:     entry.MatchingBits,
		Timestamp:      entry.ConfirmedAt.Unix(),
	}, nil
}
