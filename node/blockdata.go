package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BlockInfo is the getblock result at verbosity 2: full header fields
// plus decoded transactions.
type BlockInfo struct {
	HeaderInfo
	Tx []TxInfo `json:"tx"`
}

type TxInfo struct {
	TxID      string     `json:"txid"`
	Hex       string     `json:"hex"`
	Version   int64      `json:"version"`
	LockTime  uint32     `json:"locktime"`
	BlockHash string     `json:"blockhash"`
	Vin       []TxInput  `json:"vin"`
	Vout      []TxOutput `json:"vout"`
}

type TxInput struct {
	Coinbase    string   `json:"coinbase"`
	TxID        string   `json:"txid"`
	Vout        uint32   `json:"vout"`
	ScriptSig   ScriptIn `json:"scriptSig"`
	Sequence    uint32   `json:"sequence"`
	TxInWitness []string `json:"txinwitness"`
}

type ScriptIn struct {
	Hex string `json:"hex"`
}

type TxOutput struct {
	Value        json.Number `json:"value"`
	N            uint32      `json:"n"`
	ScriptPubKey ScriptOut   `json:"scriptPubKey"`
}

type ScriptOut struct {
	Hex string `json:"hex"`
}

// Transaction is a transaction shaped for the Cairo program input, with
// every input's referenced output resolved inline.
type Transaction struct {
	Version  int64   `json:"version"`
	IsSegwit bool    `json:"is_segwit"`
	Inputs   []TxIn  `json:"inputs"`
	Outputs  []TxOut `json:"outputs"`
	LockTime uint32  `json:"lock_time"`
}

type TxIn struct {
	Script         string   `json:"script"`
	Sequence       uint32   `json:"sequence"`
	PreviousOutput OutPoint `json:"previous_output"`
	Witness        []string `json:"witness"`
}

type OutPoint struct {
	TxID           string `json:"txid"`
	Vout           uint32 `json:"vout"`
	Data           TxOut  `json:"data"`
	BlockHeight    uint64 `json:"block_height"`
	MedianTimePast uint64 `json:"median_time_past"`
	IsCoinbase     bool   `json:"is_coinbase"`
}

type TxOut struct {
	Value    int64  `json:"value"`
	PkScript string `json:"pk_script"`
	Cached   bool   `json:"cached"`
}

var zatoshiPerCoin = decimal.NewFromInt(100_000_000)

// FetchBlock downloads a block with its transactions.
func (c *Client) FetchBlock(ctx context.Context, blockHash string) (*BlockInfo, error) {
	var b BlockInfo
	if err := c.Call(ctx, "getblock", []any{blockHash, 2}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) getRawTransaction(ctx context.Context, txid string) (*TxInfo, error) {
	var tx TxInfo
	if err := c.Call(ctx, "getrawtransaction", []any{txid, true}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ResolveTransaction shapes a decoded transaction, resolving each
// input's referenced output over RPC.
func (c *Client) ResolveTransaction(ctx context.Context, tx TxInfo) (Transaction, error) {
	inputs := make([]TxIn, 0, len(tx.Vin))
	for _, in := range tx.Vin {
		resolved, err := c.resolveInput(ctx, in)
		if err != nil {
			return Transaction{}, fmt.Errorf("tx %s: %w", tx.TxID, err)
		}
		inputs = append(inputs, resolved)
	}
	outputs := make([]TxOut, 0, len(tx.Vout))
	for _, out := range tx.Vout {
		formatted, err := formatOutput(out)
		if err != nil {
			return Transaction{}, fmt.Errorf("tx %s: %w", tx.TxID, err)
		}
		outputs = append(outputs, formatted)
	}
	return Transaction{
		Version:  tx.Version,
		IsSegwit: len(tx.Hex) >= 12 && tx.Hex[8:12] == "0001",
		Inputs:   inputs,
		Outputs:  outputs,
		LockTime: tx.LockTime,
	}, nil
}

func (c *Client) resolveInput(ctx context.Context, in TxInput) (TxIn, error) {
	if in.Coinbase != "" {
		return formatCoinbaseInput(in), nil
	}
	prev, err := c.resolveOutPoint(ctx, in)
	if err != nil {
		return TxIn{}, err
	}
	witness := make([]string, 0, len(in.TxInWitness))
	for _, item := range in.TxInWitness {
		witness = append(witness, "0x"+item)
	}
	return TxIn{
		Script:         "0x" + in.ScriptSig.Hex,
		Sequence:       in.Sequence,
		PreviousOutput: prev,
		Witness:        witness,
	}, nil
}

// resolveOutPoint fetches the transaction and headers for a referenced
// output. Time-based relative lock-times are measured from the median
// time past of the block before the one containing the spent output.
func (c *Client) resolveOutPoint(ctx context.Context, in TxInput) (OutPoint, error) {
	tx, err := c.getRawTransaction(ctx, in.TxID)
	if err != nil {
		return OutPoint{}, err
	}
	if int(in.Vout) >= len(tx.Vout) {
		return OutPoint{}, fmt.Errorf("outpoint %s:%d: vout out of range", in.TxID, in.Vout)
	}
	block, err := c.GetBlockHeader(ctx, tx.BlockHash)
	if err != nil {
		return OutPoint{}, err
	}
	prevBlock, err := c.GetBlockHeader(ctx, block.PreviousBlockHash)
	if err != nil {
		return OutPoint{}, err
	}
	data, err := formatOutput(tx.Vout[in.Vout])
	if err != nil {
		return OutPoint{}, fmt.Errorf("outpoint %s:%d: %w", in.TxID, in.Vout, err)
	}
	isCoinbase := len(tx.Vin) > 0 && tx.Vin[0].Coinbase != ""
	return OutPoint{
		TxID:           in.TxID,
		Vout:           in.Vout,
		Data:           data,
		BlockHeight:    block.Height,
		MedianTimePast: prevBlock.MedianTime,
		IsCoinbase:     isCoinbase,
	}, nil
}

func formatCoinbaseInput(in TxInput) TxIn {
	return TxIn{
		Script:   "0x" + in.Coinbase,
		Sequence: in.Sequence,
		PreviousOutput: OutPoint{
			TxID: strings.Repeat("0", 64),
			Vout: 0xFFFFFFFF,
			Data: TxOut{Value: 0, PkScript: "0x", Cached: false},
		},
		Witness: []string{"0x" + strings.Repeat("0", 64)},
	}
}

// formatOutput converts an output value from coins to zatoshis using
// exact decimal arithmetic; float rounding here would corrupt values.
func formatOutput(out TxOutput) (TxOut, error) {
	value, err := decimal.NewFromString(out.Value.String())
	if err != nil {
		return TxOut{}, fmt.Errorf("output value %q: %w", out.Value, err)
	}
	return TxOut{
		Value:    value.Mul(zatoshiPerCoin).IntPart(),
		PkScript: "0x" + out.ScriptPubKey.Hex,
		Cached:   false,
	}, nil
}

// FormatBlockWithTransactions shapes a full block: the data part
// carries the resolved transaction list instead of the merkle root.
func (c *Client) FormatBlockWithTransactions(ctx context.Context, block *BlockInfo) (FormattedBlock, error) {
	header, err := FormatHeader(&block.HeaderInfo)
	if err != nil {
		return FormattedBlock{}, err
	}
	txs := make([]Transaction, 0, len(block.Tx))
	for _, tx := range block.Tx {
		resolved, err := c.ResolveTransaction(ctx, tx)
		if err != nil {
			return FormattedBlock{}, err
		}
		txs = append(txs, resolved)
	}
	return FormattedBlock{
		Header: header,
		Data:   BlockData{VariantID: 1, Transactions: txs},
	}, nil
}
