package esplora

import (
	"encoding/hex"

	"github.com/tdex-network/tdex-wallet/pkg/explorer"
)

type status struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height,omitempty"`
}

/**** UTXO ****/

// utxo is the implementation of the explorer's Utxo interface
type utxo struct {
	UHash    string `json:"txid"`
	UIndex   uint32 `json:"vout"`
	UValue   int64  `json:"value"`
	UStatus  status `json:"status"`
	UAddress string `json:"-"`
}

func (u utxo) Hash() string {
	return u.UHash
}

func (u utxo) Index() uint32 {
	return u.UIndex
}

func (u utxo) Value() int64 {
	return u.UValue
}

func (u utxo) Address() string {
	return u.UAddress
}

func (u utxo) IsConfirmed() bool {
	return u.UStatus.Confirmed
}

func (u utxo) BlockHeight() int64 {
	return u.UStatus.BlockHeight
}

/**** TRANSACTION ****/

type vout struct {
	ScriptPubKey string `json:"scriptpubkey"`
	Address      string `json:"scriptpubkey_address,omitempty"`
	Value        int64  `json:"value"`
}

func (o *vout) parse() explorer.TxOutput {
	script, _ := hex.DecodeString(o.ScriptPubKey)
	return explorer.TxOutput{
		Address: o.Address,
		Script:  script,
		Value:   o.Value,
	}
}

type vin struct {
	Txid    string `json:"txid"`
	Vout    uint32 `json:"vout"`
	Prevout *vout  `json:"prevout,omitempty"`
}

// tx is the implementation of the explorer's Transaction interface
type tx struct {
	TxHash   string `json:"txid"`
	TxVin    []vin  `json:"vin"`
	TxVout   []vout `json:"vout"`
	TxFee    int64  `json:"fee"`
	TxWeight int    `json:"weight"`
	TxStatus status `json:"status"`
}

func (t *tx) Hash() string {
	return t.TxHash
}

func (t *tx) Inputs() []explorer.TxInput {
	ins := make([]explorer.TxInput, 0, len(t.TxVin))
	for _, in := range t.TxVin {
		input := explorer.TxInput{Hash: in.Txid, Index: in.Vout}
		if in.Prevout != nil {
			prevout := in.Prevout.parse()
			input.Prevout = &prevout
		}
		ins = append(ins, input)
	}
	return ins
}

func (t *tx) Outputs() []explorer.TxOutput {
	outs := make([]explorer.TxOutput, 0, len(t.TxVout))
	for i := range t.TxVout {
		outs = append(outs, t.TxVout[i].parse())
	}
	return outs
}

func (t *tx) Fee() int64 {
	return t.TxFee
}

func (t *tx) Weight() int {
	return t.TxWeight
}

func (t *tx) IsConfirmed() bool {
	return t.TxStatus.Confirmed
}

func (t *tx) BlockHeight() int64 {
	return t.TxStatus.BlockHeight
}
