package wallet

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/wire"
)

// KeyDerivation tells which key, of which wallet, at which path, is involved
// in spending an output.
type KeyDerivation struct {
	PublicKey         []byte
	MasterFingerprint uint32
	Path              DerivationPath
}

// Utxo is a spendable output enriched with the data needed to estimate the
// size of its input and to sign it.
type Utxo struct {
	Txid          string
	Vout          uint32
	Value         int64
	Script        []byte
	Address       string
	Confirmations int64

	ScriptType    ScriptType
	RedeemScript  []byte
	WitnessScript []byte
	// Threshold is the M of multisig inputs.
	Threshold   int
	Derivations []KeyDerivation
	// PrevTxHex is the serialized funding transaction, required to spend
	// legacy P2PKH outputs.
	PrevTxHex string
}

// Key returns the txid:vout identifier of the utxo.
func (u Utxo) Key() string {
	return fmt.Sprintf("%s:%d", u.Txid, u.Vout)
}

func (u Utxo) inputType() TxInputType {
	numKeys := len(u.Derivations)
	if u.ScriptType.IsMultisig() && numKeys <= 0 {
		numKeys = u.Threshold
	}
	return TxInputType{
		ScriptType: u.ScriptType,
		Threshold:  u.Threshold,
		NumKeys:    numKeys,
	}
}

// SelectUtxosOpts is the struct given to SelectUtxos method
type SelectUtxosOpts struct {
	Utxos        []Utxo
	Outputs      []*wire.TxOut
	ChangeScript []byte
	FeeRate      FeeRate
}

func (o SelectUtxosOpts) validate() error {
	if len(o.Outputs) <= 0 {
		return ErrEmptyOutputs
	}
	for _, out := range o.Outputs {
		if out.Value <= 0 {
			return ErrZeroOutputAmount
		}
	}
	if len(o.ChangeScript) <= 0 {
		return ErrNullChangeScript
	}
	if o.FeeRate < MinRelayFeeRate {
		return ErrFeeRateTooLow
	}
	return nil
}

// CoinSelection is the result of SelectUtxos. Change is zero when the
// remainder was too small for an output and has been added to Fee.
type CoinSelection struct {
	Utxos  []Utxo
	Fee    int64
	Change int64
	VSize  int
}

// SelectUtxos selects utxos largest first until they cover the outputs plus
// the fee of the resulting transaction, recomputed at every added input.
func SelectUtxos(opts SelectUtxosOpts) (*CoinSelection, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var targetAmount int64
	for _, out := range opts.Outputs {
		targetAmount += out.Value
	}

	utxos := make([]Utxo, len(opts.Utxos))
	copy(utxos, opts.Utxos)
	sort.SliceStable(utxos, func(i, j int) bool {
		if utxos[i].Value == utxos[j].Value {
			return utxos[i].Key() < utxos[j].Key()
		}
		return utxos[i].Value > utxos[j].Value
	})

	changeOutput := wire.NewTxOut(0, opts.ChangeScript)
	outputsWithChange := append(
		append(make([]*wire.TxOut, 0, len(opts.Outputs)+1), opts.Outputs...),
		changeOutput,
	)

	selected := make([]Utxo, 0)
	inputTypes := make([]TxInputType, 0)
	var (
		totalAmount int64
		feeNoChange int64
	)
	for _, utxo := range utxos {
		selected = append(selected, utxo)
		inputTypes = append(inputTypes, utxo.inputType())
		totalAmount += utxo.Value

		vsizeNoChange := EstimateTxSize(inputTypes, opts.Outputs)
		feeNoChange = opts.FeeRate.FeeForVSize(vsizeNoChange)
		if totalAmount < targetAmount+feeNoChange {
			continue
		}

		vsize := EstimateTxSize(inputTypes, outputsWithChange)
		fee := opts.FeeRate.FeeForVSize(vsize)
		change := totalAmount - targetAmount - fee
		if change < DustThreshold {
			return &CoinSelection{
				Utxos: selected,
				Fee:   totalAmount - targetAmount,
				VSize: vsizeNoChange,
			}, nil
		}
		return &CoinSelection{
			Utxos:  selected,
			Fee:    fee,
			Change: change,
			VSize:  vsize,
		}, nil
	}

	return nil, fmt.Errorf(
		"%w: need %d sats plus fees (%d), have %d",
		ErrInsufficientFunds, targetAmount, feeNoChange, totalAmount,
	)
}
