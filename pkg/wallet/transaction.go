package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	txVersion = 2
	// opt-in RBF
	txInSequence = wire.MaxTxInSequenceNum - 2
)

// Recipient is an output of a transaction to build.
type Recipient struct {
	Address string
	Amount  int64
}

// ChangeInfo is the change output of a transaction to build, with the data
// cosigners need to recognize it.
type ChangeInfo struct {
	Script        []byte
	RedeemScript  []byte
	WitnessScript []byte
	Derivations   []KeyDerivation
}

// BuildTransactionOpts is the struct given to BuildTransaction method
type BuildTransactionOpts struct {
	Utxos      []Utxo
	Recipients []Recipient
	Change     ChangeInfo
	FeeRate    FeeRate
	Network    *chaincfg.Params
}

func (o BuildTransactionOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	if len(o.Utxos) <= 0 {
		return ErrEmptyInputs
	}
	if len(o.Recipients) <= 0 {
		return ErrEmptyOutputs
	}
	for i, r := range o.Recipients {
		if r.Amount <= 0 {
			return ErrZeroOutputAmount
		}
		if r.Amount < DustThreshold {
			return fmt.Errorf(
				"%w: output %d amount %d is below %d sats",
				ErrDustOutput, i, r.Amount, DustThreshold,
			)
		}
		if _, err := DecodeAddress(r.Address, o.Network); err != nil {
			return err
		}
	}
	for _, u := range o.Utxos {
		if _, err := chainhash.NewHashFromStr(u.Txid); err != nil {
			return fmt.Errorf("%w: invalid utxo txid %s", ErrValidation, u.Txid)
		}
		if u.ScriptType == P2PKH && len(u.PrevTxHex) <= 0 {
			return fmt.Errorf("%w for utxo %s", ErrMissingPrevTx, u.Key())
		}
	}
	if len(o.Change.Script) <= 0 {
		return ErrNullChangeScript
	}
	if o.FeeRate < MinRelayFeeRate {
		return ErrFeeRateTooLow
	}
	return nil
}

// BuildTransactionResult is returned by BuildTransaction. ChangeIndex is -1
// if the change has been folded into the fee.
type BuildTransactionResult struct {
	Psbt        string
	Utxos       []Utxo
	Fee         int64
	Change      int64
	ChangeIndex int
	VSize       int
}

// BuildTransaction selects the utxos needed to pay the recipients and returns
// an unsigned PSBT carrying, for every input, the previous output, scripts
// and BIP32 derivations each signer needs.
func BuildTransaction(opts BuildTransactionOpts) (*BuildTransactionResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	outputs := make([]*wire.TxOut, 0, len(opts.Recipients)+1)
	for _, r := range opts.Recipients {
		script, _ := DecodeAddress(r.Address, opts.Network)
		outputs = append(outputs, wire.NewTxOut(r.Amount, script))
	}

	selection, err := SelectUtxos(SelectUtxosOpts{
		Utxos:        opts.Utxos,
		Outputs:      outputs,
		ChangeScript: opts.Change.Script,
		FeeRate:      opts.FeeRate,
	})
	if err != nil {
		return nil, err
	}

	changeIndex := -1
	if selection.Change > 0 {
		changeIndex = len(outputs)
		outputs = append(outputs, wire.NewTxOut(selection.Change, opts.Change.Script))
	}

	ins := make([]*wire.OutPoint, 0, len(selection.Utxos))
	sequences := make([]uint32, 0, len(selection.Utxos))
	for _, u := range selection.Utxos {
		hash, _ := chainhash.NewHashFromStr(u.Txid)
		ins = append(ins, wire.NewOutPoint(hash, u.Vout))
		sequences = append(sequences, txInSequence)
	}

	packet, err := psbt.New(ins, outputs, txVersion, 0, sequences)
	if err != nil {
		return nil, err
	}
	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, err
	}

	for i, u := range selection.Utxos {
		if err := addInputInfo(updater, i, u); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	if changeIndex >= 0 {
		if err := addOutputInfo(updater, changeIndex, opts.Change); err != nil {
			return nil, fmt.Errorf("change output: %w", err)
		}
	}

	if err := ValidateTransaction(ValidateTransactionOpts{
		Packet:  packet,
		FeeRate: opts.FeeRate,
	}); err != nil {
		return nil, err
	}

	b64, err := packet.B64Encode()
	if err != nil {
		return nil, err
	}

	return &BuildTransactionResult{
		Psbt:        b64,
		Utxos:       selection.Utxos,
		Fee:         selection.Fee,
		Change:      selection.Change,
		ChangeIndex: changeIndex,
		VSize:       selection.VSize,
	}, nil
}

func addInputInfo(updater *psbt.Updater, inIndex int, utxo Utxo) error {
	if utxo.ScriptType.IsSegwit() {
		prevOut := wire.NewTxOut(utxo.Value, utxo.Script)
		if err := updater.AddInWitnessUtxo(prevOut, inIndex); err != nil {
			return err
		}
	} else {
		prevTx, err := decodeTxHex(utxo.PrevTxHex)
		if err != nil {
			return err
		}
		if err := updater.AddInNonWitnessUtxo(prevTx, inIndex); err != nil {
			return err
		}
	}

	if err := updater.AddInSighashType(txscript.SigHashAll, inIndex); err != nil {
		return err
	}
	if len(utxo.RedeemScript) > 0 {
		if err := updater.AddInRedeemScript(utxo.RedeemScript, inIndex); err != nil {
			return err
		}
	}
	if len(utxo.WitnessScript) > 0 {
		if err := updater.AddInWitnessScript(utxo.WitnessScript, inIndex); err != nil {
			return err
		}
	}
	for _, d := range utxo.Derivations {
		if err := updater.AddInBip32Derivation(
			d.MasterFingerprint, d.Path, d.PublicKey, inIndex,
		); err != nil {
			return err
		}
	}
	return nil
}

func addOutputInfo(updater *psbt.Updater, outIndex int, change ChangeInfo) error {
	if len(change.RedeemScript) > 0 {
		if err := updater.AddOutRedeemScript(change.RedeemScript, outIndex); err != nil {
			return err
		}
	}
	if len(change.WitnessScript) > 0 {
		if err := updater.AddOutWitnessScript(change.WitnessScript, outIndex); err != nil {
			return err
		}
	}
	for _, d := range change.Derivations {
		if err := updater.AddOutBip32Derivation(
			d.MasterFingerprint, d.Path, d.PublicKey, outIndex,
		); err != nil {
			return err
		}
	}
	return nil
}
