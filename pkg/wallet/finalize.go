package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// FinalizeTransactionOpts is the struct given to FinalizeTransaction method
type FinalizeTransactionOpts struct {
	Psbt string
}

func (o FinalizeTransactionOpts) validate() error {
	if len(o.Psbt) <= 0 {
		return ErrNullPsbt
	}
	return nil
}

// FinalizeTransaction turns the partial signatures of every input into final
// scriptSig/witness, verifies them with the script engine and returns the
// raw transaction in hex format with its hash. It fails if any input lacks
// signatures.
func FinalizeTransaction(opts FinalizeTransactionOpts) (string, string, error) {
	if err := opts.validate(); err != nil {
		return "", "", err
	}

	packet, err := DecodePsbt(opts.Psbt)
	if err != nil {
		return "", "", err
	}
	if err := ValidateTransaction(ValidateTransactionOpts{Packet: packet}); err != nil {
		return "", "", err
	}

	for i := range packet.Inputs {
		if isFinalized(packet, i) {
			continue
		}
		if err := finalizeInput(packet, i); err != nil {
			return "", "", err
		}
	}

	tx, err := psbt.Extract(packet)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidPsbt, err)
	}
	if err := verifyTransaction(packet, tx); err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String(), nil
}

func finalizeInput(packet *psbt.Packet, inIndex int) error {
	prevOut, err := prevOutput(packet, inIndex)
	if err != nil {
		return err
	}
	in := &packet.Inputs[inIndex]

	scriptType, err := ScriptTypeFromScript(prevOut.PkScript, in.RedeemScript)
	if err != nil {
		return fmt.Errorf("input %d: %w", inIndex, err)
	}

	var (
		scriptSig []byte
		witness   wire.TxWitness
	)
	switch scriptType {
	case P2PKH, P2WPKH, P2SH_P2WPKH:
		sig := keyHashSignature(in, prevOut.PkScript)
		if sig == nil {
			return fmt.Errorf(
				"%w: input %d has no signature of its key", ErrInputUnderSigned, inIndex,
			)
		}
		if scriptType == P2PKH {
			scriptSig, err = txscript.NewScriptBuilder().
				AddData(sig.Signature).AddData(sig.PubKey).Script()
			if err != nil {
				return err
			}
			break
		}
		witness = wire.TxWitness{sig.Signature, sig.PubKey}

	case P2WSH, P2SH_P2WSH:
		witness, err = multisigWitness(in)
		if err != nil {
			return fmt.Errorf("input %d: %w", inIndex, err)
		}
	}

	if scriptType == P2SH_P2WPKH || scriptType == P2SH_P2WSH {
		scriptSig, err = txscript.NewScriptBuilder().
			AddData(in.RedeemScript).Script()
		if err != nil {
			return err
		}
	}

	var finalWitness []byte
	if len(witness) > 0 {
		var buf bytes.Buffer
		if err := psbt.WriteTxWitness(&buf, witness); err != nil {
			return err
		}
		finalWitness = buf.Bytes()
	}

	// Once final, the partial data of the input is cleared.
	*in = psbt.PInput{
		NonWitnessUtxo:     in.NonWitnessUtxo,
		WitnessUtxo:        in.WitnessUtxo,
		FinalScriptSig:     scriptSig,
		FinalScriptWitness: finalWitness,
		Unknowns:           in.Unknowns,
	}
	return nil
}

// multisigWitness orders the partial signatures as the keys in the witness
// script and returns [<empty> <sig>... <witness script>].
// keyHashSignature returns the partial signature made by the key whose hash
// is committed in the script of the input, if any.
func keyHashSignature(in *psbt.PInput, pkScript []byte) *psbt.PartialSig {
	script := pkScript
	if len(in.RedeemScript) > 0 {
		script = in.RedeemScript
	}

	var keyHash []byte
	switch {
	case txscript.IsPayToWitnessPubKeyHash(script):
		keyHash = script[2:22]
	case txscript.IsPayToPubKeyHash(script):
		keyHash = script[3:23]
	default:
		return nil
	}

	for _, sig := range in.PartialSigs {
		if bytes.Equal(btcutil.Hash160(sig.PubKey), keyHash) {
			return sig
		}
	}
	return nil
}

func multisigWitness(in *psbt.PInput) (wire.TxWitness, error) {
	if len(in.WitnessScript) <= 0 {
		return nil, ErrMissingWitnessScript
	}
	threshold, keys, err := ParseMultisigScript(
		in.WitnessScript, &chaincfg.MainNetParams,
	)
	if err != nil {
		return nil, err
	}

	sigsByKey := make(map[string][]byte, len(in.PartialSigs))
	for _, ps := range in.PartialSigs {
		sigsByKey[string(ps.PubKey)] = ps.Signature
	}

	witness := wire.TxWitness{nil}
	for _, key := range keys {
		if len(witness)-1 == threshold {
			break
		}
		if sig, ok := sigsByKey[string(key)]; ok {
			witness = append(witness, sig)
		}
	}
	if got := len(witness) - 1; got < threshold {
		return nil, fmt.Errorf(
			"%w: got %d of %d signatures", ErrInputUnderSigned, got, threshold,
		)
	}
	return append(witness, in.WitnessScript), nil
}

func verifyTransaction(packet *psbt.Packet, tx *wire.MsgTx) error {
	fetcher, err := prevOutputFetcher(packet)
	if err != nil {
		return err
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i := range tx.TxIn {
		prevOut, _ := prevOutput(packet, i)
		engine, err := txscript.NewEngine(
			prevOut.PkScript, tx, i, txscript.StandardVerifyFlags, nil,
			sigHashes, prevOut.Value, fetcher,
		)
		if err != nil {
			return err
		}
		if err := engine.Execute(); err != nil {
			return fmt.Errorf("%w: input %d: %s", ErrInvalidSignature, i, err)
		}
	}
	return nil
}

// CombineTransactions merges the partial signatures of PSBTs sharing the
// same unsigned transaction, as produced by independent signing sessions.
func CombineTransactions(psbts []string) (string, error) {
	if len(psbts) <= 0 {
		return "", ErrNoPsbtsToCombine
	}

	combined, err := DecodePsbt(psbts[0])
	if err != nil {
		return "", err
	}
	txHash := combined.UnsignedTx.TxHash()

	for _, b64 := range psbts[1:] {
		packet, err := DecodePsbt(b64)
		if err != nil {
			return "", err
		}
		if packet.UnsignedTx.TxHash() != txHash {
			return "", ErrDifferentTransactions
		}

		for i := range packet.Inputs {
			if isFinalized(combined, i) {
				continue
			}
			if isFinalized(packet, i) {
				combined.Inputs[i] = packet.Inputs[i]
				continue
			}
			for _, ps := range packet.Inputs[i].PartialSigs {
				if !hasPartialSig(combined.Inputs[i], ps.PubKey) {
					combined.Inputs[i].PartialSigs = append(
						combined.Inputs[i].PartialSigs, ps,
					)
				}
			}
		}
	}

	return combined.B64Encode()
}

func hasPartialSig(in psbt.PInput, pubkey []byte) bool {
	for _, ps := range in.PartialSigs {
		if bytes.Equal(ps.PubKey, pubkey) {
			return true
		}
	}
	return false
}

// IsFullySigned returns whether every input of the PSBT is either final or
// carries enough partial signatures to be finalized.
func IsFullySigned(b64 string) (bool, error) {
	packet, err := DecodePsbt(b64)
	if err != nil {
		return false, err
	}

	for i, in := range packet.Inputs {
		if isFinalized(packet, i) {
			continue
		}
		required := 1
		if len(in.WitnessScript) > 0 {
			threshold, _, err := ParseMultisigScript(
				in.WitnessScript, &chaincfg.MainNetParams,
			)
			if err != nil {
				return false, err
			}
			required = threshold
		}
		if len(in.PartialSigs) < required {
			return false, nil
		}
	}
	return true, nil
}
