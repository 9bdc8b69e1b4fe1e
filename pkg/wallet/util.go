package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func decodeTxHex(txHex string) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid tx hex", ErrValidation)
	}
	tx := wire.NewMsgTx(txVersion)
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("%w: invalid tx: %s", ErrValidation, err)
	}
	return tx, nil
}

// DecodePsbt parses a base64 encoded PSBT.
func DecodePsbt(b64 string) (*psbt.Packet, error) {
	if len(strings.TrimSpace(b64)) <= 0 {
		return nil, ErrNullPsbt
	}
	packet, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPsbt, err)
	}
	return packet, nil
}

func prevOutput(packet *psbt.Packet, inIndex int) (*wire.TxOut, error) {
	in := packet.Inputs[inIndex]
	if in.WitnessUtxo != nil {
		return in.WitnessUtxo, nil
	}
	if in.NonWitnessUtxo != nil {
		outIndex := packet.UnsignedTx.TxIn[inIndex].PreviousOutPoint.Index
		if int(outIndex) < len(in.NonWitnessUtxo.TxOut) {
			return in.NonWitnessUtxo.TxOut[outIndex], nil
		}
	}
	return nil, fmt.Errorf("%w for input %d", ErrMissingPrevOut, inIndex)
}

func prevOutputFetcher(packet *psbt.Packet) (*txscript.MultiPrevOutFetcher, error) {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range packet.UnsignedTx.TxIn {
		prevOut, err := prevOutput(packet, i)
		if err != nil {
			return nil, err
		}
		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOut)
	}
	return fetcher, nil
}

// inputTypeFromPsbt infers the script type, and multisig parameters, of an
// input from its previous output and scripts.
func inputTypeFromPsbt(packet *psbt.Packet, inIndex int) (TxInputType, error) {
	prevOut, err := prevOutput(packet, inIndex)
	if err != nil {
		return TxInputType{}, err
	}
	in := packet.Inputs[inIndex]
	redeemScript, witnessScript := in.RedeemScript, in.WitnessScript
	if isFinalized(packet, inIndex) {
		redeemScript, witnessScript = scriptsFromFinalInput(in)
	}

	scriptType, err := ScriptTypeFromScript(prevOut.PkScript, redeemScript)
	if err != nil {
		return TxInputType{}, fmt.Errorf("input %d: %w", inIndex, err)
	}
	inType := TxInputType{ScriptType: scriptType}
	if scriptType.IsMultisig() {
		threshold, keys, err := ParseMultisigScript(
			witnessScript, &chaincfg.MainNetParams,
		)
		if err != nil {
			return TxInputType{}, fmt.Errorf("input %d: %w", inIndex, err)
		}
		inType.Threshold = threshold
		inType.NumKeys = len(keys)
	}
	return inType, nil
}

func estimatePacketSize(packet *psbt.Packet) (int, error) {
	inTypes := make([]TxInputType, 0, len(packet.Inputs))
	for i := range packet.Inputs {
		inType, err := inputTypeFromPsbt(packet, i)
		if err != nil {
			return 0, err
		}
		inTypes = append(inTypes, inType)
	}
	return EstimateTxSize(inTypes, packet.UnsignedTx.TxOut), nil
}

// scriptsFromFinalInput recovers redeem and witness scripts from the final
// scriptSig and witness of an input, where they are the last items pushed.
func scriptsFromFinalInput(in psbt.PInput) ([]byte, []byte) {
	var redeemScript, witnessScript []byte
	if len(in.FinalScriptSig) > 0 {
		if pushes, err := txscript.PushedData(in.FinalScriptSig); err == nil &&
			len(pushes) > 0 {
			redeemScript = pushes[len(pushes)-1]
		}
	}
	if len(in.FinalScriptWitness) > 0 {
		if witness, err := parseWitness(in.FinalScriptWitness); err == nil &&
			len(witness) > 0 {
			witnessScript = witness[len(witness)-1]
		}
	}
	return redeemScript, witnessScript
}

func parseWitness(serialized []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(serialized)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(r, 0, txscript.MaxScriptSize, "witness")
		if err != nil {
			return nil, err
		}
		witness = append(witness, item)
	}
	return witness, nil
}
