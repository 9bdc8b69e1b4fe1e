package wallet

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

const (
	// DustThreshold is the lowest value of an output the wallet creates or
	// accepts, in satoshis.
	DustThreshold = 546
	// MinRelayFeeRate is the minimum fee rate (1 sat/vB) a node relays.
	MinRelayFeeRate FeeRate = 1000

	// hash + index + sequence
	inputBaseSize = 32 + 4 + 4
	// OP_DATA_73 + 72 bytes DER signature + 1 byte sighash
	signatureSize = 1 + 73
	// OP_DATA_33 + 33 bytes compressed pubkey
	pubkeySize = 1 + 33
	// OP_DATA_34 + OP_0 + OP_DATA_32 + 32 bytes script hash
	nestedP2WSHScriptSigSize = 1 + 1 + 1 + 32
)

// FeeRate is expressed in satoshis per kilo virtual byte.
type FeeRate int64

// FeeRateFromSatPerVByte converts a sat/vB rate, like those returned by
// indexers, rounding up.
func FeeRateFromSatPerVByte(satPerVByte float64) FeeRate {
	rate := FeeRate(satPerVByte * 1000)
	if float64(rate) < satPerVByte*1000 {
		rate++
	}
	return rate
}

// FeeForVSize returns the fee for a transaction of the given virtual size,
// rounded up.
func (r FeeRate) FeeForVSize(vsize int) int64 {
	return (int64(vsize)*int64(r) + 999) / 1000
}

// TxInputType describes an input for size estimation. Threshold and NumKeys
// are only meaningful for multisig script types.
type TxInputType struct {
	ScriptType ScriptType
	Threshold  int
	NumKeys    int
}

// EstimateTxSize makes a worst case estimation of the virtual size of a
// signed transaction spending inputs of the given types to the given outputs.
func EstimateTxSize(inputs []TxInputType, outputs []*wire.TxOut) int {
	baseSize := calcTxBaseSize(inputs, outputs)
	totalSize := baseSize + calcTxWitnessSize(inputs)

	weight := baseSize*3 + totalSize
	vsize := (weight + 3) / 4

	return vsize
}

func calcTxBaseSize(inputs []TxInputType, outputs []*wire.TxOut) int {
	insSize := 0
	for _, in := range inputs {
		switch in.ScriptType {
		case P2PKH:
			insSize += txsizes.RedeemP2PKHInputSize
		case P2SH_P2WPKH:
			insSize += txsizes.RedeemNestedP2WPKHInputSize
		case P2WPKH:
			insSize += txsizes.RedeemP2WPKHInputSize
		case P2SH_P2WSH:
			insSize += inputBaseSize + 1 + nestedP2WSHScriptSigSize
		case P2WSH:
			insSize += inputBaseSize + 1
		}
	}

	// version + locktime
	return 8 +
		wire.VarIntSerializeSize(uint64(len(inputs))) +
		wire.VarIntSerializeSize(uint64(len(outputs))) +
		insSize + txsizes.SumOutputSerializeSizes(outputs)
}

func calcTxWitnessSize(inputs []TxInputType) int {
	hasWitness := false
	for _, in := range inputs {
		if in.ScriptType.IsSegwit() {
			hasWitness = true
			break
		}
	}
	if !hasWitness {
		return 0
	}

	// marker + flag
	size := 2
	for _, in := range inputs {
		switch in.ScriptType {
		case P2SH_P2WPKH, P2WPKH:
			size += txsizes.RedeemP2WPKHInputWitnessWeight
		case P2SH_P2WSH, P2WSH:
			size += multisigWitnessSize(in.Threshold, in.NumKeys)
		default:
			// empty witness stack of non-segwit inputs
			size++
		}
	}
	return size
}

// multisigWitnessSize is the size of
// [<empty> <sig_1> ... <sig_m> <OP_m <pubkey_1> ... <pubkey_n> OP_n OP_CHECKMULTISIG>]
func multisigWitnessSize(threshold, numKeys int) int {
	witnessScriptSize := 1 + numKeys*pubkeySize + 1 + 1
	return 1 + 1 + threshold*signatureSize +
		wire.VarIntSerializeSize(uint64(witnessScriptSize)) + witnessScriptSize
}
