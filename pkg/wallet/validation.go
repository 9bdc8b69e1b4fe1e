package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

const (
	// DefaultMaxFeeRateMultiplier bounds the paid fee rate with respect to
	// the one requested.
	DefaultMaxFeeRateMultiplier = 3
	// MaxAbsoluteFee is the highest fee (0.1 BTC) the wallet ever pays.
	MaxAbsoluteFee = 10000000
)

// ValidateTransactionOpts is the struct given to ValidateTransaction method.
// FeeRate is optional, if set the paid fee is checked against it.
type ValidateTransactionOpts struct {
	Packet               *psbt.Packet
	FeeRate              FeeRate
	MaxFeeRateMultiplier float64
}

func (o ValidateTransactionOpts) validate() error {
	if o.Packet == nil || o.Packet.UnsignedTx == nil {
		return ErrNullPsbt
	}
	if len(o.Packet.UnsignedTx.TxIn) <= 0 {
		return ErrEmptyInputs
	}
	if len(o.Packet.UnsignedTx.TxOut) <= 0 {
		return ErrEmptyOutputs
	}
	return nil
}

// ValidateTransaction performs the local sanity checks required before a
// transaction is signed or broadcast: no duplicate inputs, no zero or dust
// outputs except data carriers, and a fee neither too low to relay nor
// anomalously high.
func ValidateTransaction(opts ValidateTransactionOpts) error {
	if err := opts.validate(); err != nil {
		return err
	}
	packet := opts.Packet
	tx := packet.UnsignedTx

	seen := make(map[string]struct{}, len(tx.TxIn))
	var totalIn int64
	for i, in := range tx.TxIn {
		key := in.PreviousOutPoint.String()
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateInput, key)
		}
		seen[key] = struct{}{}

		prevOut, err := prevOutput(packet, i)
		if err != nil {
			return err
		}
		totalIn += prevOut.Value
	}

	var totalOut int64
	for i, out := range tx.TxOut {
		if txscript.GetScriptClass(out.PkScript) == txscript.NullDataTy {
			totalOut += out.Value
			continue
		}
		if out.Value <= 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutputAmount)
		}
		if out.Value < DustThreshold {
			return fmt.Errorf(
				"%w: output %d amount %d is below %d sats",
				ErrDustOutput, i, out.Value, DustThreshold,
			)
		}
		totalOut += out.Value
	}

	fee := totalIn - totalOut
	if fee < 0 {
		return ErrNegativeFee
	}

	vsize, err := estimatePacketSize(packet)
	if err != nil {
		return err
	}
	if minFee := MinRelayFeeRate.FeeForVSize(vsize); fee < minFee {
		return fmt.Errorf("%w: %d sats, need at least %d", ErrFeeTooLow, fee, minFee)
	}
	if fee > MaxAbsoluteFee {
		return fmt.Errorf("%w: %d sats", ErrFeeTooHigh, fee)
	}
	if opts.FeeRate > 0 {
		multiplier := opts.MaxFeeRateMultiplier
		if multiplier <= 0 {
			multiplier = DefaultMaxFeeRateMultiplier
		}
		expectedFee := opts.FeeRate.FeeForVSize(vsize)
		maxFee := int64(float64(expectedFee)*multiplier) + DustThreshold
		if fee > maxFee {
			return fmt.Errorf(
				"%w: %d sats, expected about %d", ErrFeeTooHigh, fee, expectedFee,
			)
		}
	}
	return nil
}
