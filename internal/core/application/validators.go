package application

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func validateAmount(satoshis int64) error {
	if satoshis <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", wallet.ErrValidation)
	}

	if satoshis > btcutil.MaxSatoshi {
		return fmt.Errorf(
			"%w: amount cannot be greater than %d",
			wallet.ErrValidation, int64(btcutil.MaxSatoshi),
		)
	}

	return nil
}

func validateRecipients(recipients []wallet.Recipient) error {
	if len(recipients) <= 0 {
		return wallet.ErrEmptyOutputs
	}

	var total int64
	for i, r := range recipients {
		if strings.TrimSpace(r.Address) == "" {
			return fmt.Errorf("%w: recipient %d has no address", wallet.ErrValidation, i)
		}
		if err := validateAmount(r.Amount); err != nil {
			return fmt.Errorf("recipient %d: %w", i, err)
		}
		total += r.Amount
		if err := validateAmount(total); err != nil {
			return err
		}
	}

	return nil
}

func (r BuildTransactionRequest) validate() error {
	if err := validateRecipients(r.Recipients); err != nil {
		return err
	}
	if r.SatsPerVByte < 0 {
		return fmt.Errorf("%w: fee rate must not be negative", wallet.ErrValidation)
	}
	if r.SatsPerVByte == 0 && r.FeeTier != "" {
		if _, ok := feeTierTargets[r.FeeTier]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeeTier, r.FeeTier)
		}
	}
	if r.MinConfirmations < 0 {
		return fmt.Errorf(
			"%w: min confirmations must not be negative", wallet.ErrValidation,
		)
	}
	return nil
}
