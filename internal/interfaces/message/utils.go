package message

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

var maxBTC = decimal.New(btcutil.MaxSatoshi, -8)

func parseScriptType(str string, defaultType wallet.ScriptType) (wallet.ScriptType, error) {
	if strings.TrimSpace(str) == "" {
		return defaultType, nil
	}
	return wallet.ParseScriptType(str)
}

func parseMnemonic(str string) ([]string, error) {
	words := strings.Fields(str)
	if len(words) <= 0 {
		return nil, fmt.Errorf("%w: missing mnemonic", wallet.ErrValidation)
	}
	return words, nil
}

// btcToSats converts a positive BTC amount with at most 8 decimals.
func btcToSats(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", wallet.ErrValidation)
	}
	if amount.GreaterThan(maxBTC) {
		return 0, fmt.Errorf("%w: amount exceeds max supply", wallet.ErrValidation)
	}
	sats := amount.Shift(8)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, fmt.Errorf(
			"%w: amount has more than 8 decimal places", wallet.ErrValidation,
		)
	}
	return sats.IntPart(), nil
}

func newAmountResult(sats int64) amountResult {
	return amountResult{
		Sats: sats,
		BTC:  decimal.New(sats, -8).StringFixed(8),
	}
}

func parseCosigners(list []cosignerParams) []domain.Cosigner {
	cosigners := make([]domain.Cosigner, 0, len(list))
	for _, c := range list {
		cosigners = append(cosigners, domain.Cosigner{
			Name:           c.Name,
			Fingerprint:    strings.ToLower(strings.TrimSpace(c.Fingerprint)),
			Xpub:           strings.TrimSpace(c.Xpub),
			DerivationPath: strings.TrimSpace(c.DerivationPath),
		})
	}
	return cosigners
}

func parseRecipients(list []recipientParams) ([]wallet.Recipient, error) {
	if len(list) <= 0 {
		return nil, wallet.ErrEmptyOutputs
	}
	recipients := make([]wallet.Recipient, 0, len(list))
	for i, r := range list {
		amount, err := btcToSats(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
		recipients = append(recipients, wallet.Recipient{
			Address: strings.TrimSpace(r.Address),
			Amount:  amount,
		})
	}
	return recipients, nil
}

func newCosignerResult(c domain.Cosigner) cosignerResult {
	return cosignerResult{
		Name:           c.Name,
		Fingerprint:    c.Fingerprint,
		Xpub:           c.Xpub,
		DerivationPath: c.DerivationPath,
		IsSelf:         c.IsSelf,
	}
}

func newAccountResult(account domain.Account) accountResult {
	info := account.Info()
	res := accountResult{
		Index:          info.Index,
		Kind:           string(account.Kind()),
		Name:           info.Name,
		ScriptType:     info.ScriptType.String(),
		DerivationPath: info.DerivationPath,
		Usable:         info.IsUsable(),
		UnusableReason: info.UnusableReason,
	}

	switch a := account.(type) {
	case *domain.SingleSigAccount:
		res.Xpub = a.Xpub
		res.Imported = a.IsImported()
	case *domain.MultisigAccount:
		res.Threshold = a.Threshold
		res.TotalSigners = a.TotalSigners
		res.Cosigners = make([]cosignerResult, 0, len(a.Cosigners))
		for _, c := range a.Cosigners {
			res.Cosigners = append(res.Cosigners, newCosignerResult(c))
		}
	}
	return res
}

func newAddressResult(addr domain.Address) addressResult {
	return addressResult{
		Address:        addr.Address,
		Chain:          addr.Chain,
		Index:          addr.Index,
		DerivationPath: addr.DerivationPath,
		ScriptType:     addr.ScriptType.String(),
		Used:           addr.Used,
	}
}

func newBuildTransactionResult(
	reply *application.BuildTransactionReply,
) buildTransactionResult {
	inputs := make([]inputResult, 0, len(reply.Inputs))
	for _, u := range reply.Inputs {
		inputs = append(inputs, inputResult{
			Txid:    u.Txid,
			Vout:    u.Vout,
			Address: u.Address,
			Value:   newAmountResult(u.Value),
		})
	}
	return buildTransactionResult{
		Psbt:          reply.Psbt,
		Fee:           newAmountResult(reply.Fee),
		SatsPerVByte:  float64(reply.FeeRate) / 1000,
		VSize:         reply.VSize,
		Change:        newAmountResult(reply.Change),
		ChangeAddress: reply.ChangeAddress,
		Inputs:        inputs,
	}
}
