package application

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

type TransactionService interface {
	BuildTransaction(
		ctx context.Context, req BuildTransactionRequest,
	) (*BuildTransactionReply, error)
	SignTransaction(ctx context.Context, psbt string) (*SignTransactionReply, error)
	CombineTransactions(ctx context.Context, psbts []string) (string, error)
	FinalizeTransaction(
		ctx context.Context, psbt string,
	) (*FinalizeTransactionReply, error)
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
	ListPendingTransactions(ctx context.Context) ([]domain.PendingTransaction, error)
	RetryPendingTransaction(ctx context.Context, txid string) (string, error)
}

// BuildTransaction funds the recipients with the utxos of the account and
// returns the unsigned PSBT. Addresses found funded are marked as used. The
// change goes to the first unused internal address, which is marked used
// only if the transaction actually pays it.
func (e *Engine) BuildTransaction(
	ctx context.Context, req BuildTransactionRequest,
) (*BuildTransactionReply, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.Bind(ctx)
	defer cancel()

	if err := e.coordinator.EnsureAddressPool(ctx, s, req.AccountIndex); err != nil {
		return nil, err
	}
	w, err := e.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return nil, err
	}
	account, err := w.AccountByIndex(req.AccountIndex)
	if err != nil {
		return nil, err
	}

	utxos, err := e.accountUtxos(ctx, w, account, req.MinConfirmations)
	if err != nil {
		return nil, err
	}
	if len(utxos) <= 0 {
		return nil, fmt.Errorf("%w: no spendable utxos", wallet.ErrInsufficientFunds)
	}
	funded := make([]string, 0, len(utxos))
	for _, u := range utxos {
		funded = append(funded, u.Address)
	}
	if err := e.coordinator.MarkAddressesUsed(
		ctx, s, req.AccountIndex, funded,
	); err != nil {
		return nil, err
	}

	feeRate, err := e.feeRate(ctx, req)
	if err != nil {
		return nil, err
	}

	changeAddr, err := e.coordinator.NextChangeAddress(ctx, s, req.AccountIndex)
	if err != nil {
		return nil, err
	}
	changeDerivations, err := AddressDerivations(
		account, *changeAddr, w.MasterFingerprint, e.network,
	)
	if err != nil {
		return nil, err
	}

	result, err := wallet.BuildTransaction(wallet.BuildTransactionOpts{
		Utxos:      utxos,
		Recipients: req.Recipients,
		Change: wallet.ChangeInfo{
			Script:        changeAddr.Script,
			RedeemScript:  changeAddr.RedeemScript,
			WitnessScript: changeAddr.WitnessScript,
			Derivations:   changeDerivations,
		},
		FeeRate: feeRate,
		Network: e.network,
	})
	if err != nil {
		return nil, err
	}

	packet, err := wallet.DecodePsbt(result.Psbt)
	if err != nil {
		return nil, err
	}
	if err := wallet.ValidateTransaction(wallet.ValidateTransactionOpts{
		Packet:               packet,
		FeeRate:              feeRate,
		MaxFeeRateMultiplier: e.maxFeeRateMultiplier,
	}); err != nil {
		return nil, err
	}

	reply := &BuildTransactionReply{
		Psbt:    result.Psbt,
		Fee:     result.Fee,
		FeeRate: feeRate,
		Change:  result.Change,
		Inputs:  result.Utxos,
		VSize:   result.VSize,
	}
	if result.ChangeIndex >= 0 {
		if err := e.coordinator.MarkAddressesUsed(
			ctx, s, req.AccountIndex, []string{changeAddr.Address},
		); err != nil {
			return nil, err
		}
		reply.ChangeAddress = changeAddr.Address
	}

	log.WithFields(log.Fields{
		"account": req.AccountIndex,
		"inputs":  len(result.Utxos),
		"fee":     result.Fee,
	}).Debug("transaction built")
	return reply, nil
}

// SignTransaction adds the signatures of the seed and of the imported keys
// to every input they control.
func (e *Engine) SignTransaction(
	_ context.Context, psbt string,
) (*SignTransactionReply, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}

	signer, err := s.Signer()
	if err != nil && s.HasSeed() {
		return nil, err
	}
	importedKeys, err := s.ImportedKeys()
	if err != nil {
		return nil, err
	}
	keys := make([]*btcec.PrivateKey, 0, len(importedKeys))
	for _, key := range importedKeys {
		keys = append(keys, key)
	}

	signed, count, err := wallet.SignTransaction(wallet.SignTransactionOpts{
		Psbt:        psbt,
		Signer:      signer,
		PrivateKeys: keys,
	})
	if err != nil {
		return nil, err
	}
	complete, err := wallet.IsFullySigned(signed)
	if err != nil {
		return nil, err
	}

	return &SignTransactionReply{
		Psbt:         signed,
		SignedInputs: count,
		Complete:     complete,
	}, nil
}

// CombineTransactions merges the signatures of the partially signed copies
// of the same transaction.
func (e *Engine) CombineTransactions(
	_ context.Context, psbts []string,
) (string, error) {
	return wallet.CombineTransactions(psbts)
}

// FinalizeTransaction extracts the raw transaction from a fully signed PSBT.
func (e *Engine) FinalizeTransaction(
	_ context.Context, psbt string,
) (*FinalizeTransactionReply, error) {
	txHex, txid, err := wallet.FinalizeTransaction(
		wallet.FinalizeTransactionOpts{Psbt: psbt},
	)
	if err != nil {
		return nil, err
	}
	return &FinalizeTransactionReply{TxHex: txHex, Txid: txid}, nil
}

// BroadcastTransaction announces the transaction. If the explorer fails, the
// transaction is stored among the pending ones and ErrBroadcastFailed is
// returned along with the cause.
func (e *Engine) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	walletID, err := e.currentWalletID()
	if err != nil {
		return "", err
	}
	txid, err := txidFromHex(txHex)
	if err != nil {
		return "", err
	}

	if _, err := e.explorer.BroadcastTransaction(ctx, txHex); err != nil {
		// Storing the tx must not depend on the caller still waiting.
		storeCtx := context.WithoutCancel(ctx)
		if _, storeErr := e.repo.UpdateWallet(
			storeCtx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
				w.AddPendingTransaction(txid, txHex, err)
				return w, nil
			},
		); storeErr != nil {
			log.WithError(storeErr).Error("failed to store pending transaction")
			return "", fmt.Errorf("broadcast failed: %w", err)
		}

		log.WithError(err).WithField("txid", txid).
			Warn("broadcast failed, transaction stored as pending")
		return "", fmt.Errorf(
			"%w: txid %s: %w", domain.ErrBroadcastFailed, txid, err,
		)
	}

	if err := e.removePendingTransaction(ctx, walletID, txid); err != nil {
		log.WithError(err).WithField("txid", txid).
			Warn("failed to remove broadcasted transaction from pending ones")
	}

	log.WithField("txid", txid).Info("transaction broadcasted")
	return txid, nil
}

func (e *Engine) ListPendingTransactions(
	ctx context.Context,
) ([]domain.PendingTransaction, error) {
	w, err := e.loadWallet(ctx)
	if err != nil {
		return nil, err
	}
	return w.PendingTransactions, nil
}

// RetryPendingTransaction broadcasts again a stored transaction.
func (e *Engine) RetryPendingTransaction(
	ctx context.Context, txid string,
) (string, error) {
	w, err := e.loadWallet(ctx)
	if err != nil {
		return "", err
	}
	tx, err := w.PendingTransaction(txid)
	if err != nil {
		return "", err
	}
	return e.BroadcastTransaction(ctx, tx.TxHex)
}

func (e *Engine) removePendingTransaction(
	ctx context.Context, walletID, txid string,
) error {
	w, err := e.repo.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if _, err := w.PendingTransaction(txid); err != nil {
		return nil
	}
	_, err = e.repo.UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		w.RemovePendingTransaction(txid)
		return w, nil
	})
	return err
}

// accountUtxos fetches the utxos of every address of the account, with the
// scripts and derivations needed to spend them.
func (e *Engine) accountUtxos(
	ctx context.Context, w *domain.Wallet, account domain.Account,
	minConfirmations int64,
) ([]wallet.Utxo, error) {
	info := account.Info()
	addresses := info.Addresses()
	list := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		list = append(list, addr.Address)
	}

	unspents, err := e.explorer.GetUnspentsForAddresses(ctx, list)
	if err != nil {
		return nil, err
	}

	var tipHeight int64
	if minConfirmations > 0 && len(unspents) > 0 {
		if tipHeight, err = e.explorer.GetBlockHeight(ctx); err != nil {
			return nil, err
		}
	}

	threshold := 0
	if multisig, ok := account.(*domain.MultisigAccount); ok {
		threshold = multisig.Threshold
	}

	utxos := make([]wallet.Utxo, 0, len(unspents))
	for _, u := range unspents {
		confirmations := confirmationsOf(u, tipHeight)
		if confirmations < minConfirmations {
			continue
		}
		addr, ok := info.AddressByAddress(u.Address())
		if !ok {
			log.WithField("address", u.Address()).
				Warn("explorer returned utxo for unknown address, skipping")
			continue
		}

		derivations, err := AddressDerivations(
			account, *addr, w.MasterFingerprint, e.network,
		)
		if err != nil {
			return nil, err
		}

		utxo := wallet.Utxo{
			Txid:          u.Hash(),
			Vout:          u.Index(),
			Value:         u.Value(),
			Script:        addr.Script,
			Address:       addr.Address,
			Confirmations: confirmations,
			ScriptType:    addr.ScriptType,
			RedeemScript:  addr.RedeemScript,
			WitnessScript: addr.WitnessScript,
			Threshold:     threshold,
			Derivations:   derivations,
		}
		if addr.ScriptType == wallet.P2PKH {
			prevTx, err := e.explorer.GetTransactionHex(ctx, u.Hash())
			if err != nil {
				return nil, err
			}
			utxo.PrevTxHex = prevTx
		}
		utxos = append(utxos, utxo)
	}
	return utxos, nil
}

// feeRate returns the explicit rate of the request or the one estimated for
// its fee tier, never below the min relay fee.
func (e *Engine) feeRate(
	ctx context.Context, req BuildTransactionRequest,
) (wallet.FeeRate, error) {
	var rate wallet.FeeRate
	if req.SatsPerVByte > 0 {
		rate = wallet.FeeRateFromSatPerVByte(req.SatsPerVByte)
	} else {
		tier := req.FeeTier
		if tier == "" {
			tier = FeeTierNormal
		}
		target, ok := feeTierTargets[tier]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownFeeTier, tier)
		}
		estimates, err := e.explorer.GetFeeEstimates(ctx)
		if err != nil {
			return 0, err
		}
		satPerVByte, ok := estimates.ForTarget(target)
		if !ok {
			return 0, ErrMissingFeeEstimates
		}
		rate = wallet.FeeRateFromSatPerVByte(satPerVByte)
	}

	if rate < wallet.MinRelayFeeRate {
		rate = wallet.MinRelayFeeRate
	}
	return rate, nil
}

func confirmationsOf(u explorer.Utxo, tipHeight int64) int64 {
	if !u.IsConfirmed() {
		return 0
	}
	if tipHeight <= 0 || u.BlockHeight() <= 0 {
		return 1
	}
	return tipHeight - u.BlockHeight() + 1
}

func txidFromHex(txHex string) (string, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return "", ErrInvalidTxHex
	}
	tx, err := btcutil.NewTxFromBytes(buf)
	if err != nil {
		return "", ErrInvalidTxHex
	}
	return tx.Hash().String(), nil
}
