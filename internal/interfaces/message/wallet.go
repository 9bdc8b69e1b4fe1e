package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func (h *Handler) genSeed(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p genSeedParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	mnemonic, err := h.walletSvc.GenSeed(ctx, p.EntropySize)
	if err != nil {
		return nil, err
	}
	return mnemonicResult{strings.Join(mnemonic, " ")}, nil
}

func (h *Handler) createWallet(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p createWalletParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	mnemonic, err := parseMnemonic(p.Mnemonic)
	if err != nil {
		return nil, err
	}

	walletID, err := h.walletSvc.CreateWallet(ctx, mnemonic, p.Passphrase, p.Password)
	if err != nil {
		return nil, err
	}
	return walletIDResult{walletID}, nil
}

func (h *Handler) importMnemonic(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p createWalletParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	mnemonic, err := parseMnemonic(p.Mnemonic)
	if err != nil {
		return nil, err
	}

	walletID, err := h.walletSvc.ImportMnemonic(ctx, mnemonic, p.Passphrase, p.Password)
	if err != nil {
		return nil, err
	}
	return walletIDResult{walletID}, nil
}

func (h *Handler) importWIF(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p importWIFParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.WIF) == "" {
		return nil, fmt.Errorf("%w: missing wif", wallet.ErrValidation)
	}
	scriptType, err := parseScriptType(p.ScriptType, wallet.P2WPKH)
	if err != nil {
		return nil, err
	}

	walletID, err := h.walletSvc.ImportWIF(
		ctx, strings.TrimSpace(p.WIF), scriptType, p.Password,
	)
	if err != nil {
		return nil, err
	}
	return walletIDResult{walletID}, nil
}

func (h *Handler) unlock(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p passwordParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, h.walletSvc.Unlock(ctx, p.Password)
}

func (h *Handler) lock(
	ctx context.Context, _ json.RawMessage,
) (interface{}, error) {
	return nil, h.walletSvc.Lock(ctx)
}

func (h *Handler) status(
	ctx context.Context, _ json.RawMessage,
) (interface{}, error) {
	status, err := h.walletSvc.Status(ctx)
	if err != nil {
		return nil, err
	}
	return statusResult{
		Initialized:       status.Initialized,
		Unlocked:          status.Unlocked,
		WalletID:          status.WalletID,
		Network:           status.Network,
		HasSeed:           status.HasSeed,
		MasterFingerprint: status.MasterFingerprint,
		Accounts:          status.Accounts,
		PendingTxs:        status.PendingTxs,
	}, nil
}

func (h *Handler) changePassword(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p changePasswordParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, h.walletSvc.ChangePassword(ctx, p.CurrentPassword, p.NewPassword)
}
