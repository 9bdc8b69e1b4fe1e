package message

import (
	"context"
	"encoding/json"

	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func (h *Handler) createSingleSigAccount(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p createSingleSigAccountParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	scriptType, err := parseScriptType(p.ScriptType, wallet.P2WPKH)
	if err != nil {
		return nil, err
	}

	account, err := h.accountSvc.CreateSingleSigAccount(ctx, p.Name, scriptType)
	if err != nil {
		return nil, err
	}
	return newAccountResult(account), nil
}

func (h *Handler) createMultisigAccount(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p createMultisigAccountParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	scriptType, err := parseScriptType(p.ScriptType, wallet.P2WSH)
	if err != nil {
		return nil, err
	}

	account, err := h.accountSvc.CreateMultisigAccount(
		ctx, application.CreateMultisigAccountRequest{
			Name:         p.Name,
			ScriptType:   scriptType,
			Threshold:    p.Threshold,
			TotalSigners: p.TotalSigners,
			Cosigners:    parseCosigners(p.Cosigners),
		},
	)
	if err != nil {
		return nil, err
	}
	return newAccountResult(account), nil
}

func (h *Handler) renameAccount(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p renameAccountParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, h.accountSvc.RenameAccount(ctx, p.AccountIndex, p.Name)
}

func (h *Handler) listAccounts(
	ctx context.Context, _ json.RawMessage,
) (interface{}, error) {
	accounts, err := h.accountSvc.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]accountResult, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, newAccountResult(account))
	}
	return accountsResult{list}, nil
}

// cosignerInfo returns the entry to share with the other participants of a
// multisig account.
func (h *Handler) cosignerInfo(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p scriptTypeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	scriptType, err := parseScriptType(p.ScriptType, wallet.P2WSH)
	if err != nil {
		return nil, err
	}

	cosigner, err := h.accountSvc.GetCosignerInfo(ctx, scriptType)
	if err != nil {
		return nil, err
	}
	return newCosignerResult(*cosigner), nil
}
