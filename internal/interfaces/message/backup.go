package message

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func (h *Handler) exportBackup(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p exportBackupParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	data, err := h.backupSvc.ExportBackup(ctx, p.BackupPassword)
	if err != nil {
		return nil, err
	}
	return backupResult{data}, nil
}

func (h *Handler) importBackup(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p importBackupParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Data) <= 0 {
		return nil, fmt.Errorf("%w: missing backup data", wallet.ErrValidation)
	}

	reply, err := h.backupSvc.ImportBackup(ctx, p.Data, p.BackupPassword, p.Password)
	if err != nil {
		return nil, err
	}
	return importBackupResult{
		WalletID: reply.WalletID,
		Version:  reply.Version,
		Warnings: reply.Warnings,
	}, nil
}
