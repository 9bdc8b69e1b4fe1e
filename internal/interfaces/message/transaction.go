package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func (h *Handler) buildTransaction(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p buildTransactionParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	recipients, err := parseRecipients(p.Recipients)
	if err != nil {
		return nil, err
	}

	reply, err := h.transactionSvc.BuildTransaction(
		ctx, application.BuildTransactionRequest{
			AccountIndex:     p.AccountIndex,
			Recipients:       recipients,
			FeeTier:          strings.ToLower(strings.TrimSpace(p.FeeTier)),
			SatsPerVByte:     p.SatsPerVByte,
			MinConfirmations: p.MinConfirmations,
		},
	)
	if err != nil {
		return nil, err
	}
	return newBuildTransactionResult(reply), nil
}

func (h *Handler) signTransaction(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p psbtParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	reply, err := h.transactionSvc.SignTransaction(ctx, strings.TrimSpace(p.Psbt))
	if err != nil {
		return nil, err
	}
	return signTransactionResult{
		Psbt:         reply.Psbt,
		SignedInputs: reply.SignedInputs,
		Complete:     reply.Complete,
	}, nil
}

func (h *Handler) combineTransactions(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p combineParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	combined, err := h.transactionSvc.CombineTransactions(ctx, p.Psbts)
	if err != nil {
		return nil, err
	}
	return psbtResult{combined}, nil
}

func (h *Handler) finalizeTransaction(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p psbtParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	reply, err := h.transactionSvc.FinalizeTransaction(ctx, strings.TrimSpace(p.Psbt))
	if err != nil {
		return nil, err
	}
	return finalizeTransactionResult{reply.TxHex, reply.Txid}, nil
}

func (h *Handler) broadcastTransaction(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p txHexParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.TxHex) == "" {
		return nil, fmt.Errorf("%w: missing tx hex", wallet.ErrValidation)
	}

	txid, err := h.transactionSvc.BroadcastTransaction(ctx, strings.TrimSpace(p.TxHex))
	if err != nil {
		return nil, err
	}
	return txidResult{txid}, nil
}

func (h *Handler) listPendingTransactions(
	ctx context.Context, _ json.RawMessage,
) (interface{}, error) {
	txs, err := h.transactionSvc.ListPendingTransactions(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]pendingTxResult, 0, len(txs))
	for _, tx := range txs {
		list = append(list, pendingTxResult{
			Txid:      tx.Txid,
			TxHex:     tx.TxHex,
			Error:     tx.Error,
			Attempts:  tx.Attempts,
			CreatedAt: tx.CreatedAt,
			UpdatedAt: tx.UpdatedAt,
		})
	}
	return pendingTxsResult{list}, nil
}

func (h *Handler) retryPendingTransaction(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p txidParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	txid, err := h.transactionSvc.RetryPendingTransaction(ctx, strings.TrimSpace(p.Txid))
	if err != nil {
		return nil, err
	}
	return txidResult{txid}, nil
}
