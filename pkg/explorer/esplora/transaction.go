package esplora

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tdex-network/tdex-wallet/pkg/explorer"
)

func (e *esplora) GetTransactions(
	ctx context.Context, addr string,
) ([]explorer.Transaction, error) {
	url := fmt.Sprintf("%s/address/%s/txs", e.apiURL, addr)
	resp, err := e.get(ctx, url)
	if err != nil {
		return nil, err
	}

	return parseTransactions(resp)
}

func (e *esplora) GetTransactionHex(ctx context.Context, hash string) (string, error) {
	url := fmt.Sprintf("%s/tx/%s/hex", e.apiURL, hash)
	resp, err := e.get(ctx, url)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (e *esplora) GetFeeEstimates(ctx context.Context) (explorer.FeeEstimates, error) {
	url := fmt.Sprintf("%s/fee-estimates", e.apiURL)
	resp, err := e.get(ctx, url)
	if err != nil {
		return nil, err
	}

	// targets are json object keys, hence strings
	var raw map[string]float64
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		return nil, fmt.Errorf("invalid fee estimates: %s", err)
	}
	estimates := make(explorer.FeeEstimates, len(raw))
	for k, v := range raw {
		target, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		estimates[target] = v
	}
	return estimates, nil
}

func (e *esplora) BroadcastTransaction(ctx context.Context, txHex string) (string, error) {
	url := fmt.Sprintf("%s/tx", e.apiURL)
	headers := map[string]string{
		"Content-Type": "text/plain",
	}

	resp, err := e.request(ctx, http.MethodPost, url, txHex, headers)
	if err != nil {
		// Nodes answer 400 to txs they won't accept, retrying doesn't help.
		if errors.Is(err, explorer.ErrBadRequest) {
			return "", fmt.Errorf("%w: %s", explorer.ErrTxRejected, err)
		}
		return "", err
	}

	return strings.TrimSpace(resp), nil
}

func parseTransactions(txList string) ([]explorer.Transaction, error) {
	var list []*tx
	if err := json.Unmarshal([]byte(txList), &list); err != nil {
		return nil, fmt.Errorf("invalid txs JSON: %s", err)
	}

	txs := make([]explorer.Transaction, 0, len(list))
	for _, t := range list {
		txs = append(txs, t)
	}
	return txs, nil
}
