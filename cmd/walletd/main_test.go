package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/internal/interfaces/message"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func TestServe(t *testing.T) {
	appConfig := &application.Config{
		DBType:        application.DBInMemory,
		Explorer:      offlineExplorer{},
		Network:       &chaincfg.RegressionNetParams,
		KDFIterations: wallet.MinKDFIterations,
	}
	require.NoError(t, appConfig.Validate())
	t.Cleanup(appConfig.Close)

	handler, err := message.NewHandler(message.HandlerOpts{
		WalletSvc:      appConfig.WalletService(),
		AccountSvc:     appConfig.AccountService(),
		AddressSvc:     appConfig.AddressService(),
		TransactionSvc: appConfig.TransactionService(),
		BackupSvc:      appConfig.BackupService(),
		MetadataSvc:    appConfig.MetadataService(),
	})
	require.NoError(t, err)

	in := strings.Join([]string{
		`{"id": "1", "method": "wallet.status"}`,
		``,
		`not json`,
		`{"id": "3", "method": "wallet.genseed"}`,
	}, "\n")
	out := &bytes.Buffer{}

	err = serve(context.Background(), handler, strings.NewReader(in), out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	replies := make([]message.Reply, 0, len(lines))
	for _, line := range lines {
		var reply message.Reply
		require.NoError(t, json.Unmarshal([]byte(line), &reply))
		replies = append(replies, reply)
	}

	require.Equal(t, "1", replies[0].ID)
	require.Nil(t, replies[0].Error)
	require.NotNil(t, replies[1].Error)
	require.Equal(t, message.KindValidation, replies[1].Error.Kind)
	require.Equal(t, "3", replies[2].ID)
	require.Nil(t, replies[2].Error)
}

type offlineExplorer struct{}

func (offlineExplorer) GetUnspents(context.Context, string) ([]explorer.Utxo, error) {
	return nil, explorer.ErrNetwork
}

func (offlineExplorer) GetUnspentsForAddresses(
	context.Context, []string,
) ([]explorer.Utxo, error) {
	return nil, explorer.ErrNetwork
}

func (offlineExplorer) GetTransactions(
	context.Context, string,
) ([]explorer.Transaction, error) {
	return nil, explorer.ErrNetwork
}

func (offlineExplorer) GetTransactionHex(context.Context, string) (string, error) {
	return "", explorer.ErrNetwork
}

func (offlineExplorer) GetFeeEstimates(context.Context) (explorer.FeeEstimates, error) {
	return nil, explorer.ErrNetwork
}

func (offlineExplorer) BroadcastTransaction(context.Context, string) (string, error) {
	return "", explorer.ErrNetwork
}

func (offlineExplorer) GetBlockHeight(context.Context) (int64, error) {
	return 0, explorer.ErrNetwork
}
