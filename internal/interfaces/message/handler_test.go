package message_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-wallet/internal/interfaces/message"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

const (
	testPassword = "Sup3rS3cr3tP4ssw0rd!"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	testTxid = "0f2a9ad7a0c6f3f1e8f3f0b0c8a1e6cb1e4a6d0cf0e1b7b3a8a7a2c6d5e4f3a2"
)

var ctx = context.Background()

type reply struct {
	ID     string                 `json:"id"`
	Result map[string]interface{} `json:"result"`
	Error  *message.ErrorReply    `json:"error"`
}

func TestHandler(t *testing.T) {
	handler, explorerSvc := newTestHandler(t)

	res := call(t, handler, "wallet.status", nil)
	require.Nil(t, res.Error)
	require.Equal(t, false, res.Result["initialized"])
	require.Equal(t, chaincfg.RegressionNetParams.Name, res.Result["network"])

	res = call(t, handler, "wallet.genseed", map[string]interface{}{
		"entropy_size": 128,
	})
	require.Nil(t, res.Error)
	require.Len(t, strings.Fields(res.Result["mnemonic"].(string)), 12)

	res = call(t, handler, "address.next", nil)
	require.NotNil(t, res.Error)
	require.Equal(t, message.KindNotInitialized, res.Error.Kind)

	res = call(t, handler, "wallet.create", map[string]interface{}{
		"mnemonic": testMnemonic,
		"password": testPassword,
	})
	require.Nil(t, res.Error)
	require.NotEmpty(t, res.Result["wallet_id"])

	res = call(t, handler, "address.next", map[string]interface{}{
		"account_index": 0,
	})
	require.Nil(t, res.Error)
	require.Equal(t, "m/84'/1'/0'/0/0", res.Result["derivation_path"])
	require.Equal(t, "p2wpkh", res.Result["script_type"])
	recipient := res.Result["address"].(string)

	t.Run("accounts", func(t *testing.T) {
		res := call(t, handler, "account.create_singlesig", map[string]interface{}{
			"name":        "legacy",
			"script_type": "p2pkh",
		})
		require.Nil(t, res.Error)
		require.Equal(t, "singlesig", res.Result["kind"])
		require.Equal(t, "m/44'/1'/0'", res.Result["derivation_path"])
		require.NotEmpty(t, res.Result["xpub"])

		res = call(t, handler, "account.rename", map[string]interface{}{
			"account_index": 1,
			"name":          "old school",
		})
		require.Nil(t, res.Error)

		res = call(t, handler, "account.list", nil)
		require.Nil(t, res.Error)
		accounts := res.Result["accounts"].([]interface{})
		require.Len(t, accounts, 2)
		require.Equal(t, "old school", accounts[1].(map[string]interface{})["name"])

		res = call(t, handler, "account.xpub", nil)
		require.Nil(t, res.Error)
		require.Equal(t, true, res.Result["is_self"])
		require.Equal(t, "m/48'/1'/0'/2'", res.Result["derivation_path"])
	})

	t.Run("build transaction", func(t *testing.T) {
		explorerSvc.On("GetUnspentsForAddresses", mock.Anything, mock.Anything).
			Return(nil, nil)

		res := call(t, handler, "tx.build", map[string]interface{}{
			"recipients": []map[string]interface{}{
				{"address": recipient, "amount": "0.000000001"},
			},
			"sats_per_vbyte": 2,
		})
		require.NotNil(t, res.Error)
		require.Equal(t, message.KindValidation, res.Error.Kind)

		res = call(t, handler, "tx.build", map[string]interface{}{
			"recipients": []map[string]interface{}{
				{"address": recipient, "amount": "0.001"},
			},
			"sats_per_vbyte": 2,
		})
		require.NotNil(t, res.Error)
		require.Equal(t, message.KindInsufficientFunds, res.Error.Kind)
		require.False(t, res.Error.Retryable)
	})

	t.Run("metadata", func(t *testing.T) {
		res := call(t, handler, "metadata.set_note", map[string]interface{}{
			"txid": testTxid,
			"note": "rent",
		})
		require.Nil(t, res.Error)
		res = call(t, handler, "metadata.set_tags", map[string]interface{}{
			"key":  recipient,
			"tags": []string{"savings"},
		})
		require.Nil(t, res.Error)

		res = call(t, handler, "metadata.get", nil)
		require.Nil(t, res.Error)
		notes := res.Result["notes"].(map[string]interface{})
		require.Equal(t, "rent", notes[testTxid])
		tags := res.Result["tags"].(map[string]interface{})
		require.Equal(t, []interface{}{"savings"}, tags[recipient])
	})

	t.Run("backup", func(t *testing.T) {
		res := call(t, handler, "backup.export", map[string]interface{}{
			"backup_password": "b4ckupP4ssw0rd!",
		})
		require.Nil(t, res.Error)
		require.NotEmpty(t, res.Result["data"])

		res = call(t, handler, "backup.import", map[string]interface{}{
			"data":            res.Result["data"],
			"backup_password": "b4ckupP4ssw0rd!",
			"password":        testPassword,
		})
		require.NotNil(t, res.Error)
		require.Equal(t, message.KindValidation, res.Error.Kind)
	})

	t.Run("lock", func(t *testing.T) {
		res := call(t, handler, "wallet.lock", nil)
		require.Nil(t, res.Error)

		res = call(t, handler, "address.next", nil)
		require.NotNil(t, res.Error)
		require.Equal(t, message.KindWalletLocked, res.Error.Kind)

		res = call(t, handler, "wallet.unlock", map[string]interface{}{
			"password": "wrong password",
		})
		require.NotNil(t, res.Error)
		require.Equal(t, message.KindAuthentication, res.Error.Kind)
		require.Equal(t, wallet.ErrAuthentication.Error(), res.Error.Message)
		require.True(t, res.Error.Fatal)

		res = call(t, handler, "wallet.unlock", map[string]interface{}{
			"password": testPassword,
		})
		require.Nil(t, res.Error)
	})
}

func TestFailingRequests(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name         string
		request      string
		expectedKind string
	}{
		{
			name:         "malformed json",
			request:      `{"method": `,
			expectedKind: message.KindValidation,
		},
		{
			name:         "unknown method",
			request:      `{"id": "1", "method": "wallet.destroy"}`,
			expectedKind: message.KindValidation,
		},
		{
			name:         "unknown param",
			request:      `{"id": "1", "method": "wallet.genseed", "params": {"size": 128}}`,
			expectedKind: message.KindValidation,
		},
		{
			name:         "invalid entropy size",
			request:      `{"id": "1", "method": "wallet.genseed", "params": {"entropy_size": 100}}`,
			expectedKind: message.KindValidation,
		},
		{
			name:         "missing mnemonic",
			request:      `{"id": "1", "method": "wallet.create", "params": {"password": "password"}}`,
			expectedKind: message.KindValidation,
		},
		{
			name:         "invalid script type",
			request:      `{"id": "1", "method": "wallet.import_wif", "params": {"wif": "abc", "script_type": "p2tr"}}`,
			expectedKind: message.KindValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var res reply
			err := json.Unmarshal(handler.Handle(ctx, []byte(tt.request)), &res)
			require.NoError(t, err)
			require.NotEmpty(t, res.ID)
			require.Nil(t, res.Result)
			require.NotNil(t, res.Error)
			require.Equal(t, tt.expectedKind, res.Error.Kind)
		})
	}
}

func TestRequestID(t *testing.T) {
	handler, _ := newTestHandler(t)

	res := handler.HandleRequest(ctx, message.Request{
		ID:     "my-id",
		Method: "wallet.status",
	})
	require.Equal(t, "my-id", res.ID)
	require.Nil(t, res.Error)

	res = handler.HandleRequest(ctx, message.Request{Method: "wallet.status"})
	require.NotEmpty(t, res.ID)

	require.Contains(t, handler.Methods(), "tx.retry")
	require.Contains(t, handler.Methods(), "metadata.set_tags")
}

func call(
	t *testing.T, handler *message.Handler, method string, params interface{},
) reply {
	t.Helper()

	req := map[string]interface{}{
		"id":     method,
		"method": method,
	}
	if params != nil {
		req["params"] = params
	}
	buf, err := json.Marshal(req)
	require.NoError(t, err)

	var res reply
	require.NoError(t, json.Unmarshal(handler.Handle(ctx, buf), &res))
	require.Equal(t, method, res.ID)
	return res
}

func newTestHandler(t *testing.T) (*message.Handler, *mockExplorer) {
	t.Helper()

	explorerSvc := &mockExplorer{}
	explorerSvc.On("GetTransactions", mock.Anything, mock.Anything).
		Return(nil, nil).Maybe()

	engine, err := application.NewEngine(application.EngineOpts{
		Repository:      inmemory.NewWalletRepositoryImpl(),
		Explorer:        explorerSvc,
		Network:         &chaincfg.RegressionNetParams,
		GapLimit:        5,
		AutoLockTimeout: -1,
		KDFIterations:   wallet.MinKDFIterations,
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	handler, err := message.NewHandler(message.HandlerOpts{
		WalletSvc:      engine,
		AccountSvc:     engine,
		AddressSvc:     engine,
		TransactionSvc: engine,
		BackupSvc:      engine,
		MetadataSvc:    engine,
	})
	require.NoError(t, err)
	return handler, explorerSvc
}

type mockExplorer struct {
	mock.Mock
}

func (m *mockExplorer) GetUnspents(
	ctx context.Context, addr string,
) ([]explorer.Utxo, error) {
	args := m.Called(ctx, addr)

	var res []explorer.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetUnspentsForAddresses(
	ctx context.Context, addresses []string,
) ([]explorer.Utxo, error) {
	args := m.Called(ctx, addresses)

	var res []explorer.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetTransactions(
	ctx context.Context, addr string,
) ([]explorer.Transaction, error) {
	args := m.Called(ctx, addr)

	var res []explorer.Transaction
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Transaction)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetTransactionHex(
	ctx context.Context, txid string,
) (string, error) {
	args := m.Called(ctx, txid)
	return args.String(0), args.Error(1)
}

func (m *mockExplorer) GetFeeEstimates(
	ctx context.Context,
) (explorer.FeeEstimates, error) {
	args := m.Called(ctx)

	var res explorer.FeeEstimates
	if a := args.Get(0); a != nil {
		res = a.(explorer.FeeEstimates)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	args := m.Called(ctx, txHex)
	return args.String(0), args.Error(1)
}

func (m *mockExplorer) GetBlockHeight(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
