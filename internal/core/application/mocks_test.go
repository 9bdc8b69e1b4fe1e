package application_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
)

// **** Explorer ****

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

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
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

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetBlockHeight(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	var res int64
	if a := args.Get(0); a != nil {
		res = a.(int64)
	}
	return res, args.Error(1)
}

// **** Utxo ****

type mockUtxo struct {
	hash      string
	index     uint32
	value     int64
	address   string
	confirmed bool
	height    int64
}

func (u mockUtxo) Hash() string       { return u.hash }
func (u mockUtxo) Index() uint32      { return u.index }
func (u mockUtxo) Value() int64       { return u.value }
func (u mockUtxo) Address() string    { return u.address }
func (u mockUtxo) IsConfirmed() bool  { return u.confirmed }
func (u mockUtxo) BlockHeight() int64 { return u.height }

// **** Transaction ****

type mockTransaction struct {
	hash string
}

func (t mockTransaction) Hash() string                 { return t.hash }
func (t mockTransaction) Inputs() []explorer.TxInput   { return nil }
func (t mockTransaction) Outputs() []explorer.TxOutput { return nil }
func (t mockTransaction) Fee() int64                   { return 0 }
func (t mockTransaction) Weight() int                  { return 0 }
func (t mockTransaction) IsConfirmed() bool            { return true }
func (t mockTransaction) BlockHeight() int64           { return 1 }
