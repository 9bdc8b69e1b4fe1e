package application_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

const (
	testPassword = "Sup3rS3cr3tP4ssw0rd!"
	testGapLimit = 5
)

var (
	ctx          = context.Background()
	testNetwork  = &chaincfg.RegressionNetParams
	testMnemonic = strings.Fields(
		"abandon abandon abandon abandon abandon abandon " +
			"abandon abandon abandon abandon abandon about",
	)
	testTxid = strings.Repeat("ab", 32)
)

func TestWalletLifecycle(t *testing.T) {
	engine, _ := newTestEngine(t)

	status, err := engine.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.Initialized)
	require.Equal(t, testNetwork.Name, status.Network)

	_, err = engine.NextAddress(ctx, 0)
	require.ErrorIs(t, err, application.ErrWalletNotInitialized)

	_, err = engine.CreateWallet(ctx, []string{"test"}, "", testPassword)
	require.ErrorIs(t, err, wallet.ErrInvalidMnemonic)

	walletID, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, walletID)

	_, err = engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.ErrorIs(t, err, application.ErrWalletAlreadyInitialized)

	status, err = engine.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Initialized)
	require.True(t, status.Unlocked)
	require.True(t, status.HasSeed)
	require.Equal(t, walletID, status.WalletID)
	require.Equal(t, 1, status.Accounts)
	require.Len(t, status.MasterFingerprint, 8)

	require.NoError(t, engine.Lock(ctx))
	status, err = engine.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.Unlocked)

	_, err = engine.NextAddress(ctx, 0)
	require.ErrorIs(t, err, application.ErrWalletLocked)

	err = engine.Unlock(ctx, "wrong password")
	require.ErrorIs(t, err, wallet.ErrAuthentication)

	require.NoError(t, engine.Unlock(ctx, testPassword))
	require.ErrorIs(t, engine.Unlock(ctx, testPassword), application.ErrWalletUnlocked)

	addr, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr.Address, "bcrt1q"))
}

func TestGenSeed(t *testing.T) {
	engine, _ := newTestEngine(t)

	mnemonic, err := engine.GenSeed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, mnemonic, 24)

	mnemonic, err = engine.GenSeed(ctx, 128)
	require.NoError(t, err)
	require.Len(t, mnemonic, 12)

	_, err = engine.GenSeed(ctx, 100)
	require.ErrorIs(t, err, wallet.ErrValidation)
}

func TestEngineLoadsStoredWallet(t *testing.T) {
	repo := inmemory.NewWalletRepositoryImpl()
	explorerSvc := newMockExplorer()

	engine := newTestEngineWithRepo(t, repo, explorerSvc, -1)
	walletID, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)
	addr, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	engine.WaitForSync()

	restarted := newTestEngineWithRepo(t, repo, explorerSvc, -1)
	status, err := restarted.Status(ctx)
	require.NoError(t, err)
	require.True(t, status.Initialized)
	require.False(t, status.Unlocked)
	require.Equal(t, walletID, status.WalletID)

	require.NoError(t, restarted.Unlock(ctx, testPassword))
	restartedAddr, err := restarted.NextAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, addr.Address, restartedAddr.Address)
}

func TestAutoLock(t *testing.T) {
	engine := newTestEngineWithRepo(
		t, inmemory.NewWalletRepositoryImpl(), newMockExplorer(), 100*time.Millisecond,
	)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := engine.Status(ctx)
		return err == nil && !status.Unlocked
	}, 5*time.Second, 20*time.Millisecond)

	_, err = engine.NextAddress(ctx, 0)
	require.ErrorIs(t, err, application.ErrWalletLocked)
}

func TestAddresses(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)

	first, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	second, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, first.Address, second.Address)
	require.Equal(t, wallet.ExternalChain, first.Chain)
	require.Zero(t, first.Index)
	require.Equal(t, "m/84'/1'/0'/0/0", first.DerivationPath)

	addresses, err := engine.ListAddresses(ctx, 0)
	require.NoError(t, err)
	require.Len(t, addresses, 2*testGapLimit)

	change, err := engine.ChangeAddress(ctx, 0)
	require.NoError(t, err)
	require.True(t, change.IsChange())
	require.True(t, change.Used)

	nextChange, err := engine.ChangeAddress(ctx, 0)
	require.NoError(t, err)
	require.NotEqual(t, change.Address, nextChange.Address)

	addresses, err = engine.ListAddresses(ctx, 0)
	require.NoError(t, err)
	require.Len(t, addresses, 2*testGapLimit+2)

	_, err = engine.NextAddress(ctx, 7)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSyncMarksUsedAddresses(t *testing.T) {
	usedAddr := deriveTestAddress(t, testMnemonic, 0)

	explorerSvc := &mockExplorer{}
	explorerSvc.On("GetTransactions", mock.Anything, usedAddr).
		Return([]explorer.Transaction{mockTransaction{testTxid}}, nil)
	explorerSvc.On("GetTransactions", mock.Anything, mock.Anything).
		Return(nil, nil).Maybe()

	engine := newTestEngineWithRepo(
		t, inmemory.NewWalletRepositoryImpl(), explorerSvc, -1,
	)
	_, err := engine.ImportMnemonic(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)
	engine.WaitForSync()

	accounts, err := engine.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	external := accounts[0].Info().External.Addresses
	require.Len(t, external, testGapLimit+1)
	require.Equal(t, usedAddr, external[0].Address)
	require.True(t, external[0].Used)

	next, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(1), next.Index)
}

func TestCreateSingleSigAccounts(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)

	tests := []struct {
		scriptType   wallet.ScriptType
		expectedPath string
		prefix       string
	}{
		{wallet.P2PKH, "m/44'/1'/0'", "mn"},
		{wallet.P2SH_P2WPKH, "m/49'/1'/0'", "2"},
		{wallet.P2WPKH, "m/84'/1'/1'", "b"},
	}

	for i, tt := range tests {
		account, err := engine.CreateSingleSigAccount(ctx, "", tt.scriptType)
		require.NoError(t, err)
		info := account.Info()
		require.Equal(t, uint32(i+1), info.Index)
		require.Equal(t, fmt.Sprintf("Account %d", i+1), info.Name)
		require.Equal(t, tt.expectedPath, info.DerivationPath)

		addr, err := engine.NextAddress(ctx, info.Index)
		require.NoError(t, err)
		require.Contains(t, tt.prefix, addr.Address[:1])
	}

	_, err = engine.CreateSingleSigAccount(ctx, "", wallet.P2WSH)
	require.ErrorIs(t, err, wallet.ErrInvalidScriptType)

	require.NoError(t, engine.RenameAccount(ctx, 1, "savings"))
	require.ErrorIs(
		t, engine.RenameAccount(ctx, 1, strings.Repeat("x", 65)),
		domain.ErrInvalidAccountName,
	)
	accounts, err := engine.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 4)
	require.Equal(t, "savings", accounts[1].Info().Name)
}

func TestBuildSignBroadcast(t *testing.T) {
	engine, explorerSvc := newTestEngine(t)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)

	funded, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	savings, err := engine.CreateSingleSigAccount(ctx, "savings", wallet.P2WPKH)
	require.NoError(t, err)
	recipient, err := engine.NextAddress(ctx, savings.Info().Index)
	require.NoError(t, err)

	explorerSvc.On("GetUnspentsForAddresses", mock.Anything, mock.Anything).
		Return([]explorer.Utxo{mockUtxo{
			hash:      testTxid,
			value:     100000,
			address:   funded.Address,
			confirmed: true,
			height:    100,
		}}, nil)
	explorerSvc.On("GetFeeEstimates", mock.Anything).
		Return(explorer.FeeEstimates{1: 20, 6: 5}, nil)

	built, err := engine.BuildTransaction(ctx, application.BuildTransactionRequest{
		Recipients: []wallet.Recipient{{Address: recipient.Address, Amount: 50000}},
	})
	require.NoError(t, err)
	require.Equal(t, wallet.FeeRate(5000), built.FeeRate)
	require.Equal(t, built.FeeRate.FeeForVSize(built.VSize), built.Fee)
	require.Equal(t, 100000-50000-built.Fee, built.Change)
	require.NotEmpty(t, built.ChangeAddress)
	require.Len(t, built.Inputs, 1)

	addresses, err := engine.ListAddresses(ctx, 0)
	require.NoError(t, err)
	var changeUsed bool
	for _, addr := range addresses {
		if addr.Address == built.ChangeAddress {
			changeUsed = addr.Used
		}
	}
	require.True(t, changeUsed)

	// The funded address is never handed out again.
	next, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	require.NotEqual(t, funded.Address, next.Address)

	signed, err := engine.SignTransaction(ctx, built.Psbt)
	require.NoError(t, err)
	require.Equal(t, 1, signed.SignedInputs)
	require.True(t, signed.Complete)

	final, err := engine.FinalizeTransaction(ctx, signed.Psbt)
	require.NoError(t, err)
	require.NotEmpty(t, final.TxHex)
	require.Len(t, final.Txid, 64)

	explorerSvc.On("BroadcastTransaction", mock.Anything, final.TxHex).
		Return("", fmt.Errorf("%w: connection refused", explorer.ErrNetwork)).Once()
	explorerSvc.On("BroadcastTransaction", mock.Anything, final.TxHex).
		Return(final.Txid, nil)

	_, err = engine.BroadcastTransaction(ctx, final.TxHex)
	require.ErrorIs(t, err, domain.ErrBroadcastFailed)
	require.ErrorIs(t, err, explorer.ErrNetwork)

	pending, err := engine.ListPendingTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, final.Txid, pending[0].Txid)
	require.Equal(t, 1, pending[0].Attempts)

	txid, err := engine.RetryPendingTransaction(ctx, final.Txid)
	require.NoError(t, err)
	require.Equal(t, final.Txid, txid)

	pending, err = engine.ListPendingTransactions(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = engine.RetryPendingTransaction(ctx, final.Txid)
	require.ErrorIs(t, err, domain.ErrPendingTxNotFound)

	_, err = engine.BroadcastTransaction(ctx, "not a tx")
	require.ErrorIs(t, err, application.ErrInvalidTxHex)
}

func TestFailingBuildTransaction(t *testing.T) {
	engine, explorerSvc := newTestEngine(t)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)
	funded, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)

	explorerSvc.On("GetUnspentsForAddresses", mock.Anything, mock.Anything).
		Return([]explorer.Utxo{mockUtxo{
			hash:    testTxid,
			value:   10000,
			address: funded.Address,
		}}, nil)
	explorerSvc.On("GetBlockHeight", mock.Anything).Return(int64(200), nil)

	recipients := []wallet.Recipient{{Address: funded.Address, Amount: 50000}}

	_, err = engine.BuildTransaction(ctx, application.BuildTransactionRequest{
		Recipients:   recipients,
		SatsPerVByte: 1,
	})
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	_, err = engine.BuildTransaction(ctx, application.BuildTransactionRequest{
		Recipients:       []wallet.Recipient{{Address: funded.Address, Amount: 5000}},
		SatsPerVByte:     1,
		MinConfirmations: 1,
	})
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	_, err = engine.BuildTransaction(ctx, application.BuildTransactionRequest{
		Recipients: recipients,
		FeeTier:    "asap",
	})
	require.ErrorIs(t, err, application.ErrUnknownFeeTier)

	// Failed builds don't consume change addresses.
	for i := 0; i < 5*testGapLimit; i++ {
		_, err = engine.BuildTransaction(ctx, application.BuildTransactionRequest{
			Recipients:   recipients,
			SatsPerVByte: 1,
		})
		require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
	}
	addresses, err := engine.ListAddresses(ctx, 0)
	require.NoError(t, err)
	for _, addr := range addresses {
		if addr.IsChange() {
			require.False(t, addr.Used, addr.Address)
		}
	}
	change, err := engine.ChangeAddress(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, change.Index)
}

func TestChangePassword(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)
	require.NoError(t, engine.SetNote(ctx, testTxid, "rent"))

	newPassword := "n3wP4ssw0rd!"
	err = engine.ChangePassword(ctx, "wrong password", newPassword)
	require.ErrorIs(t, err, wallet.ErrAuthentication)

	require.NoError(t, engine.ChangePassword(ctx, testPassword, newPassword))
	require.NoError(t, engine.SetTags(ctx, testTxid, []string{"home"}))

	require.NoError(t, engine.Lock(ctx))
	require.ErrorIs(t, engine.Unlock(ctx, testPassword), wallet.ErrAuthentication)
	require.NoError(t, engine.Unlock(ctx, newPassword))

	metadata, err := engine.GetMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, "rent", metadata.Notes[testTxid])
	require.Equal(t, []string{"home"}, metadata.Tags[testTxid])
}

func TestMetadata(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreateWallet(ctx, testMnemonic, "", testPassword)
	require.NoError(t, err)

	metadata, err := engine.GetMetadata(ctx)
	require.NoError(t, err)
	require.Empty(t, metadata.Notes)

	require.NoError(t, engine.SetNote(ctx, testTxid, "rent"))
	require.NoError(t, engine.SetTags(ctx, testTxid, []string{"b", "a", "a", " "}))
	require.ErrorIs(t, engine.SetNote(ctx, "", "rent"), wallet.ErrValidation)

	metadata, err = engine.GetMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, "rent", metadata.Notes[testTxid])
	require.Equal(t, []string{"a", "b"}, metadata.Tags[testTxid])

	require.NoError(t, engine.SetNote(ctx, testTxid, ""))
	metadata, err = engine.GetMetadata(ctx)
	require.NoError(t, err)
	require.NotContains(t, metadata.Notes, testTxid)

	require.NoError(t, engine.Lock(ctx))
	_, err = engine.GetMetadata(ctx)
	require.ErrorIs(t, err, application.ErrWalletLocked)
}

func TestImportWIF(t *testing.T) {
	engine, explorerSvc := newTestEngine(t)

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := wallet.EncodeWIF(key, testNetwork)
	require.NoError(t, err)

	_, err = engine.ImportWIF(ctx, "not a wif", wallet.P2WPKH, testPassword)
	require.ErrorIs(t, err, wallet.ErrInvalidWIF)

	_, err = engine.ImportWIF(ctx, wif, wallet.P2WPKH, testPassword)
	require.NoError(t, err)

	status, err := engine.Status(ctx)
	require.NoError(t, err)
	require.False(t, status.HasSeed)

	expected, err := wallet.AddressFromPublicKey(wallet.AddressOpts{
		PublicKey:  key.PubKey().SerializeCompressed(),
		ScriptType: wallet.P2WPKH,
		Network:    testNetwork,
	})
	require.NoError(t, err)

	addr, err := engine.NextAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, expected.Address, addr.Address)

	_, err = engine.CreateSingleSigAccount(ctx, "", wallet.P2WPKH)
	require.ErrorIs(t, err, domain.ErrWalletWithoutSeed)
	_, err = engine.GetCosignerInfo(ctx, wallet.P2WSH)
	require.ErrorIs(t, err, domain.ErrWalletWithoutSeed)

	require.NoError(t, engine.Lock(ctx))
	require.ErrorIs(t, engine.Unlock(ctx, "wrong password"), wallet.ErrAuthentication)
	require.NoError(t, engine.Unlock(ctx, testPassword))

	explorerSvc.On("GetUnspentsForAddresses", mock.Anything, mock.Anything).
		Return([]explorer.Utxo{mockUtxo{
			hash:      testTxid,
			value:     50000,
			address:   addr.Address,
			confirmed: true,
		}}, nil)

	built, err := engine.BuildTransaction(ctx, application.BuildTransactionRequest{
		Recipients:   []wallet.Recipient{{Address: addr.Address, Amount: 30000}},
		SatsPerVByte: 1,
	})
	require.NoError(t, err)
	require.Equal(t, addr.Address, built.ChangeAddress)

	signed, err := engine.SignTransaction(ctx, built.Psbt)
	require.NoError(t, err)
	require.True(t, signed.Complete)

	_, err = engine.FinalizeTransaction(ctx, signed.Psbt)
	require.NoError(t, err)
}

func newMockExplorer() *mockExplorer {
	explorerSvc := &mockExplorer{}
	explorerSvc.On("GetTransactions", mock.Anything, mock.Anything).
		Return(nil, nil).Maybe()
	return explorerSvc
}

func newTestEngine(t *testing.T) (*application.Engine, *mockExplorer) {
	explorerSvc := newMockExplorer()
	engine := newTestEngineWithRepo(
		t, inmemory.NewWalletRepositoryImpl(), explorerSvc, -1,
	)
	return engine, explorerSvc
}

func newTestEngineWithRepo(
	t *testing.T, repo domain.WalletRepository,
	explorerSvc explorer.Service, autoLockTimeout time.Duration,
) *application.Engine {
	t.Helper()

	engine, err := application.NewEngine(application.EngineOpts{
		Repository:      repo,
		Explorer:        explorerSvc,
		Network:         testNetwork,
		GapLimit:        testGapLimit,
		AutoLockTimeout: autoLockTimeout,
		KDFIterations:   wallet.MinKDFIterations,
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

// deriveTestAddress returns the external native segwit address at index of
// the first account of the given mnemonic.
func deriveTestAddress(t *testing.T, mnemonic []string, index uint32) string {
	t.Helper()

	w, err := wallet.NewWalletFromMnemonic(wallet.NewWalletFromMnemonicOpts{
		Mnemonic: mnemonic,
		Network:  testNetwork,
	})
	require.NoError(t, err)
	defer w.Zero()

	path, err := wallet.SingleSigAccountPath(wallet.PurposeNativeSegwit, 1, 0)
	require.NoError(t, err)
	xpub, err := w.AccountExtendedPublicKey(path)
	require.NoError(t, err)
	accountKey, err := wallet.ParseExtendedPublicKey(xpub, testNetwork)
	require.NoError(t, err)
	key, err := wallet.DeriveFromPath(
		accountKey, wallet.DerivationPath{wallet.ExternalChain, index},
	)
	require.NoError(t, err)
	pubkey, err := key.ECPubKey()
	require.NoError(t, err)

	info, err := wallet.AddressFromPublicKey(wallet.AddressOpts{
		PublicKey:  pubkey.SerializeCompressed(),
		ScriptType: wallet.P2WPKH,
		Network:    testNetwork,
	})
	require.NoError(t, err)
	return info.Address
}
