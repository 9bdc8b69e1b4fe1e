package domain_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func TestBackupRoundTrip(t *testing.T) {
	w := newTestWallet(t)
	require.NoError(t, w.AddAccount(newTestSingleSigAccount(t, 0)))
	multisig, err := domain.NewMultisigAccount(domain.NewMultisigAccountOpts{
		Index:        1,
		ScriptType:   wallet.P2WSH,
		Threshold:    2,
		TotalSigners: 3,
		Cosigners:    newTestCosigners(t, 3),
		Network:      testNetwork,
	})
	require.NoError(t, err)
	require.NoError(t, w.AddAccount(multisig))
	w.AddPendingTransaction("txid", "00", nil)

	metadata := domain.NewMetadata()
	require.NoError(t, metadata.SetNote("txid", "rent"))

	backup, err := domain.NewBackup(domain.NewBackupOpts{
		Wallet:   w,
		Seed:     newTestSeed(1),
		Metadata: metadata,
	})
	require.NoError(t, err)

	data, err := domain.EncryptBackup(backup, "backup password", 0)
	require.NoError(t, err)

	_, _, err = domain.DecryptBackup(data, "wrong password")
	require.ErrorIs(t, err, wallet.ErrAuthentication)

	restored, warnings, err := domain.DecryptBackup(data, "backup password")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, domain.CurrentBackupVersion, restored.Version)
	require.Equal(t, w.Network, restored.Network)
	require.Equal(t, w.MasterFingerprint, restored.MasterFingerprint)
	require.Len(t, restored.Accounts, 2)
	require.Equal(t, domain.AccountKindMultisig, restored.Accounts[1].Kind())
	require.Equal(t, "rent", restored.Metadata.Notes["txid"])
	require.Len(t, restored.PendingTransactions, 1)

	seed, err := restored.SeedBytes()
	require.NoError(t, err)
	require.Equal(t, newTestSeed(1), seed)
}

func TestBackupStripsEncryptedKeys(t *testing.T) {
	account, err := domain.NewImportedAccount(domain.NewImportedAccountOpts{
		ScriptType:   wallet.P2WPKH,
		PublicKey:    newTestPubkey(t),
		EncryptedKey: &wallet.EncryptedBlob{Algorithm: wallet.EncryptionAlgorithm},
		Network:      testNetwork,
	})
	require.NoError(t, err)
	w, err := domain.NewKeyOnlyWallet(testNetwork, account)
	require.NoError(t, err)
	require.False(t, w.HasSeed())

	backup, err := domain.NewBackup(domain.NewBackupOpts{
		Wallet:       w,
		ImportedKeys: map[uint32]string{0: "wif"},
	})
	require.NoError(t, err)
	require.Empty(t, backup.Seed)
	require.Nil(t, backup.Accounts[0].(*domain.SingleSigAccount).ImportedKey)
	// The wallet itself is untouched.
	require.NotNil(t, account.ImportedKey)

	data, err := domain.EncryptBackup(backup, "backup password", 0)
	require.NoError(t, err)
	restored, _, err := domain.DecryptBackup(data, "backup password")
	require.NoError(t, err)
	require.Equal(t, "wif", restored.ImportedKeys[0])
}

func TestParseBackupVersion1(t *testing.T) {
	seed := hex.EncodeToString(newTestSeed(2))
	doc := `{
		"version": "1",
		"network": "testnet3",
		"seed": "` + seed + `",
		"accounts": [
			{"index": 0, "name": "main", "script_type": "p2wpkh"},
			{"index": 1, "script_type": "p2pkh"}
		]
	}`

	backup, warnings, err := domain.ParseBackup([]byte(doc))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, domain.BackupVersion1, backup.Version)
	require.Empty(t, backup.Accounts)
	require.Len(t, backup.LegacyAccounts, 2)
	require.Equal(t, wallet.P2PKH, backup.LegacyAccounts[1].ScriptType)
	require.Empty(t, backup.LegacyAccounts[1].Name)
}

func TestParseBackupDegradesGracefully(t *testing.T) {
	seed := hex.EncodeToString(newTestSeed(2))
	doc := `{
		"version": 2,
		"network": "mainnet",
		"seed": "` + seed + `",
		"accounts": [{"kind": "future-kind", "account": {}}],
		"metadata": "not an object",
		"pending_transactions": {"bad": true},
		"some_new_section": [1, 2, 3]
	}`

	backup, warnings, err := domain.ParseBackup([]byte(doc))
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Empty(t, backup.Accounts)
	require.Nil(t, backup.Metadata)
	require.Empty(t, backup.PendingTransactions)

	// Newer versions are parsed as far as possible.
	doc = `{"version": 7, "network": "mainnet", "seed": "` + seed + `"}`
	backup, warnings, err = domain.ParseBackup([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 7, backup.Version)
	require.Len(t, warnings, 2)
}

func TestFailingParseBackup(t *testing.T) {
	seed := hex.EncodeToString(newTestSeed(2))

	tests := []struct {
		name          string
		doc           string
		expectedError error
	}{
		{"not_json", `version 2`, domain.ErrInvalidBackup},
		{"missing_version", `{"network":"mainnet","seed":"` + seed + `"}`, domain.ErrInvalidBackup},
		{"zero_version", `{"version":0,"network":"mainnet","seed":"` + seed + `"}`, domain.ErrUnsupportedBackupVersion},
		{"bad_version", `{"version":"two","network":"mainnet","seed":"` + seed + `"}`, domain.ErrUnsupportedBackupVersion},
		{"unknown_network", `{"version":2,"network":"liquid","seed":"` + seed + `"}`, domain.ErrInvalidBackup},
		{"no_key_material", `{"version":2,"network":"mainnet"}`, domain.ErrInvalidBackup},
		{"bad_seed", `{"version":2,"network":"mainnet","seed":"zz"}`, domain.ErrInvalidBackup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := domain.ParseBackup([]byte(tt.doc))
			require.ErrorIs(t, err, tt.expectedError)
		})
	}
}

func TestMetadata(t *testing.T) {
	m := domain.NewMetadata()

	require.NoError(t, m.SetNote("txid", "coffee"))
	require.NoError(t, m.SetTags("txid", []string{" food ", "daily", "food", ""}))
	require.Equal(t, []string{"daily", "food"}, m.Tags["txid"])
	require.Error(t, m.SetNote(" ", "x"))

	blob, err := domain.EncryptMetadata(m, testPassword, 0)
	require.NoError(t, err)

	decrypted, err := domain.DecryptMetadata(blob, testPassword)
	require.NoError(t, err)
	require.Equal(t, m, decrypted)

	_, err = domain.DecryptMetadata(blob, "wrong")
	require.ErrorIs(t, err, wallet.ErrAuthentication)

	empty, err := domain.DecryptMetadata(nil, testPassword)
	require.NoError(t, err)
	require.Empty(t, empty.Notes)

	require.NoError(t, decrypted.SetNote("txid", ""))
	require.NoError(t, decrypted.SetTags("txid", nil))
	require.Empty(t, decrypted.Notes)
	require.Empty(t, decrypted.Tags)
}
