package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testSeed     = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"
)

func newTestWallet(t *testing.T) *Wallet {
	w, err := NewWalletFromMnemonic(NewWalletFromMnemonicOpts{
		Mnemonic: strings.Fields(testMnemonic),
		Network:  &chaincfg.MainNetParams,
	})
	require.NoError(t, err)
	return w
}

func newTestWalletFromByte(t *testing.T, b byte, net *chaincfg.Params) *Wallet {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	w, err := NewWalletFromSeed(NewWalletFromSeedOpts{Seed: seed, Network: net})
	require.NoError(t, err)
	return w
}

func TestNewMnemonic(t *testing.T) {
	tests := []struct {
		entropySize   int
		expectedWords int
	}{
		{0, 12},
		{128, 12},
		{160, 15},
		{192, 18},
		{224, 21},
		{256, 24},
	}

	for _, tt := range tests {
		mnemonic, err := NewMnemonic(NewMnemonicOpts{EntropySize: tt.entropySize})
		require.NoError(t, err)
		assert.Len(t, mnemonic, tt.expectedWords)
		assert.True(t, IsMnemonicValid(mnemonic))
	}
}

func TestFailingNewMnemonic(t *testing.T) {
	tests := []int{-1, 127, 257, 130, 96}
	for _, tt := range tests {
		_, err := NewMnemonic(NewMnemonicOpts{EntropySize: tt})
		assert.ErrorIs(t, err, ErrInvalidEntropySize)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestMnemonicToSeed(t *testing.T) {
	seed, err := MnemonicToSeed(MnemonicToSeedOpts{
		Mnemonic: strings.Fields(testMnemonic),
	})
	require.NoError(t, err)
	assert.Equal(t, testSeed, hex.EncodeToString(seed))

	// Extra whitespace between words must not change the seed.
	seed, err = MnemonicToSeed(MnemonicToSeedOpts{
		Mnemonic: []string{"abandon  abandon", " abandon", "abandon abandon abandon abandon abandon abandon abandon abandon about "},
	})
	require.NoError(t, err)
	assert.Equal(t, testSeed, hex.EncodeToString(seed))

	withPassphrase, err := MnemonicToSeed(MnemonicToSeedOpts{
		Mnemonic:   strings.Fields(testMnemonic),
		Passphrase: "TREZOR",
	})
	require.NoError(t, err)
	assert.NotEqual(t, testSeed, hex.EncodeToString(withPassphrase))
}

func TestFailingMnemonicToSeed(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic []string
	}{
		{"empty", nil},
		{"bad checksum", strings.Fields(strings.Repeat("abandon ", 12))},
		{"unknown word", strings.Fields(strings.Replace(testMnemonic, "about", "bitcoinz", 1))},
		{"wrong length", strings.Fields("abandon abandon abandon about")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MnemonicToSeed(MnemonicToSeedOpts{Mnemonic: tt.mnemonic})
			assert.ErrorIs(t, err, ErrInvalidMnemonic)
		})
	}
}

func TestWalletMasterFingerprint(t *testing.T) {
	w := newTestWallet(t)
	assert.Equal(t, "73c5da0a", FingerprintString(w.MasterFingerprint()))
	assert.Equal(t, &chaincfg.MainNetParams, w.Network())

	seed, _ := hex.DecodeString(testSeed)
	fromSeed, err := NewWalletFromSeed(NewWalletFromSeedOpts{
		Seed:    seed,
		Network: &chaincfg.MainNetParams,
	})
	require.NoError(t, err)
	assert.Equal(t, w.MasterFingerprint(), fromSeed.MasterFingerprint())
}

func TestFailingNewWallet(t *testing.T) {
	_, err := NewWalletFromSeed(NewWalletFromSeedOpts{Network: &chaincfg.MainNetParams})
	assert.ErrorIs(t, err, ErrNullSeed)

	_, err = NewWalletFromSeed(NewWalletFromSeedOpts{Seed: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrNullNetwork)

	_, err = NewWalletFromMnemonic(NewWalletFromMnemonicOpts{
		Mnemonic: []string{"not", "a", "mnemonic"},
		Network:  &chaincfg.MainNetParams,
	})
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestWalletZero(t *testing.T) {
	w := newTestWallet(t)
	w.Zero()

	_, _, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		DerivationPath: DerivationPath{0},
	})
	assert.ErrorIs(t, err, ErrNullSeed)

	// zeroing twice is harmless
	w.Zero()
}

func TestNetworkFromName(t *testing.T) {
	tests := []struct {
		name     string
		expected *chaincfg.Params
	}{
		{"mainnet", &chaincfg.MainNetParams},
		{"Bitcoin", &chaincfg.MainNetParams},
		{"testnet", &chaincfg.TestNet3Params},
		{"testnet3", &chaincfg.TestNet3Params},
		{"regtest", &chaincfg.RegressionNetParams},
		{"signet", &chaincfg.SigNetParams},
	}
	for _, tt := range tests {
		net, err := NetworkFromName(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, net)
	}

	_, err := NetworkFromName("liquid")
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrAuthentication))
	assert.True(t, IsFatal(ErrDuplicatePublicKey))
	assert.True(t, IsFatal(ErrCosignerCount))
	assert.False(t, IsFatal(ErrInvalidAddress))
	assert.False(t, IsFatal(ErrInsufficientFunds))
}
