package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BIP32 test vector 1
const (
	bip32Seed     = "000102030405060708090a0b0c0d0e0f"
	bip32RootXprv = "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
	bip32RootXpub = "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"
	bip32H0Xpub   = "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"
	bip32H0C1Xpub = "xpub6ASuArnXKPbfEwhqN6e3mwBcDTgzisQN1wXN9BJcM47sSikHjJf3UFHKkNAWbWMiGj7Wf5uMash7SyYq527Hqck2AxYysAA7xmALppuCkwQ"
)

func TestBIP32Vector(t *testing.T) {
	seed, _ := hex.DecodeString(bip32Seed)
	master, err := NewMasterKey(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, bip32RootXprv, master.String())

	masterPub, err := Neuter(master)
	require.NoError(t, err)
	assert.Equal(t, bip32RootXpub, masterPub.String())

	tests := []struct {
		path string
		xpub string
	}{
		{"m/0'", bip32H0Xpub},
		{"m/0'/1", bip32H0C1Xpub},
	}
	for _, tt := range tests {
		path, err := ParseDerivationPath(tt.path)
		require.NoError(t, err)

		key, err := DeriveFromPath(master, path)
		require.NoError(t, err)
		pub, err := Neuter(key)
		require.NoError(t, err)
		assert.Equal(t, tt.xpub, pub.String())
	}

	// the master key must survive the derivations above
	assert.Equal(t, bip32RootXprv, master.String())
}

func TestDeriveFromPublicParent(t *testing.T) {
	seed, _ := hex.DecodeString(bip32Seed)
	master, err := NewMasterKey(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	hardened, err := DeriveChild(master, 0, true)
	require.NoError(t, err)
	xpub, err := ParseExtendedPublicKey(bip32H0Xpub, &chaincfg.MainNetParams)
	require.NoError(t, err)

	// Non hardened children are the same whether derived from the private or
	// from the public parent.
	fromPrivate, err := DeriveChild(hardened, 1, false)
	require.NoError(t, err)
	fromPrivatePub, err := Neuter(fromPrivate)
	require.NoError(t, err)
	fromPublic, err := DeriveChild(xpub, 1, false)
	require.NoError(t, err)

	assert.Equal(t, bip32H0C1Xpub, fromPublic.String())
	assert.Equal(t, fromPrivatePub.String(), fromPublic.String())

	_, err = DeriveChild(xpub, 0, true)
	assert.ErrorIs(t, err, ErrInvalidExtendedKey)

	_, err = DeriveChild(xpub, h, false)
	assert.ErrorIs(t, err, ErrOutOfRangeIndex)
}

func TestParseExtendedPublicKey(t *testing.T) {
	_, err := ParseExtendedPublicKey(bip32RootXprv, &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidExtendedKey)

	_, err = ParseExtendedPublicKey("xpubnotakey", &chaincfg.MainNetParams)
	assert.ErrorIs(t, err, ErrInvalidExtendedKey)

	_, err = ParseExtendedPublicKey(bip32RootXpub, &chaincfg.TestNet3Params)
	assert.ErrorIs(t, err, ErrNetworkMismatch)
}

func TestFingerprint(t *testing.T) {
	str := "73c5da0a"
	fingerprint, err := ParseFingerprint(str)
	require.NoError(t, err)
	assert.Equal(t, str, FingerprintString(fingerprint))

	_, err = ParseFingerprint("73c5da")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAccountExtendedPublicKey(t *testing.T) {
	seed, _ := hex.DecodeString(bip32Seed)
	w, err := NewWalletFromSeed(NewWalletFromSeedOpts{
		Seed:    seed,
		Network: &chaincfg.MainNetParams,
	})
	require.NoError(t, err)

	xpub, err := w.AccountExtendedPublicKey(DerivationPath{h})
	require.NoError(t, err)
	assert.Equal(t, bip32H0Xpub, xpub)
}

func TestDeriveSigningKeyPair(t *testing.T) {
	w := newTestWallet(t)
	path, _ := ParseDerivationPath("m/84'/0'/0'/0/0")

	prvkey, pubkey, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		DerivationPath: path,
	})
	require.NoError(t, err)
	assert.Equal(t, pubkey.SerializeCompressed(), prvkey.PubKey().SerializeCompressed())
	assert.Equal(
		t,
		"0330d54fd0dd420a6e5f8d3624f5f3482cae350f79d5f0753bf5beef9c2d91af3c",
		hex.EncodeToString(pubkey.SerializeCompressed()),
	)

	_, _, err = w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{})
	assert.ErrorIs(t, err, ErrNullDerivationPath)
}
