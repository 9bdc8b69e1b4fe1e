package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Error kinds. Every error returned by this package wraps exactly one of them
// so that callers can tell recoverable failures from fatal ones with
// errors.Is.
var (
	// ErrValidation is the kind of errors caused by malformed user input.
	ErrValidation = errors.New("validation error")
	// ErrAuthentication is returned when decryption fails. It never tells
	// whether the password was wrong or the data was tampered.
	ErrAuthentication = errors.New("authentication failed")
	// ErrConfiguration is the kind of errors caused by an invalid multisig
	// cosigner set.
	ErrConfiguration = errors.New("configuration error")
	// ErrInsufficientFunds is returned when the available utxos can't cover
	// the target amount plus fees.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrDustOutput is returned when an output is below the dust threshold.
	ErrDustOutput = errors.New("dust output")
)

var (
	// ErrNullNetwork ...
	ErrNullNetwork = fmt.Errorf("%w: network params are null", ErrValidation)
	// ErrNullSeed ...
	ErrNullSeed = fmt.Errorf("%w: seed must not be null", ErrValidation)
	// ErrNullPassword ...
	ErrNullPassword = fmt.Errorf("%w: password must not be null", ErrValidation)
	// ErrNullPlainText ...
	ErrNullPlainText = fmt.Errorf("%w: text to encrypt must not be null", ErrValidation)
	// ErrNullEncryptedBlob ...
	ErrNullEncryptedBlob = fmt.Errorf("%w: encrypted blob must not be null", ErrValidation)
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = fmt.Errorf("%w: derivation path must not be null", ErrValidation)
	// ErrNullPublicKey ...
	ErrNullPublicKey = fmt.Errorf("%w: public key must not be null", ErrValidation)
	// ErrNullPsbt ...
	ErrNullPsbt = fmt.Errorf("%w: psbt base64 must not be null", ErrValidation)
	// ErrNullSigner ...
	ErrNullSigner = fmt.Errorf("%w: at least one signing key must be provided", ErrValidation)

	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = fmt.Errorf("%w: mnemonic is invalid", ErrValidation)
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = fmt.Errorf(
		"%w: entropy size must be a multiple of 32 in the range [128,256]",
		ErrValidation,
	)
	// ErrInvalidKDFIterations ...
	ErrInvalidKDFIterations = fmt.Errorf(
		"%w: kdf iterations must be at least %d", ErrValidation, MinKDFIterations,
	)
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = fmt.Errorf("%w: invalid derivation path", ErrValidation)
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = fmt.Errorf(
		"%w: path must not start or end with a '/' and "+
			"can optionally start with 'm/' for absolute paths",
		ErrValidation,
	)
	// ErrOutOfRangeIndex ...
	ErrOutOfRangeIndex = fmt.Errorf(
		"%w: derivation index must be in range [0, 2^31)", ErrValidation,
	)
	// ErrInvalidExtendedKey ...
	ErrInvalidExtendedKey = fmt.Errorf("%w: invalid extended key", ErrValidation)
	// ErrInvalidPublicKey ...
	ErrInvalidPublicKey = fmt.Errorf("%w: invalid public key", ErrValidation)
	// ErrInvalidScriptType ...
	ErrInvalidScriptType = fmt.Errorf("%w: unsupported script type", ErrValidation)
	// ErrInvalidAddress ...
	ErrInvalidAddress = fmt.Errorf("%w: malformed address", ErrValidation)
	// ErrInvalidWIF ...
	ErrInvalidWIF = fmt.Errorf("%w: malformed WIF private key", ErrValidation)
	// ErrInvalidPsbt ...
	ErrInvalidPsbt = fmt.Errorf("%w: malformed psbt", ErrValidation)
	// ErrInvalidNetwork ...
	ErrInvalidNetwork = fmt.Errorf("%w: unknown network", ErrValidation)
	// ErrNetworkMismatch ...
	ErrNetworkMismatch = fmt.Errorf("%w: key or address belongs to another network", ErrValidation)

	// ErrInvalidThreshold ...
	ErrInvalidThreshold = fmt.Errorf(
		"%w: threshold must be in range [1, N] with N at most %d",
		ErrConfiguration, MaxMultisigKeys,
	)
	// ErrCosignerCount ...
	ErrCosignerCount = fmt.Errorf(
		"%w: number of keys does not match the multisig configuration",
		ErrConfiguration,
	)
	// ErrDuplicatePublicKey ...
	ErrDuplicatePublicKey = fmt.Errorf(
		"%w: multisig key set contains duplicate public keys", ErrConfiguration,
	)

	// ErrEmptyInputs ...
	ErrEmptyInputs = fmt.Errorf("%w: input list must not be empty", ErrValidation)
	// ErrEmptyOutputs ...
	ErrEmptyOutputs = fmt.Errorf("%w: output list must not be empty", ErrValidation)
	// ErrZeroOutputAmount ...
	ErrZeroOutputAmount = fmt.Errorf("%w: output amount must not be zero", ErrValidation)
	// ErrNullChangeScript ...
	ErrNullChangeScript = fmt.Errorf("%w: change script must not be null", ErrValidation)
	// ErrFeeRateTooLow ...
	ErrFeeRateTooLow = fmt.Errorf(
		"%w: fee rate must be at least %d sat/kvB", ErrValidation, MinRelayFeeRate,
	)
	// ErrMissingPrevTx ...
	ErrMissingPrevTx = fmt.Errorf(
		"%w: legacy inputs require the previous transaction", ErrValidation,
	)
	// ErrMissingPrevOut ...
	ErrMissingPrevOut = fmt.Errorf("%w: missing previous output", ErrValidation)
	// ErrMissingRedeemScript ...
	ErrMissingRedeemScript = fmt.Errorf("%w: missing redeem script", ErrValidation)
	// ErrMissingWitnessScript ...
	ErrMissingWitnessScript = fmt.Errorf("%w: missing witness script", ErrValidation)
	// ErrDuplicateInput ...
	ErrDuplicateInput = fmt.Errorf("%w: transaction spends the same output twice", ErrValidation)
	// ErrNegativeFee ...
	ErrNegativeFee = fmt.Errorf("%w: outputs exceed inputs", ErrValidation)
	// ErrFeeTooLow ...
	ErrFeeTooLow = fmt.Errorf("%w: fee is too low to relay", ErrValidation)
	// ErrFeeTooHigh ...
	ErrFeeTooHigh = fmt.Errorf("%w: fee is anomalously high", ErrValidation)
	// ErrInvalidSignature ...
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrValidation)
	// ErrInputUnderSigned ...
	ErrInputUnderSigned = fmt.Errorf("%w: input is not signed enough", ErrValidation)
	// ErrNoPsbtsToCombine ...
	ErrNoPsbtsToCombine = fmt.Errorf("%w: no psbts to combine", ErrValidation)
	// ErrDifferentTransactions ...
	ErrDifferentTransactions = fmt.Errorf(
		"%w: psbts do not refer to the same transaction", ErrValidation,
	)
)

// IsFatal returns whether err is a cryptographic or configuration failure
// that must never be retried or recovered automatically.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrConfiguration)
}

// NetworkFromName returns the chain params for one of mainnet, testnet,
// regtest or signet.
func NetworkFromName(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet", "bitcoin", chaincfg.MainNetParams.Name:
		return &chaincfg.MainNetParams, nil
	case "testnet", chaincfg.TestNet3Params.Name:
		return &chaincfg.TestNet3Params, nil
	case "regtest", chaincfg.RegressionNetParams.Name:
		return &chaincfg.RegressionNetParams, nil
	case "signet", chaincfg.SigNetParams.Name:
		return &chaincfg.SigNetParams, nil
	default:
		return nil, ErrInvalidNetwork
	}
}

// Wallet data structure holds the BIP32 master key derived from a seed and
// allows to derive account extended keys and signing key pairs.
type Wallet struct {
	masterKey   *hdkeychain.ExtendedKey
	fingerprint uint32
	network     *chaincfg.Params
}

// NewWalletFromSeedOpts is the struct given to the NewWalletFromSeed method
type NewWalletFromSeedOpts struct {
	Seed    []byte
	Network *chaincfg.Params
}

func (o NewWalletFromSeedOpts) validate() error {
	if len(o.Seed) <= 0 {
		return ErrNullSeed
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWalletFromSeed creates a wallet from the given BIP39 seed. The seed is
// not retained.
func NewWalletFromSeed(opts NewWalletFromSeedOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	masterKey, err := NewMasterKey(opts.Seed, opts.Network)
	if err != nil {
		return nil, err
	}
	fingerprint, err := Fingerprint(masterKey)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		masterKey:   masterKey,
		fingerprint: fingerprint,
		network:     opts.Network,
	}, nil
}

// NewWalletFromMnemonicOpts is the struct given to the NewWalletFromMnemonic
// method
type NewWalletFromMnemonicOpts struct {
	Mnemonic   []string
	Passphrase string
	Network    *chaincfg.Params
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if !IsMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWalletFromMnemonic derives the seed from the given mnemonic and
// passphrase and creates a wallet with it.
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	seed, err := MnemonicToSeed(MnemonicToSeedOpts{
		Mnemonic:   opts.Mnemonic,
		Passphrase: opts.Passphrase,
	})
	if err != nil {
		return nil, err
	}
	defer Zero(seed)

	return NewWalletFromSeed(NewWalletFromSeedOpts{
		Seed:    seed,
		Network: opts.Network,
	})
}

// Network returns the chain params of the wallet.
func (w *Wallet) Network() *chaincfg.Params {
	return w.network
}

// MasterFingerprint returns the BIP32 fingerprint of the master public key,
// as used in PSBT derivation records.
func (w *Wallet) MasterFingerprint() uint32 {
	return w.fingerprint
}

// AccountExtendedPublicKey returns the base58 extended public key at the given
// (hardened) account path.
func (w *Wallet) AccountExtendedPublicKey(path DerivationPath) (string, error) {
	key, err := w.derive(path)
	if err != nil {
		return "", err
	}
	defer key.Zero()

	xpub, err := Neuter(key)
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

// DeriveSigningKeyPairOpts is the struct given to DeriveSigningKeyPair method
type DeriveSigningKeyPairOpts struct {
	DerivationPath DerivationPath
}

func (o DeriveSigningKeyPairOpts) validate() error {
	if len(o.DerivationPath) <= 0 {
		return ErrNullDerivationPath
	}
	return nil
}

// DeriveSigningKeyPair derives the key pair of the provided derivation path
func (w *Wallet) DeriveSigningKeyPair(opts DeriveSigningKeyPairOpts) (
	*btcec.PrivateKey,
	*btcec.PublicKey,
	error,
) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}

	key, err := w.derive(opts.DerivationPath)
	if err != nil {
		return nil, nil, err
	}
	defer key.Zero()

	privateKey, err := key.ECPrivKey()
	if err != nil {
		return nil, nil, err
	}
	return privateKey, privateKey.PubKey(), nil
}

// Zero overwrites the master key material held by the wallet. The wallet is
// unusable afterwards.
func (w *Wallet) Zero() {
	if w == nil || w.masterKey == nil {
		return
	}
	w.masterKey.Zero()
	w.masterKey = nil
}

func (w *Wallet) derive(path DerivationPath) (*hdkeychain.ExtendedKey, error) {
	if w.masterKey == nil {
		return nil, ErrNullSeed
	}
	return DeriveFromPath(w.masterKey, path)
}
