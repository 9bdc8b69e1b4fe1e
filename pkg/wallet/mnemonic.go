package wallet

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// NewMnemonicOpts is the struct given to the NewMnemonic method
type NewMnemonicOpts struct {
	EntropySize int
}

func (o NewMnemonicOpts) validate() error {
	if o.EntropySize > 0 {
		if o.EntropySize < 128 || o.EntropySize > 256 || o.EntropySize%32 != 0 {
			return ErrInvalidEntropySize
		}
	}
	if o.EntropySize < 0 {
		return ErrInvalidEntropySize
	}
	return nil
}

// NewMnemonic returns a new mnemonic as a list of words. Entropy is read from
// the OS CSPRNG.
func NewMnemonic(opts NewMnemonicOpts) ([]string, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.EntropySize == 0 {
		opts.EntropySize = 128
	}

	entropy, err := bip39.NewEntropy(opts.EntropySize)
	if err != nil {
		return nil, err
	}
	defer Zero(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Fields(mnemonic), nil
}

// IsMnemonicValid checks word count, word list membership and checksum.
func IsMnemonicValid(mnemonic []string) bool {
	if len(mnemonic) <= 0 {
		return false
	}
	return bip39.IsMnemonicValid(joinMnemonic(mnemonic))
}

// MnemonicToSeedOpts is the struct given to the MnemonicToSeed method
type MnemonicToSeedOpts struct {
	Mnemonic   []string
	Passphrase string
}

func (o MnemonicToSeedOpts) validate() error {
	if !IsMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// MnemonicToSeed returns the 64 bytes BIP39 seed of the given mnemonic and
// optional passphrase.
func MnemonicToSeed(opts MnemonicToSeedOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(
		joinMnemonic(opts.Mnemonic), opts.Passphrase,
	)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	return seed, nil
}

func joinMnemonic(mnemonic []string) string {
	return strings.Join(strings.Fields(strings.Join(mnemonic, " ")), " ")
}
