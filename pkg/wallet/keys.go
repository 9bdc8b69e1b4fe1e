package wallet

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// NewMasterKey returns the BIP32 root extended private key of the given seed.
func NewMasterKey(
	seed []byte, network *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	if len(seed) <= 0 {
		return nil, ErrNullSeed
	}
	if network == nil {
		return nil, ErrNullNetwork
	}
	key, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return key, nil
}

// DeriveChild derives the child of the given extended key at index. Hardened
// derivation requires a private parent.
func DeriveChild(
	parent *hdkeychain.ExtendedKey, index uint32, hardened bool,
) (*hdkeychain.ExtendedKey, error) {
	if parent == nil {
		return nil, ErrInvalidExtendedKey
	}
	if index >= hdkeychain.HardenedKeyStart {
		return nil, ErrOutOfRangeIndex
	}
	if hardened {
		index += hdkeychain.HardenedKeyStart
	}

	child, err := parent.Derive(index)
	if err != nil {
		if errors.Is(err, hdkeychain.ErrDeriveHardFromPublic) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExtendedKey, err)
		}
		return nil, err
	}
	return child, nil
}

// DeriveFromPath derives the descendant of the given key along path.
// Intermediate private keys are zeroed.
func DeriveFromPath(
	key *hdkeychain.ExtendedKey, path DerivationPath,
) (*hdkeychain.ExtendedKey, error) {
	if key == nil {
		return nil, ErrInvalidExtendedKey
	}

	current := key
	for i, step := range path {
		hardened := step >= hdkeychain.HardenedKeyStart
		index := step
		if hardened {
			index -= hdkeychain.HardenedKeyStart
		}

		next, err := DeriveChild(current, index, hardened)
		if i > 0 {
			current.Zero()
		}
		if err != nil {
			return nil, err
		}
		current = next
	}
	if current == key {
		// Never hand out the caller's key, which it may zero independently.
		return hdkeychain.NewKeyFromString(key.String())
	}
	return current, nil
}

// Neuter returns the extended public key of the given extended key.
func Neuter(key *hdkeychain.ExtendedKey) (*hdkeychain.ExtendedKey, error) {
	if key == nil {
		return nil, ErrInvalidExtendedKey
	}
	return key.Neuter()
}

// ParseExtendedPublicKey decodes a base58 xpub/tpub and checks it belongs to
// the given network and doesn't carry private material.
func ParseExtendedPublicKey(
	xpub string, network *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExtendedKey, err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf(
			"%w: expected a public key, got a private one", ErrInvalidExtendedKey,
		)
	}
	if network != nil && !key.IsForNet(network) {
		return nil, ErrNetworkMismatch
	}
	return key, nil
}

// Fingerprint returns the BIP32 fingerprint of the given key, in the little
// endian form used by PSBT derivation records.
func Fingerprint(key *hdkeychain.ExtendedKey) (uint32, error) {
	if key == nil {
		return 0, ErrInvalidExtendedKey
	}
	pubkey, err := key.ECPubKey()
	if err != nil {
		return 0, err
	}
	hash := btcutil.Hash160(pubkey.SerializeCompressed())
	return binary.LittleEndian.Uint32(hash[:4]), nil
}

// FingerprintString returns the usual 8 chars hex form of a fingerprint.
func FingerprintString(fingerprint uint32) string {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, fingerprint)
	return hex.EncodeToString(buf)
}

// ParseFingerprint is the inverse of FingerprintString.
func ParseFingerprint(str string) (uint32, error) {
	buf, err := hex.DecodeString(str)
	if err != nil || len(buf) != 4 {
		return 0, fmt.Errorf("%w: fingerprint must be a 4 bytes hex string", ErrValidation)
	}
	return binary.LittleEndian.Uint32(buf), nil
}
