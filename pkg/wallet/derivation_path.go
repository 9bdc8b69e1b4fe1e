package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// BIP43 purposes.
const (
	PurposeLegacy       uint32 = 44
	PurposeNestedSegwit uint32 = 49
	PurposeMultisig     uint32 = 48
	PurposeNativeSegwit uint32 = 84
)

// Chains of an account.
const (
	ExternalChain uint32 = 0
	InternalChain uint32 = 1
)

// DerivationPath is the internal representation of a hierarchical
// deterministic wallet account
type DerivationPath []uint32

// ParseDerivationPath converts a derivation path string to the
// internal binary representation. Every element must be in range [0, 2^31),
// hardened ones are marked with the "'" suffix.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strings.TrimSpace(strPath) == "":
		return nil, ErrNullDerivationPath

	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath

	default:
		if strings.TrimSpace(elems[0]) == "m" {
			elems = elems[1:]
		}
	}

	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		// use big int for convertion
		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("%w: invalid elem '%s' in path", ErrInvalidDerivationPath, elem)
		}

		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(hdkeychain.HardenedKeyStart)) >= 0 {
			return nil, fmt.Errorf("%w: got %v", ErrOutOfRangeIndex, bigval)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// String converts a binary derivation path to its canonical representation
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	result := "m"
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		result = fmt.Sprintf("%s/%d", result, component)
		if hardened {
			result += "'"
		}
	}
	return result
}

// Child returns a copy of the path extended with the given elements.
func (path DerivationPath) Child(elems ...uint32) DerivationPath {
	child := make(DerivationPath, 0, len(path)+len(elems))
	child = append(child, path...)
	return append(child, elems...)
}

// SingleSigAccountPath returns m/purpose'/coin'/account'.
func SingleSigAccountPath(purpose, coinType, account uint32) (DerivationPath, error) {
	if account >= hdkeychain.HardenedKeyStart {
		return nil, ErrOutOfRangeIndex
	}
	return DerivationPath{
		hdkeychain.HardenedKeyStart + purpose,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart + account,
	}, nil
}

// MultisigAccountPath returns the BIP48 path m/48'/coin'/account'/script_type'.
func MultisigAccountPath(
	coinType, account uint32, scriptType ScriptType,
) (DerivationPath, error) {
	if account >= hdkeychain.HardenedKeyStart {
		return nil, ErrOutOfRangeIndex
	}
	scriptIndex, err := scriptType.bip48Index()
	if err != nil {
		return nil, err
	}
	return DerivationPath{
		hdkeychain.HardenedKeyStart + PurposeMultisig,
		hdkeychain.HardenedKeyStart + coinType,
		hdkeychain.HardenedKeyStart + account,
		hdkeychain.HardenedKeyStart + scriptIndex,
	}, nil
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if strings.TrimSpace(s) == "" {
			return true
		}
	}
	return false
}
