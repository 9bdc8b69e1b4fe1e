package wallet

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// MaxMultisigKeys is the largest N supported for M-of-N accounts.
const MaxMultisigKeys = 15

// MultisigAddressOpts is the struct given to MultisigAddressFromKeys method
type MultisigAddressOpts struct {
	PublicKeys   [][]byte
	Threshold    int
	TotalSigners int
	ScriptType   ScriptType
	Network      *chaincfg.Params
}

func (o MultisigAddressOpts) validate() error {
	if o.TotalSigners <= 0 || o.TotalSigners > MaxMultisigKeys ||
		o.Threshold <= 0 || o.Threshold > o.TotalSigners {
		return ErrInvalidThreshold
	}
	if len(o.PublicKeys) != o.TotalSigners {
		return fmt.Errorf(
			"%w: expected %d keys, got %d",
			ErrCosignerCount, o.TotalSigners, len(o.PublicKeys),
		)
	}
	for _, key := range o.PublicKeys {
		if len(key) != btcec.PubKeyBytesLenCompressed {
			return ErrInvalidPublicKey
		}
		if _, err := btcec.ParsePubKey(key); err != nil {
			return ErrInvalidPublicKey
		}
	}
	if hasDuplicates(o.PublicKeys) {
		return ErrDuplicatePublicKey
	}
	if !o.ScriptType.IsMultisig() {
		return ErrInvalidScriptType
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// MultisigAddressFromKeys builds the M-of-N witness script of the given keys,
// sorted as per BIP67, and wraps it in a P2WSH or P2SH-P2WSH output. The
// result does not depend on the order of the given keys.
func MultisigAddressFromKeys(opts MultisigAddressOpts) (*AddressInfo, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	keys := SortPublicKeys(opts.PublicKeys)
	addrPubkeys := make([]*btcutil.AddressPubKey, 0, len(keys))
	for _, key := range keys {
		addrPubkey, err := btcutil.NewAddressPubKey(key, opts.Network)
		if err != nil {
			return nil, ErrInvalidPublicKey
		}
		addrPubkeys = append(addrPubkeys, addrPubkey)
	}

	witnessScript, err := txscript.MultiSigScript(addrPubkeys, opts.Threshold)
	if err != nil {
		return nil, err
	}
	witnessProgram := sha256.Sum256(witnessScript)

	p2wsh, err := btcutil.NewAddressWitnessScriptHash(
		witnessProgram[:], opts.Network,
	)
	if err != nil {
		return nil, err
	}

	var (
		addr         btcutil.Address = p2wsh
		redeemScript []byte
	)
	if opts.ScriptType == P2SH_P2WSH {
		redeemScript, err = txscript.PayToAddrScript(p2wsh)
		if err != nil {
			return nil, err
		}
		addr, err = btcutil.NewAddressScriptHash(redeemScript, opts.Network)
		if err != nil {
			return nil, err
		}
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &AddressInfo{
		Address:       addr.EncodeAddress(),
		Script:        script,
		RedeemScript:  redeemScript,
		WitnessScript: witnessScript,
	}, nil
}

// SortPublicKeys returns a lexicographically sorted copy of the given
// serialized keys (BIP67).
func SortPublicKeys(keys [][]byte) [][]byte {
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

// ParseMultisigScript returns threshold and ordered public keys of a
// bare multisig witness script.
func ParseMultisigScript(
	witnessScript []byte, network *chaincfg.Params,
) (int, [][]byte, error) {
	class, addrs, threshold, err := txscript.ExtractPkScriptAddrs(
		witnessScript, network,
	)
	if err != nil {
		return 0, nil, err
	}
	if class != txscript.MultiSigTy {
		return 0, nil, fmt.Errorf("%w: not a multisig script", ErrInvalidScriptType)
	}

	keys := make([][]byte, 0, len(addrs))
	for _, addr := range addrs {
		keys = append(keys, addr.ScriptAddress())
	}
	return threshold, keys, nil
}

func hasDuplicates(keys [][]byte) bool {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[string(key)]; ok {
			return true
		}
		seen[string(key)] = struct{}{}
	}
	return false
}
