package wallet

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptType enumerates the output types the wallet can receive to.
type ScriptType int

const (
	P2PKH ScriptType = iota + 1
	P2SH_P2WPKH
	P2WPKH
	P2SH_P2WSH
	P2WSH
)

var scriptTypeNames = map[ScriptType]string{
	P2PKH:       "p2pkh",
	P2SH_P2WPKH: "p2sh-p2wpkh",
	P2WPKH:      "p2wpkh",
	P2SH_P2WSH:  "p2sh-p2wsh",
	P2WSH:       "p2wsh",
}

// ParseScriptType is the inverse of ScriptType.String.
func ParseScriptType(str string) (ScriptType, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	for t, name := range scriptTypeNames {
		if name == str {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidScriptType, str)
}

func (t ScriptType) String() string {
	if name, ok := scriptTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText makes script types readable in persisted documents.
func (t ScriptType) MarshalText() ([]byte, error) {
	if _, ok := scriptTypeNames[t]; !ok {
		return nil, ErrInvalidScriptType
	}
	return []byte(t.String()), nil
}

// UnmarshalText ...
func (t *ScriptType) UnmarshalText(text []byte) error {
	parsed, err := ParseScriptType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsMultisig returns whether the script type is a P2WSH flavour.
func (t ScriptType) IsMultisig() bool {
	return t == P2WSH || t == P2SH_P2WSH
}

// IsSegwit returns whether inputs of this type carry a witness.
func (t ScriptType) IsSegwit() bool {
	return t != P2PKH
}

// Purpose returns the BIP43 purpose used for accounts of this script type.
func (t ScriptType) Purpose() (uint32, error) {
	switch t {
	case P2PKH:
		return PurposeLegacy, nil
	case P2SH_P2WPKH:
		return PurposeNestedSegwit, nil
	case P2WPKH:
		return PurposeNativeSegwit, nil
	case P2SH_P2WSH, P2WSH:
		return PurposeMultisig, nil
	default:
		return 0, ErrInvalidScriptType
	}
}

func (t ScriptType) bip48Index() (uint32, error) {
	switch t {
	case P2SH_P2WSH:
		return 1, nil
	case P2WSH:
		return 2, nil
	default:
		return 0, ErrInvalidScriptType
	}
}

// AddressInfo holds an address together with the scripts needed to spend
// from it.
type AddressInfo struct {
	Address       string
	Script        []byte
	RedeemScript  []byte
	WitnessScript []byte
}

// AddressOpts is the struct given to AddressFromPublicKey method
type AddressOpts struct {
	PublicKey  []byte
	ScriptType ScriptType
	Network    *chaincfg.Params
}

func (o AddressOpts) validate() error {
	if len(o.PublicKey) <= 0 {
		return ErrNullPublicKey
	}
	if _, err := btcec.ParsePubKey(o.PublicKey); err != nil {
		return ErrInvalidPublicKey
	}
	if o.ScriptType.IsMultisig() {
		return ErrInvalidScriptType
	}
	if _, ok := scriptTypeNames[o.ScriptType]; !ok {
		return ErrInvalidScriptType
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// AddressFromPublicKey builds a P2PKH, P2SH-P2WPKH or P2WPKH address for the
// given public key.
func AddressFromPublicKey(opts AddressOpts) (*AddressInfo, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	pubkey, _ := btcec.ParsePubKey(opts.PublicKey)
	pubkeyHash := btcutil.Hash160(pubkey.SerializeCompressed())

	var (
		addr         btcutil.Address
		redeemScript []byte
		err          error
	)
	switch opts.ScriptType {
	case P2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(pubkeyHash, opts.Network)
	case P2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(pubkeyHash, opts.Network)
	case P2SH_P2WPKH:
		redeemScript, err = txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).AddData(pubkeyHash).Script()
		if err != nil {
			return nil, err
		}
		addr, err = btcutil.NewAddressScriptHash(redeemScript, opts.Network)
	}
	if err != nil {
		return nil, err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	return &AddressInfo{
		Address:      addr.EncodeAddress(),
		Script:       script,
		RedeemScript: redeemScript,
	}, nil
}

// DecodeAddress parses the given address for the network and returns its
// output script.
func DecodeAddress(address string, network *chaincfg.Params) ([]byte, error) {
	if network == nil {
		return nil, ErrNullNetwork
	}
	addr, err := btcutil.DecodeAddress(strings.TrimSpace(address), network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if !addr.IsForNet(network) {
		return nil, ErrNetworkMismatch
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	return script, nil
}

// ScriptTypeFromScript recognizes the output types handled by the wallet.
// Script hashes are reported as P2SH_P2WPKH unless redeemScript says
// otherwise.
func ScriptTypeFromScript(script, redeemScript []byte) (ScriptType, error) {
	switch {
	case txscript.IsPayToPubKeyHash(script):
		return P2PKH, nil
	case txscript.IsPayToWitnessPubKeyHash(script):
		return P2WPKH, nil
	case txscript.IsPayToWitnessScriptHash(script):
		return P2WSH, nil
	case txscript.IsPayToScriptHash(script):
		if len(redeemScript) > 0 && txscript.IsPayToWitnessScriptHash(redeemScript) {
			return P2SH_P2WSH, nil
		}
		return P2SH_P2WPKH, nil
	default:
		return 0, ErrInvalidScriptType
	}
}
