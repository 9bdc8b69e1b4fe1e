package wallet

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ParseWIF decodes a WIF private key of the given network. Only keys meant
// for compressed public keys are accepted since segwit outputs require them.
func ParseWIF(wif string, network *chaincfg.Params) (*btcec.PrivateKey, error) {
	if network == nil {
		return nil, ErrNullNetwork
	}
	decoded, err := btcutil.DecodeWIF(strings.TrimSpace(wif))
	if err != nil {
		return nil, ErrInvalidWIF
	}
	if !decoded.IsForNet(network) {
		return nil, ErrNetworkMismatch
	}
	if !decoded.CompressPubKey {
		return nil, fmt.Errorf("%w: uncompressed keys are not supported", ErrInvalidWIF)
	}
	return decoded.PrivKey, nil
}

// EncodeWIF is the inverse of ParseWIF.
func EncodeWIF(key *btcec.PrivateKey, network *chaincfg.Params) (string, error) {
	wif, err := btcutil.NewWIF(key, network, true)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}
