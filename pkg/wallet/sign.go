package wallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignTransactionOpts is the struct given to SignTransaction method. Signer
// signs every input carrying a BIP32 derivation with its master fingerprint,
// PrivateKeys sign the inputs whose scripts they control.
type SignTransactionOpts struct {
	Psbt        string
	Signer      *Wallet
	PrivateKeys []*btcec.PrivateKey
}

func (o SignTransactionOpts) validate() error {
	if len(o.Psbt) <= 0 {
		return ErrNullPsbt
	}
	if o.Signer == nil && len(o.PrivateKeys) <= 0 {
		return ErrNullSigner
	}
	return nil
}

// SignTransaction adds the partial signatures of the given keys to the PSBT
// and returns it with the number of inputs signed. Signatures by other
// cosigners are preserved so that a multisig PSBT can go through any number
// of signing sessions.
func SignTransaction(opts SignTransactionOpts) (string, int, error) {
	if err := opts.validate(); err != nil {
		return "", 0, err
	}

	packet, err := DecodePsbt(opts.Psbt)
	if err != nil {
		return "", 0, err
	}
	fetcher, err := prevOutputFetcher(packet)
	if err != nil {
		return "", 0, err
	}
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, fetcher)

	signedInputs := 0
	for i := range packet.Inputs {
		if isFinalized(packet, i) {
			continue
		}
		keys, err := signingKeysForInput(packet, i, opts)
		if err != nil {
			return "", 0, err
		}
		if len(keys) <= 0 {
			continue
		}
		for _, key := range keys {
			if err := SignInput(packet, i, key, sigHashes); err != nil {
				return "", 0, err
			}
		}
		signedInputs++
	}

	b64, err := packet.B64Encode()
	if err != nil {
		return "", 0, err
	}
	return b64, signedInputs, nil
}

// SignInput signs the input at inIndex with the given key and adds (or
// replaces) the key's partial signature.
func SignInput(
	packet *psbt.Packet,
	inIndex int,
	key *btcec.PrivateKey,
	sigHashes *txscript.TxSigHashes,
) error {
	prevOut, err := prevOutput(packet, inIndex)
	if err != nil {
		return err
	}
	in := &packet.Inputs[inIndex]
	hashType := in.SighashType
	if hashType == 0 {
		hashType = txscript.SigHashAll
	}

	scriptType, err := ScriptTypeFromScript(prevOut.PkScript, in.RedeemScript)
	if err != nil {
		return fmt.Errorf("input %d: %w", inIndex, err)
	}

	var (
		sig     []byte
		sigHash []byte
		tx      = packet.UnsignedTx
	)
	switch scriptType {
	case P2PKH:
		sig, err = txscript.RawTxInSignature(
			tx, inIndex, prevOut.PkScript, hashType, key,
		)
		if err != nil {
			return err
		}
		sigHash, err = txscript.CalcSignatureHash(
			prevOut.PkScript, hashType, tx, inIndex,
		)
	default:
		var subScript []byte
		subScript, err = witnessSubScript(scriptType, prevOut.PkScript, in)
		if err != nil {
			return fmt.Errorf("input %d: %w", inIndex, err)
		}
		sig, err = txscript.RawTxInWitnessSignature(
			tx, sigHashes, inIndex, prevOut.Value, subScript, hashType, key,
		)
		if err != nil {
			return err
		}
		sigHash, err = txscript.CalcWitnessSigHash(
			subScript, sigHashes, hashType, tx, inIndex, prevOut.Value,
		)
	}
	if err != nil {
		return err
	}

	pubkey := key.PubKey().SerializeCompressed()
	if err := verifySignature(sig, sigHash, pubkey); err != nil {
		return fmt.Errorf("input %d: %w", inIndex, err)
	}

	for _, ps := range in.PartialSigs {
		if bytes.Equal(ps.PubKey, pubkey) {
			ps.Signature = sig
			return nil
		}
	}
	in.PartialSigs = append(in.PartialSigs, &psbt.PartialSig{
		PubKey:    pubkey,
		Signature: sig,
	})
	return nil
}

func witnessSubScript(
	scriptType ScriptType, pkScript []byte, in *psbt.PInput,
) ([]byte, error) {
	switch scriptType {
	case P2WPKH:
		return pkScript, nil
	case P2SH_P2WPKH:
		if len(in.RedeemScript) <= 0 {
			return nil, ErrMissingRedeemScript
		}
		return in.RedeemScript, nil
	case P2WSH, P2SH_P2WSH:
		if len(in.WitnessScript) <= 0 {
			return nil, ErrMissingWitnessScript
		}
		return in.WitnessScript, nil
	default:
		return nil, ErrInvalidScriptType
	}
}

func verifySignature(sig, sigHash, pubkey []byte) error {
	if len(sig) <= 1 {
		return ErrInvalidSignature
	}
	signature, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return ErrInvalidSignature
	}
	pk, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return ErrInvalidSignature
	}
	if !signature.Verify(sigHash, pk) {
		return ErrInvalidSignature
	}
	return nil
}

// signingKeysForInput returns the keys among those given that control the
// input.
func signingKeysForInput(
	packet *psbt.Packet, inIndex int, opts SignTransactionOpts,
) ([]*btcec.PrivateKey, error) {
	in := packet.Inputs[inIndex]
	keys := make([]*btcec.PrivateKey, 0)

	if opts.Signer != nil {
		for _, d := range in.Bip32Derivation {
			if d.MasterKeyFingerprint != opts.Signer.MasterFingerprint() {
				continue
			}
			privkey, pubkey, err := opts.Signer.DeriveSigningKeyPair(
				DeriveSigningKeyPairOpts{DerivationPath: d.Bip32Path},
			)
			if err != nil {
				return nil, err
			}
			// Same fingerprint, different key: the derivation belongs to
			// someone else.
			if !bytes.Equal(pubkey.SerializeCompressed(), d.PubKey) {
				continue
			}
			keys = append(keys, privkey)
		}
	}

	if len(opts.PrivateKeys) > 0 {
		prevOut, err := prevOutput(packet, inIndex)
		if err != nil {
			return nil, err
		}
		for _, key := range opts.PrivateKeys {
			if controlsInput(key, prevOut, in) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func controlsInput(key *btcec.PrivateKey, prevOut *wire.TxOut, in psbt.PInput) bool {
	pubkey := key.PubKey().SerializeCompressed()
	if len(in.WitnessScript) > 0 {
		return bytes.Contains(in.WitnessScript, pubkey)
	}

	pubkeyHash := btcutil.Hash160(pubkey)
	script := prevOut.PkScript
	if len(in.RedeemScript) > 0 {
		script = in.RedeemScript
	}
	return bytes.Contains(script, pubkeyHash)
}

func isFinalized(packet *psbt.Packet, inIndex int) bool {
	in := packet.Inputs[inIndex]
	return len(in.FinalScriptSig) > 0 || len(in.FinalScriptWitness) > 0
}
