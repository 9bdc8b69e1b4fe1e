package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// MaxAccountNameLength ...
const MaxAccountNameLength = 64

// AccountKind tags the variants of Account.
type AccountKind string

const (
	AccountKindSingleSig AccountKind = "singlesig"
	AccountKindMultisig  AccountKind = "multisig"
)

// Account is either a *SingleSigAccount or a *MultisigAccount.
type Account interface {
	Kind() AccountKind
	Info() *AccountInfo
	// Validate checks the invariants of the account configuration.
	Validate(network *chaincfg.Params) error
}

// AccountInfo holds the data shared by all kinds of account.
type AccountInfo struct {
	Index          uint32            `json:"index"`
	Name           string            `json:"name"`
	Purpose        uint32            `json:"purpose"`
	ScriptType     wallet.ScriptType `json:"script_type"`
	DerivationPath string            `json:"derivation_path,omitempty"`
	External       AddressPool       `json:"external"`
	Internal       AddressPool       `json:"internal"`
	// UnusableReason is set when the account configuration is found
	// corrupted.
	UnusableReason string `json:"unusable_reason,omitempty"`
}

// Info ...
func (a *AccountInfo) Info() *AccountInfo {
	return a
}

// IsUsable returns whether the account can produce addresses and spend.
func (a *AccountInfo) IsUsable() bool {
	return a.UnusableReason == ""
}

// MarkUnusable flags the account as corrupted.
func (a *AccountInfo) MarkUnusable(reason error) {
	a.UnusableReason = reason.Error()
}

// Pool returns the address pool of the given chain.
func (a *AccountInfo) Pool(chain uint32) (*AddressPool, error) {
	switch chain {
	case wallet.ExternalChain:
		return &a.External, nil
	case wallet.InternalChain:
		return &a.Internal, nil
	default:
		return nil, fmt.Errorf("%w: unknown chain %d", wallet.ErrValidation, chain)
	}
}

// AddressByAddress looks for addr in both chains.
func (a *AccountInfo) AddressByAddress(addr string) (*Address, bool) {
	if found, ok := a.External.ByAddress(addr); ok {
		return found, true
	}
	return a.Internal.ByAddress(addr)
}

// AddressByScript looks for the address with the given output script in both
// chains.
func (a *AccountInfo) AddressByScript(script []byte) (*Address, bool) {
	if found, ok := a.External.ByScript(script); ok {
		return found, true
	}
	return a.Internal.ByScript(script)
}

// Addresses returns the external addresses followed by the internal ones.
func (a *AccountInfo) Addresses() []Address {
	list := make([]Address, 0, len(a.External.Addresses)+len(a.Internal.Addresses))
	list = append(list, a.External.Addresses...)
	return append(list, a.Internal.Addresses...)
}

func (a *AccountInfo) validate() error {
	if len(a.Name) > MaxAccountNameLength {
		return ErrInvalidAccountName
	}
	if a.Purpose == 0 {
		return fmt.Errorf("%w: missing account purpose", wallet.ErrValidation)
	}
	purpose, err := a.ScriptType.Purpose()
	if err != nil {
		return err
	}
	if purpose != a.Purpose {
		return fmt.Errorf(
			"%w: purpose %d doesn't match script type %s",
			wallet.ErrValidation, a.Purpose, a.ScriptType,
		)
	}
	return nil
}

/**** SINGLE-SIG ****/

// SingleSigAccount owns one BIP44/49/84 derivation branch, identified by its
// account extended public key, or a single imported private key.
type SingleSigAccount struct {
	AccountInfo
	Xpub string `json:"xpub,omitempty"`
	// ImportedKey is the encrypted private key of accounts created from a
	// WIF. Such accounts have exactly one address.
	ImportedKey *wallet.EncryptedBlob `json:"imported_key,omitempty"`
}

// NewSingleSigAccountOpts is the struct given to NewSingleSigAccount.
type NewSingleSigAccountOpts struct {
	Index          uint32
	Name           string
	ScriptType     wallet.ScriptType
	DerivationPath wallet.DerivationPath
	Xpub           string
	Network        *chaincfg.Params
}

// NewSingleSigAccount returns a new HD single-sig account.
func NewSingleSigAccount(opts NewSingleSigAccountOpts) (*SingleSigAccount, error) {
	if opts.ScriptType.IsMultisig() {
		return nil, wallet.ErrInvalidScriptType
	}
	purpose, err := opts.ScriptType.Purpose()
	if err != nil {
		return nil, err
	}

	account := &SingleSigAccount{
		AccountInfo: AccountInfo{
			Index:          opts.Index,
			Name:           accountName(opts.Name, opts.Index),
			Purpose:        purpose,
			ScriptType:     opts.ScriptType,
			DerivationPath: opts.DerivationPath.String(),
		},
		Xpub: opts.Xpub,
	}
	if err := account.Validate(opts.Network); err != nil {
		return nil, err
	}
	return account, nil
}

// NewImportedAccountOpts is the struct given to NewImportedAccount.
type NewImportedAccountOpts struct {
	Index        uint32
	Name         string
	ScriptType   wallet.ScriptType
	PublicKey    []byte
	EncryptedKey *wallet.EncryptedBlob
	Network      *chaincfg.Params
}

// NewImportedAccount returns a single-sig account holding one imported key
// and its only address.
func NewImportedAccount(opts NewImportedAccountOpts) (*SingleSigAccount, error) {
	if opts.EncryptedKey == nil {
		return nil, wallet.ErrNullEncryptedBlob
	}
	if opts.ScriptType.IsMultisig() {
		return nil, wallet.ErrInvalidScriptType
	}
	purpose, err := opts.ScriptType.Purpose()
	if err != nil {
		return nil, err
	}
	info, err := wallet.AddressFromPublicKey(wallet.AddressOpts{
		PublicKey:  opts.PublicKey,
		ScriptType: opts.ScriptType,
		Network:    opts.Network,
	})
	if err != nil {
		return nil, err
	}

	account := &SingleSigAccount{
		AccountInfo: AccountInfo{
			Index:      opts.Index,
			Name:       accountName(opts.Name, opts.Index),
			Purpose:    purpose,
			ScriptType: opts.ScriptType,
			External: AddressPool{
				Addresses: []Address{{
					Address:      info.Address,
					Script:       info.Script,
					Chain:        wallet.ExternalChain,
					ScriptType:   opts.ScriptType,
					PublicKey:    opts.PublicKey,
					RedeemScript: info.RedeemScript,
				}},
			},
		},
		ImportedKey: opts.EncryptedKey,
	}
	if err := account.Validate(opts.Network); err != nil {
		return nil, err
	}
	return account, nil
}

// Kind ...
func (a *SingleSigAccount) Kind() AccountKind {
	return AccountKindSingleSig
}

// IsImported returns whether the account wraps an imported private key.
func (a *SingleSigAccount) IsImported() bool {
	return a.ImportedKey != nil
}

// Validate ...
func (a *SingleSigAccount) Validate(network *chaincfg.Params) error {
	if err := a.AccountInfo.validate(); err != nil {
		return err
	}
	if a.ScriptType.IsMultisig() {
		return wallet.ErrInvalidScriptType
	}
	if a.IsImported() {
		if len(a.External.Addresses) != 1 {
			return fmt.Errorf(
				"%w: imported account must have exactly one address",
				wallet.ErrValidation,
			)
		}
		return nil
	}
	if _, err := wallet.ParseDerivationPath(a.DerivationPath); err != nil {
		return err
	}
	_, err := wallet.ParseExtendedPublicKey(a.Xpub, network)
	return err
}

/**** MULTISIG ****/

// Cosigner is a participant of a multisig account.
type Cosigner struct {
	Name string `json:"name"`
	// Fingerprint is the hex master key fingerprint of the cosigner.
	Fingerprint    string `json:"fingerprint"`
	Xpub           string `json:"xpub"`
	DerivationPath string `json:"derivation_path"`
	IsSelf         bool   `json:"is_self"`
}

// MultisigAccount is an M-of-N account whose addresses are built from the
// keys of all cosigners at the same chain and index.
type MultisigAccount struct {
	AccountInfo
	Threshold    int        `json:"threshold"`
	TotalSigners int        `json:"total_signers"`
	Cosigners    []Cosigner `json:"cosigners"`
}

// NewMultisigAccountOpts is the struct given to NewMultisigAccount.
type NewMultisigAccountOpts struct {
	Index        uint32
	Name         string
	ScriptType   wallet.ScriptType
	Threshold    int
	TotalSigners int
	Cosigners    []Cosigner
	Network      *chaincfg.Params
}

// NewMultisigAccount returns a new multisig account. The cosigner set is
// validated, an invalid account is never created.
func NewMultisigAccount(opts NewMultisigAccountOpts) (*MultisigAccount, error) {
	if !opts.ScriptType.IsMultisig() {
		return nil, wallet.ErrInvalidScriptType
	}
	if err := ValidateCosigners(
		opts.Threshold, opts.TotalSigners, opts.Cosigners, opts.Network,
	); err != nil {
		return nil, err
	}

	cosigners := make([]Cosigner, len(opts.Cosigners))
	copy(cosigners, opts.Cosigners)
	var path string
	for _, c := range cosigners {
		if c.IsSelf {
			path = c.DerivationPath
		}
	}

	account := &MultisigAccount{
		AccountInfo: AccountInfo{
			Index:          opts.Index,
			Name:           accountName(opts.Name, opts.Index),
			Purpose:        wallet.PurposeMultisig,
			ScriptType:     opts.ScriptType,
			DerivationPath: path,
		},
		Threshold:    opts.Threshold,
		TotalSigners: opts.TotalSigners,
		Cosigners:    cosigners,
	}
	if err := account.Validate(opts.Network); err != nil {
		return nil, err
	}
	return account, nil
}

// Kind ...
func (a *MultisigAccount) Kind() AccountKind {
	return AccountKindMultisig
}

// Self returns the cosigner entry of the local wallet.
func (a *MultisigAccount) Self() (*Cosigner, error) {
	for i := range a.Cosigners {
		if a.Cosigners[i].IsSelf {
			return &a.Cosigners[i], nil
		}
	}
	return nil, ErrSelfCosigner
}

// Validate ...
func (a *MultisigAccount) Validate(network *chaincfg.Params) error {
	if err := a.AccountInfo.validate(); err != nil {
		return err
	}
	if !a.ScriptType.IsMultisig() {
		return wallet.ErrInvalidScriptType
	}
	return ValidateCosigners(a.Threshold, a.TotalSigners, a.Cosigners, network)
}

// ValidateCosigners checks the integrity of an M-of-N cosigner set: exactly N
// entries with pairwise distinct fingerprints and xpubs, valid keys and paths,
// and exactly one entry for the local wallet.
func ValidateCosigners(
	threshold, totalSigners int, cosigners []Cosigner, network *chaincfg.Params,
) error {
	if totalSigners <= 0 || totalSigners > wallet.MaxMultisigKeys ||
		threshold <= 0 || threshold > totalSigners {
		return wallet.ErrInvalidThreshold
	}
	if len(cosigners) != totalSigners {
		return fmt.Errorf(
			"%w: expected %d cosigners, got %d",
			wallet.ErrCosignerCount, totalSigners, len(cosigners),
		)
	}

	fingerprints := make(map[string]struct{}, len(cosigners))
	xpubs := make(map[string]struct{}, len(cosigners))
	selfCount := 0
	for i, c := range cosigners {
		fingerprint := strings.ToLower(strings.TrimSpace(c.Fingerprint))
		if _, err := wallet.ParseFingerprint(fingerprint); err != nil {
			return fmt.Errorf("%w %d: bad fingerprint", ErrInvalidCosigner, i)
		}
		if _, err := wallet.ParseExtendedPublicKey(c.Xpub, network); err != nil {
			return fmt.Errorf("%w %d: bad xpub", ErrInvalidCosigner, i)
		}
		if _, err := wallet.ParseDerivationPath(c.DerivationPath); err != nil {
			return fmt.Errorf("%w %d: bad derivation path", ErrInvalidCosigner, i)
		}

		if _, ok := fingerprints[fingerprint]; ok {
			return ErrDuplicateCosignerFingerprint
		}
		fingerprints[fingerprint] = struct{}{}
		if _, ok := xpubs[c.Xpub]; ok {
			return ErrDuplicateCosignerXpub
		}
		xpubs[c.Xpub] = struct{}{}

		if c.IsSelf {
			selfCount++
		}
	}
	if selfCount != 1 {
		return ErrSelfCosigner
	}
	return nil
}

/**** SERIALIZATION ****/

type accountEnvelope struct {
	Kind    AccountKind     `json:"kind"`
	Account json.RawMessage `json:"account"`
}

// Accounts is the list of accounts of a wallet. It is serialized with a kind
// tag for every entry.
type Accounts []Account

// MarshalJSON ...
func (a Accounts) MarshalJSON() ([]byte, error) {
	envelopes := make([]accountEnvelope, 0, len(a))
	for _, account := range a {
		raw, err := json.Marshal(account)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, accountEnvelope{account.Kind(), raw})
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON ...
func (a *Accounts) UnmarshalJSON(data []byte) error {
	var envelopes []accountEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}

	accounts := make(Accounts, 0, len(envelopes))
	for _, e := range envelopes {
		account, err := decodeAccount(e)
		if err != nil {
			return err
		}
		accounts = append(accounts, account)
	}
	*a = accounts
	return nil
}

func decodeAccount(e accountEnvelope) (Account, error) {
	var account Account
	switch e.Kind {
	case AccountKindSingleSig:
		account = &SingleSigAccount{}
	case AccountKindMultisig:
		account = &MultisigAccount{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccountKind, e.Kind)
	}
	if err := json.Unmarshal(e.Account, account); err != nil {
		return nil, err
	}
	return account, nil
}

func accountName(name string, index uint32) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("Account %d", index)
	}
	return name
}
