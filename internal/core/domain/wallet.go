package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// SchemaVersion is the version of the persisted wallet document.
const SchemaVersion = 2

// Wallet is the aggregate persisted for every wallet. All secrets are kept
// encrypted, the plaintext seed only lives in an unlocked session.
type Wallet struct {
	ID            string `json:"id"`
	Network       string `json:"network"`
	SchemaVersion int    `json:"schema_version"`
	// Revision is bumped by the repository at every write.
	Revision uint64 `json:"revision"`
	// EncryptedSeed is nil for wallets restored from a single private key.
	EncryptedSeed *wallet.EncryptedBlob `json:"encrypted_seed,omitempty"`
	// MasterFingerprint is the hex fingerprint of the master key.
	MasterFingerprint   string                `json:"master_fingerprint,omitempty"`
	Accounts            Accounts              `json:"accounts"`
	EncryptedMetadata   *wallet.EncryptedBlob `json:"encrypted_metadata,omitempty"`
	PendingTransactions []PendingTransaction  `json:"pending_transactions,omitempty"`
	CreatedAt           int64                 `json:"created_at"`
}

// PendingTransaction is a signed transaction whose broadcast failed.
type PendingTransaction struct {
	Txid      string `json:"txid"`
	TxHex     string `json:"tx_hex"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewWalletOpts is the struct given to NewWallet.
type NewWalletOpts struct {
	Seed       []byte
	Network    *chaincfg.Params
	Password   string
	Iterations int
}

// NewWallet encrypts the seed with the password and returns a wallet without
// accounts.
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	w, err := wallet.NewWalletFromSeed(wallet.NewWalletFromSeedOpts{
		Seed:    opts.Seed,
		Network: opts.Network,
	})
	if err != nil {
		return nil, err
	}
	fingerprint := w.MasterFingerprint()
	w.Zero()

	encryptedSeed, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  opts.Seed,
		Password:   opts.Password,
		Iterations: opts.Iterations,
	})
	if err != nil {
		return nil, err
	}

	return &Wallet{
		ID:                uuid.New().String(),
		Network:           opts.Network.Name,
		SchemaVersion:     SchemaVersion,
		EncryptedSeed:     encryptedSeed,
		MasterFingerprint: wallet.FingerprintString(fingerprint),
		Accounts:          Accounts{},
		CreatedAt:         time.Now().Unix(),
	}, nil
}

// NewKeyOnlyWallet returns a wallet without seed, whose only account holds
// an imported private key.
func NewKeyOnlyWallet(network *chaincfg.Params, account *SingleSigAccount) (*Wallet, error) {
	if network == nil {
		return nil, wallet.ErrNullNetwork
	}
	if account == nil || !account.IsImported() {
		return nil, fmt.Errorf("%w: missing imported key account", wallet.ErrValidation)
	}
	return &Wallet{
		ID:            uuid.New().String(),
		Network:       network.Name,
		SchemaVersion: SchemaVersion,
		Accounts:      Accounts{account},
		CreatedAt:     time.Now().Unix(),
	}, nil
}

// ChainParams returns the params of the wallet's network.
func (w *Wallet) ChainParams() (*chaincfg.Params, error) {
	return wallet.NetworkFromName(w.Network)
}

// HasSeed returns whether the wallet is HD.
func (w *Wallet) HasSeed() bool {
	return w.EncryptedSeed != nil
}

// CoinType returns the BIP44 coin type of the wallet's network.
func (w *Wallet) CoinType() uint32 {
	if w.Network == chaincfg.MainNetParams.Name {
		return 0
	}
	return 1
}

// Validate checks every account of the wallet.
func (w *Wallet) Validate() error {
	network, err := w.ChainParams()
	if err != nil {
		return err
	}
	seen := make(map[uint32]struct{}, len(w.Accounts))
	for _, account := range w.Accounts {
		index := account.Info().Index
		if _, ok := seen[index]; ok {
			return fmt.Errorf("%w: duplicate index %d", ErrAccountAlreadyExists, index)
		}
		seen[index] = struct{}{}
		// Corrupted accounts are kept to be shown, but they aren't checked.
		if !account.Info().IsUsable() {
			continue
		}
		if err := account.Validate(network); err != nil {
			return err
		}
	}
	return nil
}

// NextAccountIndex returns the index for a new account.
func (w *Wallet) NextAccountIndex() uint32 {
	var next uint32
	for _, account := range w.Accounts {
		if index := account.Info().Index; index >= next {
			next = index + 1
		}
	}
	return next
}

// NextAccountNumber returns the BIP44 account level for a new HD account of
// the given script type, that is the number of existing HD accounts sharing
// the same derivation branch.
func (w *Wallet) NextAccountNumber(scriptType wallet.ScriptType) uint32 {
	var count uint32
	for _, account := range w.Accounts {
		info := account.Info()
		if info.ScriptType != scriptType {
			continue
		}
		if a, ok := account.(*SingleSigAccount); ok && a.IsImported() {
			continue
		}
		count++
	}
	return count
}

// AddAccount validates and appends the given account.
func (w *Wallet) AddAccount(account Account) error {
	network, err := w.ChainParams()
	if err != nil {
		return err
	}
	if err := account.Validate(network); err != nil {
		return err
	}
	if _, err := w.AccountByIndex(account.Info().Index); err == nil {
		return ErrAccountAlreadyExists
	}
	w.Accounts = append(w.Accounts, account)
	return nil
}

// AccountByIndex ...
func (w *Wallet) AccountByIndex(index uint32) (Account, error) {
	for _, account := range w.Accounts {
		if account.Info().Index == index {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, index)
}

// AccountByAddress returns the account owning addr along with the address.
func (w *Wallet) AccountByAddress(addr string) (Account, *Address, error) {
	for _, account := range w.Accounts {
		if found, ok := account.Info().AddressByAddress(addr); ok {
			return account, found, nil
		}
	}
	return nil, nil, ErrAddressNotFound
}

// RenameAccount ...
func (w *Wallet) RenameAccount(index uint32, name string) error {
	account, err := w.AccountByIndex(index)
	if err != nil {
		return err
	}
	if len(name) > MaxAccountNameLength {
		return ErrInvalidAccountName
	}
	account.Info().Name = accountName(name, index)
	return nil
}

// AddPendingTransaction stores, or updates, a transaction whose broadcast
// failed.
func (w *Wallet) AddPendingTransaction(txid, txHex string, broadcastErr error) {
	now := time.Now().Unix()
	msg := ""
	if broadcastErr != nil {
		msg = broadcastErr.Error()
	}
	for i := range w.PendingTransactions {
		if w.PendingTransactions[i].Txid == txid {
			w.PendingTransactions[i].Attempts++
			w.PendingTransactions[i].Error = msg
			w.PendingTransactions[i].UpdatedAt = now
			return
		}
	}
	w.PendingTransactions = append(w.PendingTransactions, PendingTransaction{
		Txid:      txid,
		TxHex:     txHex,
		Error:     msg,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// PendingTransaction ...
func (w *Wallet) PendingTransaction(txid string) (*PendingTransaction, error) {
	for i := range w.PendingTransactions {
		if w.PendingTransactions[i].Txid == txid {
			return &w.PendingTransactions[i], nil
		}
	}
	return nil, ErrPendingTxNotFound
}

// RemovePendingTransaction drops the given transaction, if present.
func (w *Wallet) RemovePendingTransaction(txid string) {
	list := w.PendingTransactions[:0]
	for _, tx := range w.PendingTransactions {
		if tx.Txid != txid {
			list = append(list, tx)
		}
	}
	w.PendingTransactions = list
}

// Copy returns a deep copy of the wallet.
func (w *Wallet) Copy() (*Wallet, error) {
	buf, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var cp Wallet
	if err := json.Unmarshal(buf, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
