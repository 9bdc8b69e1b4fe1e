package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// Backup document versions. Version 1 only knows single-sig accounts by
// index, name and script type. Version 2 carries complete accounts, imported
// keys, metadata and pending transactions.
const (
	BackupVersion1       = 1
	BackupVersion2       = 2
	CurrentBackupVersion = BackupVersion2
)

// LegacyAccount is an account entry of a version 1 backup. It's restored by
// deriving its xpub from the seed.
type LegacyAccount struct {
	Index      uint32            `json:"index"`
	Name       string            `json:"name,omitempty"`
	ScriptType wallet.ScriptType `json:"script_type"`
}

// Backup is the plaintext content of an exported backup. The document as a
// whole is encrypted with the backup password, hence the secrets inside are
// in clear.
type Backup struct {
	Version           int    `json:"version"`
	Network           string `json:"network"`
	CreatedAt         int64  `json:"created_at"`
	Seed              string `json:"seed,omitempty"`
	MasterFingerprint string `json:"master_fingerprint,omitempty"`
	// v1 only.
	LegacyAccounts []LegacyAccount `json:"-"`
	Accounts       Accounts        `json:"accounts,omitempty"`
	// ImportedKeys are WIFs by account index. The encrypted keys of the
	// accounts are stripped.
	ImportedKeys        map[uint32]string    `json:"imported_keys,omitempty"`
	Metadata            *Metadata            `json:"metadata,omitempty"`
	PendingTransactions []PendingTransaction `json:"pending_transactions,omitempty"`
}

// NewBackupOpts is the struct given to NewBackup.
type NewBackupOpts struct {
	Wallet       *Wallet
	Seed         []byte
	ImportedKeys map[uint32]string
	Metadata     *Metadata
}

// NewBackup returns the backup document of the given wallet.
func NewBackup(opts NewBackupOpts) (*Backup, error) {
	if opts.Wallet == nil {
		return nil, ErrNullWallet
	}
	if len(opts.Seed) <= 0 && len(opts.ImportedKeys) <= 0 {
		return nil, wallet.ErrNullSeed
	}

	w, err := opts.Wallet.Copy()
	if err != nil {
		return nil, err
	}
	for _, account := range w.Accounts {
		if a, ok := account.(*SingleSigAccount); ok {
			a.ImportedKey = nil
		}
	}

	return &Backup{
		Version:             CurrentBackupVersion,
		Network:             w.Network,
		CreatedAt:           time.Now().Unix(),
		Seed:                hex.EncodeToString(opts.Seed),
		MasterFingerprint:   w.MasterFingerprint,
		Accounts:            w.Accounts,
		ImportedKeys:        opts.ImportedKeys,
		Metadata:            opts.Metadata,
		PendingTransactions: w.PendingTransactions,
	}, nil
}

// SeedBytes returns the decoded seed, nil if the backup has none.
func (b *Backup) SeedBytes() ([]byte, error) {
	if b.Seed == "" {
		return nil, nil
	}
	seed, err := hex.DecodeString(b.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: bad seed encoding", ErrInvalidBackup)
	}
	return seed, nil
}

// EncryptBackup serializes and encrypts the backup. The result is the JSON
// encoded encrypted blob.
func EncryptBackup(b *Backup, password string, iterations int) ([]byte, error) {
	buf, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(buf)

	blob, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  buf,
		Password:   password,
		Iterations: iterations,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(blob)
}

// DecryptBackup decrypts and parses a backup made by EncryptBackup with any
// version of the document. Malformed optional sections are skipped, a
// warning for each of them is returned.
func DecryptBackup(data []byte, password string) (*Backup, []string, error) {
	var blob wallet.EncryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, nil, ErrInvalidBackup
	}
	buf, err := wallet.Decrypt(wallet.DecryptOpts{
		Blob:     &blob,
		Password: password,
	})
	if err != nil {
		return nil, nil, err
	}
	defer wallet.Zero(buf)

	return ParseBackup(buf)
}

type rawBackup struct {
	Version             json.RawMessage `json:"version"`
	Network             string          `json:"network"`
	CreatedAt           int64           `json:"created_at"`
	Seed                string          `json:"seed"`
	MasterFingerprint   string          `json:"master_fingerprint"`
	Accounts            json.RawMessage `json:"accounts"`
	ImportedKeys        json.RawMessage `json:"imported_keys"`
	Metadata            json.RawMessage `json:"metadata"`
	PendingTransactions json.RawMessage `json:"pending_transactions"`
}

// ParseBackup parses a plaintext backup document. Only version, network and
// key material are required, every other section is parsed independently.
func ParseBackup(data []byte) (*Backup, []string, error) {
	var raw rawBackup
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, ErrInvalidBackup
	}

	version, err := parseBackupVersion(raw.Version)
	if err != nil {
		return nil, nil, err
	}
	if _, err := wallet.NetworkFromName(raw.Network); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidBackup, err)
	}

	warnings := make([]string, 0)
	if version > CurrentBackupVersion {
		warnings = append(warnings, fmt.Sprintf(
			"backup version %d is newer than %d, unknown sections are ignored",
			version, CurrentBackupVersion,
		))
	}

	b := &Backup{
		Version:           version,
		Network:           raw.Network,
		CreatedAt:         raw.CreatedAt,
		Seed:              raw.Seed,
		MasterFingerprint: raw.MasterFingerprint,
	}

	if version == BackupVersion1 {
		if len(raw.Accounts) > 0 {
			var legacy []LegacyAccount
			if err := json.Unmarshal(raw.Accounts, &legacy); err != nil {
				warnings = append(warnings, "accounts section is malformed, skipped")
			}
			b.LegacyAccounts = legacy
		}
	} else {
		accounts, accountWarnings := parseBackupAccounts(raw.Accounts)
		b.Accounts = accounts
		warnings = append(warnings, accountWarnings...)

		if len(raw.ImportedKeys) > 0 {
			var keys map[string]string
			if err := json.Unmarshal(raw.ImportedKeys, &keys); err != nil {
				warnings = append(warnings, "imported keys section is malformed, skipped")
			}
			b.ImportedKeys = parseImportedKeys(keys)
		}
		if len(raw.Metadata) > 0 {
			m := NewMetadata()
			if err := json.Unmarshal(raw.Metadata, m); err != nil {
				warnings = append(warnings, "metadata section is malformed, skipped")
			} else {
				b.Metadata = m
			}
		}
		if len(raw.PendingTransactions) > 0 {
			var txs []PendingTransaction
			if err := json.Unmarshal(raw.PendingTransactions, &txs); err != nil {
				warnings = append(warnings, "pending transactions section is malformed, skipped")
			}
			b.PendingTransactions = txs
		}
	}

	if b.Seed == "" && len(b.ImportedKeys) <= 0 {
		return nil, nil, fmt.Errorf("%w: backup holds no key material", ErrInvalidBackup)
	}
	if _, err := b.SeedBytes(); err != nil {
		return nil, nil, err
	}

	return b, warnings, nil
}

func parseBackupVersion(raw json.RawMessage) (int, error) {
	if len(raw) <= 0 {
		return 0, fmt.Errorf("%w: missing version", ErrInvalidBackup)
	}
	var version int
	if err := json.Unmarshal(raw, &version); err != nil {
		// Older exports stored the version as a string.
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, ErrUnsupportedBackupVersion
		}
		if version, err = strconv.Atoi(str); err != nil {
			return 0, ErrUnsupportedBackupVersion
		}
	}
	if version < BackupVersion1 {
		return 0, ErrUnsupportedBackupVersion
	}
	return version, nil
}

// parseBackupAccounts decodes the accounts one by one, so that an entry of
// unknown kind or malformed doesn't prevent restoring the others.
func parseBackupAccounts(raw json.RawMessage) (Accounts, []string) {
	warnings := make([]string, 0)
	if len(raw) <= 0 {
		return Accounts{}, []string{"backup has no accounts section"}
	}

	var envelopes []accountEnvelope
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return Accounts{}, []string{"accounts section is malformed, skipped"}
	}

	accounts := make(Accounts, 0, len(envelopes))
	for i, e := range envelopes {
		account, err := decodeAccount(e)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("account %d skipped: %s", i, err))
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, warnings
}

func parseImportedKeys(keys map[string]string) map[uint32]string {
	if len(keys) <= 0 {
		return nil
	}
	parsed := make(map[uint32]string, len(keys))
	for k, v := range keys {
		index, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			continue
		}
		parsed[uint32(index)] = v
	}
	return parsed
}
