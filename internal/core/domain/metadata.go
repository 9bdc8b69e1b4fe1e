package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// MaxNoteLength ...
const MaxNoteLength = 1024

// Metadata holds the user annotations of a wallet. It is persisted
// encrypted since notes and tags can reveal the owner's activity.
type Metadata struct {
	// Notes by txid.
	Notes map[string]string `json:"notes,omitempty"`
	// Tags by txid or address.
	Tags map[string][]string `json:"tags,omitempty"`
}

// NewMetadata returns empty metadata.
func NewMetadata() *Metadata {
	return &Metadata{
		Notes: map[string]string{},
		Tags:  map[string][]string{},
	}
}

// SetNote sets, or removes if empty, the note of the given transaction.
func (m *Metadata) SetNote(txid, note string) error {
	txid = strings.TrimSpace(txid)
	if txid == "" {
		return fmt.Errorf("%w: missing txid", wallet.ErrValidation)
	}
	if len(note) > MaxNoteLength {
		return fmt.Errorf(
			"%w: note must be at most %d chars", wallet.ErrValidation, MaxNoteLength,
		)
	}
	if m.Notes == nil {
		m.Notes = map[string]string{}
	}
	if note == "" {
		delete(m.Notes, txid)
		return nil
	}
	m.Notes[txid] = note
	return nil
}

// SetTags replaces the tags of the given txid or address. Tags are trimmed,
// deduplicated and sorted.
func (m *Metadata) SetTags(key string, tags []string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: missing tag target", wallet.ErrValidation)
	}
	if m.Tags == nil {
		m.Tags = map[string][]string{}
	}

	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	if len(set) <= 0 {
		delete(m.Tags, key)
		return nil
	}
	list := make([]string, 0, len(set))
	for t := range set {
		list = append(list, t)
	}
	sort.Strings(list)
	m.Tags[key] = list
	return nil
}

// EncryptMetadata ...
func EncryptMetadata(
	m *Metadata, password string, iterations int,
) (*wallet.EncryptedBlob, error) {
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(buf)

	return wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  buf,
		Password:   password,
		Iterations: iterations,
	})
}

// DecryptMetadata returns empty metadata if blob is nil.
func DecryptMetadata(blob *wallet.EncryptedBlob, password string) (*Metadata, error) {
	if blob == nil {
		return NewMetadata(), nil
	}
	buf, err := wallet.Decrypt(wallet.DecryptOpts{
		Blob:     blob,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(buf)

	m := NewMetadata()
	if err := json.Unmarshal(buf, m); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata", wallet.ErrValidation)
	}
	return m, nil
}
