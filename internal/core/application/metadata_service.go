package application

import (
	"context"

	"github.com/tdex-network/tdex-wallet/internal/core/domain"
)

type MetadataService interface {
	SetNote(ctx context.Context, txid, note string) error
	SetTags(ctx context.Context, key string, tags []string) error
	GetMetadata(ctx context.Context) (*domain.Metadata, error)
}

// SetNote sets the note of a transaction. An empty note removes it.
func (e *Engine) SetNote(ctx context.Context, txid, note string) error {
	return e.updateMetadata(ctx, func(m *domain.Metadata) error {
		return m.SetNote(txid, note)
	})
}

// SetTags replaces the tags of a transaction or an address.
func (e *Engine) SetTags(ctx context.Context, key string, tags []string) error {
	return e.updateMetadata(ctx, func(m *domain.Metadata) error {
		return m.SetTags(key, tags)
	})
}

func (e *Engine) GetMetadata(ctx context.Context) (*domain.Metadata, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	password, err := s.Password()
	if err != nil {
		return nil, err
	}
	w, err := e.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return nil, err
	}
	return domain.DecryptMetadata(w.EncryptedMetadata, password)
}

func (e *Engine) updateMetadata(
	ctx context.Context, updateFn func(m *domain.Metadata) error,
) error {
	s, err := e.activeSession()
	if err != nil {
		return err
	}
	password, err := s.Password()
	if err != nil {
		return err
	}

	_, err = e.repo.UpdateWallet(ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
		m, err := domain.DecryptMetadata(w.EncryptedMetadata, password)
		if err != nil {
			return nil, err
		}
		if err := updateFn(m); err != nil {
			return nil, err
		}
		blob, err := domain.EncryptMetadata(m, password, e.kdfIterations)
		if err != nil {
			return nil, err
		}
		w.EncryptedMetadata = blob
		return w, nil
	})
	return err
}
