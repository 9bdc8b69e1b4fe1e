package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tdex-network/tdex-wallet/internal/core/domain"
)

type walletInmemoryStore struct {
	wallets map[string]*domain.Wallet
	locker  *sync.Mutex
}

// WalletRepositoryImpl represents an in memory storage. Wallets are deep
// copied in and out, so that callers never share state with the store.
type WalletRepositoryImpl struct {
	store *walletInmemoryStore
}

// NewWalletRepositoryImpl returns a new empty WalletRepositoryImpl
func NewWalletRepositoryImpl() domain.WalletRepository {
	return &WalletRepositoryImpl{
		store: &walletInmemoryStore{
			wallets: map[string]*domain.Wallet{},
			locker:  &sync.Mutex{},
		},
	}
}

func (r *WalletRepositoryImpl) CreateWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	if wallet == nil {
		return domain.ErrNullWallet
	}

	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.wallets[wallet.ID]; ok {
		return domain.ErrWalletAlreadyExists
	}

	wallet.Revision = 1
	return r.put(wallet)
}

func (r *WalletRepositoryImpl) GetWallet(
	_ context.Context, id string,
) (*domain.Wallet, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.get(id)
}

func (r *WalletRepositoryImpl) GetAllWallets(
	_ context.Context,
) ([]*domain.Wallet, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	ids := make([]string, 0, len(r.store.wallets))
	for id := range r.store.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	wallets := make([]*domain.Wallet, 0, len(ids))
	for _, id := range ids {
		w, err := r.get(id)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, nil
}

func (r *WalletRepositoryImpl) UpdateWallet(
	_ context.Context, id string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) (*domain.Wallet, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	current, err := r.get(id)
	if err != nil {
		return nil, err
	}
	revision := current.Revision

	updated, err := updateFn(current)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNullWallet
	}
	updated.ID = id
	updated.Revision = revision + 1

	if err := r.put(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *WalletRepositoryImpl) SaveWallet(
	_ context.Context, wallet *domain.Wallet,
) error {
	if wallet == nil {
		return domain.ErrNullWallet
	}

	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	current, ok := r.store.wallets[wallet.ID]
	if !ok {
		return domain.ErrWalletNotFound
	}
	if current.Revision != wallet.Revision {
		return domain.ErrStorageConflict
	}

	wallet.Revision++
	if err := r.put(wallet); err != nil {
		wallet.Revision--
		return err
	}
	return nil
}

func (r *WalletRepositoryImpl) DeleteWallet(
	_ context.Context, id string,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.wallets[id]; !ok {
		return domain.ErrWalletNotFound
	}
	delete(r.store.wallets, id)
	return nil
}

func (r *WalletRepositoryImpl) Close() {}

func (r *WalletRepositoryImpl) get(id string) (*domain.Wallet, error) {
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return w.Copy()
}

func (r *WalletRepositoryImpl) put(wallet *domain.Wallet) error {
	w, err := wallet.Copy()
	if err != nil {
		return err
	}
	r.store.wallets[wallet.ID] = w
	return nil
}
