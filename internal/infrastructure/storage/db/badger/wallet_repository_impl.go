package dbbadger

import (
	"context"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

type walletRepositoryImpl struct {
	db    *DbManager
	store *badgerhold.Store
	lock  *sync.Mutex
}

// NewWalletRepositoryImpl returns a badger backed domain.WalletRepository.
func NewWalletRepositoryImpl(db *DbManager) domain.WalletRepository {
	return &walletRepositoryImpl{
		db:    db,
		store: db.Store,
		lock:  &sync.Mutex{},
	}
}

func (r *walletRepositoryImpl) CreateWallet(
	ctx context.Context, wallet *domain.Wallet,
) error {
	if wallet == nil {
		return domain.ErrNullWallet
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	wallet.Revision = 1
	err := r.store.Badger().Update(func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, wallet.ID, wallet)
	})
	if err != nil {
		wallet.Revision = 0
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return domain.ErrWalletAlreadyExists
		}
		return mapTxError(err)
	}
	return nil
}

func (r *walletRepositoryImpl) GetWallet(
	ctx context.Context, id string,
) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := r.store.Badger().View(func(tx *badger.Txn) error {
		w, err := r.getWallet(tx, id)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *walletRepositoryImpl) GetAllWallets(
	ctx context.Context,
) ([]*domain.Wallet, error) {
	var wallets []domain.Wallet
	if err := r.store.Find(&wallets, nil); err != nil {
		return nil, err
	}

	res := make([]*domain.Wallet, 0, len(wallets))
	for i := range wallets {
		res = append(res, &wallets[i])
	}
	return res, nil
}

func (r *walletRepositoryImpl) UpdateWallet(
	ctx context.Context, id string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) (*domain.Wallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var updatedWallet *domain.Wallet
	err := r.store.Badger().Update(func(tx *badger.Txn) error {
		current, err := r.getWallet(tx, id)
		if err != nil {
			return err
		}
		revision := current.Revision

		updated, err := updateFn(current)
		if err != nil {
			return err
		}
		if updated == nil {
			return domain.ErrNullWallet
		}
		updated.ID = id
		updated.Revision = revision + 1

		if err := r.store.TxUpdate(tx, id, updated); err != nil {
			return err
		}
		updatedWallet = updated
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	return updatedWallet, nil
}

func (r *walletRepositoryImpl) SaveWallet(
	ctx context.Context, wallet *domain.Wallet,
) error {
	if wallet == nil {
		return domain.ErrNullWallet
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	revision := wallet.Revision
	err := r.store.Badger().Update(func(tx *badger.Txn) error {
		current, err := r.getWallet(tx, wallet.ID)
		if err != nil {
			return err
		}
		if current.Revision != revision {
			return domain.ErrStorageConflict
		}

		wallet.Revision = revision + 1
		return r.store.TxUpdate(tx, wallet.ID, wallet)
	})
	if err != nil {
		wallet.Revision = revision
		return mapTxError(err)
	}
	return nil
}

func (r *walletRepositoryImpl) DeleteWallet(
	ctx context.Context, id string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	err := r.store.Badger().Update(func(tx *badger.Txn) error {
		return r.store.TxDelete(tx, id, domain.Wallet{})
	})
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrWalletNotFound
		}
		return mapTxError(err)
	}
	return nil
}

func (r *walletRepositoryImpl) Close() {
	r.db.Close()
}

func (r *walletRepositoryImpl) getWallet(
	tx *badger.Txn, id string,
) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := r.store.TxGet(tx, id, &wallet); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func mapTxError(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrStorageConflict
	}
	return err
}
