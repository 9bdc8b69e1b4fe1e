package domain

import "context"

// WalletRepository is the abstraction for any kind of database intended to
// persist Wallets. Writes are serialized: UpdateWallet always works on the
// latest revision, SaveWallet refuses to overwrite a wallet modified since it
// was read.
type WalletRepository interface {
	// CreateWallet inserts a new wallet, or fails with ErrWalletAlreadyExists.
	CreateWallet(ctx context.Context, wallet *Wallet) error
	// GetWallet returns the latest revision of the wallet.
	GetWallet(ctx context.Context, id string) (*Wallet, error)
	// GetAllWallets ...
	GetAllWallets(ctx context.Context) ([]*Wallet, error)
	// UpdateWallet loads the latest wallet, applies updateFn and saves the
	// result with a new revision, atomically.
	UpdateWallet(
		ctx context.Context, id string, updateFn func(w *Wallet) (*Wallet, error),
	) (*Wallet, error)
	// SaveWallet stores the given wallet if its revision is the latest one,
	// otherwise fails with ErrStorageConflict.
	SaveWallet(ctx context.Context, wallet *Wallet) error
	// DeleteWallet ...
	DeleteWallet(ctx context.Context, id string) error
	Close()
}
