package domain

import (
	"errors"
	"fmt"

	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

var (
	// ErrStorageConflict is returned when a write is based on a stale copy of
	// the wallet.
	ErrStorageConflict = errors.New("storage conflict: wallet was modified concurrently")
	// ErrBroadcastFailed is returned when a signed transaction couldn't be
	// announced. The transaction is kept among the pending ones and can be
	// broadcast again.
	ErrBroadcastFailed = errors.New(
		"broadcast failed: the signed transaction is stored and can be retried",
	)
)

var (
	// ErrWalletNotFound ...
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletAlreadyExists ...
	ErrWalletAlreadyExists = errors.New("wallet already exists")
	// ErrNullWallet ...
	ErrNullWallet = fmt.Errorf("%w: wallet must not be null", wallet.ErrValidation)
	// ErrWalletWithoutSeed is returned by operations that require HD
	// derivation on a wallet restored from a single private key.
	ErrWalletWithoutSeed = fmt.Errorf(
		"%w: wallet has no seed, only imported keys", wallet.ErrValidation,
	)

	// ErrAccountNotFound ...
	ErrAccountNotFound = fmt.Errorf("%w: account not found", wallet.ErrValidation)
	// ErrAccountAlreadyExists ...
	ErrAccountAlreadyExists = fmt.Errorf("%w: account already exists", wallet.ErrValidation)
	// ErrInvalidAccountName ...
	ErrInvalidAccountName = fmt.Errorf(
		"%w: account name must be at most %d chars", wallet.ErrValidation, MaxAccountNameLength,
	)
	// ErrAccountNotMultisig ...
	ErrAccountNotMultisig = fmt.Errorf("%w: account is not multisig", wallet.ErrValidation)
	// ErrUnknownAccountKind ...
	ErrUnknownAccountKind = fmt.Errorf("%w: unknown account kind", wallet.ErrValidation)
	// ErrAccountUnusable is returned for accounts whose configuration was
	// found corrupted. They never produce addresses or transactions.
	ErrAccountUnusable = fmt.Errorf("%w: account is unusable", wallet.ErrConfiguration)

	// ErrAddressNotFound ...
	ErrAddressNotFound = fmt.Errorf("%w: address not found", wallet.ErrValidation)
	// ErrAddressIndexRegression is returned when trying to add to a pool an
	// address whose index was already generated.
	ErrAddressIndexRegression = fmt.Errorf(
		"%w: address index must follow the last generated one", wallet.ErrValidation,
	)

	// ErrDuplicateCosignerFingerprint ...
	ErrDuplicateCosignerFingerprint = fmt.Errorf(
		"%w: cosigners must have distinct fingerprints", wallet.ErrConfiguration,
	)
	// ErrDuplicateCosignerXpub ...
	ErrDuplicateCosignerXpub = fmt.Errorf(
		"%w: cosigners must have distinct xpubs", wallet.ErrConfiguration,
	)
	// ErrInvalidCosigner ...
	ErrInvalidCosigner = fmt.Errorf("%w: invalid cosigner", wallet.ErrConfiguration)
	// ErrSelfCosigner is returned when the cosigners don't contain exactly one
	// entry for the local wallet, or the entry doesn't match the local seed.
	ErrSelfCosigner = fmt.Errorf(
		"%w: exactly one cosigner must belong to this wallet", wallet.ErrConfiguration,
	)

	// ErrPendingTxNotFound ...
	ErrPendingTxNotFound = fmt.Errorf("%w: pending transaction not found", wallet.ErrValidation)

	// ErrInvalidBackup ...
	ErrInvalidBackup = fmt.Errorf("%w: malformed backup", wallet.ErrValidation)
	// ErrUnsupportedBackupVersion ...
	ErrUnsupportedBackupVersion = fmt.Errorf(
		"%w: unsupported backup version", wallet.ErrValidation,
	)
)
