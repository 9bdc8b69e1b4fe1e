package application

import (
	"errors"
	"fmt"

	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

var (
	// ErrWalletNotInitialized ...
	ErrWalletNotInitialized = errors.New("wallet not initialized")
	// ErrWalletAlreadyInitialized ...
	ErrWalletAlreadyInitialized = errors.New("wallet already initialized")
	// ErrWalletLocked is returned by every operation requiring the secrets of
	// the wallet while it's locked.
	ErrWalletLocked = errors.New("wallet is locked")
	// ErrWalletUnlocked ...
	ErrWalletUnlocked = errors.New("wallet is already unlocked")
	// ErrSessionClosed is returned when using a session after lock.
	ErrSessionClosed = errors.New("session is closed")
	// ErrSelfXpubMismatch is returned when the local cosigner of a multisig
	// account was not derived from the seed of the wallet.
	ErrSelfXpubMismatch = fmt.Errorf(
		"%w: local cosigner xpub doesn't match the wallet seed",
		domain.ErrSelfCosigner,
	)
	// ErrAccountXpubMismatch is returned when restoring a single-sig account
	// whose xpub was not derived from the seed of the backup.
	ErrAccountXpubMismatch = fmt.Errorf(
		"%w: account xpub doesn't match the wallet seed",
		wallet.ErrConfiguration,
	)
	// ErrUnknownFeeTier ...
	ErrUnknownFeeTier = fmt.Errorf("%w: unknown fee tier", wallet.ErrValidation)
	// ErrMissingFeeEstimates ...
	ErrMissingFeeEstimates = errors.New("fee estimates not available")
	// ErrInvalidTxHex ...
	ErrInvalidTxHex = fmt.Errorf("%w: malformed transaction hex", wallet.ErrValidation)
	// ErrImportedAccount is returned for operations that need an HD account.
	ErrImportedAccount = fmt.Errorf(
		"%w: operation not supported for imported key accounts",
		wallet.ErrValidation,
	)
	// ErrFingerprintMismatch is returned when restoring a backup whose seed
	// doesn't match its master fingerprint.
	ErrFingerprintMismatch = fmt.Errorf(
		"%w: seed doesn't match the backup fingerprint", wallet.ErrValidation,
	)
)
