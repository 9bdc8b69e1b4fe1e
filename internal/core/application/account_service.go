package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

const selfCosignerName = "self"

type AccountService interface {
	CreateSingleSigAccount(
		ctx context.Context, name string, scriptType wallet.ScriptType,
	) (domain.Account, error)
	CreateMultisigAccount(
		ctx context.Context, req CreateMultisigAccountRequest,
	) (domain.Account, error)
	RenameAccount(ctx context.Context, accountIndex uint32, name string) error
	ListAccounts(ctx context.Context) (domain.Accounts, error)
	GetCosignerInfo(
		ctx context.Context, scriptType wallet.ScriptType,
	) (*domain.Cosigner, error)
}

// CreateSingleSigAccount adds a new HD account deriving from the next
// account number for the given script type.
func (e *Engine) CreateSingleSigAccount(
	ctx context.Context, name string, scriptType wallet.ScriptType,
) (domain.Account, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	signer, err := s.Signer()
	if err != nil {
		return nil, err
	}

	var accountIndex uint32
	if _, err := e.repo.UpdateWallet(ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
		account, err := newSingleSigAccount(w, signer, name, scriptType)
		if err != nil {
			return nil, err
		}
		if err := w.AddAccount(account); err != nil {
			return nil, err
		}
		accountIndex = account.Index
		return w, nil
	}); err != nil {
		return nil, err
	}

	return e.setupAccount(ctx, s, accountIndex)
}

// CreateMultisigAccount adds an M-of-N account whose local cosigner is
// derived from the seed at the BIP48 path for the next account number. The
// request lists the other cosigners, an entry equal to the local one is
// ignored.
func (e *Engine) CreateMultisigAccount(
	ctx context.Context, req CreateMultisigAccountRequest,
) (domain.Account, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	signer, err := s.Signer()
	if err != nil {
		return nil, err
	}
	if !req.ScriptType.IsMultisig() {
		return nil, wallet.ErrInvalidScriptType
	}

	var accountIndex uint32
	if _, err := e.repo.UpdateWallet(ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
		self, err := selfCosigner(w, signer, req.ScriptType)
		if err != nil {
			return nil, err
		}

		cosigners := []domain.Cosigner{*self}
		for _, c := range req.Cosigners {
			if c.Xpub == self.Xpub {
				continue
			}
			c.IsSelf = false
			cosigners = append(cosigners, c)
		}

		account, err := domain.NewMultisigAccount(domain.NewMultisigAccountOpts{
			Index:        w.NextAccountIndex(),
			Name:         req.Name,
			ScriptType:   req.ScriptType,
			Threshold:    req.Threshold,
			TotalSigners: req.TotalSigners,
			Cosigners:    cosigners,
			Network:      e.network,
		})
		if err != nil {
			return nil, err
		}
		if err := w.AddAccount(account); err != nil {
			return nil, err
		}
		accountIndex = account.Index
		return w, nil
	}); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"account":   accountIndex,
		"threshold": req.Threshold,
		"signers":   req.TotalSigners,
	}).Info("multisig account created")

	return e.setupAccount(ctx, s, accountIndex)
}

func (e *Engine) RenameAccount(
	ctx context.Context, accountIndex uint32, name string,
) error {
	walletID, err := e.currentWalletID()
	if err != nil {
		return err
	}
	_, err = e.repo.UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		if err := w.RenameAccount(accountIndex, name); err != nil {
			return nil, err
		}
		return w, nil
	})
	return err
}

func (e *Engine) ListAccounts(ctx context.Context) (domain.Accounts, error) {
	w, err := e.loadWallet(ctx)
	if err != nil {
		return nil, err
	}
	return w.Accounts, nil
}

// GetCosignerInfo returns the fingerprint, xpub and path the wallet would
// contribute to a new account of the given script type. Multisig script
// types use the BIP48 branch, the others the BIP44/49/84 ones.
func (e *Engine) GetCosignerInfo(
	ctx context.Context, scriptType wallet.ScriptType,
) (*domain.Cosigner, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	signer, err := s.Signer()
	if err != nil {
		return nil, err
	}
	w, err := e.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return nil, err
	}

	if scriptType.IsMultisig() {
		return selfCosigner(w, signer, scriptType)
	}

	purpose, err := scriptType.Purpose()
	if err != nil {
		return nil, err
	}
	path, err := wallet.SingleSigAccountPath(
		purpose, w.CoinType(), w.NextAccountNumber(scriptType),
	)
	if err != nil {
		return nil, err
	}
	xpub, err := signer.AccountExtendedPublicKey(path)
	if err != nil {
		return nil, err
	}
	return &domain.Cosigner{
		Name:           selfCosignerName,
		Fingerprint:    wallet.FingerprintString(signer.MasterFingerprint()),
		Xpub:           xpub,
		DerivationPath: path.String(),
		IsSelf:         true,
	}, nil
}

// setupAccount fills the address pools of a new account and schedules the
// lookup of its history.
func (e *Engine) setupAccount(
	ctx context.Context, s *Session, accountIndex uint32,
) (domain.Account, error) {
	if err := e.coordinator.EnsureAddressPool(ctx, s, accountIndex); err != nil {
		return nil, fmt.Errorf("account %d created but not usable: %w", accountIndex, err)
	}
	e.enqueueMaintenance(accountIndex)

	w, err := e.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return nil, err
	}
	return w.AccountByIndex(accountIndex)
}

func selfCosigner(
	w *domain.Wallet, signer *wallet.Wallet, scriptType wallet.ScriptType,
) (*domain.Cosigner, error) {
	path, err := wallet.MultisigAccountPath(
		w.CoinType(), w.NextAccountNumber(scriptType), scriptType,
	)
	if err != nil {
		return nil, err
	}
	xpub, err := signer.AccountExtendedPublicKey(path)
	if err != nil {
		return nil, err
	}
	return &domain.Cosigner{
		Name:           selfCosignerName,
		Fingerprint:    wallet.FingerprintString(signer.MasterFingerprint()),
		Xpub:           xpub,
		DerivationPath: path.String(),
		IsSelf:         true,
	}, nil
}
