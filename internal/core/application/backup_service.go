package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

type BackupService interface {
	ExportBackup(ctx context.Context, backupPassword string) ([]byte, error)
	ImportBackup(
		ctx context.Context, data []byte, backupPassword, password string,
	) (*ImportBackupReply, error)
}

// ExportBackup returns the encrypted backup of the unlocked wallet: seed,
// accounts, imported keys, metadata and pending transactions.
func (e *Engine) ExportBackup(
	ctx context.Context, backupPassword string,
) ([]byte, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	if len(backupPassword) <= 0 {
		return nil, wallet.ErrNullPassword
	}

	w, err := e.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return nil, err
	}

	seed, err := s.Seed()
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(seed)

	keys, err := s.ImportedKeys()
	if err != nil {
		return nil, err
	}
	wifs := make(map[uint32]string, len(keys))
	for index, key := range keys {
		wif, err := wallet.EncodeWIF(key, e.network)
		if err != nil {
			return nil, err
		}
		wifs[index] = wif
	}

	password, err := s.Password()
	if err != nil {
		return nil, err
	}
	metadata, err := domain.DecryptMetadata(w.EncryptedMetadata, password)
	if err != nil {
		return nil, err
	}

	backup, err := domain.NewBackup(domain.NewBackupOpts{
		Wallet:       w,
		Seed:         seed,
		ImportedKeys: wifs,
		Metadata:     metadata,
	})
	if err != nil {
		return nil, err
	}
	data, err := domain.EncryptBackup(backup, backupPassword, e.kdfIterations)
	if err != nil {
		return nil, err
	}

	log.WithField("accounts", len(backup.Accounts)).Info("backup exported")
	return data, nil
}

// ImportBackup restores a wallet from a backup of any known version, and
// unlocks it with the given password. Sections that can't be restored are
// skipped and reported as warnings.
func (e *Engine) ImportBackup(
	ctx context.Context, data []byte, backupPassword, password string,
) (*ImportBackupReply, error) {
	if e.isInitialized() {
		return nil, ErrWalletAlreadyInitialized
	}
	if len(password) <= 0 {
		return nil, wallet.ErrNullPassword
	}

	backup, warnings, err := domain.DecryptBackup(data, backupPassword)
	if err != nil {
		return nil, err
	}
	if backup.Network != e.network.Name {
		return nil, fmt.Errorf(
			"%w: backup is for %s", wallet.ErrNetworkMismatch, backup.Network,
		)
	}

	seed, err := backup.SeedBytes()
	if err != nil {
		return nil, err
	}

	r := &backupRestorer{
		engine:       e,
		backup:       backup,
		password:     password,
		importedKeys: make(map[uint32]*btcec.PrivateKey),
		warnings:     warnings,
	}
	w, err := r.restore(seed)
	if err != nil {
		wallet.Zero(seed)
		r.zeroKeys()
		return nil, err
	}

	if err := e.repo.CreateWallet(ctx, w); err != nil {
		wallet.Zero(seed)
		r.zeroKeys()
		return nil, err
	}
	if _, err := e.openSession(w, seed, r.importedKeys, password); err != nil {
		return nil, err
	}

	for _, warning := range r.warnings {
		log.WithField("wallet", w.ID).Warn(warning)
	}
	log.WithFields(log.Fields{
		"wallet":   w.ID,
		"version":  backup.Version,
		"accounts": len(w.Accounts),
	}).Info("wallet restored from backup")

	return &ImportBackupReply{
		WalletID: w.ID,
		Version:  backup.Version,
		Warnings: r.warnings,
	}, nil
}

type backupRestorer struct {
	engine       *Engine
	backup       *domain.Backup
	password     string
	importedKeys map[uint32]*btcec.PrivateKey
	warnings     []string
}

func (r *backupRestorer) restore(seed []byte) (*domain.Wallet, error) {
	if len(seed) <= 0 {
		return r.restoreKeyOnly()
	}

	e := r.engine
	w, err := domain.NewWallet(domain.NewWalletOpts{
		Seed:       seed,
		Network:    e.network,
		Password:   r.password,
		Iterations: e.kdfIterations,
	})
	if err != nil {
		return nil, err
	}
	if fp := r.backup.MasterFingerprint; fp != "" && fp != w.MasterFingerprint {
		return nil, ErrFingerprintMismatch
	}

	signer, err := wallet.NewWalletFromSeed(wallet.NewWalletFromSeedOpts{
		Seed:    seed,
		Network: e.network,
	})
	if err != nil {
		return nil, err
	}
	defer signer.Zero()

	if r.backup.Version == domain.BackupVersion1 {
		r.restoreLegacyAccounts(w, signer)
	} else {
		for _, account := range r.backup.Accounts {
			r.restoreAccount(w, signer, account)
		}
	}

	if len(w.Accounts) <= 0 {
		r.warn("backup has no restorable account, default one created")
		account, err := newSingleSigAccount(w, signer, "", wallet.P2WPKH)
		if err != nil {
			return nil, err
		}
		if err := w.AddAccount(account); err != nil {
			return nil, err
		}
	}

	if err := r.restoreExtras(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *backupRestorer) restoreKeyOnly() (*domain.Wallet, error) {
	var w *domain.Wallet
	for _, account := range r.backup.Accounts {
		a, ok := account.(*domain.SingleSigAccount)
		if !ok || !r.isImported(a) {
			r.warn(fmt.Sprintf(
				"account %d skipped: backup has no seed", account.Info().Index,
			))
			continue
		}
		restored, err := r.importedAccount(a)
		if err != nil {
			r.warn(fmt.Sprintf("account %d skipped: %s", a.Index, err))
			continue
		}

		if w == nil {
			if w, err = domain.NewKeyOnlyWallet(r.engine.network, restored); err != nil {
				return nil, err
			}
			continue
		}
		if err := w.AddAccount(restored); err != nil {
			r.warn(fmt.Sprintf("account %d skipped: %s", a.Index, err))
		}
	}
	if w == nil {
		return nil, fmt.Errorf("%w: no restorable key", domain.ErrInvalidBackup)
	}

	if err := r.restoreExtras(w); err != nil {
		return nil, err
	}
	return w, nil
}

// restoreLegacyAccounts re-derives the accounts listed by a version 1 backup.
func (r *backupRestorer) restoreLegacyAccounts(
	w *domain.Wallet, signer *wallet.Wallet,
) {
	for _, legacy := range r.backup.LegacyAccounts {
		account, err := newSingleSigAccountWithIndex(
			w, signer, legacy.Index, legacy.Name, legacy.ScriptType,
		)
		if err == nil {
			err = w.AddAccount(account)
		}
		if err != nil {
			r.warn(fmt.Sprintf("account %d skipped: %s", legacy.Index, err))
		}
	}
}

func (r *backupRestorer) restoreAccount(
	w *domain.Wallet, signer *wallet.Wallet, account domain.Account,
) {
	info := account.Info()

	if a, ok := account.(*domain.SingleSigAccount); ok && r.isImported(a) {
		restored, err := r.importedAccount(a)
		if err == nil {
			err = w.AddAccount(restored)
		}
		if err != nil {
			r.warn(fmt.Sprintf("account %d skipped: %s", info.Index, err))
		}
		return
	}

	err := account.Validate(r.engine.network)
	if err == nil {
		switch a := account.(type) {
		case *domain.MultisigAccount:
			err = r.checkSelfCosigner(signer, a)
		case *domain.SingleSigAccount:
			err = r.checkAccountXpub(signer, a)
		}
	}
	if err == nil {
		if err := w.AddAccount(account); err != nil {
			r.warn(fmt.Sprintf("account %d skipped: %s", info.Index, err))
		}
		return
	}

	// The local cosigner mismatch is not persisted, it's reported again
	// whenever the account is used.
	if errors.Is(err, ErrSelfXpubMismatch) {
		if err := w.AddAccount(account); err != nil {
			r.warn(fmt.Sprintf("account %d skipped: %s", info.Index, err))
			return
		}
		r.warn(fmt.Sprintf("account %d restored: %s", info.Index, err))
		return
	}

	// A corrupted multisig is kept to be shown, but it's unusable.
	if _, ok := account.(*domain.MultisigAccount); ok && wallet.IsFatal(err) {
		if _, dupErr := w.AccountByIndex(info.Index); dupErr == nil {
			r.warn(fmt.Sprintf("account %d skipped: duplicate index", info.Index))
			return
		}
		info.MarkUnusable(err)
		w.Accounts = append(w.Accounts, account)
		r.warn(fmt.Sprintf("account %d restored as unusable: %s", info.Index, err))
		return
	}
	r.warn(fmt.Sprintf("account %d skipped: %s", info.Index, err))
}

func (r *backupRestorer) checkSelfCosigner(
	signer *wallet.Wallet, account *domain.MultisigAccount,
) error {
	self, err := account.Self()
	if err != nil {
		return err
	}
	ok, err := derivesXpub(signer, self.DerivationPath, self.Xpub)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSelfXpubMismatch
	}
	return nil
}

// checkAccountXpub makes sure the addresses of a restored HD account are
// spendable by the seed of the backup.
func (r *backupRestorer) checkAccountXpub(
	signer *wallet.Wallet, account *domain.SingleSigAccount,
) error {
	ok, err := derivesXpub(signer, account.DerivationPath, account.Xpub)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountXpubMismatch
	}
	return nil
}

func derivesXpub(signer *wallet.Wallet, derivationPath, xpub string) (bool, error) {
	path, err := wallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return false, err
	}
	derived, err := signer.AccountExtendedPublicKey(path)
	if err != nil {
		return false, err
	}
	return derived == xpub, nil
}

func (r *backupRestorer) isImported(a *domain.SingleSigAccount) bool {
	_, ok := r.backup.ImportedKeys[a.Index]
	return ok || (a.Xpub == "" && a.DerivationPath == "")
}

// importedAccount rebuilds an imported key account from the WIF in the
// backup, checking it matches the stored address.
func (r *backupRestorer) importedAccount(
	a *domain.SingleSigAccount,
) (*domain.SingleSigAccount, error) {
	wif, ok := r.backup.ImportedKeys[a.Index]
	if !ok {
		return nil, fmt.Errorf("missing private key")
	}
	key, err := wallet.ParseWIF(wif, r.engine.network)
	if err != nil {
		return nil, err
	}

	restored, err := r.engine.newImportedAccount(
		a.Index, a.Name, a.ScriptType, key, r.password,
	)
	if err != nil {
		key.Zero()
		return nil, err
	}
	if len(a.External.Addresses) > 0 &&
		!bytes.Equal(a.External.Addresses[0].Script, restored.External.Addresses[0].Script) {
		key.Zero()
		return nil, fmt.Errorf("%w: private key doesn't match address", domain.ErrInvalidBackup)
	}
	restored.External.Addresses[0].Used = len(a.External.Addresses) > 0 &&
		a.External.Addresses[0].Used

	r.importedKeys[a.Index] = key
	return restored, nil
}

func (r *backupRestorer) restoreExtras(w *domain.Wallet) error {
	if r.backup.Metadata != nil {
		blob, err := domain.EncryptMetadata(
			r.backup.Metadata, r.password, r.engine.kdfIterations,
		)
		if err != nil {
			return err
		}
		w.EncryptedMetadata = blob
	}
	w.PendingTransactions = r.backup.PendingTransactions
	return nil
}

func (r *backupRestorer) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

func (r *backupRestorer) zeroKeys() {
	for _, key := range r.importedKeys {
		key.Zero()
	}
}
