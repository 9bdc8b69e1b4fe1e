package application

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

type WalletService interface {
	GenSeed(ctx context.Context, entropySize int) ([]string, error)
	CreateWallet(
		ctx context.Context, mnemonic []string, passphrase, password string,
	) (string, error)
	ImportMnemonic(
		ctx context.Context, mnemonic []string, passphrase, password string,
	) (string, error)
	ImportWIF(
		ctx context.Context,
		wif string,
		scriptType wallet.ScriptType,
		password string,
	) (string, error)
	Unlock(ctx context.Context, password string) error
	Lock(ctx context.Context) error
	Status(ctx context.Context) (*WalletStatus, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

// GenSeed returns a new mnemonic, 24 words by default.
func (e *Engine) GenSeed(_ context.Context, entropySize int) ([]string, error) {
	if entropySize == 0 {
		entropySize = 256
	}
	return wallet.NewMnemonic(wallet.NewMnemonicOpts{EntropySize: entropySize})
}

// CreateWallet stores a new wallet for a freshly generated mnemonic, with a
// default native segwit account, and unlocks it.
func (e *Engine) CreateWallet(
	ctx context.Context, mnemonic []string, passphrase, password string,
) (string, error) {
	return e.initWallet(ctx, mnemonic, passphrase, password, false)
}

// ImportMnemonic restores a wallet from its mnemonic. The history of the
// default account is synced in background once unlocked.
func (e *Engine) ImportMnemonic(
	ctx context.Context, mnemonic []string, passphrase, password string,
) (string, error) {
	return e.initWallet(ctx, mnemonic, passphrase, password, true)
}

// ImportWIF stores a wallet made of a single imported private key.
func (e *Engine) ImportWIF(
	ctx context.Context, wif string, scriptType wallet.ScriptType, password string,
) (string, error) {
	if e.isInitialized() {
		return "", ErrWalletAlreadyInitialized
	}
	if len(password) <= 0 {
		return "", wallet.ErrNullPassword
	}

	key, err := wallet.ParseWIF(wif, e.network)
	if err != nil {
		return "", err
	}
	account, err := e.newImportedAccount(0, "", scriptType, key, password)
	if err != nil {
		return "", err
	}
	w, err := domain.NewKeyOnlyWallet(e.network, account)
	if err != nil {
		return "", err
	}
	if err := e.repo.CreateWallet(ctx, w); err != nil {
		return "", err
	}

	if _, err := e.openSession(
		w, nil, map[uint32]*btcec.PrivateKey{account.Index: key}, password,
	); err != nil {
		return "", err
	}

	log.WithField("wallet", w.ID).Info("wallet imported from private key")
	return w.ID, nil
}

// Unlock decrypts the secrets of the wallet and opens a new session.
func (e *Engine) Unlock(ctx context.Context, password string) error {
	if e.isUnlocked() {
		return ErrWalletUnlocked
	}
	if len(password) <= 0 {
		return wallet.ErrNullPassword
	}

	w, err := e.loadWallet(ctx)
	if err != nil {
		return err
	}

	var seed []byte
	if w.HasSeed() {
		seed, err = wallet.Decrypt(wallet.DecryptOpts{
			Blob:     w.EncryptedSeed,
			Password: password,
		})
		if err != nil {
			return err
		}
	}

	importedKeys, err := decryptImportedKeys(w, password)
	if err != nil {
		wallet.Zero(seed)
		return err
	}

	if _, err := e.openSession(w, seed, importedKeys, password); err != nil {
		wallet.Zero(seed)
		return err
	}

	log.Info("wallet unlocked")
	return nil
}

// Lock closes the session, if any.
func (e *Engine) Lock(_ context.Context) error {
	if _, err := e.currentWalletID(); err != nil {
		return err
	}
	if e.lockCurrentSession() {
		log.Info("wallet locked")
	}
	return nil
}

func (e *Engine) Status(ctx context.Context) (*WalletStatus, error) {
	status := &WalletStatus{Network: e.network.Name}
	if !e.isInitialized() {
		return status, nil
	}

	w, err := e.loadWallet(ctx)
	if err != nil {
		return nil, err
	}
	status.Initialized = true
	status.Unlocked = e.isUnlocked()
	status.WalletID = w.ID
	status.HasSeed = w.HasSeed()
	status.MasterFingerprint = w.MasterFingerprint
	status.Accounts = len(w.Accounts)
	status.PendingTxs = len(w.PendingTransactions)
	return status, nil
}

// ChangePassword re-encrypts every secret of the wallet with the new
// password. It doesn't require the wallet to be unlocked.
func (e *Engine) ChangePassword(
	ctx context.Context, currentPassword, newPassword string,
) error {
	walletID, err := e.currentWalletID()
	if err != nil {
		return err
	}
	if len(currentPassword) <= 0 || len(newPassword) <= 0 {
		return wallet.ErrNullPassword
	}

	if _, err := e.repo.UpdateWallet(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		if w.HasSeed() {
			blob, err := reencrypt(
				w.EncryptedSeed, currentPassword, newPassword, e.kdfIterations,
			)
			if err != nil {
				return nil, err
			}
			w.EncryptedSeed = blob
		}

		for _, account := range w.Accounts {
			a, ok := account.(*domain.SingleSigAccount)
			if !ok || !a.IsImported() {
				continue
			}
			blob, err := reencrypt(
				a.ImportedKey, currentPassword, newPassword, e.kdfIterations,
			)
			if err != nil {
				return nil, err
			}
			a.ImportedKey = blob
		}

		if w.EncryptedMetadata != nil {
			blob, err := reencrypt(
				w.EncryptedMetadata, currentPassword, newPassword, e.kdfIterations,
			)
			if err != nil {
				return nil, err
			}
			w.EncryptedMetadata = blob
		}
		return w, nil
	}); err != nil {
		return err
	}

	if s, err := e.activeSession(); err == nil {
		if err := s.SetPassword(newPassword); err != nil {
			return err
		}
	}

	log.Info("wallet password changed")
	return nil
}

func (e *Engine) initWallet(
	ctx context.Context,
	mnemonic []string,
	passphrase, password string,
	isRestore bool,
) (string, error) {
	if e.isInitialized() {
		return "", ErrWalletAlreadyInitialized
	}
	if len(password) <= 0 {
		return "", wallet.ErrNullPassword
	}

	seed, err := wallet.MnemonicToSeed(wallet.MnemonicToSeedOpts{
		Mnemonic:   mnemonic,
		Passphrase: passphrase,
	})
	if err != nil {
		return "", err
	}

	w, err := domain.NewWallet(domain.NewWalletOpts{
		Seed:       seed,
		Network:    e.network,
		Password:   password,
		Iterations: e.kdfIterations,
	})
	if err != nil {
		wallet.Zero(seed)
		return "", err
	}

	signer, err := wallet.NewWalletFromSeed(wallet.NewWalletFromSeedOpts{
		Seed:    seed,
		Network: e.network,
	})
	if err != nil {
		wallet.Zero(seed)
		return "", err
	}
	account, err := newSingleSigAccount(w, signer, "", wallet.P2WPKH)
	signer.Zero()
	if err != nil {
		wallet.Zero(seed)
		return "", err
	}
	if err := w.AddAccount(account); err != nil {
		wallet.Zero(seed)
		return "", err
	}

	if err := e.repo.CreateWallet(ctx, w); err != nil {
		wallet.Zero(seed)
		return "", err
	}

	s, err := e.openSession(w, seed, nil, password)
	if err != nil {
		return "", err
	}
	if err := e.coordinator.EnsureAddressPool(ctx, s, account.Index); err != nil {
		return "", err
	}

	msg := "wallet created"
	if isRestore {
		msg = "wallet restored from mnemonic"
	}
	log.WithField("wallet", w.ID).Info(msg)
	return w.ID, nil
}

func (e *Engine) newImportedAccount(
	index uint32, name string, scriptType wallet.ScriptType,
	key *btcec.PrivateKey, password string,
) (*domain.SingleSigAccount, error) {
	serializedKey := key.Serialize()
	defer wallet.Zero(serializedKey)

	encryptedKey, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  serializedKey,
		Password:   password,
		Iterations: e.kdfIterations,
	})
	if err != nil {
		return nil, err
	}
	return domain.NewImportedAccount(domain.NewImportedAccountOpts{
		Index:        index,
		Name:         name,
		ScriptType:   scriptType,
		PublicKey:    key.PubKey().SerializeCompressed(),
		EncryptedKey: encryptedKey,
		Network:      e.network,
	})
}

// newSingleSigAccount derives the account xpub for the next BIP44/49/84
// account number of the given script type.
func newSingleSigAccount(
	w *domain.Wallet, signer *wallet.Wallet,
	name string, scriptType wallet.ScriptType,
) (*domain.SingleSigAccount, error) {
	return newSingleSigAccountWithIndex(
		w, signer, w.NextAccountIndex(), name, scriptType,
	)
}

func newSingleSigAccountWithIndex(
	w *domain.Wallet, signer *wallet.Wallet,
	index uint32, name string, scriptType wallet.ScriptType,
) (*domain.SingleSigAccount, error) {
	if scriptType.IsMultisig() {
		return nil, wallet.ErrInvalidScriptType
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
	return domain.NewSingleSigAccount(domain.NewSingleSigAccountOpts{
		Index:          index,
		Name:           name,
		ScriptType:     scriptType,
		DerivationPath: path,
		Xpub:           xpub,
		Network:        signer.Network(),
	})
}

func decryptImportedKeys(
	w *domain.Wallet, password string,
) (map[uint32]*btcec.PrivateKey, error) {
	keys := make(map[uint32]*btcec.PrivateKey)
	for _, account := range w.Accounts {
		a, ok := account.(*domain.SingleSigAccount)
		if !ok || !a.IsImported() {
			continue
		}
		buf, err := wallet.Decrypt(wallet.DecryptOpts{
			Blob:     a.ImportedKey,
			Password: password,
		})
		if err != nil {
			for _, key := range keys {
				key.Zero()
			}
			return nil, err
		}
		key, _ := btcec.PrivKeyFromBytes(buf)
		wallet.Zero(buf)
		keys[a.Index] = key
	}
	return keys, nil
}

func reencrypt(
	blob *wallet.EncryptedBlob, currentPassword, newPassword string, iterations int,
) (*wallet.EncryptedBlob, error) {
	buf, err := wallet.Decrypt(wallet.DecryptOpts{
		Blob:     blob,
		Password: currentPassword,
	})
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(buf)

	newBlob, err := wallet.Encrypt(wallet.EncryptOpts{
		PlainText:  buf,
		Password:   newPassword,
		Iterations: iterations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt with new password: %w", err)
	}
	return newBlob, nil
}
