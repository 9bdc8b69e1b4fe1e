package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
	"golang.org/x/sync/errgroup"
)

const (
	// maxSyncRounds bounds the discovery of used addresses of an account.
	maxSyncRounds = 100
	// maxConcurrentHistoryRequests ...
	maxConcurrentHistoryRequests = 4
)

// MultisigCoordinator keeps the gap-limited address pools of the accounts of
// a wallet. Multisig addresses are built from the keys of all cosigners at
// the same index, after checking the integrity of the cosigner set.
// Single-sig accounts go through the same pool logic without cosigner checks.
// Every mutation is a load-mutate-save of the wallet through the repository,
// and pools are only ever extended.
type MultisigCoordinator struct {
	repo     domain.WalletRepository
	explorer explorer.Service
	gapLimit int
}

// NewMultisigCoordinator ...
func NewMultisigCoordinator(
	repo domain.WalletRepository, explorerSvc explorer.Service, gapLimit int,
) *MultisigCoordinator {
	if gapLimit <= 0 {
		gapLimit = domain.DefaultGapLimit
	}
	return &MultisigCoordinator{repo, explorerSvc, gapLimit}
}

// EnsureAddressPool generates, for both chains of the account, the addresses
// missing to have gapLimit unused ones after the last used. An account with a
// corrupted cosigner set is marked unusable and the configuration error is
// returned.
func (c *MultisigCoordinator) EnsureAddressPool(
	ctx context.Context, s *Session, accountIndex uint32,
) error {
	w, err := c.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return err
	}
	account, err := w.AccountByIndex(accountIndex)
	if err != nil {
		return err
	}
	if err := c.checkAccount(ctx, s, account); err != nil {
		return err
	}
	if !c.needsExtension(account) {
		return nil
	}

	_, err = c.repo.UpdateWallet(ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
		account, err := w.AccountByIndex(accountIndex)
		if err != nil {
			return nil, err
		}
		deriver, err := newAddressDeriver(account, s.Network())
		if err != nil {
			return nil, err
		}
		for _, chain := range []uint32{wallet.ExternalChain, wallet.InternalChain} {
			if err := c.fillPool(account, chain, deriver); err != nil {
				return nil, err
			}
		}
		return w, nil
	})
	return err
}

// ChangeAddress returns a fresh internal address of the account, marked as
// used so that it's never handed out twice. Imported key accounts have a
// single address that is used for change too.
func (c *MultisigCoordinator) ChangeAddress(
	ctx context.Context, s *Session, accountIndex uint32,
) (*domain.Address, error) {
	return c.changeAddress(ctx, s, accountIndex, true)
}

// NextChangeAddress returns the first unused internal address of the account
// without reserving it. The caller marks it used once an output pays it.
func (c *MultisigCoordinator) NextChangeAddress(
	ctx context.Context, s *Session, accountIndex uint32,
) (*domain.Address, error) {
	return c.changeAddress(ctx, s, accountIndex, false)
}

func (c *MultisigCoordinator) changeAddress(
	ctx context.Context, s *Session, accountIndex uint32, reserve bool,
) (*domain.Address, error) {
	if err := c.EnsureAddressPool(ctx, s, accountIndex); err != nil {
		return nil, err
	}

	var change domain.Address
	_, err := c.repo.UpdateWallet(ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
		account, err := w.AccountByIndex(accountIndex)
		if err != nil {
			return nil, err
		}
		if a, ok := account.(*domain.SingleSigAccount); ok && a.IsImported() {
			change = a.External.Addresses[0]
			return w, nil
		}

		deriver, err := newAddressDeriver(account, s.Network())
		if err != nil {
			return nil, err
		}
		pool := &account.Info().Internal
		addr, ok := pool.FirstUnused()
		if !ok {
			next, err := deriver(wallet.InternalChain, pool.NextIndex())
			if err != nil {
				return nil, err
			}
			if err := pool.Add(*next); err != nil {
				return nil, err
			}
			addr = &pool.Addresses[len(pool.Addresses)-1]
		}
		if reserve {
			if err := pool.MarkUsed(addr.Index); err != nil {
				return nil, err
			}
		}
		change = pool.Addresses[addr.Index]

		if err := c.fillPool(account, wallet.InternalChain, deriver); err != nil {
			return nil, err
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

// MarkAddressesUsed flags the given addresses of the account as used and
// extends the pools accordingly. Unknown addresses are ignored.
func (c *MultisigCoordinator) MarkAddressesUsed(
	ctx context.Context, s *Session, accountIndex uint32, addresses []string,
) error {
	if len(addresses) <= 0 {
		return nil
	}

	w, err := c.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return err
	}
	account, err := w.AccountByIndex(accountIndex)
	if err != nil {
		return err
	}
	if !hasUnusedAmong(account, addresses) {
		return nil
	}

	if _, err := c.repo.UpdateWallet(ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
		account, err := w.AccountByIndex(accountIndex)
		if err != nil {
			return nil, err
		}
		for _, addr := range addresses {
			if found, ok := account.Info().AddressByAddress(addr); ok {
				found.Used = true
			}
		}
		return w, nil
	}); err != nil {
		return err
	}

	return c.EnsureAddressPool(ctx, s, accountIndex)
}

// SyncAccount looks up the history of the unused addresses of the account
// and marks as used those referenced by any transaction, until the last
// gapLimit addresses of both chains have no history.
func (c *MultisigCoordinator) SyncAccount(
	ctx context.Context, s *Session, accountIndex uint32,
) error {
	for round := 0; round < maxSyncRounds; round++ {
		if err := c.EnsureAddressPool(ctx, s, accountIndex); err != nil {
			return err
		}

		w, err := c.repo.GetWallet(ctx, s.WalletID())
		if err != nil {
			return err
		}
		account, err := w.AccountByIndex(accountIndex)
		if err != nil {
			return err
		}

		unused := make([]string, 0)
		for _, addr := range account.Info().Addresses() {
			if !addr.Used {
				unused = append(unused, addr.Address)
			}
		}

		used, err := c.addressesWithHistory(ctx, unused)
		if err != nil {
			return err
		}
		if len(used) <= 0 {
			return nil
		}

		log.WithFields(log.Fields{
			"account": accountIndex,
			"count":   len(used),
		}).Debug("found used addresses")

		if err := c.MarkAddressesUsed(ctx, s, accountIndex, used); err != nil {
			return err
		}
	}
	return nil
}

// AddressDerivations returns the BIP32 derivations of every key involved in
// the given address of the account. Imported keys have none.
func AddressDerivations(
	account domain.Account, addr domain.Address,
	masterFingerprint string, network *chaincfg.Params,
) ([]wallet.KeyDerivation, error) {
	switch a := account.(type) {
	case *domain.SingleSigAccount:
		if a.IsImported() {
			return nil, nil
		}
		fingerprint, err := wallet.ParseFingerprint(masterFingerprint)
		if err != nil {
			return nil, err
		}
		path, err := wallet.ParseDerivationPath(addr.DerivationPath)
		if err != nil {
			return nil, err
		}
		return []wallet.KeyDerivation{{
			PublicKey:         addr.PublicKey,
			MasterFingerprint: fingerprint,
			Path:              path,
		}}, nil

	case *domain.MultisigAccount:
		derivations := make([]wallet.KeyDerivation, 0, len(a.Cosigners))
		for _, cosigner := range a.Cosigners {
			fingerprint, err := wallet.ParseFingerprint(cosigner.Fingerprint)
			if err != nil {
				return nil, err
			}
			accountPath, err := wallet.ParseDerivationPath(cosigner.DerivationPath)
			if err != nil {
				return nil, err
			}
			pubkey, err := derivePublicKey(cosigner.Xpub, addr.Chain, addr.Index, network)
			if err != nil {
				return nil, err
			}
			derivations = append(derivations, wallet.KeyDerivation{
				PublicKey:         pubkey,
				MasterFingerprint: fingerprint,
				Path:              accountPath.Child(addr.Chain, addr.Index),
			})
		}
		return derivations, nil

	default:
		return nil, domain.ErrUnknownAccountKind
	}
}

// checkAccount verifies at read time the integrity of the account. A corrupted
// multisig configuration makes the account unusable, persistently. The
// configuration is validated again against the stored state before marking.
func (c *MultisigCoordinator) checkAccount(
	ctx context.Context, s *Session, account domain.Account,
) error {
	info := account.Info()
	if !info.IsUsable() {
		return fmt.Errorf("%w: %s", domain.ErrAccountUnusable, info.UnusableReason)
	}

	multisig, ok := account.(*domain.MultisigAccount)
	if !ok {
		return nil
	}
	snapshotErr := multisig.Validate(s.Network())
	if snapshotErr == nil {
		return checkSelfCosigner(s, multisig)
	}

	var validationErr error
	if _, err := c.repo.UpdateWallet(
		ctx, s.WalletID(), func(w *domain.Wallet) (*domain.Wallet, error) {
			validationErr = nil
			account, err := w.AccountByIndex(info.Index)
			if err != nil {
				return nil, err
			}
			current, ok := account.(*domain.MultisigAccount)
			if !ok {
				return w, nil
			}
			multisig = current
			if validationErr = current.Validate(s.Network()); validationErr != nil {
				current.MarkUnusable(validationErr)
			}
			return w, nil
		},
	); err != nil {
		log.WithError(err).Warn("failed to persist unusable account")
		return fmt.Errorf("account %d: %w", info.Index, snapshotErr)
	}
	if validationErr != nil {
		log.WithError(validationErr).WithField("account", info.Index).
			Error("corrupted multisig account, marked as unusable")
		return fmt.Errorf("account %d: %w", info.Index, validationErr)
	}

	return checkSelfCosigner(s, multisig)
}

func (c *MultisigCoordinator) needsExtension(account domain.Account) bool {
	if a, ok := account.(*domain.SingleSigAccount); ok && a.IsImported() {
		return false
	}
	info := account.Info()
	return info.External.Missing(c.gapLimit) > 0 ||
		info.Internal.Missing(c.gapLimit) > 0
}

func (c *MultisigCoordinator) fillPool(
	account domain.Account, chain uint32, deriver addressDeriver,
) error {
	if deriver == nil {
		return nil
	}
	pool, err := account.Info().Pool(chain)
	if err != nil {
		return err
	}
	for missing := pool.Missing(c.gapLimit); missing > 0; missing-- {
		addr, err := deriver(chain, pool.NextIndex())
		if err != nil {
			return err
		}
		if err := pool.Add(*addr); err != nil {
			return err
		}
	}
	return nil
}

func (c *MultisigCoordinator) addressesWithHistory(
	ctx context.Context, addresses []string,
) ([]string, error) {
	used := make([]string, 0)
	lock := &sync.Mutex{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentHistoryRequests)
	for _, addr := range addresses {
		addr := addr
		g.Go(func() error {
			txs, err := c.explorer.GetTransactions(gctx, addr)
			if err != nil {
				return err
			}
			if len(txs) > 0 {
				lock.Lock()
				used = append(used, addr)
				lock.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return used, nil
}

func checkSelfCosigner(s *Session, account *domain.MultisigAccount) error {
	self, err := account.Self()
	if err != nil {
		return err
	}
	signer, err := s.Signer()
	if err != nil {
		return err
	}
	path, err := wallet.ParseDerivationPath(self.DerivationPath)
	if err != nil {
		return err
	}
	xpub, err := signer.AccountExtendedPublicKey(path)
	if err != nil {
		return err
	}
	if xpub != self.Xpub {
		return ErrSelfXpubMismatch
	}
	return nil
}

func hasUnusedAmong(account domain.Account, addresses []string) bool {
	for _, addr := range addresses {
		if found, ok := account.Info().AddressByAddress(addr); ok && !found.Used {
			return true
		}
	}
	return false
}

// addressDeriver derives the address of an account at chain/index.
type addressDeriver func(chain, index uint32) (*domain.Address, error)

// newAddressDeriver returns nil for imported key accounts, which have a
// fixed address.
func newAddressDeriver(
	account domain.Account, network *chaincfg.Params,
) (addressDeriver, error) {
	switch a := account.(type) {
	case *domain.SingleSigAccount:
		if a.IsImported() {
			return nil, nil
		}
		accountKey, err := wallet.ParseExtendedPublicKey(a.Xpub, network)
		if err != nil {
			return nil, err
		}
		return func(chain, index uint32) (*domain.Address, error) {
			key, err := wallet.DeriveFromPath(
				accountKey, wallet.DerivationPath{chain, index},
			)
			if err != nil {
				return nil, err
			}
			pubkey, err := key.ECPubKey()
			if err != nil {
				return nil, err
			}
			info, err := wallet.AddressFromPublicKey(wallet.AddressOpts{
				PublicKey:  pubkey.SerializeCompressed(),
				ScriptType: a.ScriptType,
				Network:    network,
			})
			if err != nil {
				return nil, err
			}
			return &domain.Address{
				Address:        info.Address,
				Script:         info.Script,
				Chain:          chain,
				Index:          index,
				DerivationPath: fmt.Sprintf("%s/%d/%d", a.DerivationPath, chain, index),
				ScriptType:     a.ScriptType,
				PublicKey:      pubkey.SerializeCompressed(),
				RedeemScript:   info.RedeemScript,
			}, nil
		}, nil

	case *domain.MultisigAccount:
		keys := make([]*hdkeychain.ExtendedKey, 0, len(a.Cosigners))
		for _, cosigner := range a.Cosigners {
			key, err := wallet.ParseExtendedPublicKey(cosigner.Xpub, network)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCosigner, err)
			}
			keys = append(keys, key)
		}
		return func(chain, index uint32) (*domain.Address, error) {
			pubkeys := make([][]byte, 0, len(keys))
			for _, accountKey := range keys {
				key, err := wallet.DeriveFromPath(
					accountKey, wallet.DerivationPath{chain, index},
				)
				if err != nil {
					return nil, err
				}
				pubkey, err := key.ECPubKey()
				if err != nil {
					return nil, err
				}
				pubkeys = append(pubkeys, pubkey.SerializeCompressed())
			}
			info, err := wallet.MultisigAddressFromKeys(wallet.MultisigAddressOpts{
				PublicKeys:   pubkeys,
				Threshold:    a.Threshold,
				TotalSigners: a.TotalSigners,
				ScriptType:   a.ScriptType,
				Network:      network,
			})
			if err != nil {
				return nil, err
			}
			return &domain.Address{
				Address:        info.Address,
				Script:         info.Script,
				Chain:          chain,
				Index:          index,
				DerivationPath: fmt.Sprintf("%s/%d/%d", a.DerivationPath, chain, index),
				ScriptType:     a.ScriptType,
				RedeemScript:   info.RedeemScript,
				WitnessScript:  info.WitnessScript,
			}, nil
		}, nil

	default:
		return nil, domain.ErrUnknownAccountKind
	}
}

func derivePublicKey(
	xpub string, chain, index uint32, network *chaincfg.Params,
) ([]byte, error) {
	accountKey, err := wallet.ParseExtendedPublicKey(xpub, network)
	if err != nil {
		return nil, err
	}
	key, err := wallet.DeriveFromPath(accountKey, wallet.DerivationPath{chain, index})
	if err != nil {
		return nil, err
	}
	pubkey, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	return pubkey.SerializeCompressed(), nil
}
