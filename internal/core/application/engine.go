package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

const (
	// DefaultAutoLockTimeout ...
	DefaultAutoLockTimeout = 15 * time.Minute
	// DefaultKDFIterations ...
	DefaultKDFIterations = 600000
)

// EngineOpts is the struct given to NewEngine.
type EngineOpts struct {
	Repository domain.WalletRepository
	Explorer   explorer.Service
	Network    *chaincfg.Params
	// GapLimit defaults to domain.DefaultGapLimit if zero.
	GapLimit int
	// AutoLockTimeout defaults to DefaultAutoLockTimeout if zero, a negative
	// value disables the auto-lock.
	AutoLockTimeout time.Duration
	KDFIterations   int
	// MaxFeeRateMultiplier defaults to wallet.DefaultMaxFeeRateMultiplier.
	MaxFeeRateMultiplier float64
}

func (o EngineOpts) validate() error {
	if o.Repository == nil {
		return fmt.Errorf("missing wallet repository")
	}
	if o.Explorer == nil {
		return fmt.Errorf("missing explorer service")
	}
	if o.Network == nil {
		return wallet.ErrNullNetwork
	}
	if o.KDFIterations != 0 &&
		(o.KDFIterations < wallet.MinKDFIterations ||
			o.KDFIterations > wallet.MaxKDFIterations) {
		return wallet.ErrInvalidKDFIterations
	}
	if o.MaxFeeRateMultiplier < 0 {
		return fmt.Errorf("max fee rate multiplier must not be negative")
	}
	return nil
}

// Engine is the single entry point of the wallet. It holds the only session
// of the process: every operation needing secrets goes through it, and
// locking the engine closes the session and the background work bound to
// it.
type Engine struct {
	repo                 domain.WalletRepository
	explorer             explorer.Service
	network              *chaincfg.Params
	autoLockTimeout      time.Duration
	kdfIterations        int
	maxFeeRateMultiplier float64
	coordinator          *MultisigCoordinator

	lock     *sync.RWMutex
	walletID string
	session  *Session
	pool     *poolMaintainer
}

// NewEngine returns an engine for the wallet already stored in the
// repository, if any.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	autoLockTimeout := opts.AutoLockTimeout
	if autoLockTimeout == 0 {
		autoLockTimeout = DefaultAutoLockTimeout
	}
	if autoLockTimeout < 0 {
		autoLockTimeout = 0
	}
	kdfIterations := opts.KDFIterations
	if kdfIterations == 0 {
		kdfIterations = DefaultKDFIterations
	}
	maxFeeRateMultiplier := opts.MaxFeeRateMultiplier
	if maxFeeRateMultiplier == 0 {
		maxFeeRateMultiplier = wallet.DefaultMaxFeeRateMultiplier
	}

	e := &Engine{
		repo:                 opts.Repository,
		explorer:             opts.Explorer,
		network:              opts.Network,
		autoLockTimeout:      autoLockTimeout,
		kdfIterations:        kdfIterations,
		maxFeeRateMultiplier: maxFeeRateMultiplier,
		coordinator: NewMultisigCoordinator(
			opts.Repository, opts.Explorer, opts.GapLimit,
		),
		lock: &sync.RWMutex{},
	}

	wallets, err := opts.Repository.GetAllWallets(context.Background())
	if err != nil {
		return nil, err
	}
	if len(wallets) > 0 {
		sort.SliceStable(wallets, func(i, j int) bool {
			return wallets[i].CreatedAt < wallets[j].CreatedAt
		})
		w := wallets[0]
		if w.Network != opts.Network.Name {
			return nil, fmt.Errorf(
				"%w: stored wallet is for %s", wallet.ErrNetworkMismatch, w.Network,
			)
		}
		if len(wallets) > 1 {
			log.Warnf("found %d wallets in store, using %s", len(wallets), w.ID)
		}
		e.walletID = w.ID
		log.Debugf("loaded wallet %s", w.ID)
	}

	return e, nil
}

// Close locks the wallet and releases the repository.
func (e *Engine) Close() {
	e.lockCurrentSession()
	e.repo.Close()
}

// WaitForSync blocks until the background maintenance of the address pools
// is done, or the wallet is locked.
func (e *Engine) WaitForSync() {
	e.lock.RLock()
	pool := e.pool
	e.lock.RUnlock()

	if pool != nil {
		pool.wait()
	}
}

func (e *Engine) currentWalletID() (string, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.walletID == "" {
		return "", ErrWalletNotInitialized
	}
	return e.walletID, nil
}

// activeSession returns the open session and postpones its auto-lock.
func (e *Engine) activeSession() (*Session, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	if e.walletID == "" {
		return nil, ErrWalletNotInitialized
	}
	if e.session == nil || e.session.IsClosed() {
		return nil, ErrWalletLocked
	}
	e.session.Touch()
	return e.session, nil
}

func (e *Engine) isUnlocked() bool {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.session != nil && !e.session.IsClosed()
}

func (e *Engine) isInitialized() bool {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.walletID != ""
}

// openSession replaces any open session with a new one owning the given
// secrets, and schedules the maintenance of the usable accounts.
func (e *Engine) openSession(
	w *domain.Wallet, seed []byte,
	importedKeys map[uint32]*btcec.PrivateKey, password string,
) (*Session, error) {
	s, err := NewSession(NewSessionOpts{
		WalletID:        w.ID,
		Network:         e.network,
		Seed:            seed,
		ImportedKeys:    importedKeys,
		Password:        password,
		AutoLockTimeout: e.autoLockTimeout,
		OnTimeout:       e.lockSession,
	})
	if err != nil {
		return nil, err
	}

	pool := newPoolMaintainer(s.Context(), func(ctx context.Context, i uint32) error {
		return e.coordinator.SyncAccount(ctx, s, i)
	})

	e.lock.Lock()
	prev := e.session
	e.walletID = w.ID
	e.session = s
	e.pool = pool
	e.lock.Unlock()

	if prev != nil {
		prev.Close()
	}

	pool.enqueue(usableAccounts(w)...)
	return s, nil
}

// lockSession closes s, detaching it from the engine if it's the current
// one.
func (e *Engine) lockSession(s *Session) {
	e.lock.Lock()
	if e.session == s {
		e.session = nil
		e.pool = nil
	}
	e.lock.Unlock()

	s.Close()
}

func (e *Engine) lockCurrentSession() bool {
	e.lock.Lock()
	s := e.session
	e.session = nil
	e.pool = nil
	e.lock.Unlock()

	if s == nil {
		return false
	}
	s.Close()
	return true
}

func (e *Engine) enqueueMaintenance(accountIndexes ...uint32) {
	e.lock.RLock()
	pool := e.pool
	e.lock.RUnlock()

	if pool != nil {
		pool.enqueue(accountIndexes...)
	}
}

func (e *Engine) loadWallet(ctx context.Context) (*domain.Wallet, error) {
	walletID, err := e.currentWalletID()
	if err != nil {
		return nil, err
	}
	return e.repo.GetWallet(ctx, walletID)
}

func usableAccounts(w *domain.Wallet) []uint32 {
	indexes := make([]uint32, 0, len(w.Accounts))
	for _, account := range w.Accounts {
		if info := account.Info(); info.IsUsable() {
			indexes = append(indexes, info.Index)
		}
	}
	return indexes
}
