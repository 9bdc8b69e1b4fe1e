package application

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// Session is the handle of an unlocked wallet. It owns every decrypted
// secret of the wallet and a context that is cancelled when the session is
// closed, either explicitly or by the auto-lock timer.
type Session struct {
	walletID string
	network  *chaincfg.Params

	lock         sync.RWMutex
	seed         []byte
	signer       *wallet.Wallet
	importedKeys map[uint32]*btcec.PrivateKey
	password     []byte
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc

	timeout time.Duration
	timer   *time.Timer
}

// NewSessionOpts is the struct given to NewSession.
type NewSessionOpts struct {
	WalletID string
	Network  *chaincfg.Params
	// Seed is nil for wallets made of imported keys only.
	Seed         []byte
	ImportedKeys map[uint32]*btcec.PrivateKey
	Password     string
	// AutoLockTimeout disables the timer if zero.
	AutoLockTimeout time.Duration
	// OnTimeout is called when the session expires.
	OnTimeout func(s *Session)
}

// NewSession takes ownership of the given secrets and returns an open
// session.
func NewSession(opts NewSessionOpts) (*Session, error) {
	if opts.Network == nil {
		return nil, wallet.ErrNullNetwork
	}
	if len(opts.Password) <= 0 {
		return nil, wallet.ErrNullPassword
	}

	var signer *wallet.Wallet
	if len(opts.Seed) > 0 {
		w, err := wallet.NewWalletFromSeed(wallet.NewWalletFromSeedOpts{
			Seed:    opts.Seed,
			Network: opts.Network,
		})
		if err != nil {
			return nil, err
		}
		signer = w
	}

	importedKeys := opts.ImportedKeys
	if importedKeys == nil {
		importedKeys = make(map[uint32]*btcec.PrivateKey)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		walletID:     opts.WalletID,
		network:      opts.Network,
		seed:         opts.Seed,
		signer:       signer,
		importedKeys: importedKeys,
		password:     []byte(opts.Password),
		ctx:          ctx,
		cancel:       cancel,
		timeout:      opts.AutoLockTimeout,
	}

	if s.timeout > 0 {
		s.timer = time.AfterFunc(s.timeout, func() {
			log.Info("session expired, locking wallet")
			if opts.OnTimeout != nil {
				opts.OnTimeout(s)
				return
			}
			s.Close()
		})
	}
	return s, nil
}

// WalletID ...
func (s *Session) WalletID() string {
	return s.walletID
}

// Network ...
func (s *Session) Network() *chaincfg.Params {
	return s.network
}

// Context is done once the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Bind returns a child of ctx that is also cancelled when the session
// closes.
func (s *Session) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Touch postpones the auto-lock.
func (s *Session) Touch() {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed || s.timer == nil {
		return
	}
	s.timer.Reset(s.timeout)
}

// IsClosed ...
func (s *Session) IsClosed() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.closed
}

// HasSeed ...
func (s *Session) HasSeed() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.signer != nil
}

// Signer returns the HD signer of the session. It fails if the session is
// closed or the wallet has no seed.
func (s *Session) Signer() (*wallet.Wallet, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.signer == nil {
		return nil, domain.ErrWalletWithoutSeed
	}
	return s.signer, nil
}

// Seed returns a copy of the seed, nil for key-only wallets.
func (s *Session) Seed() ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if len(s.seed) <= 0 {
		return nil, nil
	}
	return append([]byte{}, s.seed...), nil
}

// ImportedKeys returns the imported private keys by account index.
func (s *Session) ImportedKeys() (map[uint32]*btcec.PrivateKey, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	keys := make(map[uint32]*btcec.PrivateKey, len(s.importedKeys))
	for k, v := range s.importedKeys {
		keys[k] = v
	}
	return keys, nil
}

// AddImportedKey ...
func (s *Session) AddImportedKey(accountIndex uint32, key *btcec.PrivateKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.importedKeys[accountIndex] = key
	return nil
}

// Password returns the password the wallet was unlocked with.
func (s *Session) Password() (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return "", ErrSessionClosed
	}
	return string(s.password), nil
}

// SetPassword replaces the password after a change.
func (s *Session) SetPassword(password string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	wallet.Zero(s.password)
	s.password = []byte(password)
	return nil
}

// Close cancels the context of the session and overwrites every secret it
// holds. It's safe to call multiple times.
func (s *Session) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()

	wallet.Zero(s.seed)
	s.seed = nil
	if s.signer != nil {
		s.signer.Zero()
		s.signer = nil
	}
	for i, key := range s.importedKeys {
		key.Zero()
		delete(s.importedKeys, i)
	}
	wallet.Zero(s.password)
	s.password = nil
}
