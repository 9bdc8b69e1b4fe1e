package application

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

func TestSession(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	s, err := NewSession(NewSessionOpts{
		WalletID:     "wallet",
		Network:      &chaincfg.RegressionNetParams,
		Seed:         seed,
		ImportedKeys: map[uint32]*btcec.PrivateKey{1: key},
		Password:     "password",
	})
	require.NoError(t, err)
	require.True(t, s.HasSeed())

	signer, err := s.Signer()
	require.NoError(t, err)
	require.NotNil(t, signer)

	seedCopy, err := s.Seed()
	require.NoError(t, err)
	require.Equal(t, seed, seedCopy)

	keys, err := s.ImportedKeys()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, s.SetPassword("new password"))
	password, err := s.Password()
	require.NoError(t, err)
	require.Equal(t, "new password", password)

	ctx, cancel := s.Bind(context.Background())
	defer cancel()

	s.Close()
	s.Close()

	require.True(t, s.IsClosed())
	require.Error(t, s.Context().Err())
	require.Error(t, ctx.Err())
	require.Equal(t, make([]byte, 64), seed)

	_, err = s.Signer()
	require.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Seed()
	require.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.Password()
	require.ErrorIs(t, err, ErrSessionClosed)
	require.ErrorIs(t, s.SetPassword("password"), ErrSessionClosed)
	require.ErrorIs(t, s.AddImportedKey(2, key), ErrSessionClosed)
}

func TestSessionWithoutSeed(t *testing.T) {
	s, err := NewSession(NewSessionOpts{
		WalletID: "wallet",
		Network:  &chaincfg.RegressionNetParams,
		Password: "password",
	})
	require.NoError(t, err)
	defer s.Close()

	require.False(t, s.HasSeed())
	_, err = s.Signer()
	require.ErrorIs(t, err, domain.ErrWalletWithoutSeed)

	seed, err := s.Seed()
	require.NoError(t, err)
	require.Nil(t, seed)
}

func TestFailingNewSession(t *testing.T) {
	_, err := NewSession(NewSessionOpts{Password: "password"})
	require.ErrorIs(t, err, wallet.ErrNullNetwork)

	_, err = NewSession(NewSessionOpts{Network: &chaincfg.RegressionNetParams})
	require.ErrorIs(t, err, wallet.ErrNullPassword)
}

func TestSessionAutoLock(t *testing.T) {
	expired := make(chan *Session, 1)
	s, err := NewSession(NewSessionOpts{
		WalletID:        "wallet",
		Network:         &chaincfg.RegressionNetParams,
		Password:        "password",
		AutoLockTimeout: 50 * time.Millisecond,
		OnTimeout: func(s *Session) {
			s.Close()
			expired <- s
		},
	})
	require.NoError(t, err)

	select {
	case got := <-expired:
		require.Equal(t, s, got)
	case <-time.After(5 * time.Second):
		t.Fatal("session didn't expire")
	}
	require.True(t, s.IsClosed())
}

func TestSessionTouchPostponesAutoLock(t *testing.T) {
	s, err := NewSession(NewSessionOpts{
		WalletID:        "wallet",
		Network:         &chaincfg.RegressionNetParams,
		Password:        "password",
		AutoLockTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		time.Sleep(100 * time.Millisecond)
		s.Touch()
	}
	require.False(t, s.IsClosed())

	require.Eventually(t, s.IsClosed, 5*time.Second, 20*time.Millisecond)
}
