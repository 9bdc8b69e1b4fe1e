package application

import (
	"context"

	"github.com/tdex-network/tdex-wallet/internal/core/domain"
)

type AddressService interface {
	NextAddress(ctx context.Context, accountIndex uint32) (*domain.Address, error)
	ListAddresses(ctx context.Context, accountIndex uint32) ([]domain.Address, error)
	ChangeAddress(ctx context.Context, accountIndex uint32) (*domain.Address, error)
}

// NextAddress returns the first unused receiving address of the account.
// The address is handed out again until some history is found for it.
func (e *Engine) NextAddress(
	ctx context.Context, accountIndex uint32,
) (*domain.Address, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	if err := e.coordinator.EnsureAddressPool(ctx, s, accountIndex); err != nil {
		return nil, err
	}

	w, err := e.repo.GetWallet(ctx, s.WalletID())
	if err != nil {
		return nil, err
	}
	account, err := w.AccountByIndex(accountIndex)
	if err != nil {
		return nil, err
	}

	if a, ok := account.(*domain.SingleSigAccount); ok && a.IsImported() {
		addr := a.External.Addresses[0]
		return &addr, nil
	}
	addr, ok := account.Info().External.FirstUnused()
	if !ok {
		return nil, domain.ErrAddressNotFound
	}
	return addr, nil
}

// ListAddresses returns every generated address of the account, external
// first.
func (e *Engine) ListAddresses(
	ctx context.Context, accountIndex uint32,
) ([]domain.Address, error) {
	w, err := e.loadWallet(ctx)
	if err != nil {
		return nil, err
	}
	account, err := w.AccountByIndex(accountIndex)
	if err != nil {
		return nil, err
	}
	return account.Info().Addresses(), nil
}

// ChangeAddress reserves a fresh internal address of the account.
func (e *Engine) ChangeAddress(
	ctx context.Context, accountIndex uint32,
) (*domain.Address, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}
	return e.coordinator.ChangeAddress(ctx, s, accountIndex)
}
