package message

import (
	"errors"

	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// Error kinds of a reply.
const (
	KindValidation        = "validation"
	KindAuthentication    = "authentication"
	KindConfiguration     = "configuration"
	KindInsufficientFunds = "insufficient_funds"
	KindDustOutput        = "dust_output"
	KindNetwork           = "network"
	KindRateLimited       = "rate_limited"
	KindTimeout           = "timeout"
	KindBroadcastFailed   = "broadcast_failed"
	KindStorageConflict   = "storage_conflict"
	KindWalletLocked      = "wallet_locked"
	KindNotInitialized    = "not_initialized"
	KindInternal          = "internal"
)

// The first matching entry wins.
var errorKinds = []struct {
	err  error
	kind string
}{
	{wallet.ErrAuthentication, KindAuthentication},
	{wallet.ErrConfiguration, KindConfiguration},
	{application.ErrWalletLocked, KindWalletLocked},
	{application.ErrSessionClosed, KindWalletLocked},
	{application.ErrWalletNotInitialized, KindNotInitialized},
	{wallet.ErrInsufficientFunds, KindInsufficientFunds},
	{wallet.ErrDustOutput, KindDustOutput},
	{domain.ErrStorageConflict, KindStorageConflict},
	{domain.ErrBroadcastFailed, KindBroadcastFailed},
	{explorer.ErrTxRejected, KindBroadcastFailed},
	{explorer.ErrRateLimited, KindRateLimited},
	{explorer.ErrTimeout, KindTimeout},
	{explorer.ErrNetwork, KindNetwork},
	{wallet.ErrValidation, KindValidation},
	{application.ErrWalletAlreadyInitialized, KindValidation},
	{application.ErrWalletUnlocked, KindValidation},
	{explorer.ErrBadRequest, KindValidation},
	{explorer.ErrNotFound, KindValidation},
}

func errorKind(err error) string {
	for _, e := range errorKinds {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

func newErrorReply(err error) *ErrorReply {
	kind := errorKind(err)
	msg := err.Error()
	switch kind {
	case KindAuthentication:
		// Never tell which secret was wrong.
		msg = wallet.ErrAuthentication.Error()
	case KindInternal:
		msg = "internal error"
	}
	return &ErrorReply{
		Kind:      kind,
		Message:   msg,
		Retryable: explorer.IsRetryable(err) || errors.Is(err, domain.ErrStorageConflict),
		Fatal:     wallet.IsFatal(err),
	}
}
