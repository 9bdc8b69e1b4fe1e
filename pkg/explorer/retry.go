package explorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-wallet/pkg/circuitbreaker"
)

const (
	// DefaultMaxRetries is the number of retries after a failed request.
	DefaultMaxRetries = 3
	// DefaultInitialInterval is the wait before the first retry.
	DefaultInitialInterval = 500 * time.Millisecond
	// DefaultMaxInterval caps the wait between retries.
	DefaultMaxInterval = 5 * time.Second
)

// RetryOpts configures the retrying decorator returned by
// NewRetryingService. Zero values are replaced with defaults, a nil
// Registerer disables metrics.
type RetryOpts struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Registerer      prometheus.Registerer
}

type retryingService struct {
	svc     Service
	opts    RetryOpts
	breaker *gobreaker.CircuitBreaker
	metrics *metrics
}

// NewRetryingService wraps svc so that every call is retried with
// exponential backoff when it fails with a retryable error, and goes
// through a circuit breaker that fails fast while the indexer is down.
// Non retryable errors are returned immediately.
func NewRetryingService(svc Service, opts RetryOpts) (Service, error) {
	if svc == nil {
		return nil, fmt.Errorf("missing explorer service")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultInitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultMaxInterval
	}
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	return &retryingService{
		svc:     svc,
		opts:    opts,
		breaker: circuitbreaker.NewCircuitBreaker("explorer"),
		metrics: m,
	}, nil
}

func (s *retryingService) GetUnspents(
	ctx context.Context, addr string,
) (utxos []Utxo, err error) {
	err = s.retry(ctx, "get_unspents", func(ctx context.Context) error {
		utxos, err = s.svc.GetUnspents(ctx, addr)
		return err
	})
	return
}

func (s *retryingService) GetUnspentsForAddresses(
	ctx context.Context, addresses []string,
) (utxos []Utxo, err error) {
	err = s.retry(ctx, "get_unspents_for_addresses", func(ctx context.Context) error {
		utxos, err = s.svc.GetUnspentsForAddresses(ctx, addresses)
		return err
	})
	return
}

func (s *retryingService) GetTransactions(
	ctx context.Context, addr string,
) (txs []Transaction, err error) {
	err = s.retry(ctx, "get_transactions", func(ctx context.Context) error {
		txs, err = s.svc.GetTransactions(ctx, addr)
		return err
	})
	return
}

func (s *retryingService) GetTransactionHex(
	ctx context.Context, txid string,
) (txHex string, err error) {
	err = s.retry(ctx, "get_transaction_hex", func(ctx context.Context) error {
		txHex, err = s.svc.GetTransactionHex(ctx, txid)
		return err
	})
	return
}

func (s *retryingService) GetFeeEstimates(
	ctx context.Context,
) (estimates FeeEstimates, err error) {
	err = s.retry(ctx, "get_fee_estimates", func(ctx context.Context) error {
		estimates, err = s.svc.GetFeeEstimates(ctx)
		return err
	})
	return
}

func (s *retryingService) BroadcastTransaction(
	ctx context.Context, txHex string,
) (txid string, err error) {
	err = s.retry(ctx, "broadcast_transaction", func(ctx context.Context) error {
		txid, err = s.svc.BroadcastTransaction(ctx, txHex)
		return err
	})
	return
}

func (s *retryingService) GetBlockHeight(
	ctx context.Context,
) (height int64, err error) {
	err = s.retry(ctx, "get_block_height", func(ctx context.Context) error {
		height, err = s.svc.GetBlockHeight(ctx)
		return err
	})
	return
}

func (s *retryingService) retry(
	ctx context.Context, method string, fn func(ctx context.Context) error,
) error {
	op := func() error {
		s.metrics.requests.WithLabelValues(method).Inc()

		// Only retryable failures count against the breaker, an indexer
		// refusing a bad request is healthy.
		var callErr error
		_, err := s.breaker.Execute(func() (interface{}, error) {
			callErr = fn(ctx)
			if callErr != nil && IsRetryable(callErr) {
				return nil, callErr
			}
			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.metrics.failures.WithLabelValues(method, "circuit_open").Inc()
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNetwork, err))
		}
		if callErr == nil {
			return nil
		}

		s.metrics.failures.WithLabelValues(method, errorKind(callErr)).Inc()
		if !IsRetryable(callErr) {
			return backoff.Permanent(callErr)
		}
		return callErr
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.opts.InitialInterval
	exp.MaxInterval = s.opts.MaxInterval
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, s.opts.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		log.WithError(err).WithField("method", method).Debugf(
			"explorer request failed, retrying in %s", wait,
		)
	}
	return backoff.RetryNotify(op, b, notify)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTxRejected):
		return "rejected"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
