package explorer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrNetwork is the kind of errors caused by an unreachable or failing
	// indexer.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited is returned when the indexer throttles requests.
	ErrRateLimited = errors.New("rate limited by indexer")
	// ErrTimeout is returned when a request doesn't complete in time.
	ErrTimeout = errors.New("indexer request timed out")
	// ErrNotFound ...
	ErrNotFound = errors.New("resource not found")
	// ErrBadRequest is returned when the indexer refuses a malformed
	// request.
	ErrBadRequest = errors.New("bad request")
	// ErrTxRejected is returned when a node refuses to relay a transaction.
	ErrTxRejected = errors.New("transaction rejected")
)

// IsRetryable returns whether the request that failed with err can be
// retried as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout)
}

// TransportError maps the error of an http call that didn't get a response
// to ErrTimeout or ErrNetwork. Cancellations are returned untouched.
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %s", ErrNetwork, err)
}

// StatusError maps a non 2xx response to one of the error kinds.
func StatusError(status int, body string) error {
	msg := strings.TrimSpace(body)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrTimeout, msg)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, status, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrBadRequest, status, msg)
	}
}
