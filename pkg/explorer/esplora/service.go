package esplora

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/httputil"
	"go.uber.org/ratelimit"
)

const (
	// DefaultRequestTimeout ...
	DefaultRequestTimeout = 10 * time.Second
	// DefaultRateLimit is the max number of requests per second.
	DefaultRateLimit = 10
	// maxConcurrentRequests bounds the requests in flight when fetching
	// data for many addresses.
	maxConcurrentRequests = 4
)

// ServiceOpts is the struct given to NewService.
type ServiceOpts struct {
	APIURL         string
	RequestTimeout time.Duration
	RateLimit      int
}

type esplora struct {
	apiURL  string
	client  *httputil.Client
	limiter ratelimit.Limiter
}

// NewService returns a new esplora service as an explorer.Service interface
func NewService(opts ServiceOpts) (explorer.Service, error) {
	apiURL := strings.TrimSuffix(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("missing esplora api url")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	rate := opts.RateLimit
	if rate <= 0 {
		rate = DefaultRateLimit
	}

	return &esplora{
		apiURL:  apiURL,
		client:  httputil.NewClient(timeout),
		limiter: ratelimit.New(rate, ratelimit.Per(time.Second)),
	}, nil
}

func (e *esplora) GetBlockHeight(ctx context.Context) (int64, error) {
	url := fmt.Sprintf("%s/blocks/tip/height", e.apiURL)
	resp, err := e.get(ctx, url)
	if err != nil {
		return 0, err
	}

	var height int64
	if _, err := fmt.Sscan(resp, &height); err != nil {
		return 0, fmt.Errorf("invalid block height %q", resp)
	}
	return height, nil
}

func (e *esplora) get(ctx context.Context, url string) (string, error) {
	return e.request(ctx, http.MethodGet, url, "", nil)
}

// request waits for the rate limiter, performs the call and maps failures to
// explorer error kinds.
func (e *esplora) request(
	ctx context.Context, method, url, body string, headers map[string]string,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.limiter.Take()

	status, resp, err := e.client.NewHTTPRequest(ctx, method, url, body, headers)
	if err != nil {
		return "", explorer.TransportError(err)
	}
	if status != http.StatusOK {
		return "", explorer.StatusError(status, resp)
	}
	return resp, nil
}
