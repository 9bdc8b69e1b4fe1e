package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is the timeout of the requests made with DefaultClient.
const DefaultTimeout = 30 * time.Second

// DefaultClient is used by the package level NewHTTPRequest.
var DefaultClient = NewClient(DefaultTimeout)

// Client performs http calls with a fixed per-request timeout.
type Client struct {
	client *http.Client
}

// NewClient returns a client whose requests time out after the given
// duration. A zero timeout means DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{&http.Client{Timeout: timeout}}
}

// NewHTTPRequest function builds http call with the default client.
// @param method <string>: http method
// @param url <string>: URL http to call
// @return <int>, <string>, error
func NewHTTPRequest(
	ctx context.Context, method, url, bodyString string, header map[string]string,
) (int, string, error) {
	return DefaultClient.NewHTTPRequest(ctx, method, url, bodyString, header)
}

// NewHTTPRequest performs the http call and returns status code and body of
// the response. The request is aborted as soon as ctx is done.
func (c *Client) NewHTTPRequest(
	ctx context.Context, method, url, bodyString string, header map[string]string,
) (int, string, error) {
	switch method {
	case http.MethodGet, http.MethodDelete:
		return c.do(ctx, method, url, nil, header)
	case http.MethodPost, http.MethodPut:
		return c.do(ctx, method, url, strings.NewReader(bodyString), header)
	default:
		return 0, "", fmt.Errorf("verb not supported %s", method)
	}
}

func (c *Client) do(
	ctx context.Context, method, url string, body io.Reader, header map[string]string,
) (int, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, "", err
	}

	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse response body: %w", err)
	}

	return rs.StatusCode, string(bodyBytes), nil
}
