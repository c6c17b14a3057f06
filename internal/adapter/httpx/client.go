package httpx

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mobiledepot/appfetch/internal/domain"
	"github.com/mobiledepot/appfetch/internal/port"
)

// Client performs HTTP GETs with a bounded total-request timeout,
// separate from the connection timeout.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client implements port.Transport
var _ port.Transport = (*Client)(nil)

// NewClient creates a transport with the given total-request timeout.
func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: log,
	}
}

// Get issues a GET for url and returns the response body and headers.
// A non-success status is a TransferError naming the URL; the body is
// drained and closed before returning it.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrInvalidURL, url)
	}

	c.logger.Debug("fetching url", zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &domain.TransferError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, nil, &domain.TransferError{URL: url, Status: resp.StatusCode}
	}

	return resp.Body, resp.Header, nil
}
