package port

import (
	"context"
	"io"
	"net/http"
)

// Transport performs a single HTTP GET and exposes the response as a
// byte stream plus headers. Implementations must apply a bounded
// total-request timeout. The caller owns closing the returned body.
type Transport interface {
	Get(ctx context.Context, url string) (io.ReadCloser, http.Header, error)
}
