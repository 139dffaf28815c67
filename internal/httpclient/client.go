// Package httpclient builds the HTTP clients used to reach a running gateway.
package httpclient

import (
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

// New returns an HTTP client giving up after timeout, or a short default when
// timeout is not positive.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &http.Client{Timeout: timeout}
}
