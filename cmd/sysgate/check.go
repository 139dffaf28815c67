package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudbox/sysgate"
	"github.com/cloudbox/sysgate/internal/httpclient"
)

const checkTimeout = 5 * time.Second

// healthURL returns the health endpoint of an instance listening on bind:port,
// reached over loopback when bind is a wildcard.
func healthURL(bind string, port int) string {
	switch bind {
	case "", "0.0.0.0":
		bind = "127.0.0.1"
	case "::":
		bind = "::1"
	}

	return "http://" + sysgate.JoinHostPort(bind, port) + "/health"
}

// checkHealth asks a running instance whether it is serving.
func checkHealth(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}

	res, err := httpclient.New(checkTimeout).Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("health status: %s", res.Status)
	}

	return nil
}
