package bridge

import (
	"net/http"
	"time"
)

// baseTransportConfig returns the HTTP transport used to talk to the local bridge.
// The bridge runs next to the terminal, so connections are kept alive between polls.
func baseTransportConfig(timeout time.Duration) *http.Transport {
	return &http.Transport{
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
	}
}

// newHTTPClient creates an HTTP client configured for bridge requests.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: baseTransportConfig(timeout),
		Timeout:   timeout,
	}
}
