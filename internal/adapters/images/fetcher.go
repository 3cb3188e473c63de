// Package images provides the HTTP implementation of the icon detector's
// ImageFetcher capability.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxIconBytes bounds icon downloads; marketplace icons are small.
const maxIconBytes = 5 << 20

type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
}
