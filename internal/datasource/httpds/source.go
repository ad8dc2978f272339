package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Remote adapts Client to the datasource.Source interface for a single URL.
type Remote struct {
	c   *Client
	url string
}

// NewRemote binds a Client to one download URL.
func NewRemote(c *Client, url string) *Remote { return &Remote{c: c, url: url} }

// URL returns the bound download location.
func (r *Remote) URL() string { return r.url }

// Open issues a GET and returns the response body. Do already retried
// transient failures, so any non-200 here is final and reported with the URL.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.c.Get(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", r.url, resp.StatusCode)
	}
	return resp.Body, nil
}
