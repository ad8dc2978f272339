package httpds

import (
	"context"
	"fmt"
	"net/http"
)

// Probe reports whether url is published without downloading it. It issues a
// GET with a one-byte Range header; servers that ignore Range still answer
// with a status we can classify, and the body is discarded either way.
//
// A 2xx answer means published, 403/404/410 mean not published. Anything else
// is an error: the caller cannot distinguish "not yet published" from a broken
// endpoint and should not silently walk past it.
func (c *Client) Probe(ctx context.Context, url string) (bool, error) {
	h := make(http.Header)
	h.Set("Range", "bytes=0-0")

	resp, err := c.Do(ctx, http.MethodGet, url, nil, h)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone:
		return false, nil
	}
	return false, fmt.Errorf("httpds: probe %s: unexpected status %d", url, resp.StatusCode)
}
