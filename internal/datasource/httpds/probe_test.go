// These tests exercise the Probe method, which checks whether a URL is
// published by issuing a GET with a one-byte Range. Month resolution for the
// production extract walks candidate URLs with it, so the classification of
// status codes matters more than the body.

package httpds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func probeClient() *Client {
	c := NewClient(Config{
		MaxRetries:     0,
		Timeout:        2 * time.Second,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})
	c.sleep = func(time.Duration) {}
	return c
}

func TestProbe_Published(t *testing.T) {
	t.Parallel()

	var sawRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Volumes,ProductionMonth"))
	}))
	defer srv.Close()

	ok, err := probeClient().Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if !ok {
		t.Fatal("expected published=true for 200")
	}
	if sawRange != "bytes=0-0" {
		t.Fatalf("expected Range header %q, got %q", "bytes=0-0", sawRange)
	}
}

func TestProbe_PartialContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("V"))
	}))
	defer srv.Close()

	ok, err := probeClient().Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if !ok {
		t.Fatal("expected published=true for 206")
	}
}

func TestProbe_NotPublished(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such extract", code)
		}))

		ok, err := probeClient().Probe(context.Background(), srv.URL)
		srv.Close()
		if err != nil {
			t.Fatalf("status %d: Probe error: %v", code, err)
		}
		if ok {
			t.Errorf("status %d: expected published=false", code)
		}
	}
}

func TestProbe_UnexpectedStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	if _, err := probeClient().Probe(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for unclassified status")
	}
}

func TestProbe_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := probeClient().Probe(ctx, srv.URL); err == nil {
		t.Fatal("expected error due to canceled context")
	}
}
