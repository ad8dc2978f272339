// Package datasource defines the byte-level input abstraction shared by the
// local file and HTTP fetchers.
package datasource

import (
	"context"
	"io"
)

// Source yields the raw bytes of one extract.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ReadAll opens src and drains it into memory. The extracts are bounded
// monthly files, so whole-file reads are fine here.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
