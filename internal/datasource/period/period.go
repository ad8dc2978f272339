// Package period resolves which production month to download. The monthly
// extract for the current month is published with a delay of several weeks,
// so the resolver probes candidate months backward from today until it finds
// one the server actually serves.
package period

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MonthToken is replaced in URL templates with the candidate month.
const MonthToken = "{month}"

// ProbeFunc reports whether the extract at url exists. Implementations
// typically issue a ranged GET for the first bytes.
type ProbeFunc func(ctx context.Context, url string) (bool, error)

// Resolver walks months backward from the current month until a probe
// succeeds or the lookback is exhausted.
type Resolver struct {
	Probe ProbeFunc

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

// Resolved names the month that was found and the concrete URL serving it.
type Resolved struct {
	Month string // YYYY-MM
	URL   string
}

// ResolveLatest expands template for each candidate month, newest first, and
// returns the first month whose extract exists. Probe errors are treated as
// "not published" and the walk continues; only an exhausted lookback fails.
func (r *Resolver) ResolveLatest(ctx context.Context, template string, lookbackMonths int) (Resolved, error) {
	if r.Probe == nil {
		return Resolved{}, fmt.Errorf("period: resolver has no probe")
	}
	if lookbackMonths < 0 {
		return Resolved{}, fmt.Errorf("period: negative lookback %d", lookbackMonths)
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	// Normalize to the first of the month so AddDate arithmetic never
	// skips short months.
	t := now().UTC()
	cur := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)

	var tried []string
	for i := 0; i <= lookbackMonths; i++ {
		if err := ctx.Err(); err != nil {
			return Resolved{}, err
		}
		month := cur.AddDate(0, -i, 0).Format("2006-01")
		url := strings.ReplaceAll(template, MonthToken, month)
		ok, err := r.Probe(ctx, url)
		if err == nil && ok {
			return Resolved{Month: month, URL: url}, nil
		}
		tried = append(tried, month)
	}
	return Resolved{}, fmt.Errorf("period: no extract published in the last %d months (tried %s)",
		lookbackMonths+1, strings.Join(tried, ", "))
}
