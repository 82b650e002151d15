package refresh

import (
	"context"
	"sync/atomic"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Refresher obtains a fresh token for a request.
type Refresher interface {
	Refresh(ctx context.Context, req TokenRequest) (*oauth2.Token, error)
}

// Coordinator deduplicates concurrent refreshes.
//
// Calls sharing a fingerprint while a refresh is outstanding attach to that
// refresh instead of issuing their own. The pending entry is removed when the
// call completes, successfully or not, so the next call starts a new refresh.
type Coordinator struct {
	fetcher TokenFetcher
	group   singleflight.Group

	inFlight atomic.Int64
	calls    atomic.Int64
}

var _ Refresher = (*Coordinator)(nil)

// NewCoordinator wraps fetcher with single-flight deduplication.
func NewCoordinator(fetcher TokenFetcher) *Coordinator {
	return &Coordinator{fetcher: fetcher}
}

// Refresh returns a fresh token for req.
//
// The underlying call runs detached from ctx cancellation: if ctx ends first,
// Refresh returns ctx.Err() while the refresh completes for the other waiters.
func (c *Coordinator) Refresh(ctx context.Context, req TokenRequest) (*oauth2.Token, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	detached := context.WithoutCancel(ctx)
	results := c.group.DoChan(req.Fingerprint(), func() (any, error) {
		c.inFlight.Add(1)
		defer c.inFlight.Add(-1)
		c.calls.Add(1)

		return c.fetcher.Fetch(detached, req)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InFlight returns the number of refreshes currently outstanding.
func (c *Coordinator) InFlight() int {
	return int(c.inFlight.Load())
}

// Calls returns the number of token endpoint calls issued so far.
func (c *Coordinator) Calls() int {
	return int(c.calls.Load())
}
