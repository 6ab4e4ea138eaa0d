package database

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedClient paces every backend call through a token bucket. Used to
// keep a hosted backend's request quota from being exhausted by bursts of
// dashboard refreshes.
type rateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// RateLimited wraps c so that every operation waits for the token bucket
// before reaching the backend. rps is the sustained request rate, burst the
// bucket size. A non-positive rps returns c unchanged.
func RateLimited(c Client, rps float64, burst int) Client {
	if rps <= 0 {
		return c
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedClient{
		inner:   c,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *rateLimitedClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return WrapError(KindConnection, "rate limiter wait aborted", err)
	}
	return nil
}

func (c *rateLimitedClient) Select(ctx context.Context, table string, opts SelectOptions) ([]Record, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Select(ctx, table, opts)
}

func (c *rateLimitedClient) Insert(ctx context.Context, table string, records []Record, opts InsertOptions) ([]Record, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Insert(ctx, table, records, opts)
}

func (c *rateLimitedClient) Update(ctx context.Context, table string, changes Record, filters []Filter, opts UpdateOptions) ([]Record, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Update(ctx, table, changes, filters, opts)
}

func (c *rateLimitedClient) Delete(ctx context.Context, table string, filters []Filter, opts DeleteOptions) ([]Record, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Delete(ctx, table, filters, opts)
}

func (c *rateLimitedClient) CurrentUser(ctx context.Context) (*Principal, error) {
	return c.inner.CurrentUser(ctx)
}

func (c *rateLimitedClient) Connected() bool {
	return c.inner.Connected()
}

func (c *rateLimitedClient) Close() error {
	return c.inner.Close()
}
