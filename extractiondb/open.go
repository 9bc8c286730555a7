package extractiondb

import (
	"context"
	"fmt"
	"time"
)

// OpenOptions selects and configures a Store backend.
type OpenOptions struct {
	// Driver is one of memory, postgres or redis.
	Driver    string
	DSN       string
	RedisAddr string
	RedisTTL  time.Duration
}

// Open connects to the configured backend, retrying a few times while it
// comes up. The returned close func releases the connection.
func Open(ctx context.Context, o OpenOptions) (Store, func() error, error) {
	switch o.Driver {
	case "", "memory":
		return NewMemory(), func() error { return nil }, nil
	case "postgres":
		var p *Postgres
		err := retry(ctx, func() (err error) {
			p, err = New(o.DSN)
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("Unable to connect to postgres: %w", err)
		}
		if err := p.Migrate(ctx); err != nil {
			p.Close()
			return nil, nil, err
		}
		return p, p.Close, nil
	case "redis":
		r := NewRedis(o.RedisAddr, o.RedisTTL)
		if err := retry(ctx, func() error { return r.Ping(ctx) }); err != nil {
			r.Close()
			return nil, nil, fmt.Errorf("Unable to connect to redis: %w", err)
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", o.Driver)
	}
}

// retry tries connect 3 more times after the first failure, waiting a bit
// longer each time.
func retry(ctx context.Context, connect func() error) error {
	retries, count, sleep := 3, 0, 5
	err := connect()
	for err != nil {
		if count >= retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(sleep) * time.Second):
		}
		sleep += 3
		err = connect()
		count++
	}
	return nil
}
