package extractiondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "extraction:"
	redisMaxAttempts = 20
	redisBackoff     = 2 * time.Millisecond
	redisMaxBackoff  = 50 * time.Millisecond
)

// Redis is a Store keeping each extraction as a JSON document. Mutations run
// inside WATCH/MULTI so a concurrent append forces a retry instead of losing
// an update.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis store. A zero ttl keeps extractions forever.
func NewRedis(addr string, ttl time.Duration) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Create(ctx context.Context, rootURL string) (*ExtractionResult, error) {
	res := newResult(rootURL)
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("Unable to encode extraction: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(res.ID), data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("Unable to create extraction with url %s: %w", rootURL, err)
	}
	return res, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*ExtractionResult, error) {
	data, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("Unable to get extraction %s: %w", id, ErrDoesNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to get extraction %s: %w", id, err)
	}
	return decodeResult(data)
}

func (r *Redis) Update(ctx context.Context, id string, u Update) (*ExtractionResult, error) {
	var out *ExtractionResult
	err := r.mutate(ctx, id, func(res *ExtractionResult) error {
		if err := applyUpdate(res, u); err != nil {
			return err
		}
		if res.Status == StatusCompleted {
			res.Recompute()
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Redis) AppendFile(ctx context.Context, id string, f *ExtractedFile) error {
	return r.mutate(ctx, id, func(res *ExtractionResult) error {
		return appendFile(res, f)
	})
}

func appendFile(res *ExtractionResult, f *ExtractedFile) error {
	fc := *f
	res.Files = append(res.Files, &fc)
	res.Recompute()
	return nil
}

// mutate applies fn to the stored document under optimistic locking.
func (r *Redis) mutate(ctx context.Context, id string, fn func(*ExtractionResult) error) error {
	key := redisKey(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("Unable to modify extraction %s: %w", id, ErrDoesNotExist)
		}
		if err != nil {
			return err
		}
		out, err := rewrite(data, fn)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return fmt.Errorf("Unable to modify extraction %s: too much contention", id)
}

// retryBackoff grows linearly with attempt up to redisMaxBackoff.
func retryBackoff(attempt int) time.Duration {
	d := time.Duration(attempt+1) * redisBackoff
	if d > redisMaxBackoff {
		return redisMaxBackoff
	}
	return d
}

// rewrite decodes a stored document, applies fn and encodes the result.
func rewrite(data []byte, fn func(*ExtractionResult) error) ([]byte, error) {
	res, err := decodeResult(data)
	if err != nil {
		return nil, err
	}
	if err := fn(res); err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func decodeResult(data []byte) (*ExtractionResult, error) {
	var res ExtractionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("Unable to decode extraction: %w", err)
	}
	if res.Files == nil {
		res.Files = []*ExtractedFile{}
	}
	return &res, nil
}
