package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/common/validation"
	"github.com/vnykmshr/workdist/pkg/work"
)

// RedisConfig holds configuration for a Redis sink.
type RedisConfig struct {
	// Redis client used for storage
	Redis redis.UniversalClient

	// Prefix is prepended to every key. Results of a run live in the hash
	// "<Prefix>:<runID>", one field per sequence number.
	Prefix string

	// TTL is how long a run's hash is kept (defaults to 24 hours)
	TTL time.Duration

	// Timeout bounds each Redis round trip (defaults to 500ms)
	Timeout time.Duration
}

// DefaultRedisConfig returns a configuration without a client.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Prefix:  "workdist:results",
		TTL:     24 * time.Hour,
		Timeout: 500 * time.Millisecond,
	}
}

// Redis stores results in one Redis hash per run.
type Redis[R any] struct {
	config RedisConfig
}

// NewRedis creates a Redis sink. Zero fields of config take their defaults.
func NewRedis[R any](config RedisConfig) (*Redis[R], error) {
	if config.Redis == nil {
		return nil, validation.ValidateNotNil("sink", "redis client", nil)
	}
	defaults := DefaultRedisConfig()
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.TTL == 0 {
		config.TTL = defaults.TTL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if err := validation.ValidateNonNegativeDuration("sink", "ttl", config.TTL); err != nil {
		return nil, err
	}
	return &Redis[R]{config: config}, nil
}

// Key returns the hash key holding results of runID.
func (s *Redis[R]) Key(runID string) string {
	return s.config.Prefix + ":" + runID
}

// Put implements Sink.
func (s *Redis[R]) Put(ctx context.Context, runID string, r work.Result[R]) error {
	payload, err := json.Marshal(newRecord(r))
	if err != nil {
		return wderrors.NewOperationError("sink", "Put", err).
			WithContext(fmt.Sprintf("encode seq %d", r.Seq))
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	key := s.Key(runID)
	_, err = s.config.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, strconv.FormatUint(r.Seq, 10), payload)
		pipe.Expire(ctx, key, s.config.TTL)
		return nil
	})
	if err != nil {
		return wderrors.NewOperationError("sink", "Put", err).WithContext(key)
	}
	return nil
}

// Load reads back every stored result of runID ordered by sequence number.
// Failed results come back with a *work.FailedError whose cause carries the
// original message.
func (s *Redis[R]) Load(ctx context.Context, runID string) ([]work.Result[R], error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	fields, err := s.config.Redis.HGetAll(ctx, s.Key(runID)).Result()
	if err != nil {
		return nil, wderrors.NewOperationError("sink", "Load", err).WithContext(s.Key(runID))
	}

	out := make([]work.Result[R], 0, len(fields))
	for field, raw := range fields {
		var rec record[R]
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, wderrors.NewOperationError("sink", "Load", err).
				WithContext("field " + field)
		}

		out = append(out, rec.result())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Delete removes the stored results of runID.
func (s *Redis[R]) Delete(ctx context.Context, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	return s.config.Redis.Del(ctx, s.Key(runID)).Err()
}
