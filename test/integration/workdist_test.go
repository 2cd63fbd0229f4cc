// Package integration contains tests that run several workdist packages
// together the way an application wires them.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnykmshr/workdist/internal/config"
	"github.com/vnykmshr/workdist/internal/testutil"
	"github.com/vnykmshr/workdist/pkg/scheduler"
	"github.com/vnykmshr/workdist/pkg/sink"
	"github.com/vnykmshr/workdist/pkg/supervisor"
	"github.com/vnykmshr/workdist/pkg/work"
)

var errOdd = errors.New("odd input")

func evenSquare(_ context.Context, x int) (int, error) {
	if x%2 != 0 {
		return 0, errOdd
	}
	return x * x, nil
}

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workdist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

// TestConfiguredRunToWriter runs a batch configured from YAML, with
// metrics and throttling, and checks what reaches the JSON lines sink.
func TestConfiguredRunToWriter(t *testing.T) {
	cfg := loadConfig(t, `
name: evens
workers: 3
capacity: 2
throttle:
  rate: 1000
  burst: 5
metrics:
  enabled: true
  namespace: itest
`)

	reg := prometheus.NewRegistry()
	m := cfg.MetricsRegistry(reg)
	require.NotNil(t, m)

	var out bytes.Buffer
	w := sink.NewWriterWithConfig[int](&out, sink.WriterConfig{})
	mem := sink.NewMemory[int]()

	sc, err := config.Supervisor[int](cfg, zap.NewNop(), m, sink.Tee[int](w, mem))
	require.NoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}
	report, err := supervisor.Run[int, int](ctx, sc, items, evenSquare)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 20, report.Submitted)
	assert.Equal(t, 10, report.Failed)
	assert.Len(t, report.Outputs(), 10)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 20)
	var failed int
	for _, line := range lines {
		var rec struct {
			RunID string `json:"run_id"`
			Error string `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, report.RunID, rec.RunID)
		if rec.Error != "" {
			failed++
			assert.Contains(t, rec.Error, errOdd.Error())
		}
	}
	assert.Equal(t, 10, failed)

	assert.Len(t, mem.Results(report.RunID), 20)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Runs.WithLabelValues("evens", "ok")))
	assert.Equal(t, 20.0, promtest.ToFloat64(m.ItemsDequeued.WithLabelValues("evens")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.QueueDepth.WithLabelValues("evens")))
}

// TestScheduledRuns triggers supervised runs from the scheduler and checks
// that every run is complete and independent.
func TestScheduledRuns(t *testing.T) {
	cfg := loadConfig(t, `
name: scheduled
workers: 2
capacity: 4
schedule: "@every 1s"
`)

	mem := sink.NewMemory[int]()
	sc, err := config.Supervisor[int](cfg, nil, nil, mem)
	require.NoError(t, err)
	sup, err := supervisor.New[int, int](sc, evenSquare)
	require.NoError(t, err)

	var runs int64
	job := scheduler.SupervisedJob(sup, func(context.Context) ([]int, error) {
		return []int{2, 4, 6}, nil
	}, func(r *supervisor.Report[int]) {
		if len(r.Results) == r.Submitted {
			atomic.AddInt64(&runs, 1)
		}
	})

	s := scheduler.New(scheduler.Config{})
	require.NoError(t, s.Add("evens", cfg.Schedule, job))
	s.Start()

	testutil.Eventually(t, func() bool { return atomic.LoadInt64(&runs) >= 2 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	ids := mem.Runs()
	require.GreaterOrEqual(t, len(ids), 2)
	for _, id := range ids {
		got := mem.Results(id)
		require.Len(t, got, 3)
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})
		assert.Equal(t, 36, got[2].Output)
	}
}

// TestRedisSinkRun stores a supervised run in Redis and reads it back.
// It is skipped when no Redis server is reachable.
func TestRedisSinkRun(t *testing.T) {
	cfg := loadConfig(t, `
workers: 2
redis:
  addr: localhost:6379
  db: 1
  prefix: workdist:itest
  ttl: 1m
`)

	client := cfg.RedisClient()
	require.NotNil(t, client)
	defer client.Close()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	rs, err := sink.NewRedis[int](cfg.RedisSinkConfig(client))
	require.NoError(t, err)

	sc, err := config.Supervisor[int](cfg, nil, nil, rs)
	require.NoError(t, err)

	report, err := supervisor.Run[int, int](ctx, sc, []int{1, 2, 3, 4}, evenSquare)
	require.NoError(t, err)
	defer func() { _ = rs.Delete(context.Background(), report.RunID) }()

	stored, err := rs.Load(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, stored, 4)

	var failures []*work.FailedError
	for _, r := range stored {
		if r.Failed() {
			var ferr *work.FailedError
			require.ErrorAs(t, r.Err, &ferr)
			failures = append(failures, ferr)
		}
	}
	require.Len(t, failures, 2)
	assert.Equal(t, uint64(1), failures[0].Seq)
	assert.Equal(t, uint64(3), failures[1].Seq)
	assert.Equal(t, 16, stored[3].Output)
}
