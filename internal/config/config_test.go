package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/metrics"
	"github.com/vnykmshr/workdist/pkg/sink"
	"github.com/vnykmshr/workdist/pkg/throttle"
)

func TestDefault(t *testing.T) {
	c := Default()

	want := max(1, runtime.NumCPU()-1)
	assert.Equal(t, want, c.Workers)
	assert.Equal(t, 2*want, c.Capacity)
	assert.Equal(t, "default", c.Name)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, metrics.DefaultNamespace, c.Metrics.Namespace)
	assert.Equal(t, "workdist:results", c.Redis.Prefix)
	assert.Equal(t, 24*time.Hour, c.Redis.TTL)
	assert.Equal(t, ThrottleConfig{Burst: 1}, c.Throttle)
	assert.NoError(t, c.Validate())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
name: squares
workers: 4
task_timeout: 250ms
schedule: "@every 10s"
log:
  level: debug
  format: console
metrics:
  enabled: true
  namespace: batch
  addr: ":9090"
redis:
  addr: localhost:6379
  db: 2
  ttl: 1h
`))
	require.NoError(t, err)

	assert.Equal(t, "squares", c.Name)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, 8, c.Capacity)
	assert.Equal(t, 250*time.Millisecond, c.TaskTimeout)
	assert.Equal(t, "@every 10s", c.Schedule)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, ":9090", c.Metrics.Addr)
	assert.Equal(t, 2, c.Redis.DB)
	assert.Equal(t, time.Hour, c.Redis.TTL)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative workers", "workers: -1"},
		{"negative capacity", "capacity: -3"},
		{"negative timeout", "task_timeout: -1s"},
		{"unknown level", "log: {level: verbose}"},
		{"unknown format", "log: {format: xml}"},
		{"negative rate", "throttle: {rate: -1}"},
		{"negative burst", "throttle: {rate: 5, burst: -2}"},
		{"bad schedule", "schedule: \"not cron\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, wderrors.ErrInvalidConfiguration)
		})
	}

	_, err := Parse([]byte("workers: [1, 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workdist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\ncapacity: 3\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Workers)
	assert.Equal(t, 3, c.Capacity)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	c := Default()
	c.Log.Level = "warn"
	c.Log.File = filepath.Join(t.TempDir(), "workdist.log")

	log, err := c.NewLogger()
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1)) // debug
	assert.True(t, log.Core().Enabled(1))   // warn

	log.Warn("hello")
	_ = log.Sync()

	data, err := os.ReadFile(c.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"name":"default"`)
}

func TestMetricsRegistry(t *testing.T) {
	c := Default()
	assert.Nil(t, c.MetricsRegistry(prometheus.NewRegistry()))

	c.Metrics.Enabled = true
	c.Metrics.Namespace = "batch"
	reg := prometheus.NewRegistry()
	m := c.MetricsRegistry(reg)
	require.NotNil(t, m)

	m.Runs.WithLabelValues("default", "ok").Inc()
	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "batch_supervisor_runs_total")
}

func TestRedis(t *testing.T) {
	c := Default()
	assert.Nil(t, c.RedisClient())

	c.Redis.Addr = "localhost:6379"
	c.Redis.TTL = time.Minute
	client := c.RedisClient()
	require.NotNil(t, client)
	defer client.Close()

	rc := c.RedisSinkConfig(client)
	assert.Equal(t, time.Minute, rc.TTL)
	assert.Equal(t, "workdist:results", rc.Prefix)
	assert.Equal(t, sink.DefaultRedisConfig().Timeout, rc.Timeout)
}

func TestSupervisor(t *testing.T) {
	c := Default()
	c.TaskTimeout = time.Second
	mem := sink.NewMemory[int]()

	sc, err := Supervisor[int](c, nil, nil, mem)
	require.NoError(t, err)
	assert.Nil(t, sc.Limiter)
	assert.Equal(t, c.Workers, sc.Workers)
	assert.Equal(t, c.Capacity, sc.Capacity)
	assert.Equal(t, time.Second, sc.TaskTimeout)
	assert.Equal(t, "default", sc.Name)
	assert.Same(t, mem, sc.Sink)

	c.Throttle = ThrottleConfig{Rate: 50, Burst: 5}
	sc, err = Supervisor[int](c, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, sc.Limiter)
	assert.Equal(t, throttle.Limit(50), sc.Limiter.(*throttle.Bucket).Limit())
	assert.Nil(t, sc.Sink)
}
