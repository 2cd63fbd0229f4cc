package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/work"
)

// lockedBuffer is a bytes.Buffer safe for the periodic flush goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// flakyWriter fails the first failures writes and then accepts at most
// chunk bytes per call.
type flakyWriter struct {
	failures int
	chunk    int
	buf      bytes.Buffer
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("disk busy")
	}
	if f.chunk > 0 && len(p) > f.chunk {
		n, _ := f.buf.Write(p[:f.chunk])
		return n, errors.New("short write")
	}
	return f.buf.Write(p)
}

func decodeLines(t *testing.T, data string) []record[int] {
	t.Helper()
	var out []record[int]
	sc := bufio.NewScanner(bytes.NewBufferString(data))
	for sc.Scan() {
		var rec record[int]
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestWriter_Lines(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	w := NewWriterWithConfig[int](&buf, WriterConfig{})

	require.NoError(t, w.Put(ctx, "run-1", work.Succeeded(1, 4)))
	failed := work.Failed[int](2, errors.New("negative input"))
	failed.WorkerID = 3
	require.NoError(t, w.Put(ctx, "run-1", failed))
	assert.Zero(t, buf.Len(), "lines stay buffered until flushed")

	require.NoError(t, w.Close())

	recs := decodeLines(t, buf.String())
	require.Len(t, recs, 2)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, 4, recs[0].Output)
	assert.Empty(t, recs[0].Error)

	r := recs[1].result()
	assert.True(t, r.Failed())
	assert.Equal(t, 3, r.WorkerID)
	assert.EqualError(t, r.Cause(), "negative input")

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(1), stats.Flushes)
	assert.Equal(t, int64(buf.Len()), stats.BytesWritten)
}

func TestWriter_FlushesWhenFull(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterWithConfig[int](&buf, WriterConfig{BufferSize: 16})
	defer w.Close()

	require.NoError(t, w.Put(context.Background(), "run", work.Succeeded(1, 1)))
	assert.NotZero(t, buf.Len())
}

func TestWriter_PeriodicFlush(t *testing.T) {
	var buf lockedBuffer
	w := NewWriterWithConfig[int](&buf, WriterConfig{FlushInterval: 10 * time.Millisecond})
	defer w.Close()

	require.NoError(t, w.Put(context.Background(), "run", work.Succeeded(1, 1)))
	assert.Eventually(t, func() bool { return buf.String() != "" }, time.Second, 5*time.Millisecond)
}

func TestWriter_Retries(t *testing.T) {
	fw := &flakyWriter{failures: 2, chunk: 8}
	w := NewWriterWithConfig[int](fw, WriterConfig{MaxRetries: 50, RetryDelay: time.Millisecond})

	require.NoError(t, w.Put(context.Background(), "run", work.Succeeded(7, 49)))
	require.NoError(t, w.Close())

	recs := decodeLines(t, fw.buf.String())
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(7), recs[0].Seq)
}

func TestWriter_GivesUp(t *testing.T) {
	fw := &flakyWriter{failures: 10}
	w := NewWriterWithConfig[int](fw, WriterConfig{MaxRetries: 1, RetryDelay: time.Millisecond})

	require.NoError(t, w.Put(context.Background(), "run", work.Succeeded(1, 1)))
	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk busy")
	assert.Equal(t, int64(1), w.Stats().Errors)
	require.NoError(t, w.Close())
}

// shortWriter accepts one byte per call without reporting an error.
type shortWriter struct {
	calls int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	s.calls++
	if len(p) == 0 {
		return 0, nil
	}
	return 1, nil
}

func TestWriter_ShortWrite(t *testing.T) {
	sw := &shortWriter{}
	w := NewWriterWithConfig[int](sw, WriterConfig{MaxRetries: 2, RetryDelay: time.Millisecond})

	require.NoError(t, w.Put(context.Background(), "run", work.Succeeded(1, 1)))
	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 3, sw.calls)
	assert.Equal(t, int64(3), w.Stats().BytesWritten)
	assert.Equal(t, int64(1), w.Stats().Errors)
	require.NoError(t, w.Close())
}

func TestWriter_Closed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter[int](&buf)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Put(context.Background(), "run", work.Succeeded(1, 1)), wderrors.ErrClosed)
}
