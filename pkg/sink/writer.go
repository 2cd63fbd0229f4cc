package sink

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	wderrors "github.com/vnykmshr/workdist/pkg/common/errors"
	"github.com/vnykmshr/workdist/pkg/work"
)

// WriterConfig holds configuration for a Writer sink.
type WriterConfig struct {
	// BufferSize is the number of buffered bytes that triggers a flush.
	// Default: 64KB
	BufferSize int

	// FlushInterval flushes buffered lines periodically. Zero disables it.
	// Default: 1 second
	FlushInterval time.Duration

	// MaxRetries is how many times a failed write is retried.
	// Default: 3
	MaxRetries int

	// RetryDelay is the pause between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// Logger receives flush failures. Nil means no logging.
	Logger *zap.Logger
}

// DefaultWriterConfig returns the default Writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BufferSize:    64 * 1024,
		FlushInterval: time.Second,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
	}
}

// WriterStats holds counters of a Writer.
type WriterStats struct {
	Records      int64
	BytesWritten int64
	Flushes      int64
	Errors       int64
}

// Writer appends results as JSON lines to an io.Writer. Lines are buffered
// and written when the buffer fills, on every FlushInterval, and on Flush
// and Close.
type Writer[R any] struct {
	config WriterConfig
	w      io.Writer
	log    *zap.Logger

	mu     sync.Mutex
	buf    []byte
	closed bool
	stats  WriterStats

	// wmu serializes writes to w so flushes never interleave.
	wmu sync.Mutex

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWriter creates a Writer sink with the default configuration.
func NewWriter[R any](w io.Writer) *Writer[R] {
	return NewWriterWithConfig[R](w, DefaultWriterConfig())
}

// NewWriterWithConfig creates a Writer sink. Non-positive fields of config
// take their defaults, except FlushInterval where zero disables the
// periodic flush.
func NewWriterWithConfig[R any](w io.Writer, config WriterConfig) *Writer[R] {
	defaults := DefaultWriterConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Writer[R]{
		config: config,
		w:      w,
		log:    log,
		buf:    make([]byte, 0, config.BufferSize),
		stop:   make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		s.wg.Add(1)
		go s.flushLoop()
	}
	return s
}

// Put implements Sink.
func (s *Writer[R]) Put(ctx context.Context, runID string, r work.Result[R]) error {
	rec := newRecord(r)
	rec.RunID = runID
	line, err := json.Marshal(rec)
	if err != nil {
		return wderrors.NewOperationError("sink", "Put", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return wderrors.ErrClosed
	}
	s.buf = append(s.buf, line...)
	s.stats.Records++
	full := len(s.buf) >= s.config.BufferSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered lines.
func (s *Writer[R]) Flush(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return nil
	}
	data := s.buf
	s.buf = make([]byte, 0, s.config.BufferSize)
	s.mu.Unlock()

	n, err := s.writeWithRetries(ctx, data)

	s.mu.Lock()
	s.stats.Flushes++
	s.stats.BytesWritten += int64(n)
	if err != nil {
		s.stats.Errors++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("flush failed", zap.Int("bytes", len(data)), zap.Int("written", n), zap.Error(err))
		return wderrors.NewOperationError("sink", "Flush", err)
	}
	return nil
}

// Close stops the periodic flush and writes any buffered lines. Further
// calls to Put return ErrClosed. Close is idempotent.
func (s *Writer[R]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	return s.Flush(context.Background())
}

// Stats returns a snapshot of the writer's counters.
func (s *Writer[R]) Stats() WriterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Writer[R]) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.Flush(context.Background())
		case <-s.stop:
			return
		}
	}
}

// writeWithRetries writes data, resuming after partial writes.
func (s *Writer[R]) writeWithRetries(ctx context.Context, data []byte) (int, error) {
	var written int
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.config.RetryDelay):
			case <-ctx.Done():
				return written, ctx.Err()
			}
		}

		n, err := s.w.Write(data[written:])
		written += n
		if err != nil {
			lastErr = err
			continue
		}
		if written >= len(data) {
			return written, nil
		}
		lastErr = io.ErrShortWrite
	}
	return written, lastErr
}
