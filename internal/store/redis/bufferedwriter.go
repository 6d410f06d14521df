package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"equity-backtest/internal/metrics"
	"equity-backtest/internal/model"
)

// BufferedPublisher wraps a ReportPublisher with a circuit breaker.
// While the circuit is open, reports are buffered locally and replayed once
// it closes again.
type BufferedPublisher struct {
	next   model.ReportPublisher
	cb     *CircuitBreaker
	logger *slog.Logger

	mu     sync.Mutex
	buffer []*model.Report
	maxBuf int
	wg     sync.WaitGroup
}

// NewBufferedPublisher wraps next. maxBufferSize <= 0 means 64 reports;
// when full the oldest buffered report is dropped. m may be nil.
func NewBufferedPublisher(next model.ReportPublisher, cb *CircuitBreaker, maxBufferSize int, m *metrics.Metrics, logger *slog.Logger) *BufferedPublisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	bp := &BufferedPublisher{next: next, cb: cb, logger: logger, maxBuf: maxBufferSize}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if m != nil {
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
		logger.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		if to == StateClosed {
			bp.wg.Add(1)
			go func() {
				defer bp.wg.Done()
				bp.Flush(context.Background())
			}()
		}
	}
	return bp
}

// PublishReport publishes through the circuit breaker. A report rejected by
// an open circuit is buffered and nil is returned.
func (bp *BufferedPublisher) PublishReport(ctx context.Context, report *model.Report) error {
	err := bp.cb.Execute(func() error { return bp.next.PublishReport(ctx, report) })
	if errors.Is(err, ErrCircuitOpen) {
		bp.bufferReport(report)
		return nil
	}
	return err
}

// Deliver publishes report and retries every retry interval until it and
// every report buffered before it reach the publisher, or ctx ends. A failed
// attempt is buffered; once the breaker's reset timeout passes the oldest
// buffered report is sent as the half-open trial call.
func (bp *BufferedPublisher) Deliver(ctx context.Context, report *model.Report, retry time.Duration) error {
	if err := bp.PublishReport(ctx, report); err != nil {
		bp.logger.Warn("publish failed, buffering", "run_id", report.RunID, "error", err)
		bp.bufferReport(report)
	}
	for {
		bp.Wait()
		n := bp.PendingCount()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: %d report(s) left unpublished: %w", n, ctx.Err())
		case <-time.After(retry):
		}
		if err := bp.retryOldest(ctx); err != nil && !errors.Is(err, ErrCircuitOpen) {
			bp.logger.Debug("retry failed", "error", err, "pending", n)
		}
	}
}

// retryOldest sends the head of the buffer through the breaker and flushes
// the rest when it gets through.
func (bp *BufferedPublisher) retryOldest(ctx context.Context) error {
	bp.mu.Lock()
	if len(bp.buffer) == 0 {
		bp.mu.Unlock()
		return nil
	}
	head := bp.buffer[0]
	bp.buffer = bp.buffer[1:]
	bp.mu.Unlock()

	if err := bp.cb.Execute(func() error { return bp.next.PublishReport(ctx, head) }); err != nil {
		bp.mu.Lock()
		bp.buffer = append([]*model.Report{head}, bp.buffer...)
		bp.mu.Unlock()
		return err
	}
	bp.Flush(ctx)
	return nil
}

func (bp *BufferedPublisher) bufferReport(report *model.Report) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if len(bp.buffer) >= bp.maxBuf {
		bp.logger.Warn("report buffer full, dropping oldest", "run_id", bp.buffer[0].RunID)
		bp.buffer = bp.buffer[1:]
	}
	bp.buffer = append(bp.buffer, report)
}

// Flush replays buffered reports in arrival order. Reports that fail again
// go back to the front of the buffer.
func (bp *BufferedPublisher) Flush(ctx context.Context) int {
	bp.mu.Lock()
	pending := bp.buffer
	bp.buffer = nil
	bp.mu.Unlock()
	if len(pending) == 0 {
		return 0
	}

	flushed := 0
	for i, rep := range pending {
		if err := bp.next.PublishReport(ctx, rep); err != nil {
			bp.logger.Warn("replaying buffered report failed", "run_id", rep.RunID, "error", err)
			bp.mu.Lock()
			bp.buffer = append(append([]*model.Report{}, pending[i:]...), bp.buffer...)
			bp.mu.Unlock()
			break
		}
		flushed++
	}

	bp.logger.Info("flushed buffered reports", "count", flushed)
	return flushed
}

// PendingCount returns the number of buffered reports waiting to be flushed.
func (bp *BufferedPublisher) PendingCount() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.buffer)
}

// Wait blocks until background flushes started by the breaker finish.
func (bp *BufferedPublisher) Wait() {
	bp.wg.Wait()
}
