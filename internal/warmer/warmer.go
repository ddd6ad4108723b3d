// Package warmer pre-populates the shared roster cache from queued
// roster.warm messages.
package warmer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tahfeez/internal/attendance"
	"tahfeez/internal/model"
	"tahfeez/internal/queue"
	"tahfeez/internal/telemetry"
)

// Target stores a lesson roster somewhere faster than its origin.
type Target interface {
	Warm(ctx context.Context, lessonID model.ID) (attendance.RawResponse, error)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(ctx context.Context, lessonID model.ID) (attendance.RawResponse, error)

// Warm implements Target.
func (f TargetFunc) Warm(ctx context.Context, lessonID model.ID) (attendance.RawResponse, error) {
	return f(ctx, lessonID)
}

// Worker consumes warm requests.
type Worker struct {
	q        queue.Queue
	target   Target
	log      *zap.Logger
	metrics  *telemetry.Metrics
	timeout  time.Duration
	parallel int
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(w *Worker) { w.log = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option { return func(w *Worker) { w.metrics = m } }

// WithTimeout bounds each lesson warm.
func WithTimeout(d time.Duration) Option { return func(w *Worker) { w.timeout = d } }

// WithParallelism bounds concurrent warms within one request.
func WithParallelism(n int) Option { return func(w *Worker) { w.parallel = n } }

// New creates a Worker.
func New(q queue.Queue, target Target, opts ...Option) *Worker {
	w := &Worker{q: q, target: target, log: zap.NewNop(), timeout: 10 * time.Second, parallel: 4}
	for _, opt := range opts {
		opt(w)
	}
	if w.parallel <= 0 {
		w.parallel = 1
	}
	return w
}

// Run processes messages until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Info("warmer started")
	for msg := range messages {
		w.Handle(ctx, msg)
	}
	w.log.Info("warmer stopped")
	return nil
}

// Handle processes one message. Failures are logged and counted; a failed
// lesson does not stop the others.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeRosterWarm {
		w.log.Debug("ignoring message", zap.String("type", msg.Type))
		return
	}
	req, err := queue.DecodeWarm(msg)
	if err != nil {
		w.metrics.WarmJob("invalid")
		w.log.Warn("invalid warm request", zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(w.parallel)
	for _, id := range req.Lessons {
		g.Go(func() error {
			w.warm(ctx, req.HalaqahID, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) warm(ctx context.Context, halaqahID, lessonID model.ID) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	resp, err := w.target.Warm(ctx, lessonID)
	if err != nil {
		w.metrics.WarmJob("failed")
		w.log.Warn("roster warm failed",
			zap.String("halaqah_id", halaqahID.String()),
			zap.String("lesson_id", lessonID.String()),
			zap.Error(err))
		return
	}
	w.metrics.WarmJob("ok")
	w.log.Debug("roster warmed",
		zap.String("lesson_id", lessonID.String()),
		zap.Int("records", len(resp.Attendances)),
		zap.Duration("took", time.Since(start)))
}

// Publisher returns a hook that queues a warm request for a newly opened
// halaqah. Publishing is bounded and detached from the caller's
// cancellation; failures are only logged.
func Publisher(q queue.Queue, log *zap.Logger) func(ctx context.Context, halaqahID model.ID, lessons []model.ID) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, halaqahID model.ID, lessons []model.ID) {
		msg, err := queue.NewWarmMessage(queue.WarmRequest{HalaqahID: halaqahID, Lessons: lessons})
		if err != nil {
			log.Warn("warm request not encoded", zap.Error(err))
			return
		}
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 200*time.Millisecond)
		defer cancel()
		if err := q.Publish(pubCtx, msg); err != nil {
			log.Warn("queue publish failed", zap.String("halaqah_id", halaqahID.String()), zap.Error(err))
		}
	}
}
