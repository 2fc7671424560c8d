// Package watcher moves tasks between Redis queues according to a
// [rule.Set].
//
// A [Watcher] atomically moves the oldest task of its input queue into its
// taken queue, expands every matching rule, pushes the produced tasks, and
// finally removes the task from the taken queue. When expansion or dispatch
// fails the task stays in the taken queue for inspection.
package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/resc/pkg/log"
	"github.com/macropower/resc/pkg/rule"
)

const (
	// DefaultBlockTimeout bounds each blocking move so cancellation is
	// observed even on an idle queue.
	DefaultBlockTimeout = 5 * time.Second
	// DefaultBackoffBase is the first delay after a Redis error.
	DefaultBackoffBase = 100 * time.Millisecond
	// DefaultBackoffMax caps the delay between retries after Redis errors.
	DefaultBackoffMax = 30 * time.Second
	// DefaultDrainTimeout bounds how long a taken task keeps processing after
	// the watcher is stopped.
	DefaultDrainTimeout = 30 * time.Second
)

var (
	// ErrRedis indicates a failed Redis command.
	ErrRedis = errors.New("redis")
	// ErrExpand indicates that rules could not be expanded for a task.
	ErrExpand = errors.New("expand task")
	// ErrDispatch indicates that a produced task could not be pushed.
	ErrDispatch = errors.New("dispatch task")
	// ErrAck indicates that a processed task could not be removed from the
	// taken queue.
	ErrAck = errors.New("remove taken task")

	tracer = otel.Tracer("github.com/macropower/resc/pkg/watcher")
)

// pushUnique adds ARGV[1] to the set KEYS[1] and pushes it to the list
// KEYS[2] only when it was not already a member.
var pushUnique = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

// Watcher processes the tasks of one input queue.
type Watcher struct {
	client      redis.UniversalClient
	set         *rule.Set
	metrics     *Metrics
	history     *History
	now         func() time.Time
	input       string
	taken       string
	channel     string
	block       time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	drain       time.Duration
}

// Opt configures a [Watcher].
type Opt func(*Watcher)

// WithChannel publishes an [Event] to the Redis pub/sub channel for every
// pushed task.
func WithChannel(channel string) Opt {
	return func(w *Watcher) {
		w.channel = channel
	}
}

// WithMetrics sets the collectors to update.
func WithMetrics(m *Metrics) Opt {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// WithHistory records every pushed task in h.
func WithHistory(h *History) Opt {
	return func(w *Watcher) {
		w.history = h
	}
}

// WithBlockTimeout sets how long each blocking move waits for a task.
func WithBlockTimeout(d time.Duration) Opt {
	return func(w *Watcher) {
		w.block = d
	}
}

// WithBackoff sets the exponential backoff applied after Redis errors.
func WithBackoff(base, maxDelay time.Duration) Opt {
	return func(w *Watcher) {
		w.backoffBase = base
		w.backoffMax = maxDelay
	}
}

// WithDrainTimeout sets how long a taken task may keep processing once the
// context passed to [Watcher.Next] is done.
func WithDrainTimeout(d time.Duration) Opt {
	return func(w *Watcher) {
		w.drain = d
	}
}

// New creates a [Watcher] moving tasks from input to taken.
func New(client redis.UniversalClient, input, taken string, set *rule.Set, opts ...Opt) *Watcher {
	w := &Watcher{
		client:      client,
		set:         set,
		input:       input,
		taken:       taken,
		now:         time.Now,
		block:       DefaultBlockTimeout,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		drain:       DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.metrics == nil {
		w.metrics = NewMetrics(prometheus.NewRegistry())
	}

	return w
}

// InputQueue returns the watched queue.
func (w *Watcher) InputQueue() string {
	return w.input
}

// TakenQueue returns the queue holding tasks while they are processed.
func (w *Watcher) TakenQueue() string {
	return w.taken
}

// Rules returns the watcher's rule set.
func (w *Watcher) Rules() *rule.Set {
	return w.set
}

// Run processes tasks until ctx is canceled. Failed tasks are logged and left
// in the taken queue.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithContext(ctx).With(slog.String("input_queue", w.input))
	logger.Info("watching queue",
		slog.String("taken_queue", w.taken),
		slog.Int("rules", w.set.Len()),
	)

	for {
		took, err := w.Next(ctx)

		// Failing to take a task is expected once ctx is done.
		if err != nil && (took || ctx.Err() == nil) {
			logger.Error("process task", slog.Any("err", err))
		}

		if ctx.Err() != nil {
			logger.Info("stopped watching queue")

			return nil
		}
	}
}

// Next takes at most one task from the input queue and processes it. It
// reports whether a task was taken before the block timeout elapsed. Redis
// errors are retried with exponential backoff until ctx is done.
//
// Once taken, a task is processed to completion even if ctx is done in the
// meantime, for at most the drain timeout.
func (w *Watcher) Next(ctx context.Context) (bool, error) {
	var (
		task string
		took bool
	)

	err := retry.Do(ctx, w.newBackoff(), func(ctx context.Context) error {
		var err error

		task, err = w.client.BLMove(ctx, w.input, w.taken, "RIGHT", "LEFT", w.block).Result()

		switch {
		case err == nil:
			took = true

			return nil

		case errors.Is(err, redis.Nil):
			return nil

		case ctx.Err() != nil:
			return ctx.Err() //nolint:wrapcheck // Returned as-is by retry.Do.
		}

		w.metrics.Errors.WithLabelValues(w.input, ErrorKindRedis).Inc()
		log.WithContext(ctx).Warn("take task",
			slog.String("input_queue", w.input),
			slog.Any("err", err),
		)

		return retry.RetryableError(err)
	})
	if err != nil {
		return false, fmt.Errorf("%w: take from %q: %w", ErrRedis, w.input, err)
	}

	if !took {
		return false, nil
	}

	w.metrics.Taken.WithLabelValues(w.input).Inc()

	pctx, cancel := w.drainContext(ctx)
	defer cancel()

	return true, w.Process(pctx, task)
}

// drainContext returns a context that outlives ctx by the drain timeout.
func (w *Watcher) drainContext(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(w.drain)
		defer timer.Stop()

		select {
		case <-timer.C:
			cancel()
		case <-dctx.Done():
		}
	})

	return dctx, func() {
		stop()
		cancel()
	}
}

// Process expands task and pushes every produced task, then removes task
// from the taken queue. Nothing is pushed when expansion fails.
func (w *Watcher) Process(ctx context.Context, task string) error {
	ctx, span := tracer.Start(ctx, "process task",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("resc.input_queue", w.input),
			attribute.String("resc.task", task),
		),
	)
	defer span.End()

	logger := log.WithContext(ctx).With(
		slog.String("input_queue", w.input),
		slog.String("task", task),
	)

	err := w.process(ctx, logger, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}

func (w *Watcher) process(ctx context.Context, logger *slog.Logger, task string) error {
	start := time.Now()
	matches, err := w.set.Expand(ctx, task)
	w.metrics.ExpandDuration.WithLabelValues(w.input).Observe(time.Since(start).Seconds())

	if err != nil {
		w.metrics.Errors.WithLabelValues(w.input, ErrorKindExpand).Inc()

		return fmt.Errorf("%w %q: %w", ErrExpand, task, err)
	}

	if len(matches) == 0 {
		logger.Debug("no rule matched")
	}

	for _, m := range matches {
		for _, res := range m.Results {
			err := w.dispatch(ctx, logger, task, m.Rule.Name(), res)
			if err != nil {
				w.metrics.Errors.WithLabelValues(w.input, ErrorKindDispatch).Inc()

				return err
			}
		}
	}

	err = w.client.LRem(ctx, w.taken, 1, task).Err()
	if err != nil {
		w.metrics.Errors.WithLabelValues(w.input, ErrorKindAck).Inc()

		return fmt.Errorf("%w %q from %q: %w", ErrAck, task, w.taken, err)
	}

	return nil
}

func (w *Watcher) dispatch(ctx context.Context, logger *slog.Logger, input, ruleName string, res rule.Result) error {
	logger = logger.With(
		slog.String("rule", ruleName),
		slog.String("queue", res.Queue),
		slog.String("result", res.Task),
	)

	if res.Set != nil {
		added, err := pushUnique.Run(ctx, w.client, []string{*res.Set, res.Queue}, res.Task).Int()
		if err != nil {
			return fmt.Errorf("%w %q to %q: %w", ErrDispatch, res.Task, res.Queue, err)
		}

		if added == 0 {
			w.metrics.Deduplicated.WithLabelValues(w.input, ruleName).Inc()
			logger.Debug("skipped task already in set", slog.String("set", *res.Set))

			return nil
		}
	} else {
		err := w.client.LPush(ctx, res.Queue, res.Task).Err()
		if err != nil {
			return fmt.Errorf("%w %q to %q: %w", ErrDispatch, res.Task, res.Queue, err)
		}
	}

	w.metrics.Dispatched.WithLabelValues(w.input, ruleName).Inc()
	logger.Info("pushed task")

	ev := newEvent(w.now(), w.input, input, ruleName, res.Task, res.Queue, res.Set)
	if w.history != nil {
		w.history.Add(ev)
	}

	w.publish(ctx, logger, ev)

	return nil
}

// publish sends ev to the listener channel. Failures are only logged.
func (w *Watcher) publish(ctx context.Context, logger *slog.Logger, ev Event) {
	if w.channel == "" {
		return
	}

	payload, err := json.Marshal(ev)
	if err == nil {
		err = w.client.Publish(ctx, w.channel, payload).Err()
	}

	if err != nil {
		w.metrics.Errors.WithLabelValues(w.input, ErrorKindPublish).Inc()
		logger.Warn("publish event", slog.String("channel", w.channel), slog.Any("err", err))
	}
}

//nolint:ireturn // retry.Backoff is an interface.
func (w *Watcher) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(w.backoffMax, retry.NewExponential(w.backoffBase))
}
