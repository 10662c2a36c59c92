package gojob

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/usufslc/aggie-auth/command"
)

// ErrNoDelivery reports an empty queue.
var ErrNoDelivery = errors.New("gojob: no delivery available")

const (
	JobIDPurgeExpired      = "aggie_auth.verification.purge"
	ParamGraceSeconds      = "grace_seconds"
	DefaultRetryDelay      = 30 * time.Second
	reasonUnsupportedJob   = "unsupported job"
	reasonInvalidParameter = "invalid parameters"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
// Retries past MaxAttempts become dead letters when DeadLetterOnMax is set
// and plain failures otherwise.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
	}
	return out
}

// NewPurgeMessage builds the queue message for one purge of verification
// credentials expired longer than grace ago.
func NewPurgeMessage(grace time.Duration, idempotencyKey string) *job.ExecutionMessage {
	if grace < 0 {
		grace = 0
	}
	return &job.ExecutionMessage{
		JobID:          JobIDPurgeExpired,
		ScriptPath:     JobIDPurgeExpired,
		Parameters:     map[string]any{ParamGraceSeconds: int(grace / time.Second)},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    job.DedupPolicyDrop,
	}
}

func EnqueuePurge(ctx context.Context, enqueuer queue.Enqueuer, grace time.Duration, idempotencyKey string) (queue.EnqueueReceipt, error) {
	if enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	return enqueuer.Enqueue(ctx, NewPurgeMessage(grace, idempotencyKey))
}

type PurgeExecutor interface {
	Execute(ctx context.Context, msg command.PurgeExpiredMessage) error
}

type RunnerOption func(*PurgeRunner)

func WithLogger(logger job.Logger) RunnerOption {
	return func(r *PurgeRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithHook(hook worker.Hook) RunnerOption {
	return func(r *PurgeRunner) {
		r.hook = hook
	}
}

func WithRetryDelay(delay time.Duration) RunnerOption {
	return func(r *PurgeRunner) {
		if delay >= 0 {
			r.retryDelay = delay
		}
	}
}

// PurgeRunner consumes purge messages from a go-job queue and runs the purge
// command for each, acknowledging or nacking the delivery per RetryPolicy.
type PurgeRunner struct {
	dequeuer   queue.Dequeuer
	executor   PurgeExecutor
	policy     RetryPolicy
	retryDelay time.Duration
	logger     job.Logger
	hook       worker.Hook
	now        func() time.Time
}

func NewPurgeRunner(dequeuer queue.Dequeuer, executor PurgeExecutor, policy RetryPolicy, opts ...RunnerOption) *PurgeRunner {
	runner := &PurgeRunner{
		dequeuer:   dequeuer,
		executor:   executor,
		policy:     policy,
		retryDelay: DefaultRetryDelay,
		logger:     job.GoLogger(glog.Nop()),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner
}

// RunOnce dequeues a single delivery and processes it. It returns
// ErrNoDelivery when the queue has nothing ready.
func (r *PurgeRunner) RunOnce(ctx context.Context) (int64, error) {
	if r == nil || r.dequeuer == nil {
		return 0, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := r.dequeuer.Dequeue(ctx)
	if err != nil {
		return 0, err
	}
	if delivery == nil {
		return 0, ErrNoDelivery
	}
	return r.Process(ctx, delivery, deliveryAttempts(delivery))
}

// Drain processes ready deliveries until the queue is empty. Failed
// deliveries are nacked and do not stop the drain; the first failure is
// returned alongside the purged total.
func (r *PurgeRunner) Drain(ctx context.Context) (int64, error) {
	var (
		total    int64
		firstErr error
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if r == nil || r.dequeuer == nil {
			return total, fmt.Errorf("gojob: dequeuer is not configured")
		}
		delivery, err := r.dequeuer.Dequeue(ctx)
		if err != nil {
			return total, err
		}
		if delivery == nil {
			return total, firstErr
		}
		purged, err := r.Process(ctx, delivery, deliveryAttempts(delivery))
		total += purged
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

// Process runs the purge carried by delivery. Malformed messages are dead
// lettered; command failures are nacked for retry within the policy bounds.
func (r *PurgeRunner) Process(ctx context.Context, delivery queue.Delivery, attempt int) (int64, error) {
	if r == nil || r.executor == nil {
		return 0, fmt.Errorf("gojob: purge executor is not configured")
	}
	if delivery == nil {
		return 0, fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	startedAt := r.now()
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: startedAt}
	r.onStart(ctx, event)

	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDPurgeExpired {
		err := fmt.Errorf("gojob: %s", reasonUnsupportedJob)
		r.fail(ctx, event, err)
		return 0, r.nack(ctx, delivery, queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: reasonUnsupportedJob}, attempt, err)
	}
	grace, err := graceSeconds(msg.Parameters)
	if err != nil {
		r.fail(ctx, event, err)
		return 0, r.nack(ctx, delivery, queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: reasonInvalidParameter}, attempt, err)
	}

	collector := gocmd.NewResult[int64]()
	execErr := r.executor.Execute(gocmd.ContextWithResult(ctx, collector), command.PurgeExpiredMessage{GraceSeconds: grace})
	event.Duration = r.now().Sub(startedAt)
	if execErr != nil {
		opts := r.policy.NormalizeAttempt(queue.NackOptions{
			Disposition: queue.NackDispositionRetry,
			Delay:       r.retryDelay,
			Reason:      execErr.Error(),
		}, attempt)
		event.Err = execErr
		event.Delay = opts.Delay
		if opts.Disposition == queue.NackDispositionRetry {
			r.retry(ctx, event)
		} else {
			r.fail(ctx, event, execErr)
		}
		return 0, r.nack(ctx, delivery, opts, attempt, execErr)
	}

	purged, _ := collector.Load()
	if err := delivery.Ack(ctx); err != nil {
		return purged, fmt.Errorf("gojob: ack purge delivery: %w", err)
	}
	r.logger.Info("purged expired verification credentials",
		"job_id", msg.JobID,
		"grace_seconds", grace,
		"purged", purged,
		"attempt", attempt,
	)
	if r.hook != nil {
		r.hook.OnSuccess(ctx, event)
	}
	return purged, nil
}

func (r *PurgeRunner) nack(ctx context.Context, delivery queue.Delivery, opts queue.NackOptions, attempt int, cause error) error {
	normalized := r.policy.NormalizeAttempt(opts, attempt)
	if err := delivery.Nack(ctx, normalized); err != nil {
		return fmt.Errorf("gojob: nack purge delivery: %w (cause: %v)", err, cause)
	}
	return cause
}

func (r *PurgeRunner) onStart(ctx context.Context, event worker.Event) {
	if r.hook != nil {
		r.hook.OnStart(ctx, event)
	}
}

func (r *PurgeRunner) retry(ctx context.Context, event worker.Event) {
	r.logger.Warn("purge job failed, retrying",
		"attempt", event.Attempt,
		"delay_ms", event.Delay.Milliseconds(),
		"error", event.Err,
	)
	if r.hook != nil {
		r.hook.OnRetry(ctx, event)
	}
}

func (r *PurgeRunner) fail(ctx context.Context, event worker.Event, err error) {
	event.Err = err
	r.logger.Error("purge job failed", "attempt", event.Attempt, "error", err)
	if r.hook != nil {
		r.hook.OnFailure(ctx, event)
	}
}

type attemptsReader interface {
	Attempts() int
}

func deliveryAttempts(delivery queue.Delivery) int {
	if reader, ok := delivery.(attemptsReader); ok {
		if attempts := reader.Attempts(); attempts > 0 {
			return attempts
		}
	}
	return 1
}

func graceSeconds(params map[string]any) (int, error) {
	raw, ok := params[ParamGraceSeconds]
	if !ok || raw == nil {
		return 0, nil
	}
	var value int
	switch typed := raw.(type) {
	case int:
		value = typed
	case int32:
		value = int(typed)
	case int64:
		value = int(typed)
	case float64:
		if typed != math.Trunc(typed) {
			return 0, fmt.Errorf("gojob: %s must be a whole number", ParamGraceSeconds)
		}
		value = int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, fmt.Errorf("gojob: %s must be numeric: %w", ParamGraceSeconds, err)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("gojob: unsupported %s type %T", ParamGraceSeconds, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("gojob: %s must be >= 0", ParamGraceSeconds)
	}
	return value, nil
}

var _ PurgeExecutor = (*command.PurgeExpiredCommand)(nil)
