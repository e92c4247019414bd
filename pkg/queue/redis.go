package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"StockCast/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// QueueMode restricts which side of the queue an instance serves.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

const defaultKeyPrefix = "stockcast:queue"

// RedisQueue is a job queue over three Redis keys: a message list the
// workers BRPOP, a retry zset scored by due time and a dead letter list for
// messages past the attempt limit.
type RedisQueue struct {
	l         *logger.Logger
	cfg       *QueueConfig
	client    *redis.Client
	mode      QueueMode
	keyPrefix string

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool

	wg     sync.WaitGroup
	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) { r.keyPrefix = prefix }
}

// NewRedisQueue creates a queue. Start must be called before messages flow.
func NewRedisQueue(l *logger.Logger, cfg *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		l:         l,
		cfg:       cfg,
		client:    client,
		mode:      mode,
		keyPrefix: defaultKeyPrefix,
		jobs:      make(map[string]Job),
		stop:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJobs registers each job in order.
func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		r.RegisterJob(job)
	}
}

// RegisterJob binds a job to its message type. Producer-only queues never
// dispatch, so registration is skipped there; duplicate types keep the first
// registration.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.l.Warn("job registration skipped in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Type()]; ok {
		r.l.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.l.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start pings Redis, then spawns the workers and the retry sweeper unless
// the queue is producer-only.
func (r *RedisQueue) Start() error {
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.isRunning = true
	r.mu.Unlock()

	if r.mode == ModeProducerOnly {
		r.l.Info("redis publisher started",
			logger.String("addr", r.client.Options().Addr))
		return nil
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.retrySweeper()

	r.l.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("mode", r.mode.String()))
	return nil
}

// Stop shuts the workers down, waiting until they drain or ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	if r.mode != ModeProducerOnly {
		close(r.stop)
	}
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	select {
	case <-ctx.Done():
		r.l.Warn("queue workers did not drain in time", logger.Error(ctx.Err()))
		return fmt.Errorf("stop queue: %w", ctx.Err())
	case <-drained:
		r.l.Info("redis queue stopped")
		return nil
	}
}

// Enqueue pushes a message and returns its id. Consumer-capable queues
// refuse types with no registered job so a typo fails at the producer
// instead of rotting in the list.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.isRunning {
		return "", fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly {
		if _, ok := r.jobs[msgType]; !ok {
			return "", fmt.Errorf("no job registered for type %q", msgType)
		}
	}

	msg := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	blob, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.getQueueKey(), string(blob)).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) (string, error) {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.l.Info("queue worker started", logger.Int("worker_id", id))

	key := r.getQueueKey()
	for {
		select {
		case <-r.stop:
			r.l.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-r.ctx.Done():
			return
		default:
			r.popNext(key)
		}
	}
}

// popNext blocks up to a second for one message and dispatches it. Timeouts
// and empty lists just return so the worker loop can observe shutdown.
func (r *RedisQueue) popNext(key string) {
	ctx, cancel := context.WithTimeout(r.ctx, time.Second)
	defer cancel()

	res, err := r.client.BRPop(ctx, time.Second, key).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
			return
		}
		r.l.Error("brpop", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(res) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.l.Error("unmarshal message", logger.Error(err))
		return
	}
	r.processMessage(msg)
}

func (r *RedisQueue) processMessage(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.l.Error("no job for message type",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, r.convertPayload(msg.Payload))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		r.l.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	r.retryOrBury(msg, job, err)
}

// convertPayload turns a decoded JSON object back into raw JSON so handlers
// can unmarshal into their own payload types. Other payloads pass through.
func (r *RedisQueue) convertPayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	blob, err := json.Marshal(m)
	if err != nil {
		r.l.Error("re-encode payload", logger.Error(err))
		return payload
	}
	return json.RawMessage(blob)
}

func (r *RedisQueue) retryOrBury(msg Message, job Job, cause error) {
	r.l.Error("message processing failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(cause))

	if msg.Attempts >= r.cfg.RetryLimit {
		r.l.Error("attempt limit reached, moving to dead letter list",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		r.pushDeadLetter(msg)
		return
	}

	msg.Attempts++
	due := time.Now().Add(r.cfg.RetryDelay)
	r.pushRetry(msg, due)
	r.l.Info("retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("due", due.Format(time.RFC3339)))
}

func (r *RedisQueue) pushRetry(msg Message, due time.Time) {
	blob, err := json.Marshal(msg)
	if err != nil {
		r.l.Error("marshal retry", logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.getRetryKey(), redis.Z{
		Score:  float64(due.Unix()),
		Member: blob,
	}).Err()
	if err != nil {
		r.l.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) pushDeadLetter(msg Message) {
	blob, err := json.Marshal(msg)
	if err != nil {
		r.l.Error("marshal dead letter", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.getDeadLetterKey(), blob).Err(); err != nil {
		r.l.Error("lpush dead letter", logger.Error(err))
	}
}

// retrySweeper moves due retry messages back onto the main list every five
// seconds.
func (r *RedisQueue) retrySweeper() {
	defer r.wg.Done()
	r.l.Info("retry sweeper started")

	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-r.stop:
			r.l.Info("retry sweeper stopping")
			return
		case <-r.ctx.Done():
			return
		case <-tick.C:
			r.sweepDueRetries()
		}
	}
}

func (r *RedisQueue) sweepDueRetries() {
	due, err := r.client.ZRangeByScoreWithScores(r.ctx, r.getRetryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.l.Error("read retry set", logger.Error(err))
		return
	}

	for _, z := range due {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		blob := z.Member.(string)
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.getRetryKey(), blob)
		pipe.LPush(r.ctx, r.getQueueKey(), blob)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.l.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) getQueueKey() string {
	return r.keyPrefix + ":messages"
}

func (r *RedisQueue) getRetryKey() string {
	return r.keyPrefix + ":retry"
}

func (r *RedisQueue) getDeadLetterKey() string {
	return r.keyPrefix + ":dlq"
}
