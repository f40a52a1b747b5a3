package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	applog "automateeasy/internal/pkg/logger"
	"automateeasy/internal/pkg/metrics"
)

var (
	ErrClosed  = errors.New("queue is closed")
	ErrFull    = errors.New("queue is full")
	ErrNilTask = errors.New("job is nil")
)

// Job 表示一个异步任务（目前只有邮件投递）。
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue 是固定 worker 池 + 有界通道的内存队列。
//
// Enqueue 从不阻塞请求路径：队列满时直接丢弃并记录告警。
type Queue struct {
	logger     *slog.Logger
	workers    int
	jobs       chan Job
	jobTimeout time.Duration

	wg     sync.WaitGroup
	closed atomic.Bool
	mu     sync.RWMutex

	stats queueStats
}

type queueStats struct {
	enqueued  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

// Stats 是统计信息快照。
type Stats struct {
	Enqueued  int64
	Succeeded int64
	Failed    int64
	Dropped   int64
	Panics    int64
}

// New 创建队列；workers、capacity 至少为 1，jobTimeout<=0 表示不限时。
func New(logger *slog.Logger, workers, capacity int, jobTimeout time.Duration) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Queue{
		logger:     logger,
		workers:    workers,
		jobs:       make(chan Job, capacity),
		jobTimeout: jobTimeout,
	}
}

// Start 启动 worker，直到 ctx 取消或 Shutdown。
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			metrics.MailQueueDepth.Set(float64(len(q.jobs)))
			q.execute(ctx, job, id)
		}
	}
}

func (q *Queue) execute(ctx context.Context, job Job, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			q.stats.panics.Add(1)
			metrics.MailJobsTotal.WithLabelValues("panic").Inc()
			q.logger.Error("job panic recovered",
				slog.String("job", job.Name),
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if q.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.jobTimeout)
		defer cancel()
	}

	if err := job.Run(ctx); err != nil {
		q.stats.failed.Add(1)
		metrics.MailJobsTotal.WithLabelValues("failed").Inc()
		q.logger.Warn("job failed",
			slog.String("job", job.Name),
			slog.Int("worker_id", workerID),
			slog.String("error", err.Error()))
		return
	}
	q.stats.succeeded.Add(1)
	metrics.MailJobsTotal.WithLabelValues("succeeded").Inc()
}

// Enqueue 非阻塞入队。
func (q *Queue) Enqueue(job Job) error {
	if job.Run == nil {
		return ErrNilTask
	}

	// 读锁保证 Shutdown 关闭通道时不会有并发发送。
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed.Load() {
		return ErrClosed
	}

	select {
	case q.jobs <- job:
		q.stats.enqueued.Add(1)
		metrics.MailQueueDepth.Set(float64(len(q.jobs)))
		return nil
	default:
		q.stats.dropped.Add(1)
		metrics.MailJobsTotal.WithLabelValues("dropped").Inc()
		q.logger.Warn("queue full, drop job",
			slog.String("job", job.Name),
			slog.Int("capacity", cap(q.jobs)))
		return ErrFull
	}
}

// Shutdown 拒绝新任务、排空已入队任务，最多等待 timeout。
func (q *Queue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	if !q.closed.CompareAndSwap(false, true) {
		q.mu.Unlock()
		return ErrClosed
	}
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}
	select {
	case <-done:
		q.logger.Info("queue drained")
		return nil
	case <-time.After(timeout):
		return errors.New("queue shutdown timed out")
	}
}

// Stats 返回统计快照。
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.stats.enqueued.Load(),
		Succeeded: q.stats.succeeded.Load(),
		Failed:    q.stats.failed.Load(),
		Dropped:   q.stats.dropped.Load(),
		Panics:    q.stats.panics.Load(),
	}
}

// Len 返回待处理任务数。
func (q *Queue) Len() int {
	return len(q.jobs)
}
