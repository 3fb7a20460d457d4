// Package msgworker runs inbound events on a fixed set of workers. Events of
// the same conversation always land on the same worker and run in order.
package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const activeThreadTTL = 2 * time.Second

// Job is one unit of inbound work. AccountKey and ThreadKey pick the shard.
type Job struct {
	AccountKey string
	ThreadKey  string
	Handler    func(ctx context.Context) error
}

func (j Job) key() string {
	return j.AccountKey + "|" + j.ThreadKey
}

type PoolStats struct {
	NumWorkers      int            `json:"num_workers"`
	QueueSize       int            `json:"queue_size"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalDispatched int64          `json:"total_dispatched"`
	TotalProcessed  int64          `json:"total_processed"`
	TotalDropped    int64          `json:"total_dropped"`
	TotalErrors     int64          `json:"total_errors"`
	Workers         []WorkerStats  `json:"workers"`
	ActiveThreads   map[string]int `json:"active_threads"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

type activeThread struct {
	workerID  int
	updatedAt time.Time
}

// Pool is a sharded worker pool with bounded per-worker queues.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	started    int32
	stopped    int32
	stopCh     chan struct{}

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64

	activeMu sync.Mutex
	active   map[string]activeThread
}

type worker struct {
	id            int
	queue         chan Job
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 250
	}
	return &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		active:     make(map[string]activeThread),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the workers. Cancelling ctx makes workers drain and exit.
func (p *Pool) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}
	for i := 0; i < p.numWorkers; i++ {
		wctx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:     i,
			queue:  make(chan Job, p.queueSize),
			ctx:    wctx,
			cancel: cancel,
			pool:   p,
		}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run(&p.wg)
	}
	logrus.Infof("[MSG_WORKER_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues job without blocking and reports whether it was accepted.
func (p *Pool) TryDispatch(job Job) bool {
	if atomic.LoadInt32(&p.stopped) == 1 || atomic.LoadInt32(&p.started) == 0 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.key())
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].queue <- job:
			return true
		default:
			return false
		}
	}()
	if sent {
		p.activeMu.Lock()
		p.active[job.key()] = activeThread{workerID: shard, updatedAt: time.Now()}
		p.activeMu.Unlock()
		return true
	}

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[MSG_WORKER_POOL] Worker %d queue full (or stopped), dropping job for %s", shard, job.key())
	return false
}

// Stop closes the queues and waits for queued jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		close(p.stopCh)
		logrus.Info("[MSG_WORKER_POOL] Stopping workers...")
		for _, w := range p.workers {
			if w != nil {
				close(w.queue)
			}
		}
		p.wg.Wait()
		for _, w := range p.workers {
			if w != nil {
				w.cancel()
			}
		}
		logrus.Info("[MSG_WORKER_POOL] All workers stopped")
	})
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() PoolStats {
	stats := PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		ActiveThreads:   make(map[string]int),
	}
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		busy := atomic.LoadInt32(&w.isProcessing) == 1
		if busy {
			stats.ActiveWorkers++
		}
		stats.Workers = append(stats.Workers, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.queue),
			IsProcessing:  busy,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	now := time.Now()
	p.activeMu.Lock()
	for k, v := range p.active {
		if now.Sub(v.updatedAt) > activeThreadTTL {
			delete(p.active, k)
			continue
		}
		stats.ActiveThreads[k] = v.workerID
	}
	p.activeMu.Unlock()
	return stats
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range w.queue {
		w.process(job)
	}
}

func (w *worker) process(job Job) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[MSG_WORKER_POOL] Worker %d panic for %s: %v", w.id, job.key(), r)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[MSG_WORKER_POOL] Worker %d job failed for %s", w.id, job.key())
	}
}
