package sync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ecomsync/feedsync/internal/infrastructure/queue"
)

type jobQueue interface {
	Dequeue(ctx context.Context, wait, lease time.Duration) (*queue.Delivery, error)
	ExtendLease(ctx context.Context, d *queue.Delivery, lease time.Duration) error
	Ack(ctx context.Context, d *queue.Delivery) error
	Reclaim(ctx context.Context) (int, error)
}

type WorkerConfig struct {
	Workers         int
	DequeueWait     time.Duration
	LeaseDuration   time.Duration
	ReclaimInterval time.Duration
}

// Worker drains the job queue with a fixed goroutine pool and keeps the
// lease table clean so crashed deliveries get redelivered.
type Worker struct {
	queue  jobQueue
	runner *Runner
	cfg    WorkerConfig

	once sync.Once
	wg   sync.WaitGroup
}

func NewWorker(q jobQueue, runner *Runner, cfg WorkerConfig) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.DequeueWait <= 0 {
		cfg.DequeueWait = 5 * time.Second
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = 30 * time.Second
	}

	return &Worker{queue: q, runner: runner, cfg: cfg}
}

// Start launches the pool; it returns immediately and is a no-op when
// called twice.
func (w *Worker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			w.wg.Add(1)
			go w.workerLoop(ctx)
		}
		w.wg.Add(1)
		go w.reclaimLoop(ctx)
	})
}

// Wait blocks until every loop has observed the context cancellation.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := w.queue.Dequeue(ctx, w.cfg.DequeueWait, w.cfg.LeaseDuration)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("dequeue sync job: %v", err)
			if !sleepWithContext(ctx, time.Second) {
				return
			}
			continue
		}
		if delivery == nil {
			continue
		}

		dispatch := Dispatch{
			ID:         delivery.ID,
			Descriptor: delivery.Descriptor,
			Heartbeat: func(ctx context.Context) error {
				return w.queue.ExtendLease(ctx, delivery, w.cfg.LeaseDuration)
			},
		}

		if err := w.runner.Run(ctx, dispatch); err != nil {
			log.Printf("run sync job (feed %s): %v", delivery.Descriptor.FeedID, err)
		}

		// Every outcome acks: failure paths already updated the job
		// record, and interrupted jobs re-enter through a fresh resume
		// dispatch, never through redelivery of this one.
		if err := w.queue.Ack(context.WithoutCancel(ctx), delivery); err != nil {
			log.Printf("ack delivery %s: %v", delivery.ID, err)
		}
	}
}

func (w *Worker) reclaimLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.Reclaim(ctx)
			if err != nil {
				log.Printf("reclaim expired leases: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reclaimed %d expired queue deliveries", n)
			}
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
