package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/expense-tracker/pkg/logger"
)

var ErrStopped = errors.New("worker manager stopped")

type WorkerHandler[T any] func(ctx context.Context, workerIndex int, job T)

// WorkerManager distributes jobs among a fixed pool of goroutines.
// Jobs are buffered; Enqueue blocks when the buffer is full.
type WorkerManager[T any] struct {
	numberOfWorker int
	jobChannel     chan T
	do             WorkerHandler[T]
	waiter         sync.WaitGroup
	stopOnce       sync.Once
	stop           chan struct{}
}

func NewWorkerManager[T any](bufferSize, numberOfWorkers int, do WorkerHandler[T]) *WorkerManager[T] {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	return &WorkerManager[T]{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan T, bufferSize),
		do:             do,
		stop:           make(chan struct{}),
	}
}

func (w *WorkerManager[T]) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

// Enqueue publishes a job onto the pool.
func (w *WorkerManager[T]) Enqueue(ctx context.Context, job T) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}

	select {
	case w.jobChannel <- job:
		return nil
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the workers and blocks until ctx is cancelled or Exit is called.
// Jobs already buffered are drained before Start returns.
func (w *WorkerManager[T]) Start(ctx context.Context) {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(ctx, index, job)
				case <-ctx.Done():
					w.drain(ctx, index)
					return
				case <-w.stop:
					w.drain(ctx, index)
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()
}

func (w *WorkerManager[T]) drain(ctx context.Context, index int) {
	for {
		select {
		case job := <-w.jobChannel:
			w.do(context.WithoutCancel(ctx), index, job)
		default:
			return
		}
	}
}

// Exit stops accepting jobs and lets the workers finish the buffer.
func (w *WorkerManager[T]) Exit() {
	w.stopOnce.Do(func() {
		logger.Info("worker manager is shutting down", "pending", len(w.jobChannel))
		close(w.stop)
	})
}
