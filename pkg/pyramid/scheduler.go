package pyramid

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Scheduler runs tile tasks on a fixed pool of workers fed by a bounded
// admission queue. The queue capacity equals the worker count, so Submit
// blocks the producer once roughly 2*workers tasks are buffered or in
// flight. Blocking submission is the backpressure mechanism: no unbounded
// backlog, no rejection.
type Scheduler struct {
	tasks     chan func()
	wg        sync.WaitGroup
	log       *zap.Logger
	submitted atomic.Int64
	completed atomic.Int64
	stopOnce  sync.Once
}

// NewScheduler starts workers goroutines draining an admission queue of the
// same capacity.
func NewScheduler(workers int, log *zap.Logger) *Scheduler {
	s := &Scheduler{
		tasks: make(chan func(), workers),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for task := range s.tasks {
		s.run(task)
		s.completed.Add(1)
	}
}

// run isolates a single task so that a panic cannot take the worker down
// with queued tasks still pending.
func (s *Scheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Submit enqueues a task, blocking until queue space frees.
func (s *Scheduler) Submit(task func()) {
	s.submitted.Add(1)
	s.tasks <- task
}

// Shutdown stops accepting new work and waits for every queued and in-flight
// task to finish. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.tasks)
	})
	s.wg.Wait()
}

// Submitted returns the number of tasks handed to the scheduler.
func (s *Scheduler) Submitted() int64 { return s.submitted.Load() }

// Completed returns the number of tasks that have finished running.
func (s *Scheduler) Completed() int64 { return s.completed.Load() }
