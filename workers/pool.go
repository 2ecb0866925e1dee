package workers

import (
	"errors"
	"log"
	"sync"
)

// ErrQueueFull is reported through a task's handle when the pool queue
// rejected it
var ErrQueueFull = errors.New("worker queue full")

// ErrPoolStopped is reported for tasks submitted to, or abandoned in, a
// stopped pool
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a unit of work submitted to a pool
type Task func() error

// Handle lets a submitter either block on a task's completion or
// fire-and-forget it
type Handle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task has run and returns its error
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Done exposes the completion channel for select-based callers
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type job struct {
	task   Task
	handle *Handle
}

// Pool is a fixed-size worker pool draining a bounded job queue. The
// bank runs two of these, sized independently: one for metadata
// identification, one for all other transforms.
type Pool struct {
	name     string
	jobQueue chan job
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewPool starts numWorkers workers draining a queue of queueSize
func NewPool(name string, queueSize, numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	p := &Pool{
		name:     name,
		jobQueue: make(chan job, queueSize),
		stopChan: make(chan struct{}),
	}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d %s worker(s) with queue size %d", numWorkers, name, queueSize)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case j, ok := <-p.jobQueue:
			if !ok {
				return
			}
			j.handle.err = j.task()
			if j.handle.err != nil {
				log.Printf("Worker %s/%d: task failed: %v", p.name, id, j.handle.err)
			}
			close(j.handle.done)
		case <-p.stopChan:
			log.Printf("Worker %s/%d stopping: stop signal received", p.name, id)
			return
		}
	}
}

// Submit queues a task without blocking. When the pool is stopped or
// the queue is full the returned handle is already completed with
// ErrPoolStopped or ErrQueueFull.
func (p *Pool) Submit(t Task) *Handle {
	h := &Handle{done: make(chan struct{})}
	select {
	case <-p.stopChan:
		h.err = ErrPoolStopped
		close(h.done)
		return h
	default:
	}
	select {
	case p.jobQueue <- job{task: t, handle: h}:
	default:
		log.Printf("WARNING: %s job queue full, rejecting task", p.name)
		h.err = ErrQueueFull
		close(h.done)
	}
	return h
}

// Run queues a task, blocking until a queue slot is free, and waits for
// its completion. Used where the caller needs the result inline but
// concurrency must still be bounded by the pool size. A stopped pool
// returns ErrPoolStopped, whether the task never queued or was
// abandoned by shutdown.
func (p *Pool) Run(t Task) error {
	select {
	case <-p.stopChan:
		return ErrPoolStopped
	default:
	}
	h := &Handle{done: make(chan struct{})}
	select {
	case p.jobQueue <- job{task: t, handle: h}:
		return h.Wait()
	case <-p.stopChan:
		return ErrPoolStopped
	}
}

// Stop signals all workers, waits for them to exit and completes the
// handles of jobs still queued, so no waiter blocks on an abandoned
// task
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	p.abandonQueued()
	log.Printf("All %s workers stopped", p.name)
}

// abandonQueued drains the queue after the workers have exited,
// finishing each leftover handle with ErrPoolStopped
func (p *Pool) abandonQueued() {
	for {
		select {
		case j := <-p.jobQueue:
			j.handle.err = ErrPoolStopped
			close(j.handle.done)
		default:
			return
		}
	}
}
