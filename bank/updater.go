package bank

import (
	"log"
	"sync"
	"time"
)

// updater is the write-back consumer: a single background goroutine
// drains a queue of dirty pictures and persists each one after a
// debounce dwell has elapsed since its last modification, coalescing
// rapid successive edits into one write. The queue carries object
// identity, not diffs; multiple mutations of the same picture collapse
// onto one pending entry.
type updater struct {
	bank  *Bank
	queue chan *Picture
	delay time.Duration

	mu      sync.Mutex
	pending map[string]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newUpdater(b *Bank, queueSize int, delay time.Duration) *updater {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &updater{
		bank:     b,
		queue:    make(chan *Picture, queueSize),
		delay:    delay,
		pending:  make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

func (u *updater) start() {
	u.wg.Add(1)
	go u.run()
}

// enqueue hands a freshly mutated picture to the background worker. It
// never blocks the mutator: an already pending picture is skipped, and a
// full queue defers persistence to the next mutation or eviction.
func (u *updater) enqueue(p *Picture) {
	u.mu.Lock()
	if _, ok := u.pending[p.ID()]; ok {
		u.mu.Unlock()
		return
	}
	u.pending[p.ID()] = struct{}{}
	u.mu.Unlock()

	select {
	case u.queue <- p:
	default:
		u.mu.Lock()
		delete(u.pending, p.ID())
		u.mu.Unlock()
		log.Printf("WARNING: write-back queue full, deferring persistence of %s", p.ID())
	}
}

func (u *updater) clearPending(id string) {
	u.mu.Lock()
	delete(u.pending, id)
	u.mu.Unlock()
}

func (u *updater) run() {
	defer u.wg.Done()
	for {
		select {
		case p := <-u.queue:
			u.clearPending(p.ID())
			u.process(p)
		case <-u.stopChan:
			u.drain()
			return
		}
	}
}

// process waits out the debounce dwell, re-checking the modification
// time so edits arriving during the wait extend it, then flushes. The
// wait blocks only this worker and is cut short by shutdown.
func (u *updater) process(p *Picture) {
	waiting := true
	for waiting {
		dirty, modifiedAt := p.flushState()
		if !dirty {
			return
		}
		wait := u.delay - time.Since(modifiedAt)
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-u.stopChan:
			timer.Stop()
			waiting = false
		}
	}

	if err := u.bank.flushPicture(p); err != nil {
		// no caller is waiting on a background flush; the next natural
		// write trigger (mutation or eviction) retries
		log.Printf("updater: failed to persist picture %s: %v", p.ID(), err)
	}
}

// drain flushes whatever is still queued at shutdown without waiting out
// the dwell
func (u *updater) drain() {
	for {
		select {
		case p := <-u.queue:
			u.clearPending(p.ID())
			if err := u.bank.flushPicture(p); err != nil {
				log.Printf("updater: failed to persist picture %s during shutdown: %v", p.ID(), err)
			}
		default:
			return
		}
	}
}

// stop signals the worker and waits for it to exit
func (u *updater) stop() {
	u.stopOnce.Do(func() {
		close(u.stopChan)
	})
	u.wg.Wait()
	log.Printf("updater: stopped")
}
