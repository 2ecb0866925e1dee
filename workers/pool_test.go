package workers

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesTask(t *testing.T) {
	p := NewPool("test", 4, 2)
	defer p.Stop()

	ran := false
	if err := p.Run(func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ran {
		t.Error("task did not run")
	}
}

func TestRunPropagatesError(t *testing.T) {
	p := NewPool("test", 4, 1)
	defer p.Stop()

	want := errors.New("boom")
	if err := p.Run(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestSubmitWait(t *testing.T) {
	p := NewPool("test", 4, 2)
	defer p.Stop()

	var count int64
	handles := make([]*Handle, 0, 10)
	for i := 0; i < 10; i++ {
		handles = append(handles, p.Submit(func() error {
			atomic.AddInt64(&count, 1)
			return nil
		}))
	}
	for _, h := range handles {
		if err := h.Wait(); err != nil {
			t.Fatalf("task failed: %v", err)
		}
	}
	if got := atomic.LoadInt64(&count); got != 10 {
		t.Errorf("expected 10 tasks run, got %d", got)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	p := NewPool("test", 1, 1)
	defer p.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := p.Submit(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	// the single worker is busy; one job fits the queue, the next is
	// rejected
	queued := p.Submit(func() error { return nil })
	rejected := p.Submit(func() error { return nil })
	if err := rejected.Wait(); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	if err := blocker.Wait(); err != nil {
		t.Fatalf("blocker failed: %v", err)
	}
	if err := queued.Wait(); err != nil {
		t.Fatalf("queued task failed: %v", err)
	}
}

func TestStopCompletesQueuedHandles(t *testing.T) {
	p := NewPool("test", 1, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := p.Submit(func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	// the single worker is busy, so this job sits in the queue when the
	// stop signal arrives
	queued := p.Submit(func() error { return nil })

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	close(release)
	<-stopped

	if err := blocker.Wait(); err != nil {
		t.Fatalf("blocker failed: %v", err)
	}
	// the queued handle must complete either way: run by the worker
	// before it honored the stop, or abandoned with ErrPoolStopped
	select {
	case <-queued.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("queued handle never completed after Stop")
	}
	if err := queued.Wait(); err != nil && !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected nil or ErrPoolStopped, got %v", err)
	}
}

func TestSubmitAndRunAfterStop(t *testing.T) {
	p := NewPool("test", 2, 1)
	p.Stop()

	if err := p.Submit(func() error { return nil }).Wait(); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit after Stop: expected ErrPoolStopped, got %v", err)
	}
	if err := p.Run(func() error { return nil }); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Run after Stop: expected ErrPoolStopped, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewPool("test", 2, 2)
	p.Stop()
	p.Stop()
}
