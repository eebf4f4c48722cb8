package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// TaskRunner executes deferred background work (ledger chain repair,
// auto-expire sweeps, backups) off the request path. Read handlers only
// read; anything slow is submitted here fire-and-forget.
type TaskRunner struct {
	jobs    chan task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex

	tickers []*periodicTask
}

type task struct {
	name string
	fn   func(context.Context)
}

type periodicTask struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
}

func NewTaskRunner(queueSize int) *TaskRunner {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &TaskRunner{jobs: make(chan task, queueSize)}
}

// Every registers a periodic job. Must be called before Start.
func (t *TaskRunner) Every(name string, interval time.Duration, fn func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tickers = append(t.tickers, &periodicTask{name: name, interval: interval, fn: fn})
}

func (t *TaskRunner) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.wg.Add(1)
	go t.drain(ctx)

	for _, p := range t.tickers {
		t.wg.Add(1)
		go t.tick(ctx, p)
	}
	log.Printf("[Tasks] runner started (%d periodic jobs)", len(t.tickers))
}

func (t *TaskRunner) drain(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-t.jobs:
			t.run(ctx, job.name, job.fn)
		}
	}
}

func (t *TaskRunner) tick(ctx context.Context, p *periodicTask) {
	defer t.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.run(ctx, p.name, p.fn)
		}
	}
}

func (t *TaskRunner) run(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Tasks] %s panicked: %v", name, r)
		}
	}()
	fn(ctx)
}

// Submit queues a one-shot job. When the queue is full the job is dropped
// with a log line; deferred work is best effort.
func (t *TaskRunner) Submit(name string, fn func(context.Context)) {
	select {
	case t.jobs <- task{name: name, fn: fn}:
	default:
		log.Printf("[Tasks] queue full, dropping job %s", name)
	}
}

func (t *TaskRunner) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return
	}
	t.cancel()
	t.wg.Wait()
	t.started = false
	log.Println("[Tasks] runner stopped")
}
