package jobs

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// JobProcessor is one unit of periodic background work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval until stopped.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	failures     atomic.Int64
	stopOnce     sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a Worker. name prefixes its log lines.
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Failures returns how many ticks in a row have failed.
func (w *Worker) Failures() int64 {
	return w.failures.Load()
}

// Start polls until ctx is done or Stop is called. A failed tick is logged
// and retried on the next one.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s: polling every %v", w.name, w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: stopped (context cancelled)", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s: stopped", w.name)
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		n := w.failures.Add(1)
		log.Printf("%s: attempt failed (%d in a row): %v", w.name, n, err)
		return
	}
	if n := w.failures.Swap(0); n > 0 {
		log.Printf("%s: recovered after %d failed attempts", w.name, n)
	}
}

// Stop ends the polling loop and waits for the current tick to finish. It
// is safe to call more than once, and after Start returned on its own.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}
