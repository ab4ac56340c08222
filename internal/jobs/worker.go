package jobs

import (
	"context"
	"log"
	"time"
)

// Job is a background maintenance task run repeatedly on an interval.
type Job interface {
	// Name identifies the job in logs.
	Name() string
	// RunOnce performs a single sweep.
	RunOnce(ctx context.Context) error
}

// Worker drives a Job on a fixed interval until stopped. The first sweep
// runs immediately so a restarted process heals promptly.
type Worker struct {
	job      Job
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a worker for the given job and interval.
func NewWorker(job Job, interval time.Duration) *Worker {
	return &Worker{
		job:      job,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the sweep loop. It blocks until the context is cancelled or
// Stop is called, so run it in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s worker started, interval %v", w.job.Name(), w.interval)

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.job.Name())
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped", w.job.Name())
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs one iteration. A panicking or failing sweep must not take the
// loop down with it.
func (w *Worker) sweep(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("%s sweep panicked: %v", w.job.Name(), p)
		}
	}()

	if err := w.job.RunOnce(ctx); err != nil {
		log.Printf("%s sweep failed: %v", w.job.Name(), err)
	}
}

// Stop signals the loop to exit and waits for the current sweep to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
