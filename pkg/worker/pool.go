// Package worker provides an asynchronous worker pool for persisting
// context records through the engine.
//
// The pool decouples context capture from the caller's hot path: an
// agent hands off a record and keeps working while storage, hashing,
// and event publishing happen in the background.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/record"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *record.ContextRecord
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Engine stores the records.
	Engine *engine.Engine

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Engine == nil {
		return nil, fmt.Errorf("worker pool requires an engine")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Record == nil {
		p.logger.Error("job not queued, record is nil")
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("session_id", job.Record.SessionID),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("session_id", job.Record.SessionID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the outer server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", zap.Uint("worker_id", id))
}

// processJob stores one context record, logging failures rather than
// propagating them. Capture is best effort from the caller's point of
// view once the job is queued.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if job.Record == nil {
		p.logger.Error("async storage skipped nil record")
		return
	}

	id, err := p.config.Engine.Store(ctx, job.Record)
	if err != nil {
		p.logger.Error("async context storage failed",
			zap.String("session_id", job.Record.SessionID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("context stored",
		zap.Int64("id", id),
		zap.String("session_id", job.Record.SessionID),
	)
}
