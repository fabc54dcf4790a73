package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// staleAfter is how long a job may sit in pending or processing before a
// restarted service gives up on it.
const staleAfter = 10 * time.Minute

// Start launches the worker pool. Jobs run on a context detached from the
// request that submitted them and cancelled only by Stop.
func (c *Coordinator) Start() {
	for i := 0; i < c.opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	c.logger.Info("ingestion workers started", zap.Int("workers", c.opts.Workers))
}

func (c *Coordinator) worker(id int) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case jobID := <-c.queue:
			c.logger.Debug("worker picked job", zap.Int("worker", id), zap.Int64("job_id", jobID))
			c.Run(c.ctx, jobID)
		}
	}
}

// Stop cancels running jobs, waits for the workers and fails every job still
// queued, so none is left pending.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	for {
		select {
		case jobID := <-c.queue:
			c.fail(jobID, interruptedTitle)
		default:
			c.logger.Info("ingestion workers stopped")
			return
		}
	}
}

// Recover fails jobs a previous process left in pending or processing.
func (c *Coordinator) Recover(ctx context.Context) error {
	n, err := c.store.FailStaleJobs(ctx, c.now().Add(-staleAfter), "interrupted: service restarted")
	if err != nil {
		return err
	}
	if n > 0 {
		c.logger.Warn("failed stale jobs", zap.Int64("count", n))
	}
	return nil
}
