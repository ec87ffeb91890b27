// Package workpool runs blocking jobs on a fixed set of worker goroutines.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/spherical/magsplit/internal/observability"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("workpool: pool is closed")

// MaxDefaultWorkers caps DefaultWorkers.
const MaxDefaultWorkers = 4

// DefaultWorkers returns runtime.NumCPU capped at MaxDefaultWorkers.
func DefaultWorkers() int {
	return min(runtime.NumCPU(), MaxDefaultWorkers)
}

// Job is one unit of work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
	// Done, when set, receives Run's result. A panic in Run arrives here as
	// an error.
	Done func(err error)
}

// Pool is a bounded set of workers fed by an unbounded queue.
type Pool struct {
	ctx    context.Context
	logger *observability.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []Job
	active int
	closed bool

	wg sync.WaitGroup
}

// New starts workers goroutines (DefaultWorkers when workers < 1). Jobs
// receive ctx.
func New(ctx context.Context, workers int, logger *observability.Logger) *Pool {
	if workers < 1 {
		workers = DefaultWorkers()
	}
	if logger == nil {
		logger = observability.Nop()
	}

	p := &Pool{ctx: ctx, logger: logger.WithOperation("workpool")}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues job. It never blocks on running work.
func (p *Pool) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("workpool: job %q has no Run func", job.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.jobs = append(p.jobs, job)
	p.cond.Signal()
	return nil
}

// Pending returns the number of queued plus running jobs.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs) + p.active
}

// Close stops accepting jobs, finishes everything already queued and waits
// for the workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.jobs) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.jobs) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.jobs[0]
		p.jobs[0] = Job{}
		p.jobs = p.jobs[1:]
		p.active++
		p.mu.Unlock()

		err := p.run(job)
		if job.Done != nil {
			job.Done(err)
		}

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("job", job.Name).
				Str("stack", string(debug.Stack())).
				Msgf("Job panicked: %v", r)
			err = fmt.Errorf("%s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(p.ctx)
}
