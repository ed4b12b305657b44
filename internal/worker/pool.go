package worker

import (
	"sync"

	"github.com/lendcore/loan-engine/internal/metrics"
)

type task func()

// Pool runs saga executions off the request path on a fixed set of
// goroutines with a bounded queue.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
}

func NewPool(n, queueSize int) *Pool {
	if n <= 0 {
		n = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Pool{jobs: make(chan task, queueSize)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f func()) {
	p.jobs <- f
	metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
}

// Stop drains the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
