// Package parallel provides the worker pool used to colorize tiles.
//
// Work is data-parallel only: a tile is split into disjoint row bands and
// every band runs to completion without blocking, so the pool needs no
// cancellation.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// bandsPerWorker is how many row bands each worker receives on average.
// More bands than workers lets stealing even out uneven rows.
const bandsPerWorker = 4

// WorkerPool is a pool of goroutines for parallel pixel processing.
//
// Each worker has its own queue and steals from other queues when its own
// is empty.
//
// Thread safety: WorkerPool is safe for concurrent use. Several tile
// renders may call ExecuteAll or ForRows at the same time.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool

	// mu is held shared while work is queued and awaited, and exclusively
	// by Close, so no work is ever queued to a stopped worker.
	mu sync.RWMutex
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*bandsPerWorker, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				if work != nil {
					work()
				}
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll distributes work across workers and waits for all of it to
// complete. It reports false, running nothing, if the pool is closed.
func (p *WorkerPool) ExecuteAll(work []func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() {
		return false
	}
	if len(work) == 0 {
		return true
	}

	var completionWG sync.WaitGroup
	completionWG.Add(len(work))

	for i, fn := range work {
		p.workQueues[i%p.workers] <- func() {
			defer completionWG.Done()
			fn()
		}
	}

	completionWG.Wait()
	return true
}

// ForRows splits [0, rows) into contiguous, disjoint bands and calls fn once
// per band, in parallel. It returns after every band has been processed.
//
// A nil or closed pool processes all rows inline on the caller's goroutine.
// The partitioning never affects results as long as fn only touches the
// rows it is given.
func (p *WorkerPool) ForRows(rows int, fn func(lo, hi int)) {
	if rows <= 0 {
		return
	}
	if p == nil || p.workers == 1 || rows == 1 {
		fn(0, rows)
		return
	}

	bands := min(rows, p.workers*bandsPerWorker)
	step := (rows + bands - 1) / bands

	var work []func()
	for lo := 0; lo < rows; lo += step {
		hi := min(lo+step, rows)
		work = append(work, func() { fn(lo, hi) })
	}

	if !p.ExecuteAll(work) {
		fn(0, rows)
	}
}

// Close gracefully shuts down the pool.
// It waits for in-flight ExecuteAll calls, then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
