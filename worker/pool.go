package worker

import (
	"context"
	"log"
	"runtime"
	"sync"

	"holdsense/crop"
	"holdsense/geom"
)

// ResultCallback is invoked on capture completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(sel *crop.Selection, err error)

// CaptureFunc performs the capture, crop, and handoff work for one gesture.
type CaptureFunc func(ctx context.Context) (*crop.Selection, error)

// Pool is a fixed-size capture worker pool with a 1-slot input queue
// (strict back-pressure). A gesture completing while another capture is
// still queued is dropped at submit time.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx  context.Context
	seq  uint64
	rect geom.Rect
	run  CaptureFunc
	cb   ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("worker: starting capture seq=%d rect=%.0fx%.0f", j.seq, j.rect.Width, j.rect.Height)
				sel, err := runWithContext(j.ctx, j.run)
				log.Printf("worker: capture seq=%d completed, err=%v", j.seq, err)
				j.cb(sel, err)
			}
		}()
	}
}

// Submit enqueues a capture job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, seq uint64, rect geom.Rect, run CaptureFunc, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, seq: seq, rect: rect, run: run, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// runWithContext runs fn, honoring a ctx deadline when one is set.
func runWithContext(ctx context.Context, fn CaptureFunc) (*crop.Selection, error) {
	if _, ok := ctx.Deadline(); !ok {
		return fn(ctx)
	}
	resCh := make(chan struct {
		sel *crop.Selection
		err error
	}, 1)
	go func() {
		sel, err := fn(ctx)
		resCh <- struct {
			sel *crop.Selection
			err error
		}{sel, err}
	}()
	select {
	case r := <-resCh:
		return r.sel, r.err
	case <-ctx.Done():
		// The underlying capture keeps running in the background; the
		// gesture observes the timeout.
		return nil, ctx.Err()
	}
}
