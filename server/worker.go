package server

import (
	"errors"
	"fmt"
	"sync"
)

var errStopped = errors.New("server: worker stopped")

// request is a unit of work to be executed on the worker goroutine.
type request struct {
	fn   func(*Workspace) any
	done chan result
}

// result holds the return value from a workspace operation.
type result struct {
	value any
	err   error
}

// Worker serializes all Workspace access through a single goroutine.
// LSP handlers run concurrently; open documents and their assembly
// results are only touched from the worker.
type Worker struct {
	ws       *Workspace
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the workspace, recovering from panics.
func (w *Worker) execute(fn func(*Workspace) any) result {
	var res result
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("%v", r)
			}
		}()
		res.value = fn(w.ws)
	}()
	return res
}

// Do submits a function for execution on the worker goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*Workspace) any) (any, error) {
	select {
	case <-w.quit:
		return nil, errStopped
	default:
	}
	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, errStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
