package astimux

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/asticode/go-astikit"
)

// Worker represents a worker that can start and stop
type Worker struct {
	cancel context.CancelFunc
	ctx    context.Context
	eh     *EventHandler
	oStart *sync.Once
	oStop  *sync.Once
	wg     *sync.WaitGroup
}

// NewWorker creates a new worker
func NewWorker(eh *EventHandler) *Worker {
	return &Worker{
		eh:     eh,
		oStart: &sync.Once{},
		oStop:  &sync.Once{},
		wg:     &sync.WaitGroup{},
	}
}

// Context returns the worker context
func (w *Worker) Context() context.Context {
	return w.ctx
}

// Start starts the worker
func (w *Worker) Start(ctx context.Context, execFunc func(ctx context.Context)) {
	// Make sure the worker can only be started once
	w.oStart.Do(func() {
		// Check context
		if ctx.Err() != nil {
			return
		}

		// Reset context
		w.ctx, w.cancel = context.WithCancel(ctx)

		// Reset once
		w.oStop = &sync.Once{}

		// Emit event
		w.eh.Emit(Event{Name: EventNameWorkerStarted, Target: w})

		// Execute the rest in a goroutine
		w.wg.Add(1)
		go func() {
			// Task is done
			defer w.wg.Done()

			// Make sure the worker is stopped properly
			defer w.Stop()

			// Exec func
			execFunc(w.ctx)
		}()
	})
}

// HandleSignals handles signals, stopping the worker on termination signals
func (w *Worker) HandleSignals(hs ...astikit.SignalHandler) {
	hs = append([]astikit.SignalHandler{astikit.TermSignalHandler(w.Stop)}, hs...)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch)
	go func() {
		for s := range ch {
			for _, h := range hs {
				h(s)
			}
		}
	}()
}

// Stop stops the worker
func (w *Worker) Stop() {
	// Make sure the worker can only be stopped once
	w.oStop.Do(func() {
		// Cancel context
		if w.cancel != nil {
			w.cancel()
		}

		// Emit event
		w.eh.Emit(Event{Name: EventNameWorkerStopped, Target: w})

		// Reset once
		w.oStart = &sync.Once{}
	})
}

// Wait waits for the worker to be done
func (w *Worker) Wait() {
	w.wg.Wait()
}
