package device

import (
	"sync"
	"time"
)

type WorkerState int32

const (
	WorkerNotStarted WorkerState = iota
	WorkerRunning
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerNotStarted:
		return "not_started"
	case WorkerRunning:
		return "running"
	case WorkerStopped:
		return "stopped"
	}
	return "unknown"
}

// worker drives the per-device tick. A stopped worker is never restarted.
type worker struct {
	mu             sync.Mutex
	state          WorkerState
	tick           time.Duration
	heartbeatEvery uint64
	onTick         func(sendHeartbeat bool)
	stop           chan struct{}
	done           chan struct{}
}

func newWorker(tick, heartbeatInterval time.Duration, onTick func(sendHeartbeat bool)) *worker {
	every := uint64(1)
	if tick > 0 && heartbeatInterval > tick {
		every = uint64(heartbeatInterval / tick)
	}
	return &worker{
		tick:           tick,
		heartbeatEvery: every,
		onTick:         onTick,
	}
}

func (w *worker) currentState() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// start launches the loop and reports whether this call started it.
func (w *worker) start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != WorkerNotStarted {
		return false
	}
	w.state = WorkerRunning
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(w.stop, w.done)
	return true
}

// shutdown signals the loop and waits for the current tick to finish.
// It must not be called from inside onTick.
func (w *worker) shutdown() {
	w.mu.Lock()
	prev := w.state
	w.state = WorkerStopped
	stop, done := w.stop, w.done
	w.mu.Unlock()

	if prev != WorkerRunning {
		return
	}
	close(stop)
	<-done
}

func (w *worker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	var counter uint64
	for {
		w.onTick(counter%w.heartbeatEvery == 0)
		counter++

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
