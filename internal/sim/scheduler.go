package sim

import (
	"sync"
	"time"
)

// scheduler owns every timer and ticker the orchestrator arms, so Close can
// cancel pending work in one place instead of leaking goroutines behind
// time.AfterFunc calls scattered through the code.
type scheduler struct {
	mu     sync.Mutex
	timers map[int]*time.Timer
	stops  map[int]func()
	next   int
	closed bool
}

func newScheduler() *scheduler {
	return &scheduler{
		timers: make(map[int]*time.Timer),
		stops:  make(map[int]func()),
	}
}

// After arms a one-shot timer. The callback is dropped if Close already ran.
func (sc *scheduler) After(d time.Duration, fn func()) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	id := sc.next
	sc.next++
	sc.timers[id] = time.AfterFunc(d, func() {
		sc.mu.Lock()
		if sc.closed {
			sc.mu.Unlock()
			return
		}
		delete(sc.timers, id)
		sc.mu.Unlock()
		fn()
	})
}

// Every runs fn on a fixed interval until the returned stop function or
// Close is called. Stopping twice is safe.
func (sc *scheduler) Every(d time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once sync.Once
	halt := func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		halt()
		return func() {}
	}
	id := sc.next
	sc.next++
	sc.stops[id] = halt
	return func() {
		halt()
		sc.mu.Lock()
		delete(sc.stops, id)
		sc.mu.Unlock()
	}
}

// Close stops all pending timers and tickers.
func (sc *scheduler) Close() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	sc.closed = true
	for _, t := range sc.timers {
		t.Stop()
	}
	sc.timers = nil
	for _, stop := range sc.stops {
		stop()
	}
	sc.stops = nil
}
