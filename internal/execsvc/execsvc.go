// Package execsvc implements the single-threaded cooperative task
// execution service (§5): RPC handlers post closures onto it, and it runs
// them serially on one goroutine so that tasks for a given worker execute
// one at a time unless the actor is declared async. Grounded on the
// teacher's worker_pool.go/worker.go Start/Submit/Stop shape, narrowed from
// a pool of N workers to exactly one.
package execsvc

import (
	"errors"
	"log/slog"
	"sync"
)

// Sentinel errors, named after the teacher's worker_pool.go ErrPoolClosed
// style.
var (
	ErrServiceClosed    = errors.New("execsvc: service is closed")
	ErrServiceNotStarted = errors.New("execsvc: service not started")
)

// Closure is one unit of cooperative work: a task execution, a timer
// firing, or a reactor continuation.
type Closure func()

// Service is the §5 "task execution service": a buffered closure channel
// drained by exactly one goroutine.
type Service struct {
	closures chan Closure
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	log *slog.Logger
}

// New constructs a Service with the given closure queue depth.
func New(bufferSize int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		closures: make(chan Closure, bufferSize),
		stopCh:   make(chan struct{}),
		log:      log,
	}
}

// Start launches the single executor goroutine. Calling Start twice is a
// no-op.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
}

func (s *Service) run() {
	defer s.wg.Done()
	for {
		select {
		case closure, ok := <-s.closures:
			if !ok {
				return
			}
			s.runOne(closure)
		case <-s.stopCh:
			return
		}
	}
}

// runOne executes a single closure, recovering a panic so one bad task
// callback cannot take down the whole execution loop.
func (s *Service) runOne(c Closure) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("execsvc: closure panicked", "panic", r)
		}
	}()
	c()
}

// Post enqueues a closure for execution, matching worker_pool.go's
// documented benign race: a Post racing a concurrent Stop is resolved by
// double-checking stopCh inside the select, so a closure either runs or is
// rejected with ErrServiceClosed -- it is never silently dropped.
func (s *Service) Post(c Closure) error {
	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()
	if !started {
		return ErrServiceNotStarted
	}
	if stopped {
		return ErrServiceClosed
	}

	select {
	case s.closures <- c:
		return nil
	case <-s.stopCh:
		return ErrServiceClosed
	}
}

// Stop drains no further closures after the current one finishes, and
// waits for the executor goroutine to exit. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}
