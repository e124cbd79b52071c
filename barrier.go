// Package barrier provides a reusable counting barrier.
package barrier

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/threadproj/barrier/internal/opt"
)

// ErrInvalidArgument is returned when a Barrier is created with a
// capacity below one.
var ErrInvalidArgument = errors.New("barrier: invalid argument")

// Barrier is a reusable counting barrier. It blocks a fixed number of
// goroutines until all of them have called Wait, then releases them
// together and resets itself for the next round.
//
// Each completed round advances a generation counter. A waiter sleeps
// until the generation moves past the value it observed on entry, which
// keeps a fast goroutine that loops straight back into Wait from being
// counted in, or released by, the round it just left.
//
// A Barrier must be initialized with New or Init before use and must not
// be copied after first use. The state sits between a full leading cache
// line of padding and a trailing pad, so the state of two adjacent
// instances (array elements, neighbouring fields) is always at least a
// cache line apart.
type Barrier struct {
	_ [opt.CacheLineSize_]byte
	barrierState
	_ [(opt.CacheLineSize_ - unsafe.Sizeof(barrierState{})%opt.CacheLineSize_) % opt.CacheLineSize_]byte
}

type barrierState struct {
	_  noCopy
	mu sync.Mutex
	// cond.L is &mu while the barrier is initialized, nil otherwise.
	cond sync.Cond

	capacity   int
	arrived    int
	generation uint64
	// inside counts goroutines between entry and exit of Await,
	// including released waiters that have not reacquired mu yet.
	inside int

	action func()
}

// New returns a barrier for capacity participants.
// It fails with ErrInvalidArgument if capacity < 1.
func New(capacity int, opts ...Option) (*Barrier, error) {
	b := &Barrier{}
	if err := b.Init(capacity, opts...); err != nil {
		return nil, err
	}
	return b, nil
}

// Init initializes a caller-owned barrier (a zero value, a struct field,
// a local variable) for capacity participants. A destroyed barrier may be
// initialized again.
//
// Init panics if a goroutine is still inside Wait.
func (b *Barrier) Init(capacity int, opts ...Option) error {
	if capacity < 1 {
		return fmt.Errorf("%w: capacity %d, must be at least 1", ErrInvalidArgument, capacity)
	}
	var cfg BarrierConfig
	for _, o := range opts {
		o(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inside != 0 {
		panic("barrier: Init while goroutines are waiting")
	}
	b.cond.L = &b.mu
	b.capacity = capacity
	b.arrived = 0
	b.generation = 0
	b.action = cfg.action
	return nil
}

// Wait blocks until capacity goroutines have called Wait in the current
// round. The goroutine that completes the round resets the barrier and
// wakes the others without blocking itself. When Wait returns, the
// barrier can be waited on again right away.
//
// Wait cannot be interrupted: if a participant never arrives, the rest
// of its round block forever.
func (b *Barrier) Wait() {
	b.Await()
}

// Await is like Wait but returns the caller's arrival index within its
// round, from 0 to capacity-1. The index capacity-1 goes to the releaser,
// the single goroutine per round that performed the reset.
func (b *Barrier) Await() int {
	b.mu.Lock()
	if b.capacity == 0 {
		b.mu.Unlock()
		panic("barrier: Wait on uninitialized or destroyed barrier")
	}

	gen := b.generation
	idx := b.arrived
	b.arrived++

	if b.arrived == b.capacity {
		b.release()
		return idx
	}

	b.inside++
	// Spurious wakeups and wakeups meant for a later round both fail
	// this check.
	for gen == b.generation {
		b.cond.Wait()
	}
	b.inside--
	b.mu.Unlock()
	return idx
}

// release runs the action and completes the round. The round completes
// and mu is unlocked even if the action panics; the panic then continues
// on the releasing goroutine only.
func (b *Barrier) release() {
	defer func() {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
	}()
	if b.action != nil {
		b.action()
	}
}

// Destroy releases the barrier's internal resources and returns it to
// the uninitialized state. It does not free b itself. Destroy is
// idempotent.
//
// Destroy panics if a goroutine is still inside Wait. Calling it while
// participants may yet arrive is a usage error.
func (b *Barrier) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inside != 0 || b.arrived != 0 {
		panic("barrier: Destroy while goroutines are waiting")
	}
	b.cond.L = nil
	b.capacity = 0
	b.generation = 0
	b.action = nil
}

// Capacity returns the number of participants per round, or 0 if the
// barrier is not initialized.
func (b *Barrier) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Generation returns the number of rounds completed since Init.
func (b *Barrier) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

// Waiting returns the number of goroutines that have arrived in the
// current round.
func (b *Barrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}
