package barrier

// BarrierConfig holds the optional settings applied by New and Init.
type BarrierConfig struct {
	// action runs once per round on the releasing goroutine, after the
	// last arrival and before any waiter is released.
	action func()
}

// Option configures a Barrier.
type Option func(*BarrierConfig)

// WithAction registers fn as the barrier action. The releaser of every
// round calls fn while holding the barrier's lock, so fn observes the
// state left by all participants of the round and must not call back
// into the same barrier. If fn panics, the round is still completed and
// its waiters released; the panic propagates from the releaser's Wait.
func WithAction(fn func()) Option {
	return func(c *BarrierConfig) {
		c.action = fn
	}
}
