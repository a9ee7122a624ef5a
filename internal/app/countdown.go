package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown is one question timer instance. It emits a tick for the starting
// value, one per elapsed second, and an expiry once the count reaches zero.
// Callbacks re-enter the owning room's serialized event path, so they must
// not be invoked with the room lock held by this goroutine.
type Countdown struct {
	stop     chan struct{}
	stopOnce sync.Once
}

// StartCountdown begins ticking on the given clock. Stop cancels only this
// instance; a tick in flight is suppressed by the caller's epoch guard.
func StartCountdown(clock clockwork.Clock, seconds int, onTick func(remaining int), onExpire func()) *Countdown {
	c := &Countdown{stop: make(chan struct{})}
	go c.run(clock, seconds, onTick, onExpire)
	return c
}

func (c *Countdown) run(clock clockwork.Clock, seconds int, onTick func(int), onExpire func()) {
	onTick(seconds)

	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	remaining := seconds
	for remaining > 0 {
		select {
		case <-ticker.Chan():
			remaining--
			onTick(remaining)
		case <-c.stop:
			return
		}
	}

	select {
	case <-c.stop:
	default:
		onExpire()
	}
}

// Stop cancels the countdown. Safe to call more than once.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
