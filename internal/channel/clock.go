package channel

import "time"

// Timer is a cancellable one-shot timer.
type Timer interface {
	Stop() bool
}

// Clock supplies time and timers to the channel.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timerSlot holds the single live timer of one kind. Arming replaces the
// previous timer; a callback from a replaced or stopped timer is ignored.
type timerSlot struct {
	timer Timer
	gen   uint64
}

// arm schedules fn on the event loop after d. Must be called on the loop.
func (s *timerSlot) arm(c *Channel, d time.Duration, fn func()) {
	s.stop()
	gen := s.gen
	s.timer = c.clock.AfterFunc(d, func() {
		c.post(func() {
			if s.gen != gen {
				return
			}
			s.timer = nil
			fn()
		})
	})
}

// stop cancels the live timer, if any. Must be called on the loop.
func (s *timerSlot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
