package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks run on the goroutine that
// calls Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	when  time.Time
	seq   int
	fn    func()
}

// NewFake returns a Fake positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake wall-clock time.
func (fake *Fake) Now() time.Time {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.now
}

// AfterFunc schedules fn to run once the clock reaches now+delay.
func (fake *Fake) AfterFunc(delay time.Duration, fn func()) Timer {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	fake.seq++
	timer := &fakeTimer{clock: fake, when: fake.now.Add(delay), seq: fake.seq, fn: fn}
	fake.timers = append(fake.timers, timer)
	return timer
}

// Advance moves the clock forward by delta, firing every callback that
// becomes due, including callbacks scheduled by callbacks.
func (fake *Fake) Advance(delta time.Duration) {
	fake.mu.Lock()
	target := fake.now.Add(delta)
	fake.mu.Unlock()

	for {
		fake.mu.Lock()
		next := fake.popDueLocked(target)
		if next == nil {
			if target.After(fake.now) {
				fake.now = target
			}
			fake.mu.Unlock()
			return
		}
		if next.when.After(fake.now) {
			fake.now = next.when
		}
		fake.mu.Unlock()
		next.fn()
	}
}

// Jump moves the wall clock forward without firing callbacks, simulating a
// host that throttled timers while time kept passing.
func (fake *Fake) Jump(delta time.Duration) {
	fake.mu.Lock()
	fake.now = fake.now.Add(delta)
	fake.mu.Unlock()
}

// Pending returns the number of scheduled callbacks that have not fired.
func (fake *Fake) Pending() int {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return len(fake.timers)
}

func (fake *Fake) popDueLocked(target time.Time) *fakeTimer {
	if len(fake.timers) == 0 {
		return nil
	}
	sort.SliceStable(fake.timers, func(i, j int) bool {
		if fake.timers[i].when.Equal(fake.timers[j].when) {
			return fake.timers[i].seq < fake.timers[j].seq
		}
		return fake.timers[i].when.Before(fake.timers[j].when)
	})
	first := fake.timers[0]
	if first.when.After(target) {
		return nil
	}
	fake.timers = fake.timers[1:]
	return first
}

func (timer *fakeTimer) Stop() bool {
	fake := timer.clock
	fake.mu.Lock()
	defer fake.mu.Unlock()
	for index, pending := range fake.timers {
		if pending == timer {
			fake.timers = append(fake.timers[:index], fake.timers[index+1:]...)
			return true
		}
	}
	return false
}
