package application

import (
	"math/rand"
	"sync"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/sirupsen/logrus"
)

// DelayScheduler turns a DelayPolicy into a concrete due time and optionally
// holds short delays on an in-memory timer so they do not wait for the next
// poll tick. The queue remains the source of truth; a held timer only
// triggers an earlier dispatch of an action that is already persisted.
type DelayScheduler struct {
	tick time.Duration
	now  func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	timers map[string]*time.Timer
}

func NewDelayScheduler(tick time.Duration) *DelayScheduler {
	return &DelayScheduler{
		tick:   tick,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		timers: make(map[string]*time.Timer),
	}
}

// ComputeDueAt returns now plus the policy delay. A fixed delay is exact;
// a window draws a whole number of seconds uniformly from [min, max].
func (d *DelayScheduler) ComputeDueAt(now time.Time, policy domain.DelayPolicy) time.Time {
	if policy.IsFixed() {
		secs := *policy.FixedSeconds
		if secs < 0 {
			secs = 0
		}
		return now.Add(time.Duration(secs) * time.Second)
	}

	lo, hi := policy.MinSeconds, policy.MaxSeconds
	if lo < 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}
	if hi < lo {
		lo, hi = hi, lo
	}

	d.mu.Lock()
	secs := lo + d.rng.Intn(hi-lo+1)
	d.mu.Unlock()

	return now.Add(time.Duration(secs) * time.Second)
}

// Hold arms a timer that calls fire(id) at dueAt when the delay is shorter
// than one poll tick. It reports whether a timer was armed. Holding an id
// again replaces its previous timer.
func (d *DelayScheduler) Hold(id string, dueAt time.Time, fire func(id string)) bool {
	wait := dueAt.Sub(d.now())
	if d.tick <= 0 || wait >= d.tick {
		return false
	}
	if wait < 0 {
		wait = 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.timers[id]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		d.mu.Lock()
		if d.timers[id] == timer {
			delete(d.timers, id)
		}
		d.mu.Unlock()
		fire(id)
	})
	d.timers[id] = timer

	logrus.Debugf("[DELAY] Holding %s for %s", id, wait.Round(time.Millisecond))
	return true
}

// Release stops the timer for id, if any.
func (d *DelayScheduler) Release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
}

// Pending returns the number of armed timers.
func (d *DelayScheduler) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every armed timer. Held actions stay PENDING in the queue and
// are picked up by the next tick after restart.
func (d *DelayScheduler) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
