package playback

import (
	"sync"
	"time"
)

// Interval is the simpler repeat pattern: fire every (duration+interval)
// period, issuing a constant play of length duration, until count fires
// have happened or Stop is called. Only one Interval timer is outstanding
// at a time per dispatcher. The ticker runs on a goroutine that Start
// spawns, not on the transport's event loop.
type Interval struct {
	mu     sync.Mutex
	stopCh chan struct{}
	active bool
}

// NewInterval returns an Interval with no timer running.
func NewInterval() *Interval { return &Interval{} }

// Stop cancels any outstanding interval timer. Safe to call when none is
// running.
func (iv *Interval) Stop() {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.active {
		close(iv.stopCh)
		iv.active = false
	}
}

// Start replaces any outstanding timer with a new one. durationMs and
// intervalMs are milliseconds; count is the number of fires before the
// timer stops itself.
func (iv *Interval) Start(dev FFDevice, durationMs, intervalMs int32, count int16) {
	iv.Stop()

	iv.mu.Lock()
	stop := make(chan struct{})
	iv.stopCh = stop
	iv.active = true
	iv.mu.Unlock()

	go iv.run(dev, stop, durationMs, intervalMs, count)
}

func (iv *Interval) run(dev FFDevice, stop chan struct{}, durationMs, intervalMs int32, count int16) {
	period := time.Duration(durationMs+intervalMs) * time.Millisecond
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	remaining := count
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if remaining <= 0 {
				iv.markDone(stop)
				return
			}
			_, _ = dev.UploadAndStart(nil, uint32(durationMs))
			remaining--
			if remaining == 0 {
				iv.markDone(stop)
				return
			}
		}
	}
}

// markDone clears active once this worker's own stop channel is still the
// current one — a concurrent Start/Stop may have already replaced it, in
// which case this run's completion is stale and must not clobber the new
// state.
func (iv *Interval) markDone(stop chan struct{}) {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	if iv.stopCh == stop {
		iv.active = false
	}
}
