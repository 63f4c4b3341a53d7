// Package playback implements the two background activities that drive the
// FF device over time: waveform playback (a cancelable worker walking a
// timing/amplitude sequence) and interval playback (a ticker-driven
// repeater that runs on a goroutine of its own, not on the transport's
// event loop). A waveform worker checks its stop flag before each step and
// after every stepChunk slice of a step's delay; once the flag is seen it
// makes no further device calls.
package playback

import (
	"sync"
	"time"

	"vibratord/internal/strength"
	"vibratord/internal/wire"
)

// FFDevice is the subset of *ffdev.Device the playback engine needs. Kept
// as an interface so tests can drive a fake without depending on ioctl
// plumbing.
type FFDevice interface {
	UploadAndStart(effectID *int32, timeoutMs uint32) (int32, error)
	SetGain(amplitude uint8) error
}

// Wave is a value-owning copy of a waveform command's payload. The
// dispatcher copies into this before spawning a worker so the worker never
// reads state the event-loop goroutine might mutate concurrently.
type Wave struct {
	Timings    [24]uint32
	Amplitudes [24]uint8
	Length     uint8
	Repeat     int8
}

// stepChunk bounds how finely delayCancelable subdivides a step's delay so
// a preemption request is noticed promptly. The spec permits chunking
// without requiring it below step resolution; 50ms is fine-grained enough
// for a snappy Stop without generating excess wakeups for long steps.
const stepChunk = 50 * time.Millisecond

// Player owns the single optional waveform worker and the handoff state
// (force-stop flag, completion condition) the event loop uses to preempt
// it. There is at most one Player per daemon, owned by the dispatcher.
type Player struct {
	mu           sync.Mutex
	cond         *sync.Cond
	running      bool
	forceStop    bool
	conditionMet bool
}

// NewPlayer returns a Player with no worker running.
func NewPlayer() *Player {
	p := &Player{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// PreemptForWaveform is the "waveform preempts waveform" handoff: it
// signals any running worker to stop and blocks until that worker reports
// completion, then clears the flags so the caller can safely spawn a
// successor. If no worker is running it returns immediately.
func (p *Player) PreemptForWaveform() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.forceStop = true
		for !p.conditionMet {
			p.cond.Wait()
		}
	}
	p.forceStop = false
	p.conditionMet = false
}

// PreemptNonWaveform is the "non-waveform command preempts waveform"
// handoff: it signals a running worker to stop but does not wait — the old
// worker notices at its next step boundary.
func (p *Player) PreemptNonWaveform() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.forceStop = true
	}
}

// IsRunning reports whether a waveform worker is currently active.
func (p *Player) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Play spawns the background worker for wave against dev, scaling
// amplitudes by intensity. The caller must have already applied the
// preemption protocol (PreemptForWaveform) before calling this.
func (p *Player) Play(dev FFDevice, wave Wave, intensity wire.Intensity) {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	go p.run(dev, wave, intensity)
}

func (p *Player) run(dev FFDevice, wave Wave, intensity wire.Intensity) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.conditionMet = true
		p.mu.Unlock()
		p.cond.Broadcast()
	}()

	i := 0
	var onRemaining int32
	for {
		p.mu.Lock()
		stop := p.forceStop
		p.mu.Unlock()
		if stop {
			return
		}

		if i < int(wave.Length) {
			ampRaw := wave.Amplitudes[i]
			dur := wave.Timings[i]
			idx := i
			i++
			if dur == 0 {
				continue
			}
			amp := strength.Scale(ampRaw, intensity)
			switch {
			case amp != 0 && onRemaining <= 0:
				onRemaining = totalOnDuration(wave, idx)
				_, _ = dev.UploadAndStart(nil, uint32(onRemaining))
			case amp != 0:
				_ = dev.SetGain(amp)
			}
			waited := p.delayCancelable(time.Duration(dur) * time.Millisecond)
			if amp != 0 {
				onRemaining -= int32(waited / time.Millisecond)
			}
		} else if wave.Repeat < 0 {
			return
		} else {
			i = int(wave.Repeat)
		}
	}
}

// delayCancelable waits up to d, in stepChunk-sized slices, returning early
// once forceStop is observed. It returns the actual time waited.
func (p *Player) delayCancelable(d time.Duration) time.Duration {
	start := time.Now()
	remaining := d
	for remaining > 0 {
		wait := stepChunk
		if wait > remaining {
			wait = remaining
		}
		time.Sleep(wait)
		remaining -= wait

		p.mu.Lock()
		stop := p.forceStop
		p.mu.Unlock()
		if stop {
			break
		}
	}
	return time.Since(start)
}

// totalOnDuration sums timings[j] for consecutive nonzero amplitudes
// starting at from, wrapping to Repeat once if it runs off the end of the
// sequence. If that wrap ever brings the walk back to from, the segment is
// indefinite (it would otherwise sum forever) and a 1000ms refresh sentinel
// is returned instead of the finite sum.
func totalOnDuration(wave Wave, from int) int32 {
	var total int32
	j := from
	wrapped := false
	for j < int(wave.Length) && wave.Amplitudes[j] != 0 {
		total += int32(wave.Timings[j])
		j++
		if j >= int(wave.Length) {
			if wave.Repeat < 0 {
				break
			}
			if wrapped {
				break
			}
			wrapped = true
			j = int(wave.Repeat)
		}
		if wrapped && j == from {
			return 1000
		}
	}
	return total
}
