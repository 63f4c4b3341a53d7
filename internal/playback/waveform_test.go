package playback

import (
	"testing"
	"time"

	"vibratord/internal/ffdev"
	"vibratord/internal/wire"
)

func waitUntilIdle(t *testing.T, p *Player, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for p.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("waveform worker did not stop in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayWaveformOneshot(t *testing.T) {
	dev, mock := ffdev.NewWithMock()
	p := NewPlayer()

	wave := Wave{Length: 1, Repeat: -1}
	wave.Timings[0] = 60
	wave.Amplitudes[0] = 200

	p.Play(dev, wave, wire.IntensityHigh)
	waitUntilIdle(t, p, 2*time.Second)

	if mock.UploadCount() != 1 {
		t.Fatalf("expected exactly one upload for a one-shot step, got %d", mock.UploadCount())
	}
}

func TestPreemptForWaveformWaitsForCompletion(t *testing.T) {
	dev, _ := ffdev.NewWithMock()
	p := NewPlayer()

	wave := Wave{Length: 2, Repeat: 0}
	wave.Timings[0], wave.Timings[1] = 50, 50
	wave.Amplitudes[0], wave.Amplitudes[1] = 200, 200

	p.Play(dev, wave, wire.IntensityHigh)
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.PreemptForWaveform()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PreemptForWaveform did not return")
	}
	if p.IsRunning() {
		t.Fatal("expected no worker running once the preemption handoff completes")
	}
}

func TestPreemptNonWaveformDoesNotBlock(t *testing.T) {
	dev, _ := ffdev.NewWithMock()
	p := NewPlayer()

	wave := Wave{Length: 1, Repeat: 0}
	wave.Timings[0] = 500
	wave.Amplitudes[0] = 200

	p.Play(dev, wave, wire.IntensityHigh)
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	p.PreemptNonWaveform()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("PreemptNonWaveform must return immediately, took %v", elapsed)
	}

	waitUntilIdle(t, p, 2*time.Second)
}

func TestScaleZeroAmplitudeSkipsUpload(t *testing.T) {
	dev, mock := ffdev.NewWithMock()
	p := NewPlayer()

	wave := Wave{Length: 1, Repeat: -1}
	wave.Timings[0] = 30
	wave.Amplitudes[0] = 0

	// A step whose scaled amplitude is 0 keeps the motor off: the worker
	// waits out the step's duration without uploading an effect.
	p.Play(dev, wave, wire.IntensityHigh)
	waitUntilIdle(t, p, 2*time.Second)
	if mock.UploadCount() != 0 {
		t.Fatalf("expected no upload for a zero-amplitude step, got %d", mock.UploadCount())
	}
}

func TestTotalOnDurationWrapSentinel(t *testing.T) {
	wave := Wave{Length: 2, Repeat: 0}
	wave.Amplitudes[0], wave.Amplitudes[1] = 1, 1
	wave.Timings[0], wave.Timings[1] = 100, 100

	if got := totalOnDuration(wave, 0); got != 1000 {
		t.Fatalf("wrap revisiting the start index should return the 1000ms sentinel, got %d", got)
	}
}

func TestTotalOnDurationWrapsOnceToDifferentIndex(t *testing.T) {
	wave := Wave{Length: 2, Repeat: 1}
	wave.Amplitudes[0], wave.Amplitudes[1] = 1, 1
	wave.Timings[0], wave.Timings[1] = 100, 50

	got := totalOnDuration(wave, 0)
	want := int32(100 + 50 + 50) // step 0, step 1, then wrap to repeat=1 and sum step 1 again
	if got != want {
		t.Fatalf("totalOnDuration = %d, want %d", got, want)
	}
}

func TestTotalOnDurationSumsBothPassesOfASingleWrap(t *testing.T) {
	wave := Wave{Length: 3, Repeat: 1}
	wave.Amplitudes[0], wave.Amplitudes[1], wave.Amplitudes[2] = 1, 1, 1
	wave.Timings[0], wave.Timings[1], wave.Timings[2] = 10, 20, 30

	// First pass sums 0,1,2 (60); wrapping to repeat=1 sums 1,2 again (50)
	// before the second hit of the end stops the walk without wrapping again.
	if got, want := totalOnDuration(wave, 0), int32(110); got != want {
		t.Fatalf("totalOnDuration = %d, want %d", got, want)
	}
}

func TestTotalOnDurationStopsAtZeroAmplitude(t *testing.T) {
	wave := Wave{Length: 3, Repeat: 1}
	wave.Amplitudes[0], wave.Amplitudes[1], wave.Amplitudes[2] = 1, 1, 0
	wave.Timings[0], wave.Timings[1], wave.Timings[2] = 100, 50, 10

	if got := totalOnDuration(wave, 0); got != 150 {
		t.Fatalf("totalOnDuration = %d, want 150", got)
	}
}
