// Package audioio implements the audio renderer (C8): it drains decoded
// audio frames, serves them to an [Sink], and updates [clock.AudioClock]
// immediately after each successful write — never from the sink's
// playback-head query, which spec.md §4.6 calls out as known to freeze on
// some devices.
//
// Grounded on erparts-go-avebi's controller_yes_audio.go: the io.Reader-
// backed ebiten audio.Player (buffer size, volume, mute) is kept, but the
// clock update moves from Position()-on-read (the teacher's
// noLockPosition, which does use audioPlayer.Position()) to an explicit
// post-write AudioClock update, per spec.md's deliberate deviation noted
// in DESIGN.md.
package audioio

import (
	"io"
	"sync"
	"time"

	"github.com/erparts/avplay/internal/clock"
	"github.com/erparts/avplay/internal/queue"
)

// AudioPlayerBufferSize mirrors erparts-go-avebi's playerBufferSize
// constant (200ms is fine on desktop; smaller on web/embedded).
const AudioPlayerBufferSize = 200 * time.Millisecond

// stallThreshold is spec.md §4.6's "fails to advance ... for > 500ms".
const stallThreshold = 500 * time.Millisecond

// State is the AudioState lattice from spec.md §3. NoAudio and Dead are
// terminal.
type State int

const (
	NoAudio State = iota
	Initializing
	Initialized
	Playing
	Paused
	StoppedBySystem
	Dead
)

func (s State) String() string {
	switch s {
	case NoAudio:
		return "noAudio"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case StoppedBySystem:
		return "stoppedBySystem"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// AudioPayload is the decoded audio frame shape the frame queue carries.
type AudioPayload interface {
	Data() []byte
}

// Sink is the external AudioSink capability contract (spec.md §6). It
// does not include a Write method: the teacher's own audio wiring
// (controller_yes_audio.go) is pull-based — ebiten's audio.Player reads
// PCM bytes FROM an io.Reader rather than being written to — and
// [Renderer] itself implements io.Reader for exactly that purpose. A
// Sink is therefore only ever told to start/stop/pause/resume/flush and
// asked for its output latency; the bytes flow out through Renderer.Read.
type Sink interface {
	Latency() time.Duration
	Pause()
	Resume()
	Flush()
	Start() error
	Stop() error
	IsPlaying() bool
}

// Renderer is the C8 component. It is driven as an io.Reader by the
// concrete Sink implementation (mirroring the teacher's
// audio.CurrentContext().NewPlayer(&struct{io.Reader}{c}) wiring), and
// separately exposes the state machine and drift-compensation hooks the
// engine needs.
type Renderer struct {
	mutex sync.Mutex

	Frames *queue.FrameQueue
	Clock  *clock.AudioClock
	sink   Sink

	state State

	leftover     []byte
	leftoverPTS  time.Duration
	leftoverDur  time.Duration
	currentEpoch func() uint64

	lastUpdateWall time.Time

	// drift compensation: exponentially-averaged observed drift vs master
	// (spec.md §4.6).
	avgDrift      time.Duration
	resampleRatio float64

	onStoppedBySystem func()
}

// NewRenderer wires a renderer pulling frames from frames and writing
// through sink.
func NewRenderer(frames *queue.FrameQueue, ac *clock.AudioClock, sink Sink, currentEpoch func() uint64, onStoppedBySystem func()) *Renderer {
	return &Renderer{
		Frames:            frames,
		Clock:             ac,
		sink:              sink,
		state:             Initialized,
		currentEpoch:      currentEpoch,
		resampleRatio:     1.0,
		onStoppedBySystem: onStoppedBySystem,
	}
}

// State returns the current AudioState.
func (r *Renderer) State() State {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.state
}

func (r *Renderer) setState(s State) {
	r.mutex.Lock()
	r.state = s
	r.mutex.Unlock()
}

// Start transitions to Playing and resumes the sink.
func (r *Renderer) Start() error {
	r.setState(Playing)
	r.sink.Resume()
	return nil
}

// PauseSink pauses the sink and transitions to Paused.
func (r *Renderer) PauseSink() {
	r.setState(Paused)
	r.sink.Pause()
}

// Read implements io.Reader, serving PCM bytes to the sink (same shape as
// controller_yes_audio.go's Read). Buffers must be a multiple of the
// sample frame size; callers (e.g. ebiten's audio package) guarantee
// this.
func (r *Renderer) Read(buffer []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var served int
	if len(r.leftover) > 0 {
		n := copy(buffer, r.leftover)
		r.leftover = r.leftover[n:]
		buffer = buffer[n:]
		served += n
		if len(r.leftover) == 0 {
			r.noLockCommitClock()
		}
	}

	for len(buffer) > 0 {
		f, ok := r.Frames.Peek()
		if !ok {
			if served == 0 {
				return 0, io.EOF
			}
			return served, nil
		}
		if f.Serial != r.currentEpoch() {
			r.Frames.Advance()
			continue
		}
		payload, ok := f.Payload.(AudioPayload)
		if !ok {
			r.Frames.Advance()
			continue
		}
		data := payload.Data()
		n := copy(buffer, data)
		buffer = buffer[n:]
		served += n
		r.leftoverPTS = f.PTS
		r.leftoverDur = f.Duration
		if n >= len(data) {
			r.Frames.Advance()
			r.noLockCommitClock()
		} else {
			// the rest of this frame now lives in leftover; release its slot
			// so the next Read does not serve the frame again from the start.
			r.Frames.Advance()
			r.leftover = data[n:]
		}
	}
	return served, nil
}

// noLockCommitClock updates the audio clock immediately after bytes from
// the current frame have been fully handed to the sink — spec.md's only
// permitted write path for AudioClock (P2, §8).
func (r *Renderer) noLockCommitClock() {
	latency := r.sink.Latency()
	r.Clock.UpdateAfterWrite(r.leftoverPTS, r.leftoverDur, latency)
	r.lastUpdateWall = time.Now()
}

// ObserveDrift folds a new video-vs-audio drift sample into the
// exponentially-averaged drift used for resample-ratio compensation
// (spec.md §4.6). alpha is the smoothing factor.
func (r *Renderer) ObserveDrift(drift time.Duration, alpha float64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.avgDrift == 0 {
		r.avgDrift = drift
	} else {
		r.avgDrift = time.Duration(float64(r.avgDrift)*(1-alpha) + float64(drift)*alpha)
	}

	const minNudge = 40 * time.Millisecond
	const maxNudge = 100 * time.Millisecond
	d := r.avgDrift
	if d < 0 {
		d = -d
	}
	switch {
	case d > minNudge && d < maxNudge:
		// nudge the resample ratio to consume slightly more/fewer samples.
		const nudgeStep = 0.002
		if r.avgDrift > 0 {
			r.resampleRatio = 1.0 + nudgeStep
		} else {
			r.resampleRatio = 1.0 - nudgeStep
		}
	default:
		r.resampleRatio = 1.0
	}
}

// ResampleRatio returns the current compensation ratio.
func (r *Renderer) ResampleRatio() float64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.resampleRatio
}

// CheckStall reports whether playback head has failed to advance for
// longer than 500ms while the engine is playing; on the first such
// detection it transitions to StoppedBySystem and invokes the callback,
// per spec.md §4.6.
func (r *Renderer) CheckStall(enginePlaying bool) bool {
	r.mutex.Lock()
	stalled := enginePlaying && r.state == Playing && !r.lastUpdateWall.IsZero() && time.Since(r.lastUpdateWall) > stallThreshold
	if stalled {
		r.state = StoppedBySystem
	}
	r.mutex.Unlock()
	if stalled && r.onStoppedBySystem != nil {
		r.onStoppedBySystem()
	}
	return stalled
}
