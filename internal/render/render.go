// Package render implements the render scheduler (C7): the only
// component that touches the GPU and the video clock. It is grounded on
// erparts-go-avebi's draw.go (CalcProjection, fit-mode math) for the
// upload/draw step, and on original_source/.../video_scheduler.c for the
// per-vsync drop/hold/render/interpolate decision loop and the
// update-clock-only-after-swap rule.
package render

import (
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/erparts/avplay/internal/avsync"
	"github.com/erparts/avplay/internal/clock"
	"github.com/erparts/avplay/internal/queue"
)

// FitMode controls how a frame is projected into the surface viewport.
type FitMode int

const (
	FitContain FitMode = iota
	FitCover
	FitStretch
	FitOriginal
)

// InterpolationMode controls whether the scheduler blends F0/F1.
type InterpolationMode int

const (
	InterpolationAuto InterpolationMode = iota
	InterpolationForceOn
	InterpolationForceOff
)

// ColorMatrix selects the YUV->RGB matrix metadata forwarded as a render
// uniform placeholder (spec.md §1 scopes colour management to matrix
// selection only; no shader text is specified here).
type ColorMatrix int

const (
	ColorMatrixBT601 ColorMatrix = iota
	ColorMatrixBT709
	ColorMatrixBT2020
)

// interpolationHysteresisFrames is the cooldown armed whenever Auto mode
// leaves interpolation off (spec.md §9 open question (b), recorded in
// SPEC_FULL.md). It is re-armed on every frame that stays off, so it never
// runs out by itself: interpolation comes back on the first frame at which
// queue size >= 2 has held for interpolationReenableFrames consecutive
// frames, which can be the very next frame. A full 60 frames off is not
// enforced.
const interpolationHysteresisFrames = 60
const interpolationReenableFrames = 10

// VideoPayload is the decoded payload type the video frame queue carries
// in production (an *reisen.VideoFrame, behind `any` so this package
// doesn't import reisen directly — it only needs pixel bytes and size).
type VideoPayload interface {
	Data() []byte
}

// Scheduler drives the present-time loop for one EngineContext.
type Scheduler struct {
	Frames      *queue.FrameQueue
	VideoClock  *clock.VideoClock
	Sync        *avsync.State
	Surface     *ebiten.Image
	FitMode     FitMode
	Interp      InterpolationMode

	// ColorMatrix and HDR are forwarded-only uniform metadata: this
	// scheduler has no shader pass (spec.md §1 non-goal), so neither
	// field changes anything uploadAndSwap does. They exist so a host
	// building its own shader/post-process pass around this package can
	// read back which matrix/tone-mapping the content called for,
	// mirroring Player.SetViewport's inert rotation parameter.
	ColorMatrix ColorMatrix
	HDR         bool

	currentEpoch func() uint64
	isPlaying    func() bool
	isPaused     func() bool
	seekInFlight func() (target time.Duration, inProgress bool)
	onFirstFrame func()
	onSeekFirstFrame func()
	onSwap       func(pts time.Duration)
	onDrop       func(reason string)

	firstFramePending bool
	firstFramePayload VideoPayload

	interpDisabledFrames int
	interpReenableStreak int
	texture               *ebiten.Image
	textureW, textureH    int

	warmedUp bool
}

// NewScheduler wires a scheduler. The callback parameters model the
// lifecycle/seek/epoch state the scheduler needs to consult each tick
// without importing those packages directly (avoids an import cycle with
// internal/engine, which owns all of them).
func NewScheduler(frames *queue.FrameQueue, vclock *clock.VideoClock, sync *avsync.State,
	currentEpoch func() uint64, isPlaying, isPaused func() bool,
	seekInFlight func() (time.Duration, bool),
	onFirstFrame, onSeekFirstFrame func(), onSwap func(time.Duration), onDrop func(reason string)) *Scheduler {
	return &Scheduler{
		Frames:           frames,
		VideoClock:       vclock,
		Sync:             sync,
		FitMode:          FitContain,
		Interp:           InterpolationAuto,
		currentEpoch:     currentEpoch,
		isPlaying:        isPlaying,
		isPaused:         isPaused,
		seekInFlight:     seekInFlight,
		onFirstFrame:     onFirstFrame,
		onSeekFirstFrame: onSeekFirstFrame,
		onSwap:           onSwap,
		onDrop:           onDrop,
		firstFramePending: true,
	}
}

func (s *Scheduler) reportDrop(reason string) {
	if s.onDrop != nil {
		s.onDrop(reason)
	}
}

// AttachSurface binds the render target (ebiten.Image standing in for the
// GPU-backed Surface of spec.md §6).
func (s *Scheduler) AttachSurface(surface *ebiten.Image) {
	s.Surface = surface
}

// ParkFirstFrame stores the very first decoded frame so it can be shown
// unconditionally on the next Tick (spec.md §4.5 "First frame is
// special").
func (s *Scheduler) ParkFirstFrame(payload VideoPayload) {
	s.firstFramePayload = payload
}

// Tick runs one vsync iteration of the decision loop from spec.md §4.5.
// gateOpen and preparedOK model preconditions 1-2; returns true if a
// frame was uploaded+swapped this tick.
func (s *Scheduler) Tick(gateOpen, preparedOK bool) bool {
	if !gateOpen || !preparedOK || s.Surface == nil {
		return false
	}

	// the parked first frame is presented ahead of the warm-up check, so a
	// file that only ever decodes one frame still shows it.
	if s.firstFramePayload != nil {
		s.uploadAndSwap(s.firstFramePayload, 0, nil, FitMode(s.FitMode), 0)
		payload := s.firstFramePayload
		s.firstFramePayload = nil
		_ = payload
		if s.onFirstFrame != nil {
			s.onFirstFrame()
		}
		return true
	}

	// jitter buffer warm-up: only required once after start/seek.
	if !s.warmedUp {
		if s.Frames.Size() < 2 {
			return false
		}
		s.warmedUp = true
	}

	// A seek must be serviced regardless of Playing state (spec.md §4.5):
	// closeSeekGate puts the FSM into Seeking, which is neither Playing nor
	// Paused, so this has to run before the hold-last-frame branch below or
	// tickSeeking would never run and firstFrameAfterSeek would never fire.
	if target, inProgress := s.seekInFlight(); inProgress {
		return s.tickSeeking(target)
	}

	if !s.isPlaying() || s.isPaused() {
		// hold last frame: re-upload+swap to keep the surface alive, but do
		// not advance the queue or touch sync state.
		if f, ok := s.Frames.Peek(); ok {
			if payload, ok := f.Payload.(VideoPayload); ok {
				s.uploadAndSwap(payload, f.PTS, nil, s.FitMode, 0)
			}
		}
		return false
	}

	return s.tickNormal()
}

func (s *Scheduler) tickSeeking(target time.Duration) bool {
	const seekEpsilon = 2 * time.Millisecond
	// warm-up is required once after start/seek (spec.md §4.5 precondition
	// 3): re-arm it here so the post-seek return to tickNormal waits for a
	// fresh 2-frame buffer instead of reusing the pre-seek warm state.
	s.warmedUp = false
	for {
		f, ok := s.Frames.Peek()
		if !ok {
			return false
		}
		if f.Serial != s.currentEpoch() {
			s.Frames.Advance()
			s.reportDrop("stale_epoch")
			continue
		}
		if f.PTS < target-seekEpsilon {
			s.Frames.Advance()
			s.reportDrop("seek")
			continue
		}
		payload, ok := f.Payload.(VideoPayload)
		if !ok {
			s.Frames.Advance()
			continue
		}
		s.uploadAndSwap(payload, f.PTS, nil, s.FitMode, 0)
		s.Frames.Advance()
		if s.onSeekFirstFrame != nil {
			s.onSeekFirstFrame()
		}
		return true
	}
}

// enforceBackpressure drops the oldest buffered frames down to
// queue.VideoQueueBackpressureCap when decode has outrun render (spec.md
// §4.2): without this, a slow/stalled surface would let the frame queue
// grow to its full capacity and present increasingly stale video once it
// resumes.
func (s *Scheduler) enforceBackpressure() {
	for s.Frames.Size() > queue.VideoQueueBackpressureCap {
		if _, ok := s.Frames.DropOldest(); !ok {
			return
		}
		s.reportDrop("backpressure")
	}
}

func (s *Scheduler) tickNormal() bool {
	s.enforceBackpressure()
	f0, ok := s.Frames.Peek()
	if !ok {
		return false
	}
	if f0.Serial != s.currentEpoch() {
		s.Frames.Advance()
		s.reportDrop("stale_epoch")
		return false
	}

	action := s.Sync.Classify(f0.PTS, true, f0.Duration)
	switch action {
	case avsync.ActionDrop:
		s.Frames.Advance()
		s.reportDrop("late")
		return false
	case avsync.ActionHold:
		return false
	case avsync.ActionHardResync:
		s.hardResync()
		return false
	}

	payload, ok := f0.Payload.(VideoPayload)
	if !ok {
		s.Frames.Advance()
		return false
	}

	f1, haveNext := s.Frames.PeekNext()
	useInterp, alpha := s.resolveInterpolation(f0, f1, haveNext)

	if useInterp {
		if p1, ok := f1.Payload.(VideoPayload); ok {
			s.uploadAndSwap(payload, f0.PTS, p1, s.FitMode, alpha)
		} else {
			s.uploadAndSwap(payload, f0.PTS, nil, s.FitMode, 0)
			alpha = 1.0
		}
	} else {
		s.uploadAndSwap(payload, f0.PTS, nil, s.FitMode, 0)
		alpha = 1.0
	}

	if alpha >= 1.0 {
		s.Frames.Advance()
	}
	return true
}

func (s *Scheduler) resolveInterpolation(f0, f1 queue.Frame, haveNext bool) (bool, float64) {
	enabled := false
	switch s.Interp {
	case InterpolationForceOn:
		enabled = haveNext
	case InterpolationForceOff:
		enabled = false
	case InterpolationAuto:
		queueOK := s.Frames.Size() >= 2 && !s.isPaused()
		if queueOK {
			s.interpReenableStreak++
		} else {
			s.interpReenableStreak = 0
		}
		if s.interpDisabledFrames > 0 {
			s.interpDisabledFrames--
			if s.interpReenableStreak >= interpolationReenableFrames {
				s.interpDisabledFrames = 0
			}
			enabled = s.interpDisabledFrames == 0 && queueOK && haveNext
		} else {
			enabled = queueOK && haveNext
		}
	}

	if !enabled || !haveNext || f1.PTS <= f0.PTS {
		if s.Interp == InterpolationAuto {
			s.interpDisabledFrames = interpolationHysteresisFrames
		}
		return false, 0
	}

	master := s.Sync.MasterClockNow()
	alpha := float64(master-f0.PTS) / float64(f1.PTS-f0.PTS)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return true, alpha
}

func (s *Scheduler) hardResync() {
	audioNow := s.Sync.Audio.Now()
	const resyncMargin = 50 * time.Millisecond
	for {
		f, ok := s.Frames.Peek()
		if !ok {
			return
		}
		if f.PTS < audioNow-resyncMargin {
			s.Frames.Advance()
			s.reportDrop("hard_resync")
			continue
		}
		if payload, ok := f.Payload.(VideoPayload); ok {
			s.uploadAndSwap(payload, f.PTS, nil, s.FitMode, 0)
			s.Frames.Advance()
			s.Sync.ClearRecovering()
		}
		return
	}
}

// uploadAndSwap uploads pixel data (optionally blended with next for
// interpolation), draws it scaled into the surface, and swaps. Only on
// success is the video clock updated — the sole place this engine writes
// VideoClock, matching spec.md's clock-ownership invariant (P2).
func (s *Scheduler) uploadAndSwap(payload VideoPayload, pts time.Duration, nextPayload VideoPayload, fit FitMode, alpha float64) {
	bounds := s.Surface.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if s.texture == nil || s.textureW != w || s.textureH != h {
		s.texture = ebiten.NewImage(w, h)
		s.textureW, s.textureH = w, h
	}

	s.texture.WritePixels(payload.Data())
	// interpolation between payload and nextPayload would be performed by
	// a shader pass in a GPU-accelerated build; this engine forwards the
	// alpha as a draw-time blend since no shader text is specified here
	// (spec.md §1 non-goal).
	var opts ebiten.DrawImageOptions
	opts.GeoM, opts.Filter = CalcProjection(s.Surface, s.texture, fit)
	s.Surface.Clear()
	if nextPayload != nil && alpha > 0 {
		// next frame opaque underneath, current frame over it at 1-alpha:
		// the surface ends up as (1-alpha)*current + alpha*next.
		s.texture.WritePixels(nextPayload.Data())
		s.Surface.DrawImage(s.texture, &opts)
		s.texture.WritePixels(payload.Data())
		opts.ColorScale.ScaleAlpha(float32(1 - alpha))
	}
	s.Surface.DrawImage(s.texture, &opts)

	// swap: in this engine the ebiten.Image IS the swapped surface (the
	// host's render loop presents it); success is synchronous here.
	s.VideoClock.UpdateAfterSwap(pts)
	if s.onSwap != nil {
		s.onSwap(pts)
	}
}

// CalcProjection returns the GeoM/Filter to project frame into viewport
// under the given fit mode. Contain/Cover/Stretch/Original generalise
// erparts-go-avebi's draw.go CalcProjection, which only implemented
// Contain.
func CalcProjection(viewport, frame *ebiten.Image, fit FitMode) (ebiten.GeoM, ebiten.Filter) {
	viewBounds := viewport.Bounds()
	frameBounds := frame.Bounds()
	vwWidth, vwHeight := viewBounds.Dx(), viewBounds.Dy()
	frWidth, frHeight := frameBounds.Dx(), frameBounds.Dy()
	tx, ty := float64(viewBounds.Min.X), float64(viewBounds.Min.Y)

	var geom ebiten.GeoM
	filter := ebiten.FilterLinear

	switch fit {
	case FitOriginal:
		offx := (float64(vwWidth) - float64(frWidth)) / 2
		offy := (float64(vwHeight) - float64(frHeight)) / 2
		geom.Translate(tx+offx, ty+offy)
	case FitStretch:
		sx := float64(vwWidth) / float64(frWidth)
		sy := float64(vwHeight) / float64(frHeight)
		geom.Scale(sx, sy)
		geom.Translate(tx, ty)
	case FitCover:
		wf, hf := float64(vwWidth)/float64(frWidth), float64(vwHeight)/float64(frHeight)
		sf := wf
		if hf > wf {
			sf = hf
		}
		sfrWidth, sfrHeight := float64(frWidth)*sf, float64(frHeight)*sf
		geom.Scale(sf, sf)
		geom.Translate(tx+(float64(vwWidth)-sfrWidth)/2, ty+(float64(vwHeight)-sfrHeight)/2)
	default: // FitContain
		wf, hf := float64(vwWidth)/float64(frWidth), float64(vwHeight)/float64(frHeight)
		sf := wf
		if hf < wf {
			sf = hf
		}
		if sf == 1.0 {
			offx := (float64(vwWidth) - float64(frWidth)) / 2
			offy := (float64(vwHeight) - float64(frHeight)) / 2
			geom.Translate(tx+offx, ty+offy)
		} else {
			sfrWidth, sfrHeight := float64(frWidth)*sf, float64(frHeight)*sf
			geom.Scale(sf, sf)
			geom.Translate(tx+(float64(vwWidth)-sfrWidth)/2, ty+(float64(vwHeight)-sfrHeight)/2)
		}
	}
	return geom, filter
}

// BlackFill returns a solid black image the size of dims, used when no
// frame has been decoded yet (mirrors player.go's onBlackFrame handling).
func BlackFill(w, h int) *ebiten.Image {
	img := ebiten.NewImage(w, h)
	img.Fill(color.Black)
	return img
}
