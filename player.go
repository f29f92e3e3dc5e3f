// Package avplay is the public facade of a software video-playback
// engine: demuxes a container, decodes video and (optionally) audio,
// renders frames to a GPU-backed surface, and plays audio samples, all
// kept in sync (spec.md §1). The runtime (C1-C12) lives under internal/;
// this package fronts it with the same ergonomics as
// erparts-go-avebi's flat root package (construct a [Player], call
// [Player.Play], drain [Player.Events] for state changes), generalized
// from its two-variant (video-only / video+audio) controller switch into
// one engine whose audio path is simply absent when a container has no
// audio stream.
package avplay

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/erparts/avplay/internal/engine"
	"github.com/erparts/avplay/internal/preview"
)

// Options configures a [Player] at construction time (spec.md's
// Configuration ambient-stack note: no config-file parsing library, a
// plain functional-defaults struct since the host owns configuration).
type Options = engine.Options

// DefaultOptions returns the zero-value-safe engine defaults.
func DefaultOptions() Options { return engine.DefaultOptions() }

// speedClampMin/Max are the host-facing setSpeed clamp of spec.md §6
// ("double clamped to [0.25, 3.0]"), looser than the engine-internal
// clock clamp of [clock.MinSpeed, clock.MaxSpeed] = [0.5, 3.0] — a
// caller passing 0.3 is accepted here and only re-clamped to 0.5 deeper
// in internal/clock.Clock.SetSpeed.
const (
	speedClampMin = 0.25
	speedClampMax = 3.0
)

// A [Player] wraps one [engine.Context]: one prepare..dispose session for
// one opened video file, analogous to erparts-go-avebi's Player wrapping
// a videoController.
type Player struct {
	ctx   *engine.Context
	token int
}

// NewPlayer opens videoFilename and returns a ready-to-play [Player].
// token is echoed in every event payload (spec.md §6's prepare(path,
// token)), letting a host multiplex several players over one event
// stream.
func NewPlayer(videoFilename string, token int, opts Options) (*Player, error) {
	ctx := engine.New(token, pkgLogger, opts)
	if err := ctx.Prepare(videoFilename); err != nil {
		return nil, err
	}
	return &Player{ctx: ctx, token: token}, nil
}

// NewPlayerWithoutAudio is like [NewPlayer] but ignores any audio
// stream the container has.
func NewPlayerWithoutAudio(videoFilename string, token int) (*Player, error) {
	opts := DefaultOptions()
	opts.IgnoreAudio = true
	return NewPlayer(videoFilename, token, opts)
}

// Events returns the channel the host drains for this player's wire
// events (spec.md §6/§9).
func (p *Player) Events() <-chan Event { return p.ctx.Events() }

// Play requests playback (spec.md §7 play()): accepted immediately
// (playAccepted event), takes visible effect once the AVSync gate opens.
func (p *Player) Play() error { return p.ctx.Play() }

// Pause requests playback to pause; idempotent.
func (p *Player) Pause() { p.ctx.Pause() }

// Seek moves playback to position, relative to the start of the video.
// exact requests frame-accurate decode-and-drop seeking instead of the
// cheaper fast keyframe seek (spec.md §4.8).
func (p *Player) Seek(position time.Duration, exact bool) { p.ctx.Seek(position, exact) }

// SetSpeed adjusts the nominal playback speed, clamped to [0.25, 3.0]
// per spec.md §6 before being handed to the engine (which further clamps
// to its own, narrower [0.5, 3.0] internal range).
func (p *Player) SetSpeed(speed float64) {
	if speed < speedClampMin {
		speed = speedClampMin
	}
	if speed > speedClampMax {
		speed = speedClampMax
	}
	p.ctx.SetSpeed(speed)
}

// Speed returns the current nominal speed multiplier.
func (p *Player) Speed() float64 { return p.ctx.Speed() }

// StepFrame advances exactly one video frame while paused (spec.md §4.10
// frame-step mode; recovered from erparts-go-avebi's NextVideoFrame TODO
// stub, which panicked with "unimplemented").
func (p *Player) StepFrame() error { return p.ctx.StepFrame() }

// SetInterpolationMode updates the render scheduler's interpolation
// policy.
func (p *Player) SetInterpolationMode(mode InterpolationMode) { p.ctx.SetInterpolationMode(mode) }

// SetFitMode updates the render scheduler's projection fit mode.
func (p *Player) SetFitMode(mode FitMode) { p.ctx.SetFitMode(mode) }

// SetViewport is the spec.md §6 setViewport(w, h, rotation, fit) call.
// Viewport dimensions come from the attached surface itself (an
// *ebiten.Image already carries its own bounds), so only fit mode is
// forwarded; rotation has no effect (no shader text is specified for it,
// per spec.md §1's non-goals on transform pipelines beyond fit-mode
// projection and matrix selection).
func (p *Player) SetViewport(fit FitMode, rotationDegrees int) {
	_ = rotationDegrees
	p.ctx.SetFitMode(fit)
}

// SetColorMatrix records which YUV->RGB matrix the scheduler forwards as
// uniform metadata. It does not change anything this package renders (no
// shader text is specified, per spec.md §1's non-goal); it exists so a
// host building its own shader pass around this package can read back
// what the content called for.
func (p *Player) SetColorMatrix(matrix ColorMatrix) { p.ctx.SetColorMatrix(matrix) }

// SetHDR records the HDR tone-mapping flag forwarded alongside rendered
// frames; like [Player.SetColorMatrix], this is metadata only — see its
// doc comment.
func (p *Player) SetHDR(enabled bool) { p.ctx.SetHDR(enabled) }

// OnAppBackground stops the render loop while audio keeps playing (spec.md
// §7 step 5): call this when the host app is suspended. video_clock freezes
// and master moves to Audio when audio is healthy; call [Player.OnAppForeground] and re-attach
// the surface to resume.
func (p *Player) OnAppBackground() { p.ctx.OnAppBackground() }

// OnAppForeground switches back to AV mode; the render loop resumes once a
// surface is (re-)attached, without re-emitting firstFrame.
func (p *Player) OnAppForeground() { p.ctx.OnAppForeground() }

// AttachSurface binds the GPU surface the render scheduler draws into
// (spec.md §6 attachSurface); emits surfaceReady once bound.
func (p *Player) AttachSurface(surface *ebiten.Image) { p.ctx.AttachSurface(surface) }

// DetachSurface stops the render loop without stopping decode (spec.md
// §6 detachSurface).
func (p *Player) DetachSurface() { p.ctx.DetachSurface() }

// RegisterTexture re-attaches a freshly (re)created surface after a host
// context loss, emitting surfaceReplaced instead of surfaceReady
// (spec.md §6 registerTexture, the FBO-based alternative to
// attachSurface).
func (p *Player) RegisterTexture(surface *ebiten.Image) { p.ctx.RegisterTexture(surface) }

// GetPosition returns the current playback position. While a seek is in
// progress it is read from a clock re-anchored at the seek target, so it
// reports the target plus the time elapsed since the request; the last
// pre-seek position is not held.
func (p *Player) GetPosition() time.Duration { return p.ctx.GetPosition() }

// GetDuration returns the opened media's duration.
func (p *Player) GetDuration() time.Duration { return p.ctx.GetDuration() }

// HasAudio reports whether the opened media has (usable) audio.
func (p *Player) HasAudio() bool { return p.ctx.HasAudio() }

// Resolution returns the video stream's pixel dimensions.
func (p *Player) Resolution() (int, int) { return p.ctx.Resolution() }

// Tick drives one vsync iteration of the render scheduler. The host
// calls this from its per-frame update loop (spec.md §5's present-time
// loop); it reports whether a frame was uploaded and swapped this tick.
func (p *Player) Tick() bool { return p.ctx.Tick() }

// BlackFrame returns a solid black placeholder sized to the video
// stream's resolution, for use before the first frame decodes (mirrors
// erparts-go-avebi's onBlackFrame image).
func (p *Player) BlackFrame() *ebiten.Image { return p.ctx.BlackFrame() }

// Close tears the player down: stops every goroutine, releases the
// underlying container and audio sink, and joins every pipeline thread
// before returning (spec.md §6 dispose(): "Blocks until every thread is
// joined"). Do not confuse with [Player.Pause]().
func (p *Player) Close() error { return p.ctx.Dispose() }

// GetPreviewFrame is the stateless, one-shot C11 preview extractor
// (spec.md §4.11/§6 getPreviewFrame): it opens its own handle on path
// independent of any [Player], seeks near targetMS, decodes forward to
// the first frame at or after it, and returns w*h*4 RGBA8888 bytes.
func GetPreviewFrame(path string, targetMS int64, w, h int) ([]byte, error) {
	return preview.Extract(path, targetMS, w, h)
}
