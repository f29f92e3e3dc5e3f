// Package engine implements the EngineContext of spec.md §3: the single
// object that owns every other internal package's state for one playback
// session and wires them into the goroutine pipeline described in §5.
// Grounded on erparts-go-avebi's player.go/controller_*.go for the
// open/play/pause/seek/close surface, generalized from a two-variant
// (videoOnlyController/videoWithAudioController) struct switch into one
// engine whose audio path is simply absent when the container has no
// audio stream, and on zsiec-prism's cmd/prism/main.go for the
// errgroup.WithContext goroutine-supervision pattern.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erparts/reisen"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/erparts/avplay/internal/audioio"
	"github.com/erparts/avplay/internal/avsync"
	"github.com/erparts/avplay/internal/clock"
	"github.com/erparts/avplay/internal/decode"
	"github.com/erparts/avplay/internal/diag"
	"github.com/erparts/avplay/internal/events"
	"github.com/erparts/avplay/internal/lifecycle"
	"github.com/erparts/avplay/internal/queue"
	"github.com/erparts/avplay/internal/render"
	"github.com/erparts/avplay/internal/seek"
	"github.com/erparts/avplay/internal/watchdog"
)

// Logger mirrors the root avplay.Logger shape structurally (no import of
// the root package: internal/engine must not import its own importer).
// Any avplay.Logger value satisfies this interface automatically.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Kind enumerates the §7 PlayerError taxonomy.
type Kind int

const (
	KindInternal Kind = iota
	KindOpenFailed
	KindDecodeFailed
	KindSurfaceLost
	KindClockStall
	KindSeekDeadlock
	KindAudioDead
)

func (k Kind) String() string {
	switch k {
	case KindOpenFailed:
		return "openFailed"
	case KindDecodeFailed:
		return "decodeFailed"
	case KindSurfaceLost:
		return "surfaceLost"
	case KindClockStall:
		return "clockStall"
	case KindSeekDeadlock:
		return "seekDeadlock"
	case KindAudioDead:
		return "audioDead"
	default:
		return "internal"
	}
}

// PlayerError wraps a Kind and the underlying cause, matching the
// teacher's plain errors.New style rather than a wrapping framework.
type PlayerError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *PlayerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("avplay: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("avplay: %s: %s", e.Kind, e.Message)
}

func (e *PlayerError) Unwrap() error { return e.Cause }

func newErr(kind Kind, message string, cause error) *PlayerError {
	return &PlayerError{Kind: kind, Message: message, Cause: cause}
}

var ErrNoVideo = errors.New("file doesn't include any video stream")

// Options generalises the teacher's bare-filename construction into a
// small functional-defaults config struct (no config-file parsing
// library: an embeddable engine takes its configuration from the host
// process, not from disk).
type Options struct {
	FitMode            render.FitMode
	Interpolation      render.InterpolationMode
	IgnoreAudio        bool
	FrameQueueCapacity int // informational only; queue.FrameCapacity is the hard K
	AvoidKeyframeOnly  bool
}

// DefaultOptions returns the zero-value-safe defaults.
func DefaultOptions() Options {
	return Options{
		FitMode:            render.FitContain,
		Interpolation:      render.InterpolationAuto,
		FrameQueueCapacity: queue.FrameCapacity,
	}
}

// ebitenSink adapts *audio.Player to [audioio.Sink]. The player pulls PCM
// bytes from the Renderer itself (Renderer implements io.Reader, wired as
// the player's source at construction, exactly as controller_yes_audio.go
// builds its audio.CurrentContext().NewPlayer(&struct{io.Reader}{c}));
// this adapter only forwards the control-plane calls the Renderer makes
// (Latency/Pause/Resume/Flush/Start/Stop/IsPlaying).
type ebitenSink struct {
	mutex  sync.Mutex
	player *audio.Player
}

func (s *ebitenSink) Latency() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player == nil {
		return 0
	}
	// audio.Player exposes its buffered, not-yet-played duration via
	// BufferedSize measured in bytes; converting that to a duration needs
	// the stream's byte rate, which this adapter does not track, so the
	// buffer-size tunable itself is reported instead (a fixed upper bound
	// on output latency, same role as the teacher's playerBufferSize).
	return audioio.AudioPlayerBufferSize
}

func (s *ebitenSink) Pause() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player != nil {
		s.player.Pause()
	}
}

func (s *ebitenSink) Resume() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player != nil {
		s.player.Play()
	}
}

func (s *ebitenSink) Flush() {
	// ebiten's audio.Player has no explicit flush primitive; seeking
	// instead relies on the Renderer dropping stale-epoch frames as the
	// player keeps pulling (see audioio.Renderer.Read's epoch check).
}

func (s *ebitenSink) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player == nil {
		return nil
	}
	s.player.Play()
	return nil
}

func (s *ebitenSink) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player == nil {
		return nil
	}
	return s.player.Close()
}

func (s *ebitenSink) IsPlaying() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.player != nil && s.player.IsPlaying()
}

// Context is the EngineContext of spec.md §3. One Context corresponds to
// one prepare()..dispose() session; per Open Question (d), a fresh
// Context is created per prepare rather than reused, so the seek epoch
// trivially resets to 0 each time.
type Context struct {
	mutex sync.Mutex

	token   int
	logger  Logger
	options Options

	fsm *lifecycle.FSM

	media       *reisen.Media
	videoStream *reisen.VideoStream
	audioStream *reisen.AudioStream
	hasAudio    bool
	videoIndex  int
	audioIndex  int
	duration    time.Duration

	epoch atomic.Uint64

	videoPackets *queue.PacketQueue
	audioPackets *queue.PacketQueue
	videoFrames  *queue.FrameQueue
	audioFrames  *queue.FrameQueue

	audioClock *clock.AudioClock
	videoClock *clock.VideoClock
	speedClock *clock.Clock
	sync       *avsync.State

	scheduler     *render.Scheduler
	audioRenderer *audioio.Renderer
	audioSink     *ebitenSink

	seekCtrl *seek.Controller
	stallWD  *watchdog.StallWatchdog
	seekWD   *watchdog.SeekWatchdog

	registry *prometheus.Registry
	diag     *diag.Collectors

	seekGateOpen atomic.Bool

	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}

	events chan events.Event

	eof                  atomic.Bool
	wasPlayingBeforeSeek atomic.Bool
	seekStartedAt        atomic.Int64 // UnixNano, for diag.Collectors.SeekLatency
	disposeOnce          sync.Once
}

// New allocates an idle Context. Call Prepare to open a file.
func New(token int, logger Logger, opts Options) *Context {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Context{
		token:   token,
		logger:  logger,
		options: opts,
		fsm:     lifecycle.New(),
		events:  make(chan events.Event, 64),
	}
}

// Events returns the channel the host drains for wire events (spec.md
// §6/§9: "the engine never calls back into host code directly").
func (c *Context) Events() <-chan events.Event { return c.events }

func (c *Context) emit(e events.Event) {
	if c.fsm.DisposeInProgress() {
		return
	}
	e.Token = c.token
	select {
	case c.events <- e:
	default:
		c.logger.Printf("[engine:%d] events channel full, dropping %s", c.token, e.Type)
	}
}

// Prepare opens videoFilename, wires every internal package, and starts
// the supervised goroutine pipeline (spec.md §4.10, §5).
func (c *Context) Prepare(videoFilename string) error {
	if err := c.fsm.Prepare(); err != nil {
		return err
	}

	media, err := reisen.NewMedia(videoFilename)
	if err != nil {
		return newErr(KindOpenFailed, "open media", err)
	}

	videoStreams := media.VideoStreams()
	audioStreams := media.AudioStreams()
	if len(videoStreams) == 0 {
		return newErr(KindOpenFailed, "no video stream", ErrNoVideo)
	}
	if len(videoStreams) > 1 {
		c.logger.Printf("[engine:%d] WARNING: '%s' has multiple video streams; defaulting to the first", c.token, filepath.Base(videoFilename))
	}
	videoStream := videoStreams[0]

	hasAudio := len(audioStreams) > 0 && !c.options.IgnoreAudio
	var audioStream *reisen.AudioStream
	if hasAudio {
		if len(audioStreams) > 1 {
			c.logger.Printf("[engine:%d] WARNING: '%s' has multiple audio streams; defaulting to the first", c.token, filepath.Base(videoFilename))
		}
		audioStream = audioStreams[0]
	}

	videoDuration, err := videoStream.Duration()
	if err != nil {
		return newErr(KindOpenFailed, "video duration", err)
	}
	duration := videoDuration
	if hasAudio {
		if audioDuration, err := audioStream.Duration(); err == nil && audioDuration > duration {
			duration = audioDuration
		}
	}

	if decode.IsHardwareAccelBlacklisted(codecNameOf(videoStream)) {
		c.logger.Printf("[engine:%d] hardware decoder acceleration skipped for blacklisted codec", c.token)
	}

	c.media = media
	c.videoStream = videoStream
	c.audioStream = audioStream
	c.hasAudio = hasAudio
	c.videoIndex = videoStream.Index()
	c.duration = duration

	c.videoPackets = queue.NewPacketQueue()
	c.videoFrames = queue.NewFrameQueue()
	if hasAudio {
		c.audioIndex = audioStream.Index()
		c.audioPackets = queue.NewPacketQueue()
		c.audioFrames = queue.NewFrameQueue()
	}

	c.audioClock = &clock.AudioClock{}
	c.videoClock = &clock.VideoClock{}
	c.sync = avsync.NewForPrepare(hasAudio, c.audioClock, c.videoClock)
	c.speedClock = clock.New()
	c.speedClock.Set(0)
	c.speedClock.Pause(true)

	c.registry = prometheus.NewRegistry()
	c.diag = diag.New(c.registry)

	if err := c.openAudioSink(); err != nil {
		return err
	}

	c.seekCtrl = seek.New(&c.epoch, c.videoPackets, c.audioPackets, c.videoFrames, c.audioFrames,
		c.audioClock, c.videoClock, containerSeeker{videoStream}, c.pauseAudioForSeek, c.resumeAudioForSeek,
		c.closeSeekGate, c.openSeekGate, c.options.AvoidKeyframeOnly)

	c.scheduler = render.NewScheduler(c.videoFrames, c.videoClock, c.sync,
		c.epoch.Load, c.isPlaying, c.isPaused, c.seekCtrl.TargetAndInProgress,
		c.onFirstFrame, c.onSeekFirstFrame, c.onSwap, c.onDrop)
	c.scheduler.FitMode = c.options.FitMode
	c.scheduler.Interp = c.options.Interpolation

	c.stallWD = watchdog.NewStallWatchdog(c.sync.MasterClockNow, c.stallEligible, c.audioWaitingFirstFrame, c.onStall)
	c.seekWD = watchdog.NewSeekWatchdog(c.onSeekTimeout)

	c.openSeekGate()
	c.fsm.MarkOpened()

	ctx, cancel := context.WithCancel(context.Background())
	c.groupCtx = ctx
	c.cancel = cancel
	c.group, c.groupCtx = errgroup.WithContext(ctx)
	c.stopCh = make(chan struct{})

	if err := media.OpenDecode(); err != nil {
		return newErr(KindOpenFailed, "open decode", err)
	}
	if err := videoStream.Open(); err != nil {
		return newErr(KindOpenFailed, "open video stream", err)
	}
	videoDecoder := decode.NewVideoDecoder(videoStream, c.videoPackets, c.videoFrames, &c.epoch, c.seekCtrl.DropVideoFrame,
		func(payload decode.VideoPayload) { c.scheduler.ParkFirstFrame(payload) })
	if hasAudio {
		if err := audioStream.Open(); err != nil {
			return newErr(KindOpenFailed, "open audio stream", err)
		}
	}

	demuxer := decode.NewDemuxer(media, c.videoIndex, c.audioIndex, hasAudio, c.videoPackets, c.audioPackets, &c.epoch, c.fsm.AVSyncGateOpen, c.onEOF)

	c.group.Go(func() error { return demuxer.Run(c.stopCh) })
	c.group.Go(func() error { return c.runDecoder("video decoder", "video", videoDecoder.Run) })
	if hasAudio {
		audioDecoder := decode.NewAudioDecoder(audioStream, c.audioPackets, c.audioFrames, &c.epoch)
		c.group.Go(func() error { return c.runDecoder("audio decoder", "audio", audioDecoder.Run) })
	}
	c.group.Go(func() error { c.stallWD.Run(c.stopCh); return nil })
	c.group.Go(func() error { c.seekWD.Run(c.stopCh); return nil })
	if hasAudio {
		c.group.Go(func() error { c.runAudioStallCheck(c.stopCh); return nil })
	}

	// A dedicated watcher surfaces the first fatal pipeline error as a live
	// lifecycle transition + events.Error while the engine keeps running;
	// Dispose's own group.Wait() still observes the same cached error
	// (errgroup records it once via sync.Once) without double-reporting.
	go func() {
		if err := c.group.Wait(); err != nil {
			c.onFatalError(err)
		}
	}()

	if !c.fsm.PreparedEmitted() {
		c.emit(events.Event{Type: events.Prepared, HasAudio: hasAudio})
		c.emit(events.Event{Type: events.Duration, Duration: c.duration.Milliseconds()})
	}

	if shouldAutoPlay := c.fsm.OpenAVSyncGate(); shouldAutoPlay {
		c.startPlayback()
	}
	if c.fsm.MarkDecodeStarted() {
		c.emit(events.Event{Type: events.DecodeStarted})
	}
	return nil
}

// runAudioStallCheck polls audioio.Renderer.CheckStall on the same cadence
// as the master-clock stall watchdog (spec.md §4.6's audio-specific 500ms
// no-advance rule, distinct from §4.9's master-clock rule the stall
// watchdog already covers).
func (c *Context) runAudioStallCheck(stopCh <-chan struct{}) {
	ticker := time.NewTicker(watchdog.StallCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if c.audioRenderer != nil {
				c.audioRenderer.CheckStall(c.isPlaying())
			}
		}
	}
}

func runAndLog(logger Logger, token int, name string, fn func() error) error {
	err := fn()
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Printf("[engine:%d] %s stopped: %v", token, name, err)
		return err
	}
	return nil
}

// runDecoder wraps runAndLog with a diag.Collectors observation so the
// decode_errors_total metric reflects which stream (video/audio) actually
// failed, not just that the pipeline did.
func (c *Context) runDecoder(name, streamKind string, fn func() error) error {
	err := runAndLog(c.logger, c.token, name, fn)
	if err != nil {
		c.diag.ObserveDecodeError(streamKind)
	}
	return err
}

func codecNameOf(*reisen.VideoStream) string {
	// reisen's public Go surface (as consumed by the teacher) does not
	// expose a codec-name accessor; the blacklist check is wired against
	// whatever the host configures via Options in a future revision.
	// Left empty so IsHardwareAccelBlacklisted's default (false) applies.
	return ""
}

type containerSeeker struct{ stream *reisen.VideoStream }

func (s containerSeeker) SeekBackward(target time.Duration) error {
	return s.stream.Rewind(target)
}

func (c *Context) openAudioSink() error {
	if !c.hasAudio {
		return nil
	}
	audioContext := audio.CurrentContext()
	if audioContext == nil {
		c.logger.Printf("[engine:%d] no ebiten audio context; playing video-only", c.token)
		c.hasAudio = false
		return nil
	}
	if audioContext.SampleRate() != c.audioStream.SampleRate() {
		c.logger.Printf("[engine:%d] WARNING: context sample rate = %d, stream sample rate = %d", c.token, audioContext.SampleRate(), c.audioStream.SampleRate())
		c.hasAudio = false
		return nil
	}

	c.audioSink = &ebitenSink{}
	c.audioRenderer = audioio.NewRenderer(c.audioFrames, c.audioClock, c.audioSink, c.epoch.Load, c.onAudioStoppedBySystem)

	player, err := audioContext.NewPlayer(&struct{ io.Reader }{c.audioRenderer})
	if err != nil {
		return newErr(KindOpenFailed, "create audio player", err)
	}
	player.SetBufferSize(audioio.AudioPlayerBufferSize)
	c.audioSink.player = player
	return nil
}

// --- gate/state callbacks wired into the sub-packages above ---

func (c *Context) isPlaying() bool { return c.fsm.State() == lifecycle.Playing }
func (c *Context) isPaused() bool  { return c.fsm.State() == lifecycle.Paused }

func (c *Context) closeSeekGate() {
	c.seekGateOpen.Store(false)
	c.fsm.BeginSeek()
	c.seekWD.Arm()
	c.seekStartedAt.Store(time.Now().UnixNano())
	// Pin master to Video for the whole seek, not just the instant the
	// first post-seek frame lands: ResolvePostSeekMaster in
	// onSeekFirstFrame is what ends this window.
	c.sync.ForceVideoAfterSeek()
	c.emit(events.Event{Type: events.Paused, Reason: "seek"})
}

func (c *Context) openSeekGate() { c.seekGateOpen.Store(true) }

func (c *Context) pauseAudioForSeek() {
	if c.audioRenderer != nil {
		c.audioRenderer.PauseSink()
	}
}

func (c *Context) resumeAudioForSeek() {
	if c.audioRenderer != nil && c.isPlaying() {
		_ = c.audioRenderer.Start()
	}
}

func (c *Context) onFirstFrame() {
	if c.fsm.MarkFirstFrame() {
		c.emit(events.Event{Type: events.FirstFrame})
	}
	c.diag.Swaps.Inc()
}

func (c *Context) onSeekFirstFrame() {
	c.seekWD.Disarm()
	if started := c.seekStartedAt.Load(); started != 0 {
		c.diag.SeekLatency.Observe(time.Since(time.Unix(0, started)).Seconds())
	}
	resumeToPlaying := c.fsm.SeekInProgress() && c.pendingResumeToPlaying()
	c.fsm.CompleteSeek(resumeToPlaying)
	c.seekCtrl.Complete()
	c.sync.ResolvePostSeekMaster(c.audioHealthy())
	c.emit(events.Event{Type: events.FirstFrameAfterSeek})
	c.diag.Swaps.Inc()
}

func (c *Context) pendingResumeToPlaying() bool {
	return c.wasPlayingBeforeSeek.Load()
}

func (c *Context) onSwap(pts time.Duration) {
	c.emit(events.Event{Type: events.Position, PTS: pts.Milliseconds()})
	c.diag.VideoQueueDepth.Set(float64(c.videoFrames.Size()))
	if c.hasAudio && c.audioRenderer != nil {
		drift := c.sync.Drift(pts)
		c.diag.DriftSeconds.Observe(drift.Seconds())
		// alpha=0.1 exponential smoothing, same constant audioio.Renderer
		// itself uses nowhere else (the caller owns the smoothing cadence).
		c.audioRenderer.ObserveDrift(drift, 0.1)
		if ratio := c.audioRenderer.ResampleRatio(); ratio != 1.0 {
			c.emit(events.Event{Type: events.Diagnostic, DiagKey: "audioResampleRatio", DiagVal: ratio})
		}
	}
	c.diag.VideoQueueBytes.Set(float64(c.videoPackets.Size()))
	if c.videoPackets.OverBudget() {
		c.emit(events.Event{Type: events.Diagnostic, DiagKey: "videoPacketQueueOverBudget", DiagVal: 1})
	}
	if c.videoFrames.IsFull() {
		c.emit(events.Event{Type: events.Diagnostic, DiagKey: "videoFrameQueueFull", DiagVal: 1})
	}
	if c.hasAudio && c.audioFrames != nil {
		c.diag.AudioQueueDepth.Set(float64(c.audioFrames.Size()))
		c.diag.AudioQueueBytes.Set(float64(c.audioPackets.Size()))
	}
}

// onDrop forwards the render scheduler's drop reason to the drop_total
// metric, keyed the same way diag.DropReason's constants are spelled.
func (c *Context) onDrop(reason string) {
	c.diag.ObserveDrop(diag.DropReason(reason))
	if diag.DropReason(reason) == diag.DropReasonHardResync {
		c.diag.HardResyncs.Inc()
	}
}

func (c *Context) onEOF() {
	if c.eof.Swap(true) {
		return
	}
	if shouldEmit := c.fsm.OnEOF(); shouldEmit {
		c.emit(events.Event{Type: events.PlaybackCompleted})
	}
}

func (c *Context) onStall() {
	c.diag.StallsTotal.Inc()
	c.emit(events.Event{Type: events.Error, Reason: KindClockStall.String(), Message: "master clock stalled"})
}

func (c *Context) onSeekTimeout() {
	c.emit(events.Event{Type: events.Error, Reason: KindSeekDeadlock.String(), Message: "firstFrameAfterSeek deadline exceeded"})
}

func (c *Context) onAudioStoppedBySystem() {
	c.diag.AudioStallsTotal.Inc()
	c.sync.SetAudioHealthy(false)
	c.emit(events.Event{Type: events.AudioState, State: audioio.StoppedBySystem.String()})
}

// onFatalError reacts to the first pipeline goroutine (demuxer/decoder)
// returning a non-nil, non-EOF error: it transitions the lifecycle FSM to
// Error and emits the corresponding wire events (spec.md §7: "paused is
// emitted iff the engine was actually Playing at the time of the error").
func (c *Context) onFatalError(err error) {
	wasPlaying := c.fsm.OnError()
	c.emit(events.Event{Type: events.Error, Reason: KindDecodeFailed.String(), Message: err.Error()})
	if wasPlaying {
		c.emit(events.Event{Type: events.Paused, Reason: "error"})
	}
}

func (c *Context) audioHealthy() bool {
	return c.hasAudio && c.audioRenderer != nil && c.audioRenderer.State() != audioio.StoppedBySystem && c.audioRenderer.State() != audioio.Dead
}

func (c *Context) stallEligible() bool {
	return c.isPlaying() && c.fsm.FirstFrameShown() && !c.eof.Load() && !c.sync.Recovering()
}

func (c *Context) audioWaitingFirstFrame() bool {
	return c.hasAudio && !c.fsm.FirstFrameShown()
}

// --- host-facing operations (spec.md §7) ---

func (c *Context) startPlayback() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err := c.fsm.Play(); err != nil {
		return
	}
	c.speedClock.Pause(false)
	if c.hasAudio && c.audioRenderer != nil {
		_ = c.audioRenderer.Start()
	}
	c.emit(events.Event{Type: events.PlayStarted})
}

// Play requests playback (spec.md §7 play()): accepted immediately
// (playAccepted), but only takes visible effect once the AVSync gate is
// open.
func (c *Context) Play() error {
	c.emit(events.Event{Type: events.PlayAccepted})
	if err := c.fsm.Play(); errors.Is(err, lifecycle.ErrGateNotOpen) {
		return nil
	}
	c.speedClock.Pause(false)
	if c.hasAudio && c.audioRenderer != nil {
		_ = c.audioRenderer.Start()
	}
	c.emit(events.Event{Type: events.PlayStarted})
	return nil
}

// Pause requests playback to pause; idempotent.
func (c *Context) Pause() {
	c.fsm.Pause()
	c.speedClock.Pause(true)
	if c.hasAudio && c.audioRenderer != nil {
		c.audioRenderer.PauseSink()
	}
	c.emit(events.Event{Type: events.Paused, Reason: "user"})
}

// Seek requests a seek to target, per spec.md §4.8/§7. speedClock is
// reset here too (clock.Clock.Reset's documented exclusive caller),
// keeping the pre-first-post-seek-frame position estimate continuous.
func (c *Context) Seek(target time.Duration, exact bool) {
	c.wasPlayingBeforeSeek.Store(c.isPlaying())
	c.speedClock.Reset(target)
	c.seekCtrl.Request(target, c.duration, exact)
}

// SetSpeed adjusts the nominal playback speed (spec.md §7). AudioClock
// and VideoClock themselves don't extrapolate by speed (audio is driven
// by the sink's real sample rate; video only ever reports the pts of the
// last swapped frame), so speed has no direct effect on either once
// frames are flowing — but speedClock keeps GetPosition continuous
// during buffering/seeking, when neither clock is valid yet.
func (c *Context) SetSpeed(speed float64) {
	c.speedClock.SetSpeed(speed)
}

// Speed returns the current nominal speed multiplier.
func (c *Context) Speed() float64 { return c.speedClock.Speed() }

// StepFrame advances exactly one video frame while paused (spec.md §4.10
// frame-step mode, recovered from the teacher's NextVideoFrame TODO).
func (c *Context) StepFrame() error {
	if c.isPlaying() {
		return errors.New("avplay: frame step requires paused state")
	}
	c.fsm.EnterFrameStep()
	defer c.fsm.ExitFrameStep()
	if f, ok := c.videoFrames.Peek(); ok {
		c.videoFrames.Advance()
		c.emit(events.Event{Type: events.FrameStepped, PTS: f.PTS.Milliseconds()})
	}
	return nil
}

// OnAppBackground stops the render loop while decode and audio continue
// (spec.md §7 step 5): video_clock freezes since the scheduler no longer
// swaps, and master moves to Audio when audio is healthy.
func (c *Context) OnAppBackground() {
	c.fsm.OnAppBackground()
	if c.hasAudio {
		c.sync.SetAudioHealthy(c.audioHealthy())
	}
}

// OnAppForeground resumes the render loop on the next surface re-attach;
// firstFrame is not re-emitted (spec.md §7 step 5).
func (c *Context) OnAppForeground() {
	c.fsm.OnAppForeground()
}

// SetInterpolationMode updates the render scheduler's interpolation
// policy.
func (c *Context) SetInterpolationMode(mode render.InterpolationMode) {
	if c.scheduler != nil {
		c.scheduler.Interp = mode
	}
}

// SetFitMode updates the render scheduler's projection fit mode.
func (c *Context) SetFitMode(mode render.FitMode) {
	if c.scheduler != nil {
		c.scheduler.FitMode = mode
	}
}

// SetColorMatrix updates the YUV->RGB matrix metadata the scheduler
// forwards as a render uniform placeholder (SPEC_FULL.md's colour-space
// contract; no shader text is specified here, per spec.md §1's non-goal
// on colour management beyond matrix selection).
func (c *Context) SetColorMatrix(matrix render.ColorMatrix) {
	if c.scheduler != nil {
		c.scheduler.ColorMatrix = matrix
	}
}

// SetHDR toggles the HDR tone-mapping uniform placeholder (SPEC_FULL.md
// Open Question decision (c): a flag the scheduler only forwards, not
// scheduler logic).
func (c *Context) SetHDR(enabled bool) {
	if c.scheduler != nil {
		c.scheduler.HDR = enabled
	}
}

// AttachSurface binds the GPU surface the render scheduler draws into.
func (c *Context) AttachSurface(surface *ebiten.Image) {
	if c.scheduler != nil {
		c.scheduler.AttachSurface(surface)
		c.emit(events.Event{Type: events.SurfaceReady})
	}
}

// DetachSurface clears the render target (host surface lost, spec.md
// §7's SurfaceLost path); decode/audio continue uninterrupted.
func (c *Context) DetachSurface() {
	if c.scheduler != nil {
		c.scheduler.AttachSurface(nil)
	}
	c.emit(events.Event{Type: events.EGLContextLost})
}

// RegisterTexture re-attaches a freshly (re)created surface after a
// context loss, emitting surfaceReplaced instead of surfaceReady.
func (c *Context) RegisterTexture(surface *ebiten.Image) {
	if c.scheduler != nil {
		c.scheduler.AttachSurface(surface)
	}
	c.emit(events.Event{Type: events.SurfaceReplaced})
}

// GetPosition returns the current playback position: the master clock
// while it is valid, otherwise speedClock's pause/speed-continuous
// wall-clock estimate (covers the window between prepare/seek and the
// first decoded frame, when neither AudioClock nor VideoClock has been
// written to yet).
func (c *Context) GetPosition() time.Duration {
	if c.sync == nil {
		return 0
	}
	masterValid := (c.sync.Master() == avsync.MasterAudio && c.audioClock.Valid()) ||
		(c.sync.Master() == avsync.MasterVideo && c.videoClock.Valid())
	if masterValid {
		return c.sync.MasterClockNow()
	}
	if !c.speedClock.IsActive() {
		return 0
	}
	return c.speedClock.Now()
}

// GetDuration returns the opened media's duration.
func (c *Context) GetDuration() time.Duration { return c.duration }

// HasAudio reports whether the prepared media has (usable) audio.
func (c *Context) HasAudio() bool { return c.hasAudio }

// Tick drives one vsync iteration of the render scheduler; the host calls
// this from its per-frame update loop (spec.md §5's "present-time loop").
func (c *Context) Tick() bool {
	if c.scheduler == nil {
		return false
	}
	gateOpen := c.fsm.AVSyncGateOpen() && c.fsm.Mode() != lifecycle.ModeAudioOnly
	preparedOK := c.fsm.State() != lifecycle.Error && c.fsm.State() != lifecycle.Disposed
	swapped := c.scheduler.Tick(gateOpen, preparedOK)
	if !swapped {
		c.diag.Holds.Inc()
	}
	return swapped
}

// BlackFrame returns a black-fill placeholder sized to the video
// stream's resolution, for use before the first frame decodes (mirrors
// player.go's onBlackFrame image).
func (c *Context) BlackFrame() *ebiten.Image {
	if c.videoStream == nil {
		return render.BlackFill(1, 1)
	}
	return render.BlackFill(c.videoStream.Width(), c.videoStream.Height())
}

// Resolution returns the video stream's pixel dimensions.
func (c *Context) Resolution() (int, int) {
	if c.videoStream == nil {
		return 0, 0
	}
	return c.videoStream.Width(), c.videoStream.Height()
}

// Dispose tears the session down per spec.md §4.10's dispose sequence:
// close gates, abort every queue so blocked goroutines wake, cancel the
// errgroup's context, join, then release the reisen handles.
func (c *Context) Dispose() error {
	var err error
	c.disposeOnce.Do(func() {
		c.fsm.BeginDispose()
		close(c.stopCh)

		if c.videoPackets != nil {
			c.videoPackets.Abort()
		}
		if c.audioPackets != nil {
			c.audioPackets.Abort()
		}
		if c.videoFrames != nil {
			c.videoFrames.Abort()
		}
		if c.audioFrames != nil {
			c.audioFrames.Abort()
		}
		if c.cancel != nil {
			c.cancel()
		}
		if c.group != nil {
			if werr := c.group.Wait(); werr != nil && !errors.Is(werr, io.EOF) {
				c.logger.Printf("[engine:%d] pipeline goroutine error during dispose: %v", c.token, werr)
				err = newErr(KindDecodeFailed, "pipeline goroutine", werr)
			}
		}

		if c.audioSink != nil {
			if serr := c.audioSink.Stop(); serr != nil && err == nil {
				err = newErr(KindInternal, "close audio sink", serr)
			}
		}
		if c.videoStream != nil {
			if serr := c.videoStream.Close(); serr != nil && err == nil {
				err = newErr(KindInternal, "close video stream", serr)
			}
		}
		if c.audioStream != nil {
			if serr := c.audioStream.Close(); serr != nil && err == nil {
				err = newErr(KindInternal, "close audio stream", serr)
			}
		}
		if c.media != nil {
			c.media.Close()
		}

		c.fsm.CompleteDispose()
		close(c.events)
	})
	return err
}
