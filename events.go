package avplay

import "github.com/erparts/avplay/internal/events"

// EventType identifies the shape of an [Event] (spec.md §6).
type EventType = events.Type

const (
	EventPrepared            = events.Prepared
	EventDuration             = events.Duration
	EventSurfaceReady        = events.SurfaceReady
	EventSurfaceReplaced     = events.SurfaceReplaced
	EventFirstFrame          = events.FirstFrame
	EventFirstFrameAfterSeek = events.FirstFrameAfterSeek
	EventFrameStepped        = events.FrameStepped
	EventDecodeStarted       = events.DecodeStarted
	EventPlayAccepted        = events.PlayAccepted
	EventPlayStarted         = events.PlayStarted
	EventPaused              = events.Paused
	EventPlaybackCompleted   = events.PlaybackCompleted
	EventAudioState          = events.AudioState
	EventError               = events.Error
	EventEGLContextLost      = events.EGLContextLost
	EventDiagnostic          = events.Diagnostic
	EventPosition            = events.Position
)

// Event is the wire payload the engine emits to the host, drained from
// [Player.Events]. The engine never calls back into host code directly
// (spec.md §9): this channel is the only callback mechanism.
type Event = events.Event
