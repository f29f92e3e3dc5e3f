package avplay

import "github.com/erparts/avplay/internal/lifecycle"

// PlaybackState mirrors internal/lifecycle.State (spec.md §3), extended
// from erparts-go-avebi's 3-value Stopped/Playing/Paused enum to the full
// C10 state graph.
type PlaybackState = lifecycle.State

const (
	Idle      = lifecycle.Idle
	Preparing = lifecycle.Preparing
	Ready     = lifecycle.Ready
	Playing   = lifecycle.Playing
	Paused    = lifecycle.Paused
	Seeking   = lifecycle.Seeking
	Buffering = lifecycle.Buffering
	Eof       = lifecycle.Eof
	Error     = lifecycle.Error
	Disposed  = lifecycle.Disposed
)

// PlaybackMode mirrors internal/lifecycle.Mode.
type PlaybackMode = lifecycle.Mode

const (
	ModeAV        = lifecycle.ModeAV
	ModeAudioOnly = lifecycle.ModeAudioOnly
	ModeFrameStep = lifecycle.ModeFrameStep
)
