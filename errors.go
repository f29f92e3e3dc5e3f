package avplay

import "github.com/erparts/avplay/internal/engine"

// A collection of initialization errors defined by this package for
// [NewPlayer]/[NewPlayerWithoutAudio], matching erparts-go-avebi's own
// sentinel set. Other format-specific errors from the underlying
// container library are also possible.
var ErrNoVideo = engine.ErrNoVideo

// Kind is the spec.md §7 PlayerError taxonomy.
type Kind = engine.Kind

const (
	KindInternal     = engine.KindInternal
	KindOpenFailed   = engine.KindOpenFailed
	KindDecodeFailed = engine.KindDecodeFailed
	KindSurfaceLost  = engine.KindSurfaceLost
	KindClockStall   = engine.KindClockStall
	KindSeekDeadlock = engine.KindSeekDeadlock
	KindAudioDead    = engine.KindAudioDead
)

// PlayerError is the single error cell §7 describes: set once, shot
// once, wrapping a [Kind] plus the underlying cause (errors.Is/As work
// through Unwrap).
type PlayerError = engine.PlayerError
