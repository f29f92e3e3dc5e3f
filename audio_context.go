package avplay

import (
	"errors"

	"github.com/erparts/reisen"
	"github.com/hajimehoshi/ebiten/v2/audio"
)

var ErrNoAudio error = errors.New("media contains no audio")
var ErrNonNilAudioContext = errors.New("audio context already initialized")

// CreateAudioContextForMedia creates an ebitengine audio context sized to
// match videoFilename's audio stream sample rate. Call this once, before
// constructing any [Player] for a file with audio: the engine's audio
// sink only activates when audio.CurrentContext() already exists and its
// sample rate matches the opened stream (internal/engine.openAudioSink).
func CreateAudioContextForMedia(videoFilename string) error {
	if audio.CurrentContext() != nil {
		return ErrNonNilAudioContext
	}

	sampleRate, err := GetMediaAudioSampleRate(videoFilename)
	if err != nil {
		return err
	}
	_ = audio.NewContext(sampleRate)
	return nil
}

// GetMediaAudioSampleRate returns videoFilename's first audio stream's
// sample rate. If the media has no audio, [ErrNoAudio] is returned.
func GetMediaAudioSampleRate(videoFilename string) (int, error) {
	container, err := reisen.NewMedia(videoFilename)
	if err != nil {
		return 0, err
	}

	audioStreams := container.AudioStreams()
	if len(audioStreams) == 0 {
		return 0, ErrNoAudio
	}

	return audioStreams[0].SampleRate(), nil
}
