package avplay

import (
	"errors"
	"testing"
)

func TestDefaultOptionsMatchesEngineDefaults(t *testing.T) {
	opts := DefaultOptions()
	if opts.FitMode != FitContain {
		t.Errorf("expected FitContain, got %v", opts.FitMode)
	}
	if opts.Interpolation != InterpolationAuto {
		t.Errorf("expected InterpolationAuto, got %v", opts.Interpolation)
	}
}

func TestPlayerErrorReexportsUnwrapToCause(t *testing.T) {
	cause := errors.New("boom")
	err := &PlayerError{Kind: KindOpenFailed, Message: "open media", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to unwrap through the re-exported PlayerError type")
	}
}

func TestPlaybackStateStringsAreDistinct(t *testing.T) {
	states := []PlaybackState{Idle, Preparing, Ready, Playing, Paused, Seeking, Buffering, Eof, Error, Disposed}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		if seen[str] {
			t.Errorf("duplicate PlaybackState.String() value %q", str)
		}
		seen[str] = true
	}
}

func TestColorMatrixConstantsAreDistinct(t *testing.T) {
	matrices := []ColorMatrix{ColorMatrixBT601, ColorMatrixBT709, ColorMatrixBT2020}
	seen := make(map[ColorMatrix]bool)
	for _, m := range matrices {
		if seen[m] {
			t.Errorf("duplicate ColorMatrix value %v", m)
		}
		seen[m] = true
	}
}

func TestGetPreviewFrameRejectsMissingFile(t *testing.T) {
	if _, err := GetPreviewFrame("/nonexistent/path/to/video.mp4", 1000, 64, 64); err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
}
