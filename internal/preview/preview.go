// Package preview implements the stateless preview extractor (C11):
// open, backward-seek near a target timestamp, decode forward until the
// first frame at-or-after the target, scale to the requested size, and
// return RGBA8888 bytes. Unlike every other package here, a call to
// Extract owns its own reisen.Media end to end and never touches an
// EngineContext, an AVSync gate, or any goroutine — it is a one-shot,
// synchronous CPU-only path, per spec.md §4.11 and grounded directly on
// original_source/.../native_preview.c's native_preview_get_frame,
// which makes the same independence explicit ("Preview pipeline is
// completely independent from PlayerContext: no EGL/Surface, no render
// loop, no threads, no AVSYNC gate, CPU-only decode").
package preview

import (
	"errors"
	"fmt"
	"time"

	"github.com/erparts/reisen"
)

// minTargetOffset mirrors native_preview.c's clamp: target_ms <= 0 is
// bumped to 100ms because most containers fail to decode a frame at the
// very first timestamp.
const minTargetOffset = 100 * time.Millisecond

// seekLookback is how far before the target we seek backward to, so the
// forward decode loop has a keyframe to start from (native_preview.c's
// "-1.0 second" offset).
const seekLookback = time.Second

// maxDecodeAttempts bounds the forward-decode loop (native_preview.c's
// max_decode_attempts guard against runaway loops on malformed streams).
const maxDecodeAttempts = 100

var (
	ErrNoVideoStream  = errors.New("preview: no video stream in container")
	ErrFrameNotFound  = errors.New("preview: no frame found at or after target within decode attempt budget")
	ErrBufferTooSmall = errors.New("preview: output buffer too small")
)

// Extract opens path, seeks near targetMS, decodes forward until the
// first frame at or after targetMS, scales it to w x h, and returns
// RGBA8888 bytes (w*h*4 long). It opens and closes its own container on
// every call; no state survives across calls.
func Extract(path string, targetMS int64, w, h int) ([]byte, error) {
	if targetMS <= 0 {
		targetMS = minTargetOffset.Milliseconds()
	}
	target := time.Duration(targetMS) * time.Millisecond

	media, err := reisen.NewMedia(path)
	if err != nil {
		return nil, fmt.Errorf("preview: open %q: %w", path, err)
	}
	defer media.Close()

	videoStreams := media.VideoStreams()
	if len(videoStreams) == 0 {
		return nil, ErrNoVideoStream
	}
	stream := videoStreams[0]

	if err := stream.Open(); err != nil {
		return nil, fmt.Errorf("preview: open video stream: %w", err)
	}
	defer stream.Close()

	if err := media.OpenDecode(); err != nil {
		return nil, fmt.Errorf("preview: open decode: %w", err)
	}

	seekTo := target - seekLookback
	if seekTo < 0 {
		seekTo = 0
	}
	// always backward: a container like AVI/FLV has sparse keyframes, and
	// seeking exactly to target risks landing on a non-keyframe / black
	// frame (native_preview.c step 4).
	if err := stream.Rewind(seekTo); err != nil {
		// non-fatal: fall through and decode from wherever the stream is.
		_ = err
	}

	frNum, frDenom := stream.FrameRate()
	fpsGuess := 25.0
	if frNum > 0 && frDenom > 0 {
		fpsGuess = float64(frNum) / float64(frDenom)
	}

	var found *reisen.VideoFrame
	decodedIndex := 0
	for attempts := 0; attempts < maxDecodeAttempts; attempts++ {
		packet, gotPacket, err := media.ReadPacket()
		if err != nil {
			return nil, fmt.Errorf("preview: read packet: %w", err)
		}
		if !gotPacket {
			break
		}
		if packet.Type() != reisen.StreamVideo || packet.StreamIndex() != stream.Index() {
			continue
		}

		frame, gotFrame, err := stream.ReadVideoFrame()
		if err != nil {
			return nil, fmt.Errorf("preview: decode frame: %w", err)
		}
		if !gotFrame {
			continue
		}
		decodedIndex++

		pts, err := framePTS(frame, decodedIndex, fpsGuess)
		if err != nil || pts < 0 {
			continue
		}
		if pts >= target {
			found = frame
			break
		}
	}

	if found == nil {
		return nil, ErrFrameNotFound
	}

	return scalePixels(found.Data(), stream.Width(), stream.Height(), w, h)
}

// framePTS mirrors native_preview.c's 3-tier PTS fallback: the frame's
// own presentation offset, else (reisen always resolves
// best_effort_timestamp internally) a frame-index/fps_guess estimate.
func framePTS(frame *reisen.VideoFrame, decodedIndex int, fpsGuess float64) (time.Duration, error) {
	pts, err := frame.PresentationOffset()
	if err == nil && pts >= 0 {
		return pts, nil
	}
	return fallbackPTS(decodedIndex, fpsGuess), nil
}

// fallbackPTS estimates a frame's timestamp from its decode order when
// neither pts nor best_effort_timestamp is available (VFR/broken-
// timestamp streams), matching native_preview.c's frame_index/fps_guess
// fallback.
func fallbackPTS(decodedIndex int, fpsGuess float64) time.Duration {
	if fpsGuess <= 0 {
		fpsGuess = 25.0
	}
	return time.Duration(float64(decodedIndex) / fpsGuess * float64(time.Second))
}

// scalePixels resizes an RGBA8888 buffer of srcW x srcH to w x h using
// nearest-neighbor sampling. native_preview.c uses libswscale's bilinear
// scaler; the Go side has no equivalent CPU scaler in the domain stack
// (reisen only decodes, ebiten's scaling is GPU-side and would violate
// the CPU-only/no-surface constraint this package exists to guarantee),
// so this is stdlib-only by necessity, not oversight.
func scalePixels(src []byte, srcW, srcH, w, h int) ([]byte, error) {
	required := w * h * 4
	if required <= 0 {
		return nil, ErrBufferTooSmall
	}
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("preview: invalid source frame dimensions %dx%d", srcW, srcH)
	}
	if len(src) < srcW*srcH*4 {
		return nil, fmt.Errorf("preview: source buffer shorter than %dx%d RGBA8888", srcW, srcH)
	}

	out := make([]byte, required)
	for y := 0; y < h; y++ {
		sy := y * srcH / h
		for x := 0; x < w; x++ {
			sx := x * srcW / w
			srcOff := (sy*srcW + sx) * 4
			dstOff := (y*w + x) * 4
			copy(out[dstOff:dstOff+4], src[srcOff:srcOff+4])
		}
	}
	return out, nil
}

