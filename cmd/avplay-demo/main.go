// Command avplay-demo is a minimal ebiten player driven by the avplay
// engine, adapted from erparts-go-avebi's examples/mediaplayer/main.go:
// the CLI/window bootstrap and transport-bar GUI are kept, generalized
// to the surface-attach/Tick present-time loop instead of the teacher's
// CurrentFrame()-pull model, and wired to the events channel instead of
// a synchronous State() poll.
package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/erparts/avplay"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: go run main.go path/to/video.mp4\n")
		os.Exit(1)
	}

	path, err := filepath.Abs(os.Args[1])
	if err != nil {
		panic(err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("'%s' not found.", path)
			os.Exit(1)
		}
		panic(err)
	}

	if err := avplay.CreateAudioContextForMedia(path); err != nil && !errors.Is(err, avplay.ErrNoAudio) {
		panic(err)
	}

	const demoToken = 1
	videoPlayer, err := avplay.NewPlayer(path, demoToken, avplay.DefaultOptions())
	if err != nil {
		panic(err)
	}
	if err := videoPlayer.Play(); err != nil {
		panic(err)
	}

	ebiten.SetWindowTitle("avplay/demo")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(1280, 720)

	app := &demo{
		videoPath:   path,
		videoPlayer: videoPlayer,
		duration:    videoPlayer.GetDuration(),
	}
	if err := ebiten.RunGame(app); err != nil {
		panic(err)
	}
}

type demo struct {
	videoPath   string
	videoPlayer *avplay.Player
	surface     *ebiten.Image

	lastPosition time.Duration
	duration     time.Duration
	lastError    error
	playing      bool
}

func (d *demo) Layout(_, _ int) (int, int) {
	panic("Layout() should not be called when LayoutF() exists")
}

func (d *demo) LayoutF(w, h float64) (float64, float64) {
	scaleFactor := ebiten.Monitor().DeviceScaleFactor()
	return w * scaleFactor, h * scaleFactor
}

func (d *demo) Update() error {
	d.drainEvents()
	if d.lastError != nil {
		return d.lastError
	}
	d.lastPosition = d.videoPlayer.GetPosition()

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if err := d.videoPlayer.Close(); err != nil {
			return err
		}
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) || inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if d.playing {
			d.videoPlayer.Pause()
		} else if err := d.videoPlayer.Play(); err != nil {
			return err
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) {
		d.videoPlayer.Seek(max(0, d.lastPosition-5*time.Second), false)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		d.videoPlayer.Seek(d.lastPosition+5*time.Second, false)
	}
	return nil
}

func (d *demo) drainEvents() {
	for {
		select {
		case e, ok := <-d.videoPlayer.Events():
			if !ok {
				return
			}
			switch e.Type {
			case avplay.EventPlayStarted:
				d.playing = true
			case avplay.EventPaused:
				d.playing = false
			case avplay.EventError:
				d.lastError = fmt.Errorf("avplay: %s: %s", e.Reason, e.Message)
			}
		default:
			return
		}
	}
}

func (d *demo) Draw(canvas *ebiten.Image) {
	if d.surface != canvas {
		d.surface = canvas
		d.videoPlayer.AttachSurface(canvas)
	}
	canvas.Fill(color.Black)
	d.videoPlayer.Tick()
	d.drawGUI(canvas)
}

// drawGUI renders a transport bar, kept from erparts-go-avebi's
// examples/mediaplayer/main.go drawGUI almost verbatim (it doesn't touch
// decode/render state at all, only GetPosition()/GetDuration()).
func (d *demo) drawGUI(canvas *ebiten.Image) {
	bounds := canvas.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	playWidth := (w * 2) / 3
	playHeight := h / 48
	ox := (w - playWidth) / 2
	oy := h - playHeight*2
	playRect := image.Rect(ox, oy, ox+playWidth, oy+playHeight)
	canvas.SubImage(playRect).(*ebiten.Image).Fill(color.RGBA{255, 255, 255, 255})
	const borderThickness = 3
	playRect.Min.X += borderThickness
	playRect.Max.X -= borderThickness
	playRect.Min.Y += borderThickness
	playRect.Max.Y -= borderThickness
	canvas.SubImage(playRect).(*ebiten.Image).Fill(color.RGBA{0, 0, 0, 255})
	const innerMargin = 2
	playRect.Min.X += innerMargin
	playRect.Max.X -= innerMargin
	playRect.Min.Y += innerMargin
	playRect.Max.Y -= innerMargin
	if d.duration > 0 {
		t := float64(d.lastPosition) / float64(d.duration)
		playRect.Max.X = playRect.Min.X + int(float64(playRect.Dx())*t)
		canvas.SubImage(playRect).(*ebiten.Image).Fill(color.RGBA{255, 255, 255, 255})
	}

	positionStr := durationToMMSS(d.lastPosition)
	durationStr := durationToMMSS(d.duration)
	ebitenutil.DebugPrintAt(canvas, positionStr+" / "+durationStr+" (SPACE to pause, arrows to seek, ESC to quit)", ox, oy-16)
}

func durationToMMSS(duration time.Duration) string {
	millis := duration.Milliseconds()
	seconds := millis / 1000
	minutes := seconds / 60
	seconds %= 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
