package avplay

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/erparts/avplay/internal/render"
)

// FitMode mirrors internal/render.FitMode.
type FitMode = render.FitMode

const (
	FitContain  = render.FitContain
	FitCover    = render.FitCover
	FitStretch  = render.FitStretch
	FitOriginal = render.FitOriginal
)

// InterpolationMode mirrors internal/render.InterpolationMode.
type InterpolationMode = render.InterpolationMode

const (
	InterpolationAuto     = render.InterpolationAuto
	InterpolationForceOn  = render.InterpolationForceOn
	InterpolationForceOff = render.InterpolationForceOff
)

// ColorMatrix identifies the YUV->RGB matrix metadata carried alongside a
// decoded frame; see [Player.SetColorMatrix].
type ColorMatrix = render.ColorMatrix

const (
	ColorMatrixBT601  = render.ColorMatrixBT601
	ColorMatrixBT709  = render.ColorMatrixBT709
	ColorMatrixBT2020 = render.ColorMatrixBT2020
)

// Draw projects frame into viewport under fit, scaling with
// [ebiten.FilterLinear] to take as much space as possible while
// preserving the aspect ratio, same convenience helper as
// erparts-go-avebi's draw.go, generalized to every [FitMode] instead of
// only Contain. A Player normally renders through [Player.AttachSurface]
// instead; this is exposed for hosts that draw a retrieved frame image
// manually.
func Draw(viewport, frame *ebiten.Image, fit FitMode) {
	geom, filter := render.CalcProjection(viewport, frame, fit)
	var opts ebiten.DrawImageOptions
	opts.GeoM = geom
	opts.Filter = filter
	viewport.DrawImage(frame, &opts)
}

// CalcProjection returns the GeoM and recommended ebiten.Filter to
// project frame into viewport under fit.
func CalcProjection(viewport, frame *ebiten.Image, fit FitMode) (ebiten.GeoM, ebiten.Filter) {
	return render.CalcProjection(viewport, frame, fit)
}
