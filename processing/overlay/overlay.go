// Package overlay draws detection boxes on a transparent layer that sits on
// top of the video surface.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"maskcam/internal/models"
)

// Positional adjustment applied to every box. Origin of these values is
// unknown; they line the boxes up with the detector's reference output.
const (
	OffsetX      = 112.0
	OffsetHeight = -20.0
)

const (
	labelSize   = 14.0
	labelMargin = 4.0
	strokeWidth = 2.0
)

var (
	boxColor   = color.RGBA{0, 255, 0, 255}
	labelColor = color.RGBA{0, 255, 0, 255}
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Rect is a box in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Shape is what gets drawn for one detection.
type Shape struct {
	Rect  Rect
	Label string
	// LabelX, LabelY is the text baseline origin.
	LabelX, LabelY float64
}

// BoxRect converts a detection box into canvas pixels. Normalized boxes are
// scaled by the canvas size, pixel boxes are used as is; both get the fixed
// offsets.
func BoxRect(d models.DetectionResult, width, height float64) Rect {
	x0, y0, x1, y1 := d.Box[0], d.Box[1], d.Box[2], d.Box[3]

	if d.IsNormalized() {
		x0 *= width
		x1 *= width
		y0 *= height
		y1 *= height
	}

	return Rect{
		X: x0 + OffsetX,
		Y: y0,
		W: x1 - x0,
		H: y1 - y0 + OffsetHeight,
	}
}

// Layout computes the shapes for results on a width x height canvas.
// Results without a valid box are skipped.
func Layout(results []models.DetectionResult, width, height int) []Shape {
	shapes := make([]Shape, 0, len(results))

	for _, res := range results {
		if res.Validate() != nil {
			continue
		}

		r := BoxRect(res, float64(width), float64(height))

		s := Shape{Rect: r, Label: res.Label, LabelX: r.X}
		if r.Y-labelSize-labelMargin >= 0 {
			s.LabelY = r.Y - labelMargin
		} else {
			s.LabelY = r.Y + r.H + labelSize
		}

		shapes = append(shapes, s)
	}

	return shapes
}

// Render returns a fresh transparent layer of width x height with results
// drawn on it. Each call starts from an empty canvas.
func Render(results []models.DetectionResult, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	dc := gg.NewContext(width, height)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: labelSize}))

	for _, s := range Layout(results, width, height) {
		dc.SetColor(boxColor)
		dc.SetLineWidth(strokeWidth)
		dc.DrawRectangle(s.Rect.X, s.Rect.Y, s.Rect.W, s.Rect.H)
		dc.Stroke()

		if s.Label != "" {
			dc.SetColor(labelColor)
			dc.DrawString(s.Label, s.LabelX, s.LabelY)
		}
	}

	if img, ok := dc.Image().(*image.RGBA); ok {
		return img
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), dc.Image(), image.Point{}, draw.Src)
	return img
}
