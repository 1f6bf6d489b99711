// Package canvas builds the image and mask payloads consumed by fill jobs.
package canvas

import (
	"image"
	"image/color"
	"math"

	"aieditor/internal/domain"
)

// MaxSide caps either dimension of a mask or fill source image.
const MaxSide = 8192

// Tool selects how a stroke modifies the mask overlay.
type Tool = domain.StrokeTool

const (
	ToolBrush  = domain.StrokeBrush
	ToolEraser = domain.StrokeEraser
	ToolClear  = domain.StrokeClear
)

// overlay is the on-screen paint color. Only its alpha matters once flattened.
var overlay = color.NRGBA{R: 239, G: 68, B: 68, A: 255}

var (
	replacePixel = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	keepPixel    = color.NRGBA{A: 255}
)

// Point is a position in mask pixel space.
type Point = domain.StrokePoint

// Stroke is one continuous paint, erase or clear gesture.
type Stroke = domain.Stroke

// Mask is a paint overlay with the same dimensions as the source image.
// Painting writes fully opaque pixels and erasing writes fully transparent
// ones, so overlapping strokes never accumulate partial alpha.
type Mask struct {
	img *image.NRGBA
}

// NewMask returns a fully transparent overlay.
func NewMask(width, height int) *Mask {
	return &Mask{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// Bounds returns the overlay rectangle.
func (m *Mask) Bounds() image.Rectangle {
	return m.img.Bounds()
}

// Overlay exposes the raw paint layer.
func (m *Mask) Overlay() *image.NRGBA {
	return m.img
}

// Clear erases every stroke.
func (m *Mask) Clear() {
	for i := range m.img.Pix {
		m.img.Pix[i] = 0
	}
}

// Apply rasterizes a stroke: a round dot at the first point followed by
// round-capped segments between consecutive points. A clear stroke wipes the
// overlay.
func (m *Mask) Apply(s Stroke) {
	if s.Tool == ToolClear {
		m.Clear()
		return
	}
	if len(s.Points) == 0 || s.Size <= 0 {
		return
	}
	c := overlay
	if s.Tool == ToolEraser {
		c = color.NRGBA{}
	}
	radius := s.Size / 2
	if len(s.Points) == 1 {
		m.segment(s.Points[0], s.Points[0], radius, c)
		return
	}
	for i := 1; i < len(s.Points); i++ {
		m.segment(s.Points[i-1], s.Points[i], radius, c)
	}
}

// segment fills every pixel whose center lies within radius of segment ab.
func (m *Mask) segment(a, b Point, radius float64, c color.NRGBA) {
	bounds := m.img.Bounds()
	minX := int(math.Floor(math.Min(a.X, b.X) - radius))
	maxX := int(math.Ceil(math.Max(a.X, b.X) + radius))
	minY := int(math.Floor(math.Min(a.Y, b.Y) - radius))
	maxY := int(math.Ceil(math.Max(a.Y, b.Y) + radius))
	area := image.Rect(minX, minY, maxX+1, maxY+1).Intersect(bounds)

	r2 := radius * radius
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p := Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			if distSq(p, a, b) <= r2 {
				m.img.SetNRGBA(x, y, c)
			}
		}
	}
}

func distSq(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := a.X+t*dx-p.X, a.Y+t*dy-p.Y
	return cx*cx + cy*cy
}

// Flatten converts the overlay into the binary mask sent to the provider.
func (m *Mask) Flatten() *image.NRGBA {
	return Flatten(m.img)
}

// Flatten maps every pixel to opaque white (replace) or opaque black (keep).
// A pixel is replace when it has any alpha and is not pure black, which makes
// Flatten(Flatten(x)) equal to Flatten(x). This differs from an alpha-only
// rule: a black stroke, at any opacity, is read as keep, so uploaded masks
// that are already black and white survive a second flatten unchanged.
func Flatten(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if px.A > 0 && (px.R|px.G|px.B) != 0 {
				out.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, replacePixel)
			} else {
				out.SetNRGBA(x-bounds.Min.X, y-bounds.Min.Y, keepPixel)
			}
		}
	}
	return out
}
