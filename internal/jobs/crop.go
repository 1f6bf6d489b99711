package jobs

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"aieditor/internal/domain"
)

// CropRect returns the region of src kept by a center crop-to-fill onto
// target. A relatively wider source keeps its full height and loses width
// equally on both sides; a relatively taller one keeps its full width.
func CropRect(src image.Rectangle, target domain.Bounds) image.Rectangle {
	w, h := src.Dx(), src.Dy()
	if w == 0 || h == 0 || target.Width <= 0 || target.Height <= 0 {
		return src
	}
	srcRatio := float64(w) / float64(h)
	targetRatio := target.Ratio()

	if srcRatio > targetRatio {
		cropW := int(math.Round(float64(h) * targetRatio))
		x0 := (w - cropW) / 2
		return image.Rect(src.Min.X+x0, src.Min.Y, src.Min.X+x0+cropW, src.Max.Y)
	}
	cropH := int(math.Round(float64(w) / targetRatio))
	y0 := (h - cropH) / 2
	return image.Rect(src.Min.X, src.Min.Y+y0, src.Max.X, src.Min.Y+y0+cropH)
}

// CenterCropToFill scales and crops src so it exactly covers target.
func CenterCropToFill(src image.Image, target domain.Bounds) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, CropRect(src.Bounds(), target), draw.Src, nil)
	return dst
}
