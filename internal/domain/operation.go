package domain

import "strings"

// AspectPreset is one of the provider-supported expansion ratios.
type AspectPreset string

const (
	AspectWide     AspectPreset = "16:9"
	AspectSemiWide AspectPreset = "4:3"
	AspectSquare   AspectPreset = "1:1"
	AspectTall     AspectPreset = "9:16"
)

// AspectPresets lists the presets in display order.
var AspectPresets = []AspectPreset{AspectWide, AspectSemiWide, AspectSquare, AspectTall}

// ParseAspectPreset validates a preset name.
func ParseAspectPreset(s string) (AspectPreset, bool) {
	s = strings.TrimSpace(s)
	for _, p := range AspectPresets {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Bounds is a free-form target size in pixels.
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Ratio returns width divided by height.
func (b Bounds) Ratio() float64 {
	if b.Height == 0 {
		return 0
	}
	return float64(b.Width) / float64(b.Height)
}

// StrokeTool selects how a mask stroke modifies the paint overlay.
type StrokeTool string

const (
	StrokeBrush  StrokeTool = "brush"
	StrokeEraser StrokeTool = "eraser"
	// StrokeClear wipes everything painted so far.
	StrokeClear StrokeTool = "clear"
)

// StrokePoint is a position in mask pixel space.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one continuous paint or erase gesture.
type Stroke struct {
	Tool   StrokeTool    `json:"tool"`
	Size   float64       `json:"size"`
	Points []StrokePoint `json:"points"`
}

// StrokeMask is a fill mask recorded as editor strokes. A zero size means
// the size of the source image.
type StrokeMask struct {
	Width   int
	Height  int
	Strokes []Stroke
}

// UpscaleParams are provider-model specific and fixed in this design.
type UpscaleParams struct {
	JPEG     int
	Noise    int
	TaskType string
}

// OperationRequest is the normalized per-operation input bundle.
type OperationRequest struct {
	Kind OperationKind

	// ImageData is an inline base64 payload (optionally a data URL).
	ImageData string
	// ImageURL is a publicly fetchable image location.
	ImageURL string
	Prompt   string

	// Mask is the fill mask as a data URL. When empty, Strokes is rasterized
	// into one with the source image's dimensions.
	Mask    string
	Strokes *StrokeMask

	Aspect AspectPreset
	Bounds *Bounds

	Upscale *UpscaleParams

	// Inline asks the materializer for a data URL instead of a URL.
	Inline bool
}
