package jobs

import "aieditor/internal/domain"

// NearestPreset buckets free-form bounds onto the closest provider preset.
func NearestPreset(b domain.Bounds) domain.AspectPreset {
	return PresetForRatio(b.Ratio())
}

// PresetForRatio maps a width/height ratio onto a preset. The boundaries
// themselves fall into the next-squarer bucket.
func PresetForRatio(ratio float64) domain.AspectPreset {
	switch {
	case ratio > 1.7:
		return domain.AspectWide
	case ratio > 1.2:
		return domain.AspectSemiWide
	case ratio < 0.8:
		return domain.AspectTall
	default:
		return domain.AspectSquare
	}
}
