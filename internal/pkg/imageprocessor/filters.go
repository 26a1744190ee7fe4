package imageprocessor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// grayscaleThreshold is the full-strength cliff: grayscale strengths below
// it have no effect. The reference behavior treats partial grayscale as a
// no-op rather than a continuous blend; preserved as-is.
const grayscaleThreshold = 100

// applyFilters runs the pixel filter sub-stages in a fixed order:
// brightness, saturation, contrast, grayscale. All strengths are
// percentages with 100 as identity.
func applyFilters(img image.Image, f *FilterSpec) image.Image {
	if f.Brightness > 0 && f.Brightness != 100 {
		factor := float64(f.Brightness) / 100
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clampByte(float64(c.R) * factor),
				G: clampByte(float64(c.G) * factor),
				B: clampByte(float64(c.B) * factor),
				A: c.A,
			}
		})
	}

	if f.Saturation > 0 && f.Saturation != 100 {
		// imaging expresses saturation as a -100..100 delta around 0.
		img = imaging.AdjustSaturation(img, clampPct(float64(f.Saturation)-100))
	}

	if f.Contrast > 0 && f.Contrast != 100 {
		// Linear transform y = factor*x + 128*(1-factor).
		factor := float64(f.Contrast) / 100
		offset := 128 * (1 - factor)
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clampByte(factor*float64(c.R) + offset),
				G: clampByte(factor*float64(c.G) + offset),
				B: clampByte(factor*float64(c.B) + offset),
				A: c.A,
			}
		})
	}

	if f.Grayscale >= grayscaleThreshold {
		img = imaging.Grayscale(img)
	}

	return img
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampPct(v float64) float64 {
	if v < -100 {
		return -100
	}
	if v > 100 {
		return 100
	}
	return v
}
