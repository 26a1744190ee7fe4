package imageprocessor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// resize applies the resize stage according to the fit policy. Output
// dimensions never exceed the source dimensions unless the image went
// through the upscale stage first; requests that would enlarge are
// scaled down to the source bounds while keeping the target aspect.
func resize(img image.Image, spec *ResizeSpec, upscaled bool) (image.Image, error) {
	if spec.Width <= 0 && spec.Height <= 0 {
		return nil, ErrInvalidGeometry
	}

	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()

	// A single-dimension request keeps the source aspect.
	w, h := spec.Width, spec.Height
	if w <= 0 {
		w = int(float64(h) * float64(srcW) / float64(srcH))
		if w < 1 {
			w = 1
		}
	}
	if h <= 0 {
		h = int(float64(w) * float64(srcH) / float64(srcW))
		if h < 1 {
			h = 1
		}
	}
	if !upscaled {
		w, h = shrinkToFit(w, h, srcW, srcH)
	}

	switch spec.Fit {
	case FitCover:
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos), nil
	case FitContain:
		fitted := imaging.Fit(img, w, h, imaging.Lanczos)
		canvas := imaging.New(w, h, color.Transparent)
		return imaging.PasteCenter(canvas, fitted), nil
	case FitFill:
		return imaging.Resize(img, w, h, imaging.Lanczos), nil
	case FitInside, "":
		return imaging.Fit(img, w, h, imaging.Lanczos), nil
	case FitOutside:
		// Scale so both dimensions are at least the target, keeping aspect.
		ow, oh := outsideDims(srcW, srcH, w, h)
		return imaging.Resize(img, ow, oh, imaging.Lanczos), nil
	default:
		return nil, ErrInvalidGeometry
	}
}

// shrinkToFit scales the requested box down proportionally until it fits
// inside the source box. A request already inside is returned unchanged.
func shrinkToFit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	rw := float64(maxW) / float64(w)
	rh := float64(maxH) / float64(h)
	r := rw
	if rh < r {
		r = rh
	}
	nw := int(float64(w) * r)
	nh := int(float64(h) * r)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

func outsideDims(srcW, srcH, w, h int) (int, int) {
	rw := float64(w) / float64(srcW)
	rh := float64(h) / float64(srcH)
	r := rw
	if rh > r {
		r = rh
	}
	ow := int(float64(srcW)*r + 0.5)
	oh := int(float64(srcH)*r + 0.5)
	if ow < 1 {
		ow = 1
	}
	if oh < 1 {
		oh = 1
	}
	return ow, oh
}
