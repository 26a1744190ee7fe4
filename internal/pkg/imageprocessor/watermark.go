package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	watermarkMinWidth    = 50  // px, floor for overlay scaling
	watermarkMinFontSize = 20  // px
	defaultTextOpacity   = 0.5 // alpha for text watermarks without an explicit value
)

// watermark composites an overlay image or a rendered text label onto the
// host image. Overlay images are scaled to 20% of the host width (at least
// 50px) keeping aspect; text is rendered with the bundled Go Regular face.
func watermark(img image.Image, spec *WatermarkSpec) (image.Image, error) {
	hostW := img.Bounds().Dx()
	hostH := img.Bounds().Dy()

	if len(spec.Image) > 0 {
		overlay, _, err := image.Decode(bytes.NewReader(spec.Image))
		if err != nil {
			return nil, fmt.Errorf("%w: watermark overlay: %v", ErrDecode, err)
		}
		targetW := hostW / 5
		if targetW < watermarkMinWidth {
			targetW = watermarkMinWidth
		}
		if targetW > hostW {
			targetW = hostW
		}
		overlay = imaging.Resize(overlay, targetW, 0, imaging.Lanczos)
		if overlay.Bounds().Dy() > hostH {
			overlay = imaging.Resize(overlay, 0, hostH, imaging.Lanczos)
		}

		opacity := spec.Opacity
		if opacity <= 0 || opacity > 1 {
			opacity = 1
		}
		pt := overlayPoint(hostW, hostH, overlay.Bounds().Dx(), overlay.Bounds().Dy(), spec, GravitySouthEast)
		return imaging.Overlay(img, overlay, pt, opacity), nil
	}

	if spec.Text == "" {
		return img, nil
	}

	overlay, err := renderTextOverlay(spec, hostW)
	if err != nil {
		return nil, err
	}
	pt := overlayPoint(hostW, hostH, overlay.Bounds().Dx(), overlay.Bounds().Dy(), spec, GravityCenter)
	return imaging.Overlay(img, overlay, pt, 1), nil
}

// renderTextOverlay draws the label onto its own transparent canvas so the
// placement logic can treat text and image watermarks the same way.
func renderTextOverlay(spec *WatermarkSpec, hostW int) (image.Image, error) {
	size := float64(spec.FontSize)
	if size <= 0 {
		size = float64(hostW) * 0.05
		if size < watermarkMinFontSize {
			size = watermarkMinFontSize
		}
	}

	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse watermark font: %w", err)
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{Size: size, DPI: 72})
	if err != nil {
		return nil, fmt.Errorf("build watermark font face: %w", err)
	}
	defer face.Close()

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(face)
	textW, textH := measure.MeasureString(spec.Text)

	pad := size * 0.25
	w := int(textW + 2*pad)
	h := int(textH + 2*pad)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	opacity := spec.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = defaultTextOpacity
	}
	r, g, b := parseHexColor(spec.Color)

	dc := gg.NewContext(w, h)
	dc.SetFontFace(face)
	dc.SetRGBA(float64(r)/255, float64(g)/255, float64(b)/255, opacity)
	dc.DrawStringAnchored(spec.Text, float64(w)/2, float64(h)/2, 0.5, 0.5)
	return dc.Image(), nil
}

// overlayPoint resolves the top-left insertion point. Explicit normalized
// coordinates center the overlay on the named point and clamp it to the
// host bounds; otherwise the gravity anchor places it flush. Image
// watermarks without a gravity land in the bottom-right corner, text
// watermarks in the center.
func overlayPoint(hostW, hostH, ovW, ovH int, spec *WatermarkSpec, defaultGravity string) image.Point {
	if spec.PosXPct != nil && spec.PosYPct != nil {
		x := int(*spec.PosXPct/100*float64(hostW)) - ovW/2
		y := int(*spec.PosYPct/100*float64(hostH)) - ovH/2
		return image.Pt(clampInt(x, 0, hostW-ovW), clampInt(y, 0, hostH-ovH))
	}

	left := 0
	midX := (hostW - ovW) / 2
	right := hostW - ovW
	top := 0
	midY := (hostH - ovH) / 2
	bottom := hostH - ovH

	gravity := spec.Gravity
	if gravity == "" {
		gravity = defaultGravity
	}
	switch gravity {
	case GravityNorthWest:
		return image.Pt(left, top)
	case GravityNorth:
		return image.Pt(midX, top)
	case GravityNorthEast:
		return image.Pt(right, top)
	case GravityWest:
		return image.Pt(left, midY)
	case GravityCenter:
		return image.Pt(midX, midY)
	case GravityEast:
		return image.Pt(right, midY)
	case GravitySouthWest:
		return image.Pt(left, bottom)
	case GravitySouth:
		return image.Pt(midX, bottom)
	default: // southeast, and anything unrecognized
		return image.Pt(right, bottom)
	}
}

// parseHexColor reads a #rrggbb value, falling back to white.
func parseHexColor(s string) (uint8, uint8, uint8) {
	if len(s) == 7 && s[0] == '#' {
		var c color.NRGBA
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err == nil {
			return c.R, c.G, c.B
		}
	}
	return 255, 255, 255
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
