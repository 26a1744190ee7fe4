package imageprocessor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v float64) *float64 { return &v }

func TestOverlayPointNormalizedCoordinates(t *testing.T) {
	// A 100x50 overlay centered on (50%, 50%) of a 1000x500 host lands at
	// (450, 225).
	spec := &WatermarkSpec{PosXPct: pct(50), PosYPct: pct(50)}
	pt := overlayPoint(1000, 500, 100, 50, spec, GravitySouthEast)
	assert.Equal(t, image.Pt(450, 225), pt)
}

func TestOverlayPointClampsToHostBounds(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want image.Point
	}{
		{"top left corner", 0, 0, image.Pt(0, 0)},
		{"bottom right corner", 100, 100, image.Pt(900, 450)},
		{"past left edge", 1, 1, image.Pt(0, 0)},
		{"past right edge", 99, 99, image.Pt(900, 450)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &WatermarkSpec{PosXPct: pct(tt.x), PosYPct: pct(tt.y)}
			assert.Equal(t, tt.want, overlayPoint(1000, 500, 100, 50, spec, GravitySouthEast))
		})
	}
}

func TestOverlayPointGravity(t *testing.T) {
	tests := []struct {
		gravity string
		want    image.Point
	}{
		{GravityNorthWest, image.Pt(0, 0)},
		{GravityNorth, image.Pt(450, 0)},
		{GravityNorthEast, image.Pt(900, 0)},
		{GravityWest, image.Pt(0, 225)},
		{GravityCenter, image.Pt(450, 225)},
		{GravityEast, image.Pt(900, 225)},
		{GravitySouthWest, image.Pt(0, 450)},
		{GravitySouth, image.Pt(450, 450)},
		{GravitySouthEast, image.Pt(900, 450)},
	}
	for _, tt := range tests {
		spec := &WatermarkSpec{Gravity: tt.gravity}
		assert.Equal(t, tt.want, overlayPoint(1000, 500, 100, 50, spec, GravitySouthEast), "gravity %q", tt.gravity)
	}
}

func TestOverlayPointDefaultGravityPerMode(t *testing.T) {
	spec := &WatermarkSpec{}
	// Image watermarks fall back to the bottom-right corner, text
	// watermarks to the center.
	assert.Equal(t, image.Pt(900, 450), overlayPoint(1000, 500, 100, 50, spec, GravitySouthEast))
	assert.Equal(t, image.Pt(450, 225), overlayPoint(1000, 500, 100, 50, spec, GravityCenter))
	// An explicit gravity wins over either default.
	spec.Gravity = GravityNorthWest
	assert.Equal(t, image.Pt(0, 0), overlayPoint(1000, 500, 100, 50, spec, GravityCenter))
}

func TestOverlayPointCoordinatesWinOverGravity(t *testing.T) {
	spec := &WatermarkSpec{Gravity: GravityNorthWest, PosXPct: pct(50), PosYPct: pct(50)}
	assert.Equal(t, image.Pt(450, 225), overlayPoint(1000, 500, 100, 50, spec, GravitySouthEast))
}

func TestWatermarkImageOverlayScaling(t *testing.T) {
	host := image.NewNRGBA(image.Rect(0, 0, 500, 400))
	overlayBytes := pngBytes(t, 200, 100, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out, err := watermark(host, &WatermarkSpec{Image: overlayBytes})
	require.NoError(t, err)
	// The host dimensions never change; the overlay is composited in.
	assert.Equal(t, 500, out.Bounds().Dx())
	assert.Equal(t, 400, out.Bounds().Dy())
}

func TestWatermarkTextRenders(t *testing.T) {
	host := image.NewNRGBA(image.Rect(0, 0, 400, 300))

	out, err := watermark(host, &WatermarkSpec{Text: "pixelmint"})
	require.NoError(t, err)
	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 300, out.Bounds().Dy())

	// Without an explicit position the label is centered. The fill is white
	// at half opacity, so pixels in the center region must differ from the
	// untouched transparent host while the corners stay clear.
	assert.True(t, regionTouched(out, 150, 130, 250, 170))
	assert.False(t, regionTouched(out, 360, 280, 400, 300))
	assert.False(t, regionTouched(out, 0, 0, 40, 20))
}

func regionTouched(img image.Image, x0, y0, x1, y1 int) bool {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return true
			}
		}
	}
	return false
}

func TestWatermarkRejectsUndecodableOverlay(t *testing.T) {
	host := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	_, err := watermark(host, &WatermarkSpec{Image: []byte("junk")})
	assert.ErrorIs(t, err, ErrDecode)
}
