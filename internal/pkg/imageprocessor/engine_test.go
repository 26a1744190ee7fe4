package imageprocessor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

type stubRemover struct {
	out []byte
	err error
}

func (s *stubRemover) RemoveBackground(_ context.Context, _ []byte) ([]byte, error) {
	return s.out, s.err
}

func TestProcessCompressKeepsSourceFormat(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 40, 30, color.NRGBA{R: 200, G: 10, B: 10, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j1",
		Data:    src,
		JobType: JobTypeCompress,
	})
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, res.Format)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 30, res.Height)
	assert.Equal(t, int64(len(res.Data)), res.ByteSize)
}

func TestProcessConvertDefaultsToJPEG(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 20, 20, color.NRGBA{R: 50, G: 120, B: 50, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j2",
		Data:    src,
		JobType: JobTypeConvert,
		Quality: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, res.Format)
}

func TestProcessIsDeterministic(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 64, 64, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
	job := func() *Job {
		return &Job{
			ID:      "j3",
			Data:    src,
			JobType: JobTypeConvert,
			Quality: 80,
			Crop:    &CropSpec{X: 4, Y: 4, Width: 32, Height: 32},
			Filters: &FilterSpec{Brightness: 120, Contrast: 110},
			Resize:  &ResizeSpec{Width: 16, Height: 16, Fit: FitCover},
		}
	}

	first, err := engine.Process(context.Background(), job())
	require.NoError(t, err)
	second, err := engine.Process(context.Background(), job())
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestProcessCropOutOfBounds(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 10, 10, color.NRGBA{A: 255})

	cases := []CropSpec{
		{X: 0, Y: 0, Width: 11, Height: 10},
		{X: 5, Y: 5, Width: 6, Height: 6},
		{X: -1, Y: 0, Width: 5, Height: 5},
		{X: 0, Y: 0, Width: 0, Height: 5},
	}
	for _, spec := range cases {
		s := spec
		_, err := engine.Process(context.Background(), &Job{
			ID:      "j4",
			Data:    src,
			JobType: JobTypeCompress,
			Crop:    &s,
		})
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	}
}

func TestProcessCrop(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 100, 80, color.NRGBA{R: 255, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j5",
		Data:    src,
		JobType: JobTypeCompress,
		Crop:    &CropSpec{X: 10, Y: 20, Width: 50, Height: 40},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Width)
	assert.Equal(t, 40, res.Height)
}

func TestProcessUpscaleDoubles(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 16, 12, color.NRGBA{B: 200, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j6",
		Data:    src,
		JobType: JobTypeCompress,
		Upscale: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 32, res.Width)
	assert.Equal(t, 24, res.Height)
}

func TestProcessResizeNeverEnlarges(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 50, 50, color.NRGBA{G: 99, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j7",
		Data:    src,
		JobType: JobTypeCompress,
		Resize:  &ResizeSpec{Width: 200, Height: 200, Fit: FitInside},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Width, 50)
	assert.LessOrEqual(t, res.Height, 50)
}

func TestProcessResizeAfterUpscaleMayExceedSource(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 50, 50, color.NRGBA{G: 99, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j8",
		Data:    src,
		JobType: JobTypeCompress,
		Upscale: true,
		Resize:  &ResizeSpec{Width: 80, Height: 80, Fit: FitFill},
	})
	require.NoError(t, err)
	assert.Equal(t, 80, res.Width)
	assert.Equal(t, 80, res.Height)
}

func TestProcessGrayscaleCliff(t *testing.T) {
	engine := NewEngine(nil)
	red := color.NRGBA{R: 220, G: 40, B: 80, A: 255}
	src := pngBytes(t, 8, 8, red)

	// Grayscale is a cliff, not a blend: strengths below 100 have no
	// visible effect and only the full-strength value converts. Kept
	// deliberately; a continuous blend would change existing outputs.
	res, err := engine.Process(context.Background(), &Job{
		ID:      "j9",
		Data:    src,
		JobType: JobTypeCompress,
		Filters: &FilterSpec{Grayscale: 99},
	})
	require.NoError(t, err)
	out := decodePNG(t, res.Data)
	r, g, b, _ := out.At(4, 4).RGBA()
	assert.NotEqual(t, r, g)
	assert.NotEqual(t, g, b)

	res, err = engine.Process(context.Background(), &Job{
		ID:      "j10",
		Data:    src,
		JobType: JobTypeCompress,
		Filters: &FilterSpec{Grayscale: 100},
	})
	require.NoError(t, err)
	out = decodePNG(t, res.Data)
	r, g, b, _ = out.At(4, 4).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestProcessBrightnessScalesChannels(t *testing.T) {
	engine := NewEngine(nil)
	src := pngBytes(t, 8, 8, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:      "j11",
		Data:    src,
		JobType: JobTypeCompress,
		Filters: &FilterSpec{Brightness: 150},
	})
	require.NoError(t, err)
	out := decodePNG(t, res.Data)
	r, _, _, _ := out.At(4, 4).RGBA()
	assert.Equal(t, uint32(150), r>>8)
}

func TestProcessRemoveBackgroundForcesPNG(t *testing.T) {
	matte := pngBytes(t, 30, 30, color.NRGBA{R: 10, G: 10, B: 10, A: 0})
	engine := NewEngine(&stubRemover{out: matte})
	src := pngBytes(t, 30, 30, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	res, err := engine.Process(context.Background(), &Job{
		ID:               "j12",
		Data:             src,
		JobType:          JobTypeConvert,
		TargetFormat:     FormatJPEG,
		RemoveBackground: true,
	})
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, res.Format)
}

func TestProcessRemoveBackgroundUnavailable(t *testing.T) {
	src := pngBytes(t, 10, 10, color.NRGBA{A: 255})

	engine := NewEngine(nil)
	_, err := engine.Process(context.Background(), &Job{
		ID:               "j13",
		Data:             src,
		JobType:          JobTypeConvert,
		RemoveBackground: true,
	})
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	engine = NewEngine(&stubRemover{err: errors.New("timeout")})
	_, err = engine.Process(context.Background(), &Job{
		ID:               "j14",
		Data:             src,
		JobType:          JobTypeConvert,
		RemoveBackground: true,
	})
	assert.Error(t, err)
}

func TestProcessUndecodableInput(t *testing.T) {
	engine := NewEngine(nil)
	_, err := engine.Process(context.Background(), &Job{
		ID:      "j15",
		Data:    []byte("not an image"),
		JobType: JobTypeCompress,
	})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestExtractMetadataWithoutEXIF(t *testing.T) {
	src := pngBytes(t, 5, 5, color.NRGBA{A: 255})
	assert.Nil(t, ExtractMetadata(src))
}
