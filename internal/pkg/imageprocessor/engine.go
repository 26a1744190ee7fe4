package imageprocessor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	_ "golang.org/x/image/webp"
)

// BackgroundRemover is the external matte-extraction service. The returned
// bytes are an RGBA image (PNG); any failure maps to ErrServiceUnavailable.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, imageBytes []byte) ([]byte, error)
}

// Engine executes the transformation pipeline over an in-memory buffer. It
// holds no shared state and is safely reentrant across concurrent jobs.
//
// Stages run in a fixed canonical order regardless of request field order:
// background removal, crop, upscale, pixel filters, resize, watermark,
// metadata handling, encode.
type Engine struct {
	bg BackgroundRemover
}

// NewEngine creates an engine. The background remover may be nil when the
// deployment has no matting service; jobs requesting removal then fail with
// ErrServiceUnavailable.
func NewEngine(bg BackgroundRemover) *Engine {
	return &Engine{bg: bg}
}

// Process runs the pipeline. Any stage failure aborts the job without
// partial effects; errors carry their typed sentinel and propagate untouched.
func (e *Engine) Process(ctx context.Context, job *Job) (*Result, error) {
	img, srcFormat, err := decode(job.Data)
	if err != nil {
		return nil, err
	}

	outFormat := job.TargetFormat
	if outFormat == "" {
		if job.JobType == JobTypeCompress {
			outFormat = srcFormat
		} else {
			outFormat = FormatJPEG
		}
	}

	// Stage 1: background removal. Success forces a transparency-capable
	// output format, overriding any explicit target.
	if job.RemoveBackground {
		img, err = e.removeBackground(ctx, job.Data)
		if err != nil {
			return nil, err
		}
		outFormat = FormatPNG
	}

	// Stage 2: crop.
	if job.Crop != nil {
		img, err = crop(img, job.Crop)
		if err != nil {
			return nil, err
		}
	}

	// Stage 3: upscale. Skipped silently when dimensions are unknown.
	upscaled := false
	if job.Upscale {
		b := img.Bounds()
		if b.Dx() > 0 && b.Dy() > 0 {
			img = imaging.Resize(img, b.Dx()*2, b.Dy()*2, imaging.Lanczos)
			upscaled = true
		}
	}

	// Stage 4: pixel filters.
	if job.Filters != nil {
		img = applyFilters(img, job.Filters)
	}

	// Stage 5: resize, constrained by the fit policy.
	if job.Resize != nil && (job.Resize.Width > 0 || job.Resize.Height > 0) {
		img, err = resize(img, job.Resize, upscaled)
		if err != nil {
			return nil, err
		}
	}

	// Stage 6: watermark compositing.
	if job.Watermark != nil {
		img, err = watermark(img, job.Watermark)
		if err != nil {
			return nil, err
		}
	}

	// Stage 7: metadata. Re-encoding drops embedded metadata, so preserving
	// means carrying the extracted source EXIF on the result.
	var meta map[string]string
	if !job.StripMetadata {
		meta = ExtractMetadata(job.Data)
	}

	// Stage 8: terminal encode.
	data, err := encode(img, outFormat, job.Quality)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	result := &Result{
		Data:     data,
		ByteSize: int64(len(data)),
		Format:   outFormat,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Metadata: meta,
	}

	log.Debug(fmt.Sprintf("[ImageProcessor] Job %s: %d -> %d bytes (%s, %dx%d)",
		job.ID, len(job.Data), result.ByteSize, result.Format, result.Width, result.Height))
	return result, nil
}

func (e *Engine) removeBackground(ctx context.Context, data []byte) (image.Image, error) {
	if e.bg == nil {
		return nil, fmt.Errorf("background removal not configured: %w", ErrServiceUnavailable)
	}
	out, err := e.bg.RemoveBackground(ctx, data)
	if err != nil {
		return nil, err
	}
	img, _, err := decode(out)
	if err != nil {
		return nil, fmt.Errorf("background removal returned undecodable image: %w", ErrServiceUnavailable)
	}
	return img, nil
}

func crop(img image.Image, spec *CropSpec) (image.Image, error) {
	b := img.Bounds()
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("crop %dx%d: %w", spec.Width, spec.Height, ErrInvalidGeometry)
	}
	if spec.X < 0 || spec.Y < 0 || spec.X+spec.Width > b.Dx() || spec.Y+spec.Height > b.Dy() {
		return nil, fmt.Errorf("crop (%d,%d %dx%d) outside %dx%d: %w",
			spec.X, spec.Y, spec.Width, spec.Height, b.Dx(), b.Dy(), ErrInvalidGeometry)
	}
	rect := image.Rect(spec.X, spec.Y, spec.X+spec.Width, spec.Y+spec.Height)
	return imaging.Crop(img, rect), nil
}

func decode(data []byte) (image.Image, Format, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	switch name {
	case "jpeg":
		return img, FormatJPEG, nil
	case "png":
		return img, FormatPNG, nil
	case "gif":
		return img, FormatGIF, nil
	case "webp":
		return img, FormatWebP, nil
	default:
		return nil, "", fmt.Errorf("source format %q: %w", name, ErrUnsupportedFormat)
	}
}
