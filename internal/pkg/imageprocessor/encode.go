package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const defaultQuality = 85

// encode serializes the image into the terminal format. Quality applies to
// the lossy formats; PNG and GIF ignore it.
func encode(img image.Image, format Format, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("error encoding JPEG image: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("error encoding PNG image: %w", err)
		}
	case FormatGIF:
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("error encoding GIF image: %w", err)
		}
	case FormatWebP:
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return nil, fmt.Errorf("error creating encoder options: %w", err)
		}
		if err := webp.Encode(&buf, img, options); err != nil {
			return nil, fmt.Errorf("error encoding WebP image: %w", err)
		}
	case FormatAVIF:
		return encodeAVIF(img, quality)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

// encodeAVIF shells out to ffmpeg via temporary files. Encoding to AVIF is
// only offered when ffmpeg is present on the host.
func encodeAVIF(img image.Image, quality int) ([]byte, error) {
	if !ffmpegAvailable() {
		return nil, fmt.Errorf("%w: avif requires ffmpeg", ErrUnsupportedFormat)
	}

	tempDir := os.TempDir()
	id := uuid.New().String()
	inputPath := filepath.Join(tempDir, id+".png")
	outputPath := filepath.Join(tempDir, id+".avif")
	defer os.Remove(inputPath)
	defer os.Remove(outputPath)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("error encoding intermediate PNG: %w", err)
	}
	if err := os.WriteFile(inputPath, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("error writing temporary image: %w", err)
	}

	// Map the 1..100 quality scale onto AV1's crf (lower is better).
	crf := 63 - (quality*63)/100
	cmd := exec.Command("ffmpeg", "-i", inputPath, "-c:v", "libaom-av1", "-crf", fmt.Sprintf("%d", crf), "-b:v", "0", "-y", outputPath)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("error converting to AVIF: %w", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("error reading AVIF output: %w", err)
	}
	return data, nil
}

// ffmpegAvailable checks if ffmpeg is available
func ffmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}
