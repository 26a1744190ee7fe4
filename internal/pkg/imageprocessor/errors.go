package imageprocessor

import "errors"

var (
	// ErrDecode means the input bytes are not a decodable image.
	ErrDecode = errors.New("image decode failed")

	// ErrInvalidGeometry covers crop rectangles outside the pixel grid and
	// other impossible geometry requests.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrUnsupportedFormat is returned for target formats the engine cannot
	// encode in this environment.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrServiceUnavailable marks a retryable upstream failure (background
	// removal). The engine never retries; that belongs to the caller.
	ErrServiceUnavailable = errors.New("image service unavailable")
)
