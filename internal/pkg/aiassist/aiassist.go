// Package aiassist derives image descriptions and processing hints. The
// heuristics stand in for a vision model call; the signatures stay the same
// when one is wired up.
package aiassist

import (
	"regexp"
	"strings"
)

var digits = regexp.MustCompile(`\d+`)

// GenerateAltText builds a descriptive alt text from the original filename
// and the image characteristics.
func GenerateAltText(fileName, format string, size int64) string {
	base := fileName
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	clean := strings.NewReplacer("-", " ", "_", " ").Replace(base)
	clean = strings.TrimSpace(digits.ReplaceAllString(clean, ""))
	if clean != "" {
		clean = strings.ToUpper(clean[:1]) + clean[1:]
	}

	suffix := "image"
	if format == "png" {
		suffix = "graphic/illustration"
	}
	if size > 1024*1024 {
		suffix += " (high resolution)"
	}

	if clean == "" {
		return suffix
	}
	return clean + " " + suffix
}

// SuggestCompression picks a quality setting from the file size. Larger
// files can afford more compression; small ones keep more detail.
func SuggestCompression(size int64) int {
	switch {
	case size > 5*1024*1024:
		return 70
	case size < 500*1024:
		return 90
	default:
		return 80
	}
}

// UpscaleFactor is the fixed super-resolution multiplier.
func UpscaleFactor() int {
	return 2
}
