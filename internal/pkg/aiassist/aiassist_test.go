package aiassist

import "testing"

func TestGenerateAltText(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		format   string
		size     int64
		want     string
	}{
		{"plain name", "sunset.jpg", "jpeg", 100 * 1024, "Sunset image"},
		{"separators and digits", "beach-trip_2024.jpg", "jpeg", 100 * 1024, "Beach trip image"},
		{"png gets graphic suffix", "logo.png", "png", 50 * 1024, "Logo graphic/illustration"},
		{"large file", "panorama.jpg", "jpeg", 2 * 1024 * 1024, "Panorama image (high resolution)"},
		{"digits only", "12345.jpg", "jpeg", 10 * 1024, "image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateAltText(tt.fileName, tt.format, tt.size)
			if got != tt.want {
				t.Errorf("GenerateAltText(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestSuggestCompression(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{6 * 1024 * 1024, 70},
		{1024 * 1024, 80},
		{100 * 1024, 90},
	}
	for _, tt := range tests {
		if got := SuggestCompression(tt.size); got != tt.want {
			t.Errorf("SuggestCompression(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestUpscaleFactor(t *testing.T) {
	if UpscaleFactor() != 2 {
		t.Errorf("UpscaleFactor() = %d, want 2", UpscaleFactor())
	}
}
