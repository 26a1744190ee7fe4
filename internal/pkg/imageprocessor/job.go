package imageprocessor

// Format is a terminal encode format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

// Job types. Compress keeps the detected source format unless an explicit
// target format is given; convert requires one.
const (
	JobTypeCompress = "compress"
	JobTypeConvert  = "convert"
)

// CropSpec is a rectangular extraction in source pixel coordinates.
type CropSpec struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FilterSpec holds pixel filter strengths. All values are percentages where
// 100 is identity; the zero value means the filter was not requested.
type FilterSpec struct {
	Brightness int `json:"brightness"`
	Saturation int `json:"saturation"`
	Contrast   int `json:"contrast"`
	Grayscale  int `json:"grayscale"`
}

// Fit policies for resize.
const (
	FitCover   = "cover"
	FitContain = "contain"
	FitFill    = "fill"
	FitInside  = "inside"
	FitOutside = "outside"
)

// ResizeSpec constrains the output by at least one of width/height. The
// resize never enlarges beyond the source unless the upscale stage already
// ran.
type ResizeSpec struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Fit    string `json:"fit"`
}

// Gravity anchors for watermark placement.
const (
	GravityNorth     = "north"
	GravityNorthEast = "northeast"
	GravityEast      = "east"
	GravitySouthEast = "southeast"
	GravitySouth     = "south"
	GravitySouthWest = "southwest"
	GravityWest      = "west"
	GravityNorthWest = "northwest"
	GravityCenter    = "center"
)

// WatermarkSpec selects exactly one of the two sub-modes: an uploaded
// overlay image or a rendered text label. When both are set the image wins.
type WatermarkSpec struct {
	// Image watermark: raw bytes of the overlay image.
	Image []byte `json:"-"`

	// Text watermark.
	Text     string  `json:"text,omitempty"`
	FontSize int     `json:"font_size,omitempty"` // 0: 5% of host width, min 20px
	Color    string  `json:"color,omitempty"`     // hex, default "#ffffff"
	Opacity  float64 `json:"opacity,omitempty"`   // 0: default 0.5

	// Placement: a named gravity anchor, or explicit normalized
	// coordinates in percent of the host dimensions. Explicit coordinates
	// win over gravity.
	Gravity  string   `json:"gravity,omitempty"`
	PosXPct  *float64 `json:"pos_x_pct,omitempty"`
	PosYPct  *float64 `json:"pos_y_pct,omitempty"`
}

// Job is one pipeline invocation. It is constructed per request, consumed by
// the engine and discarded; the engine never persists anything.
type Job struct {
	ID     string
	UserID uint

	Data []byte

	JobType      string
	TargetFormat Format
	Quality      int // already tier-capped by the caller

	RemoveBackground bool
	Crop             *CropSpec
	Upscale          bool
	Filters          *FilterSpec
	Resize           *ResizeSpec
	Watermark        *WatermarkSpec
	StripMetadata    bool
}

// Result is the engine's output contract. The caller names and persists the
// buffer; the engine has no storage dependency.
type Result struct {
	Data     []byte
	ByteSize int64
	Format   Format
	Width    int
	Height   int

	// AltText is a generated description, filled in by the caller after
	// processing. The engine itself never sets it.
	AltText string

	// Metadata holds the source EXIF fields when the job preserved
	// metadata; nil when stripped or when the source carried none.
	Metadata map[string]string
}
