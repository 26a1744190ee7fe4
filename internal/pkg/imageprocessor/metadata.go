package imageprocessor

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// exifFields are the source tags carried through to the result when a job
// preserves metadata. Re-encoding drops the EXIF block itself, so the
// values travel out of band.
var exifFields = []exif.FieldName{
	exif.Make,
	exif.Model,
	exif.Software,
	exif.DateTime,
	exif.DateTimeOriginal,
	exif.ExposureTime,
	exif.FNumber,
	exif.ISOSpeedRatings,
	exif.FocalLength,
	exif.Orientation,
	exif.LensModel,
	exif.GPSLatitudeRef,
	exif.GPSLongitudeRef,
}

// ExtractMetadata reads EXIF tags from the source bytes. Sources without
// EXIF data (PNG, GIF, stripped files) yield nil, not an error.
func ExtractMetadata(data []byte) map[string]string {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	meta := make(map[string]string)
	for _, field := range exifFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		if s := tag.String(); s != "" {
			meta[string(field)] = s
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
