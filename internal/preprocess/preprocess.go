package preprocess

import (
	"bytes"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// threshold is the fixed midpoint for binarization of 8-bit luminance.
const threshold = 128

// Preprocessor normalizes raw receipt bytes for recognition: grayscale,
// contrast normalization, edge sharpening, then fixed-midpoint binary
// thresholding. Tuned for low-quality phone photos.
type Preprocessor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{logger: logger}
}

// Normalize returns a PNG-encoded normalized bitmap for the given image
// bytes. Preprocessing must never fail the pipeline: on any error
// (corrupt or unsupported input, encode failure) the original bytes come
// back unchanged, trading accuracy for availability.
func (p *Preprocessor) Normalize(raw []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		p.logger.Warn("preprocess decode failed, using raw bytes", "error", err, "bytes", len(raw))
		return raw
	}

	gray := imaging.Grayscale(img)
	gray = normalizeContrast(gray)
	gray = imaging.Sharpen(gray, 1.0)
	binarize(gray)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		p.logger.Warn("preprocess encode failed, using raw bytes", "error", err)
		return raw
	}

	p.logger.Debug("preprocessed image",
		"in_bytes", len(raw),
		"out_bytes", buf.Len(),
		"width", gray.Bounds().Dx(),
		"height", gray.Bounds().Dy(),
	)
	return buf.Bytes()
}

// normalizeContrast stretches the luminance histogram to the full 0..255
// range. A flat image (min == max) is returned as-is.
func normalizeContrast(img *image.NRGBA) *image.NRGBA {
	min, max := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i] // grayscale: R == G == B
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min >= max {
		return img
	}

	scale := 255.0 / float64(max-min)
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(float64(img.Pix[i]-min) * scale)
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
	}
	return img
}

// binarize applies fixed-midpoint thresholding in place.
func binarize(img *image.NRGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		v := uint8(0)
		if img.Pix[i] >= threshold {
			v = 255
		}
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
	}
}
