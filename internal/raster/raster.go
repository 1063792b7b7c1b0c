// Package raster provides the image primitives the validation engine works
// on: load/save, greyscale conversion, resampling, blur, and raw pixel
// access. Decoding and geometric transforms go through the imaging library;
// the CPU kernels elsewhere in the codebase operate on the *image.Gray
// buffers this package produces.
package raster

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/realenhance/restage/internal/errors"
)

// Open decodes the image at path. JPEG and PNG are the supported listing
// photo formats.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrArtifactNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to decode image %s", path)
	}
	return img, nil
}

// Save encodes img to path, with the format chosen by the file extension.
// The parent directory is created if needed.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "failed to create artifact directory")
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "failed to save image %s", path)
	}
	return nil
}

// Decode decodes an in-memory image, as returned by the vision service.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnsupportedImageFormat, err.Error())
	}
	return img, nil
}

// EncodePNG encodes an image as PNG bytes for transport to the vision
// service. PNG keeps edges intact, which matters for structural checks on
// the far side.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

// MIMEForPath guesses the transport MIME type from a file extension.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ToGray converts any image to an 8-bit luminance buffer using Rec. 601
// weights. The returned buffer is always freshly allocated with a zero
// origin so kernel code can index Pix directly.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// 16-bit channels; weights sum to 1.
			lum := (299*r + 587*g + 114*bl) / 1000
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = uint8(lum >> 8)
		}
	}
	return out
}

// Resize resamples img to exactly w x h using a Lanczos kernel.
func Resize(img image.Image, w, h int) image.Image {
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// FitWithin downsamples img so its longer side is at most maxDim,
// preserving aspect ratio. Images already within the cap are returned
// unchanged.
func FitWithin(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// Blur applies a Gaussian blur with the given sigma and returns the result
// as a luminance buffer.
func Blur(g *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return g
	}
	return ToGray(imaging.Blur(g, sigma))
}

// Dimensions returns the pixel width and height of an image.
func Dimensions(img image.Image) (w, h int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// AspectDivergence returns the relative difference between two images'
// aspect ratios, used to decide whether a candidate can be resampled onto
// the baseline's dimensions.
func AspectDivergence(aw, ah, bw, bh int) float64 {
	if ah == 0 || bh == 0 {
		return 1
	}
	ra := float64(aw) / float64(ah)
	rb := float64(bw) / float64(bh)
	if ra == 0 {
		return 1
	}
	d := (ra - rb) / ra
	if d < 0 {
		d = -d
	}
	return d
}

// MeanLuminance returns the mean pixel value of a rectangular region of g,
// clipped to the buffer bounds. Returns 0 for an empty clip.
func MeanLuminance(g *image.Gray, rect image.Rectangle) float64 {
	rect = rect.Intersect(g.Bounds())
	if rect.Empty() {
		return 0
	}
	var sum uint64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := g.Pix[y*g.Stride+rect.Min.X : y*g.Stride+rect.Max.X]
		for _, p := range row {
			sum += uint64(p)
		}
	}
	return float64(sum) / float64(rect.Dx()*rect.Dy())
}
