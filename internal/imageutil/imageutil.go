package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// DecodeError indicates an upload that could not be decoded into a usable
// raster: corrupt bytes, an unsupported format, an empty body, or a payload
// exceeding the configured size limit.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode image: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// DecodeBytes decodes an uploaded image payload. maxBytes <= 0 disables the
// size check. The decoded raster must be at least 1x1.
func DecodeBytes(data []byte, maxBytes int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Reason: "empty payload"}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", &DecodeError{
			Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", len(data), maxBytes),
		}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &DecodeError{Reason: "unreadable image data", Err: err}
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, "", &DecodeError{Reason: "image has no pixels"}
	}
	return img, format, nil
}

// EncodePNG serializes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("encode png: nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToDataURL encodes an image as an inline base64 PNG data URL suitable for
// direct embedding in a JSON response.
func ToDataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ToNRGBA returns an NRGBA copy of img. The input is never mutated.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Upscale resizes an image to the given dimensions using Lanczos resampling.
// Lanczos is the fixed filter for all resampling in this module so results
// are reproducible across runs.
func Upscale(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Dimensions returns the pixel width and height of an image.
func Dimensions(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
