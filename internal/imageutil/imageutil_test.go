package imageutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/testutil"
)

func TestDecodeBytesPNG(t *testing.T) {
	src := testutil.GradientImage(testutil.SmallSize)
	data := testutil.EncodePNG(t, src)

	img, format, err := DecodeBytes(data, 0)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestDecodeBytesEmpty(t *testing.T) {
	_, _, err := DecodeBytes(nil, 0)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestDecodeBytesGarbage(t *testing.T) {
	_, _, err := DecodeBytes([]byte("definitely not an image"), 0)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestDecodeBytesSizeLimit(t *testing.T) {
	src := testutil.GradientImage(testutil.MediumSize)
	data := testutil.EncodePNG(t, src)

	_, _, err := DecodeBytes(data, 16)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := testutil.TexturedImage(testutil.SmallSize, 9)
	data, err := EncodePNG(src)
	require.NoError(t, err)

	img, _, err := DecodeBytes(data, 0)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
	assert.Equal(t, src.Pix, ToNRGBA(img).Pix)
}

func TestToDataURL(t *testing.T) {
	src := testutil.GradientImage(testutil.SmallSize)

	url, err := ToDataURL(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	assert.Greater(t, len(url), len("data:image/png;base64,"))
}

func TestUpscale(t *testing.T) {
	src := testutil.GradientImage(testutil.ImageSize{Width: 32, Height: 16})

	out := Upscale(src, 128, 64)
	assert.Equal(t, 128, out.Bounds().Dx())
	assert.Equal(t, 64, out.Bounds().Dy())
}

func TestDimensions(t *testing.T) {
	src := testutil.GradientImage(testutil.ImageSize{Width: 10, Height: 20})
	w, h := Dimensions(src)
	assert.Equal(t, 10, w)
	assert.Equal(t, 20, h)
}
