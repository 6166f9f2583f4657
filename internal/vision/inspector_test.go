package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// texturedImage builds a block-noise image with plenty of corners and a
// varied color distribution.
func texturedImage(seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, canonicalSize, canonicalSize))

	const block = 4
	for by := 0; by < canonicalSize; by += block {
		for bx := 0; bx < canonicalSize; bx += block {
			c := color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			}
			for y := by; y < by+block; y++ {
				for x := bx; x < bx+block; x++ {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	return img
}

func flatImage(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCompareIdenticalImages(t *testing.T) {
	inspector := NewInspector(0)
	img := texturedImage(1)

	result, err := inspector.Compare(img, img)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.SSIMScore, 1e-9)
	assert.InDelta(t, 1.0, result.HistogramSimilarity, 1e-9)
	assert.InDelta(t, 1.0, result.FeatureSimilarity, 1e-9)
	assert.InDelta(t, 1.0, result.OverallSimilarity, 1e-9)
	assert.False(t, result.IsSuspicious)
}

func TestCompareDissimilarImagesIsSuspicious(t *testing.T) {
	inspector := NewInspector(0)

	result, err := inspector.Compare(texturedImage(1), texturedImage(2))
	require.NoError(t, err)

	assert.Less(t, result.SSIMScore, 0.5)
	assert.Less(t, result.OverallSimilarity, defaultSimilarityThreshold)
	assert.True(t, result.IsSuspicious)
}

func TestCompareFlatImagesYieldZeroFeatureSimilarity(t *testing.T) {
	inspector := NewInspector(0)
	a := flatImage(color.NRGBA{R: 120, G: 120, B: 120, A: 255})
	b := flatImage(color.NRGBA{R: 120, G: 120, B: 120, A: 255})

	// No corners means no descriptors; that is designed behavior, not an error
	result, err := inspector.Compare(a, b)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.FeatureSimilarity)
	assert.InDelta(t, 1.0, result.SSIMScore, 1e-9)
}

func TestCompareRespectsConfiguredThreshold(t *testing.T) {
	strict := NewInspector(0.99)
	a := flatImage(color.NRGBA{R: 50, G: 50, B: 50, A: 255})
	b := flatImage(color.NRGBA{R: 50, G: 50, B: 50, A: 255})

	// Flat pair scores 0.7 overall (zero feature term); a strict threshold
	// marks it suspicious where the default would not.
	result, err := strict.Compare(a, b)
	require.NoError(t, err)
	assert.True(t, result.IsSuspicious)
}

func TestCompareRejectsNilImage(t *testing.T) {
	inspector := NewInspector(0)

	_, err := inspector.Compare(nil, texturedImage(1))
	assert.ErrorIs(t, err, ErrMissingImage)
}

func TestDecodeImageRoundTrip(t *testing.T) {
	src := texturedImage(3)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
}

func TestDecodeImageInvalidBytes(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrImageDecode)

	_, err = DecodeImage(nil)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestLoadImageMissingFile(t *testing.T) {
	_, err := LoadImage("/nonexistent/path/original.jpg")
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestHistogramSimilarityGrayPair(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 251)
	}

	// Single-channel input uses the 256-bin histogram path
	score := histogramSimilarity(gray, gray)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestFeatureSimilarityZeroKeypoints(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 100, 100))
	textured := preprocess(texturedImage(4))

	assert.Equal(t, 0.0, featureSimilarity(flat, textured))
	assert.Equal(t, 0.0, featureSimilarity(textured, flat))
}
