package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrImageDecode is returned when image data cannot be decoded
var ErrImageDecode = errors.New("unable to decode image")

// ErrMissingImage is returned when an image argument is nil
var ErrMissingImage = errors.New("both original and returned images are required")

// Similarity weights and defaults
const (
	ssimWeight    = 0.4
	histWeight    = 0.3
	featureWeight = 0.3

	defaultSimilarityThreshold = 0.7

	canonicalSize = 800
	blurSigma     = 1.0
)

// ComparisonResult holds the similarity measures between an original and a
// returned product photo. Scores are nominally in [0,1]; the correlation
// based histogram score can be negative for strongly dissimilar images.
type ComparisonResult struct {
	SSIMScore           float64 `json:"ssim_score"`
	HistogramSimilarity float64 `json:"histogram_similarity"`
	FeatureSimilarity   float64 `json:"feature_similarity"`
	OverallSimilarity   float64 `json:"overall_similarity"`
	IsSuspicious        bool    `json:"is_suspicious"`
}

// Inspector compares product photos. Safe for concurrent use.
type Inspector struct {
	threshold float64
}

// NewInspector creates an inspector. A non-positive threshold selects the
// default of 0.7.
func NewInspector(threshold float64) *Inspector {
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}
	return &Inspector{threshold: threshold}
}

// Compare computes SSIM, histogram and feature similarity between the two
// images and aggregates them into an overall score.
func (ins *Inspector) Compare(original, returned image.Image) (*ComparisonResult, error) {
	if original == nil || returned == nil {
		return nil, ErrMissingImage
	}

	// SSIM and feature matching work on the preprocessed grayscale pair;
	// histogram comparison uses the raw images.
	originalPre := preprocess(original)
	returnedPre := preprocess(returned)

	ssimScore := ssim(originalPre, returnedPre)
	histScore := histogramSimilarity(original, returned)
	featScore := featureSimilarity(originalPre, returnedPre)

	overall := ssimWeight*ssimScore + histWeight*histScore + featureWeight*featScore

	return &ComparisonResult{
		SSIMScore:           ssimScore,
		HistogramSimilarity: histScore,
		FeatureSimilarity:   featScore,
		OverallSimilarity:   overall,
		IsSuspicious:        overall < ins.threshold,
	}, nil
}

// LoadImage loads an image from a file path
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageDecode, path, err)
	}
	return img, nil
}

// DecodeImage decodes an image from raw encoded bytes
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrImageDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return img, nil
}

// preprocess converts to grayscale, resizes to the canonical resolution and
// applies a light blur to suppress sensor noise.
func preprocess(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)
	resized := imaging.Resize(gray, canonicalSize, canonicalSize, imaging.Linear)
	blurred := imaging.Blur(resized, blurSigma)
	return toGray(blurred)
}

// toGray flattens an already-grayscale NRGBA image to a single channel
func toGray(img *image.NRGBA) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			out.SetGray(x, y, color.Gray{Y: img.Pix[i]})
		}
	}
	return out
}
