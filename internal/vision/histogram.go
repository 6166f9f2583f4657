package vision

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Histogram bin layout: a joint 8x8x8 color cube for multi-channel images,
// 256 intensity bins for single-channel input.
const (
	colorBinsPerChannel = 8
	colorBinShift       = 5 // 256 values -> 8 bins
	grayBins            = 256
)

// histogramSimilarity compares the color distributions of the raw
// (unpreprocessed) images via Pearson correlation of their L2-normalized
// histograms.
func histogramSimilarity(a, b image.Image) float64 {
	ha := computeHistogram(a)
	hb := computeHistogram(b)

	// A joint color histogram and a grayscale histogram are not comparable
	// bin for bin; fall back to grayscale histograms for a mixed pair.
	if len(ha) != len(hb) {
		ha = grayHistogram(a)
		hb = grayHistogram(b)
	}

	normalizeL2(ha)
	normalizeL2(hb)

	return stat.Correlation(ha, hb, nil)
}

func computeHistogram(img image.Image) []float64 {
	if gray, ok := img.(*image.Gray); ok {
		hist := make([]float64, grayBins)
		bounds := gray.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := gray.Pix[(y-bounds.Min.Y)*gray.Stride:]
			for x := 0; x < bounds.Dx(); x++ {
				hist[row[x]]++
			}
		}
		return hist
	}

	hist := make([]float64, colorBinsPerChannel*colorBinsPerChannel*colorBinsPerChannel)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			ri := (r >> 8) >> colorBinShift
			gi := (g >> 8) >> colorBinShift
			bi := (b >> 8) >> colorBinShift
			hist[ri*colorBinsPerChannel*colorBinsPerChannel+gi*colorBinsPerChannel+bi]++
		}
	}
	return hist
}

func grayHistogram(img image.Image) []float64 {
	hist := make([]float64, grayBins)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 601 luma
			luma := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			hist[luma]++
		}
	}
	return hist
}

func normalizeL2(hist []float64) {
	var sumSq float64
	for _, v := range hist {
		sumSq += v * v
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range hist {
		hist[i] /= norm
	}
}
