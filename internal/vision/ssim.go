package vision

import "image"

// SSIM stabilization constants for 8-bit dynamic range
const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)

	ssimWindow = 8
)

// ssim computes the mean structural similarity index over non-overlapping
// windows of two equally sized grayscale images.
func ssim(a, b *image.Gray) float64 {
	bounds := a.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var total float64
	var windows int

	for wy := 0; wy+ssimWindow <= height; wy += ssimWindow {
		for wx := 0; wx+ssimWindow <= width; wx += ssimWindow {
			total += windowSSIM(a, b, wx, wy)
			windows++
		}
	}

	if windows == 0 {
		return 0
	}
	return total / float64(windows)
}

func windowSSIM(a, b *image.Gray, wx, wy int) float64 {
	const n = float64(ssimWindow * ssimWindow)

	var sumA, sumB float64
	for y := 0; y < ssimWindow; y++ {
		rowA := a.Pix[(wy+y)*a.Stride+wx:]
		rowB := b.Pix[(wy+y)*b.Stride+wx:]
		for x := 0; x < ssimWindow; x++ {
			sumA += float64(rowA[x])
			sumB += float64(rowB[x])
		}
	}
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB, cov float64
	for y := 0; y < ssimWindow; y++ {
		rowA := a.Pix[(wy+y)*a.Stride+wx:]
		rowB := b.Pix[(wy+y)*b.Stride+wx:]
		for x := 0; x < ssimWindow; x++ {
			da := float64(rowA[x]) - meanA
			db := float64(rowB[x]) - meanB
			varA += da * da
			varB += db * db
			cov += da * db
		}
	}
	varA /= n
	varB /= n
	cov /= n

	numerator := (2*meanA*meanB + ssimC1) * (2*cov + ssimC2)
	denominator := (meanA*meanA + meanB*meanB + ssimC1) * (varA + varB + ssimC2)

	return numerator / denominator
}
