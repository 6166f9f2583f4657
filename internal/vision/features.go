package vision

import (
	"image"
	"math"
	"math/bits"
	"math/rand"
	"sort"
)

// Keypoint detection and matching parameters
const (
	fastThreshold  = 20
	fastArcLength  = 9
	maxKeypoints   = 500
	patchRadius    = 15
	descriptorBits = 256
	descriptorLen  = descriptorBits / 8
	orientRadius   = 7
)

// Offsets of the 16-pixel Bresenham circle of radius 3 used by the
// segment-test corner detector.
var circleOffsets = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// briefPattern is the fixed pseudo-random sampling pattern for the binary
// descriptor. Generated once with a fixed seed so descriptors are stable
// across runs and across the two images of a pair.
var briefPattern = makeBriefPattern()

type briefTest struct {
	ax, ay, bx, by int
}

func makeBriefPattern() []briefTest {
	rng := rand.New(rand.NewSource(42))
	pattern := make([]briefTest, descriptorBits)
	for i := range pattern {
		pattern[i] = briefTest{
			ax: rng.Intn(2*13+1) - 13,
			ay: rng.Intn(2*13+1) - 13,
			bx: rng.Intn(2*13+1) - 13,
			by: rng.Intn(2*13+1) - 13,
		}
	}
	return pattern
}

type keypoint struct {
	x, y  int
	score int
	angle float64
}

type descriptor [descriptorLen]byte

// featureSimilarity detects keypoints on both preprocessed images, matches
// their binary descriptors with mutual-consistency filtering and returns the
// matched fraction. Zero keypoints on either side yields 0.0 by design.
func featureSimilarity(a, b *image.Gray) float64 {
	kpsA, descA := detectAndCompute(a)
	kpsB, descB := detectAndCompute(b)

	if len(descA) == 0 || len(descB) == 0 {
		return 0.0
	}

	matches := mutualMatches(descA, descB)

	denom := len(kpsA)
	if len(kpsB) > denom {
		denom = len(kpsB)
	}
	return float64(matches) / float64(denom)
}

// detectAndCompute runs corner detection, keeps the strongest corners after
// non-maximum suppression and computes an oriented binary descriptor per
// keypoint.
func detectAndCompute(img *image.Gray) ([]keypoint, []descriptor) {
	candidates := detectCorners(img)
	candidates = suppressNonMax(candidates)

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxKeypoints {
		candidates = candidates[:maxKeypoints]
	}

	descriptors := make([]descriptor, len(candidates))
	for i := range candidates {
		candidates[i].angle = orientation(img, candidates[i].x, candidates[i].y)
		descriptors[i] = computeDescriptor(img, candidates[i])
	}

	return candidates, descriptors
}

// detectCorners runs a FAST-style segment test: a pixel is a corner when at
// least fastArcLength contiguous circle pixels are all brighter or all darker
// than it by the threshold.
func detectCorners(img *image.Gray) []keypoint {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	margin := patchRadius + 3

	var corners []keypoint
	for y := margin; y < height-margin; y++ {
		for x := margin; x < width-margin; x++ {
			center := int(img.Pix[y*img.Stride+x])
			if score, ok := segmentTest(img, x, y, center); ok {
				corners = append(corners, keypoint{x: x, y: y, score: score})
			}
		}
	}
	return corners
}

func segmentTest(img *image.Gray, x, y, center int) (int, bool) {
	var brighter, darker uint16
	score := 0

	for i, off := range circleOffsets {
		v := int(img.Pix[(y+off[1])*img.Stride+x+off[0]])
		diff := v - center
		if diff > fastThreshold {
			brighter |= 1 << i
			score += diff
		} else if diff < -fastThreshold {
			darker |= 1 << i
			score -= diff
		}
	}

	if hasContiguousArc(brighter) || hasContiguousArc(darker) {
		return score, true
	}
	return 0, false
}

// hasContiguousArc reports whether the 16-bit circle mask contains a run of
// fastArcLength set bits, treating the circle as circular.
func hasContiguousArc(mask uint16) bool {
	if mask == 0 {
		return false
	}
	extended := uint32(mask) | uint32(mask)<<16
	run := 0
	for i := 0; i < 32; i++ {
		if extended&(1<<i) != 0 {
			run++
			if run >= fastArcLength {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// suppressNonMax keeps only corners that are local score maxima in their
// 3x3 neighborhood.
func suppressNonMax(corners []keypoint) []keypoint {
	scores := make(map[[2]int]int, len(corners))
	for _, kp := range corners {
		scores[[2]int{kp.x, kp.y}] = kp.score
	}

	kept := corners[:0]
	for _, kp := range corners {
		isMax := true
		for dy := -1; dy <= 1 && isMax; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if s, ok := scores[[2]int{kp.x + dx, kp.y + dy}]; ok && s > kp.score {
					isMax = false
					break
				}
			}
		}
		if isMax {
			kept = append(kept, kp)
		}
	}
	return kept
}

// orientation computes the intensity-centroid angle of the patch around the
// keypoint, giving the descriptor rotation invariance.
func orientation(img *image.Gray, x, y int) float64 {
	var m10, m01 float64
	for dy := -orientRadius; dy <= orientRadius; dy++ {
		for dx := -orientRadius; dx <= orientRadius; dx++ {
			if dx*dx+dy*dy > orientRadius*orientRadius {
				continue
			}
			v := float64(img.Pix[(y+dy)*img.Stride+x+dx])
			m10 += float64(dx) * v
			m01 += float64(dy) * v
		}
	}
	return math.Atan2(m01, m10)
}

// computeDescriptor evaluates the steered binary test pattern at the keypoint
func computeDescriptor(img *image.Gray, kp keypoint) descriptor {
	var desc descriptor
	sin, cos := math.Sincos(kp.angle)

	for i, test := range briefPattern {
		ax, ay := rotatePoint(test.ax, test.ay, sin, cos)
		bx, by := rotatePoint(test.bx, test.by, sin, cos)

		va := img.Pix[(kp.y+ay)*img.Stride+kp.x+ax]
		vb := img.Pix[(kp.y+by)*img.Stride+kp.x+bx]
		if va < vb {
			desc[i/8] |= 1 << (i % 8)
		}
	}
	return desc
}

func rotatePoint(x, y int, sin, cos float64) (int, int) {
	rx := int(math.Round(float64(x)*cos - float64(y)*sin))
	ry := int(math.Round(float64(x)*sin + float64(y)*cos))
	return clampOffset(rx), clampOffset(ry)
}

func clampOffset(v int) int {
	if v > patchRadius {
		return patchRadius
	}
	if v < -patchRadius {
		return -patchRadius
	}
	return v
}

// mutualMatches counts nearest-neighbor matches under Hamming distance that
// agree in both directions.
func mutualMatches(descA, descB []descriptor) int {
	nnAB := nearestNeighbors(descA, descB)
	nnBA := nearestNeighbors(descB, descA)

	matches := 0
	for i, j := range nnAB {
		if nnBA[j] == i {
			matches++
		}
	}
	return matches
}

func nearestNeighbors(queries, targets []descriptor) []int {
	nn := make([]int, len(queries))
	for i, q := range queries {
		best := -1
		bestDist := descriptorBits + 1
		for j, t := range targets {
			d := hammingDistance(q, t)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		nn[i] = best
	}
	return nn
}

func hammingDistance(a, b descriptor) int {
	dist := 0
	for i := 0; i < descriptorLen; i++ {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist
}
