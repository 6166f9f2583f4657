package riskmodel

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ensemble is a gradient-boosted regression tree model fit with squared
// error loss. Field names are exported for gob serialization.
type ensemble struct {
	Base         float64
	LearningRate float64
	Trees        []tree
}

type tree struct {
	Nodes []treeNode
}

// treeNode is a node in a flattened binary regression tree. Leaf nodes
// carry Value; internal nodes route on Feature < Threshold.
type treeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Leaf      bool
}

func trainEnsemble(x [][]float64, y []float64, estimators int, lr float64, maxDepth, minLeaf int) *ensemble {
	base := stat.Mean(y, nil)

	model := &ensemble{
		Base:         base,
		LearningRate: lr,
		Trees:        make([]tree, 0, estimators),
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = base
	}

	residuals := make([]float64, len(y))
	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}

	for t := 0; t < estimators; t++ {
		for i := range y {
			residuals[i] = y[i] - pred[i]
		}

		tr := buildTree(x, residuals, indices, maxDepth, minLeaf)
		model.Trees = append(model.Trees, tr)

		for i := range pred {
			pred[i] += lr * tr.predict(x[i])
		}
	}

	return model
}

func (e *ensemble) predict(x []float64) float64 {
	score := e.Base
	for i := range e.Trees {
		score += e.LearningRate * e.Trees[i].predict(x)
	}
	return score
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x       [][]float64
	y       []float64
	maxDep  int
	minLeaf int
	nodes   []treeNode
}

func buildTree(x [][]float64, y []float64, indices []int, maxDepth, minLeaf int) tree {
	b := &treeBuilder{x: x, y: y, maxDep: maxDepth, minLeaf: minLeaf}
	b.grow(indices, 0)
	return tree{Nodes: b.nodes}
}

// grow appends the subtree for the given sample indices and returns its
// root node index.
func (b *treeBuilder) grow(indices []int, depth int) int {
	if depth >= b.maxDep || len(indices) < 2*b.minLeaf {
		return b.leaf(indices)
	}

	feature, threshold, ok := b.bestSplit(indices)
	if !ok {
		return b.leaf(indices)
	}

	var left, right []int
	for _, i := range indices {
		if b.x[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: feature, Threshold: threshold})

	leftIdx := b.grow(left, depth+1)
	rightIdx := b.grow(right, depth+1)
	b.nodes[idx].Left = leftIdx
	b.nodes[idx].Right = rightIdx

	return idx
}

func (b *treeBuilder) leaf(indices []int) int {
	var sum float64
	for _, i := range indices {
		sum += b.y[i]
	}
	value := 0.0
	if len(indices) > 0 {
		value = sum / float64(len(indices))
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Leaf: true, Value: value})
	return idx
}

// bestSplit finds the split minimizing the summed squared error of the two
// partitions, scanning candidate thresholds per feature in sorted order.
func (b *treeBuilder) bestSplit(indices []int) (int, float64, bool) {
	features := len(b.x[indices[0]])

	var totalSum, totalSq float64
	for _, i := range indices {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	n := float64(len(indices))
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	parentSSE := totalSq - totalSum*totalSum/n

	order := make([]int, len(indices))
	for f := 0; f < features; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, c int) bool {
			return b.x[order[a]][f] < b.x[order[c]][f]
		})

		var leftSum, leftSq float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += b.y[i]
			leftSq += b.y[i] * b.y[i]

			leftN := float64(pos + 1)
			rightN := n - leftN
			if int(leftN) < b.minLeaf || int(rightN) < b.minLeaf {
				continue
			}

			cur := b.x[i][f]
			next := b.x[order[pos+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			gain := parentSSE - sse
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}
