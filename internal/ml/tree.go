package ml

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a fitted regression tree. Leaves carry the
// mean target of their samples; internal nodes split on
// x[Feature] <= Threshold.
type treeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Value     float64   `json:"value"`
	Leaf      bool      `json:"leaf,omitempty"`
}

// regressionTree is a CART regression tree grown by recursive
// variance-minimizing binary splits.
type regressionTree struct {
	Root *treeNode `json:"root"`
}

type treeConfig struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

// fitTree grows a tree over the sample indices idx, accumulating the
// total impurity decrease per feature into importance.
func fitTree(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand, importance []float64) *regressionTree {
	total := float64(len(idx))
	return &regressionTree{Root: growNode(X, y, idx, 0, cfg, rng, importance, total)}
}

func growNode(X [][]float64, y []float64, idx []int, depth int, cfg treeConfig, rng *rand.Rand, importance []float64, total float64) *treeNode {
	mean, sse := meanSSE(y, idx)

	if depth >= cfg.maxDepth || len(idx) < cfg.minSamplesSplit || sse == 0 {
		return &treeNode{Value: mean, Leaf: true}
	}

	feature, threshold, gain, leftIdx, rightIdx := bestSplit(X, y, idx, cfg, rng)
	if feature < 0 {
		return &treeNode{Value: mean, Leaf: true}
	}

	importance[feature] += gain * float64(len(idx)) / total

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Value:     mean,
		Left:      growNode(X, y, leftIdx, depth+1, cfg, rng, importance, total),
		Right:     growNode(X, y, rightIdx, depth+1, cfg, rng, importance, total),
	}
}

// bestSplit scans a random subset of features for the split with the
// largest SSE reduction honoring minSamplesLeaf. Returns feature -1 when
// no valid split exists.
func bestSplit(X [][]float64, y []float64, idx []int, cfg treeConfig, rng *rand.Rand) (int, float64, float64, []int, []int) {
	p := len(X[0])
	candidates := featureSample(p, cfg.maxFeatures, rng)

	_, parentSSE := meanSSE(y, idx)

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	sorted := make([]int, len(idx))

	for _, f := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		// Prefix sums over the sorted order let each candidate split be
		// evaluated in constant time.
		leftSum, leftSq := 0.0, 0.0
		totalSum, totalSq := 0.0, 0.0
		for _, i := range sorted {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		n := len(sorted)
		for k := 0; k < n-1; k++ {
			i := sorted[k]
			leftSum += y[i]
			leftSq += y[i] * y[i]

			// Can't split between equal feature values.
			if X[sorted[k]][f] == X[sorted[k+1]][f] {
				continue
			}

			nl := k + 1
			nr := n - nl
			if nl < cfg.minSamplesLeaf || nr < cfg.minSamplesLeaf {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			childSSE := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))

			gain := parentSSE - childSSE
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[sorted[k]][f] + X[sorted[k+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, 0, nil, nil
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][bestFeature] <= bestThreshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	return bestFeature, bestThreshold, bestGain, leftIdx, rightIdx
}

func featureSample(p, maxFeatures int, rng *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}

	perm := rng.Perm(p)
	return perm[:maxFeatures]
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))

	sse := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}

	return mean, sse
}

// predict walks one row down to a leaf.
func (t *regressionTree) predict(row []float64) float64 {
	node := t.Root
	for node != nil && !node.Leaf && node.Left != nil {
		if row[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Value
}
