package model

import (
	"fmt"
	"math"
)

// TreeNode is one node of a fitted decision tree. Leaves have Left and Right
// set to -1 and carry the class distribution in Value.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

func (n TreeNode) isLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Forest is a fitted tree ensemble classifier.
type Forest struct {
	FeatureNames []string `json:"feature_names"`
	Classes      []int    `json:"classes"`
	Trees        []Tree   `json:"trees"`
}

func (f *Forest) validate() error {
	if len(f.FeatureNames) == 0 {
		return fmt.Errorf("%w: forest has no feature names", ErrArtifactInvalid)
	}
	if len(f.Classes) == 0 {
		return fmt.Errorf("%w: forest has no classes", ErrArtifactInvalid)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrArtifactInvalid)
	}

	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrArtifactInvalid, t)
		}
		for i, node := range tree.Nodes {
			if node.isLeaf() {
				if len(node.Value) != len(f.Classes) {
					return fmt.Errorf("%w: tree %d leaf %d has %d values for %d classes",
						ErrArtifactInvalid, t, i, len(node.Value), len(f.Classes))
				}
				if err := checkDistribution(node.Value); err != nil {
					return fmt.Errorf("%w: tree %d leaf %d: %v", ErrArtifactInvalid, t, i, err)
				}
				continue
			}
			if node.Feature < 0 || node.Feature >= len(f.FeatureNames) {
				return fmt.Errorf("%w: tree %d node %d splits on feature %d", ErrArtifactInvalid, t, i, node.Feature)
			}
			// Children always follow their parent, which also rules out cycles.
			if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children", ErrArtifactInvalid, t, i)
			}
		}
	}
	return nil
}

// Predict averages the normalised leaf distributions of every tree and
// returns the class with the highest mean probability. Ties go to the
// earlier class.
func (f *Forest) Predict(row []float64) (int, []float64, error) {
	if len(row) != len(f.FeatureNames) {
		return 0, nil, fmt.Errorf("%w: forest expects %d features, got %d", ErrShapeMismatch, len(f.FeatureNames), len(row))
	}

	proba := make([]float64, len(f.Classes))
	for _, tree := range f.Trees {
		leaf := tree.leaf(row)
		total := 0.0
		for _, v := range leaf.Value {
			total += v
		}
		if total <= 0 {
			return 0, nil, fmt.Errorf("%w: leaf with empty class distribution", ErrArtifactInvalid)
		}
		for i, v := range leaf.Value {
			proba[i] += v / total
		}
	}

	best := 0
	for i := range proba {
		proba[i] /= float64(len(f.Trees))
		if math.IsNaN(proba[i]) {
			return 0, nil, fmt.Errorf("forest produced a non-finite probability")
		}
		if proba[i] > proba[best] {
			best = i
		}
	}
	return f.Classes[best], proba, nil
}

// checkDistribution requires finite, non-negative counts with a positive sum.
func checkDistribution(values []float64) error {
	total := 0.0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("class value %v is not a non-negative count", v)
		}
		total += v
	}
	if total <= 0 {
		return fmt.Errorf("class distribution sums to %v", total)
	}
	return nil
}

func (t Tree) leaf(row []float64) TreeNode {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.isLeaf() {
			return node
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
