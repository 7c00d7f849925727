// Package autodj orders a set of tracks so that each transition follows the
// most compatible pairing available.
package autodj

import (
	"slices"

	"github.com/satindergrewal/automix/internal/compat"
)

// WeakLinkScore is the score below which compatibility scoring stops
// recommending a plain blend.
const WeakLinkScore = 45

// Graph is the complete compatibility graph of a track set. Edge weights are
// composite compatibility scores.
type Graph struct {
	scores [][]int
}

// NewGraph scores every ordered pair of tracks.
func NewGraph(features []compat.Features) *Graph {
	n := len(features)
	scores := make([][]int, n)
	for i := range scores {
		scores[i] = make([]int, n)
		for j := range scores[i] {
			if i != j {
				scores[i][j] = compat.Evaluate(features[i], features[j]).Score
			}
		}
	}
	return &Graph{scores: scores}
}

// Len returns the number of tracks.
func (g *Graph) Len() int { return len(g.scores) }

// Score returns the compatibility of mixing track i into track j.
func (g *Graph) Score(i, j int) int { return g.scores[i][j] }

// Adjacent lists the tracks that mix from i with at least minScore, best
// first. Ties keep index order.
func (g *Graph) Adjacent(i, minScore int) []int {
	var adj []int
	for j, s := range g.scores[i] {
		if j != i && s >= minScore {
			adj = append(adj, j)
		}
	}
	slices.SortStableFunc(adj, func(a, b int) int {
		return g.scores[i][b] - g.scores[i][a]
	})
	return adj
}

// Order walks the graph greedily from track 0, always moving to the unvisited
// track with the highest score. Ties keep input order.
func (g *Graph) Order() []int {
	n := g.Len()
	if n == 0 {
		return nil
	}
	visited := make([]bool, n)
	order := make([]int, 0, n)
	cur := 0
	for {
		visited[cur] = true
		order = append(order, cur)
		if len(order) == n {
			return order
		}
		next := -1
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			if next < 0 || g.scores[cur][j] > g.scores[cur][next] {
				next = j
			}
		}
		cur = next
	}
}

// WeakLinks returns the positions k in order where mixing order[k] into
// order[k+1] scores below minScore.
func (g *Graph) WeakLinks(order []int, minScore int) []int {
	var weak []int
	for k := 0; k+1 < len(order); k++ {
		if !slices.Contains(g.Adjacent(order[k], minScore), order[k+1]) {
			weak = append(weak, k)
		}
	}
	return weak
}

// Order returns a play order for features, as indices into it.
func Order(features []compat.Features) []int {
	return NewGraph(features).Order()
}
