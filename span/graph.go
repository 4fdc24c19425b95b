package span

import (
	"errors"
	"math"
	"math/rand"

	"github.com/op/go-logging"
	pkgerrors "github.com/pkg/errors"

	"github.com/mrrlab/histalign/align"
	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/rmodel"
)

var log = logging.MustGetLogger("span")

// ErrTooFewSequences is returned when less than two sequences are
// given.
var ErrTooFewSequences = errors.New("need at least two sequences")

// AlignGraph is a sparse graph of pairwise alignments.
type AlignGraph struct {
	seqs   []bio.Sequence
	edges  []edgeQueue
	nEdges int
}

// RedundancyTarget returns the number of edges sampled for n
// sequences: ceil(n log2 n), but not more than the number of pairs.
func RedundancyTarget(n int) int {
	pairs := n * (n - 1) / 2
	target := int(math.Ceil(float64(n) * math.Log2(float64(n))))
	if target > pairs {
		return pairs
	}
	return target
}

// NewAlignGraph aligns random pairs of sequences until there are
// enough edges and the graph is connected. Sequences are ungapped
// before alignment.
func NewAlignGraph(seqs []bio.Sequence, m *rmodel.RateModel, aligner align.PairAligner, t float64, rng *rand.Rand) (*AlignGraph, error) {
	n := len(seqs)
	if n < 2 {
		return nil, ErrTooFewSequences
	}
	g := &AlignGraph{
		seqs:  make([]bio.Sequence, n),
		edges: make([]edgeQueue, n),
	}
	tokens := make([][]int, n)
	for i, s := range seqs {
		g.seqs[i] = s.Ungapped()
		var err error
		tokens[i], err = m.TokenizeString(g.seqs[i].Sequence)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "sequence %s", s.Name)
		}
	}

	target := RedundancyTarget(n)
	part := NewPartition(n)
	done := make(map[[2]int]bool)
	for g.nEdges < target || part.NSets() > 1 {
		i := rng.Intn(n)
		j := rng.Intn(n)
		if i == j {
			continue
		}
		if i > j {
			i, j = j, i
		}
		if done[[2]int{i, j}] {
			continue
		}
		done[[2]int{i, j}] = true

		p, lp, err := aligner.Align(tokens[i], tokens[j], t)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "aligning %s and %s", g.seqs[i].Name, g.seqs[j].Name)
		}
		e := &Edge{
			Row1:    i,
			Row2:    j,
			LogProb: lp,
			Path:    align.Path{i: p[0], j: p[1]},
			order:   g.nEdges,
		}
		g.edges[i].push(e)
		g.edges[j].push(e)
		g.nEdges++
		part.Merge(i, j)
		log.Infof("Aligned %s and %s (%d edges, %d disconnected sets)",
			g.seqs[i].Name, g.seqs[j].Name, g.nEdges, part.NSets())
	}
	return g, nil
}

// NEdges returns the number of computed pairwise alignments.
func (g *AlignGraph) NEdges() int {
	return g.nEdges
}

// Sequences returns the ungapped sequences.
func (g *AlignGraph) Sequences() []bio.Sequence {
	return g.seqs
}

// MinSpanTree returns paths of the maximum score spanning tree. The
// tree is grown from sequence 0, at every step the best edge leaving
// the tree is chosen.
func (g *AlignGraph) MinSpanTree() []align.Path {
	edges := g.spanEdges()
	paths := make([]align.Path, len(edges))
	for i, e := range edges {
		paths[i] = e.Path
	}
	return paths
}

// spanEdges returns spanning tree edges in the order they were
// chosen. Edges within the tree are discarded lazily.
func (g *AlignGraph) spanEdges() []*Edge {
	n := len(g.seqs)
	queues := make([]edgeQueue, n)
	for i := range g.edges {
		queues[i] = g.edges[i].copy()
	}
	part := NewPartition(n)
	edges := make([]*Edge, 0, n-1)
	for part.NSets() > 1 {
		var best *Edge
		from := -1
		for _, row := range part.Set(0) {
			q := &queues[row]
			for q.Len() > 0 && part.InSameSet(q.top().Row1, q.top().Row2) {
				q.pop()
			}
			if e := q.top(); e != nil && (best == nil || e.better(best)) {
				best, from = e, row
			}
		}
		if best == nil {
			panic("found no valid edge")
		}
		edges = append(edges, best)
		part.Merge(best.Row1, best.Row2)
		log.Infof("Joined %s to %s (score %v, %d sets left)",
			g.seqs[best.Other(from)].Name, g.seqs[from].Name, best.LogProb, part.NSets())
	}
	return edges
}

// MSTPath merges spanning tree paths into one alignment path.
func (g *AlignGraph) MSTPath() (align.Path, error) {
	return align.Merge(g.MinSpanTree())
}

// GuideAlignment returns the gapped guide alignment.
func (g *AlignGraph) GuideAlignment() ([]bio.Sequence, error) {
	p, err := g.MSTPath()
	if err != nil {
		return nil, err
	}
	return align.Gapped(g.seqs, p)
}
