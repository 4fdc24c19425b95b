// Package span builds a guide alignment from a sparse random graph of
// pairwise alignments and its maximum spanning tree.
package span

import (
	"sort"
)

// Partition stores disjoint sets of integers 0..n-1. Set ids are the
// lowest ids which ever belonged to the set, a merged set gets the
// lower id of the two.
type Partition struct {
	setOf []int
	sets  [][]int
	n     int
}

// NewPartition creates partition of n singleton sets.
func NewPartition(n int) *Partition {
	p := &Partition{
		setOf: make([]int, n),
		sets:  make([][]int, n),
		n:     n,
	}
	for i := 0; i < n; i++ {
		p.setOf[i] = i
		p.sets[i] = []int{i}
	}
	return p
}

// InSameSet returns true if i and j belong to the same set.
func (p *Partition) InSameSet(i, j int) bool {
	return p.setOf[i] == p.setOf[j]
}

// SetId returns the id of the set containing i.
func (p *Partition) SetId(i int) int {
	return p.setOf[i]
}

// Merge merges the sets containing i and j. Members of the set with
// higher id are moved to the set with lower id.
func (p *Partition) Merge(i, j int) {
	a, b := p.setOf[i], p.setOf[j]
	if a == b {
		return
	}
	if b < a {
		a, b = b, a
	}
	for _, k := range p.sets[b] {
		p.setOf[k] = a
	}
	p.sets[a] = append(p.sets[a], p.sets[b]...)
	p.sets[b] = nil
	p.n--
}

// NSets returns the number of sets.
func (p *Partition) NSets() int {
	return p.n
}

// Set returns sorted members of the set with id k, nil if there is no
// such set.
func (p *Partition) Set(k int) []int {
	if p.sets[k] == nil {
		return nil
	}
	s := append([]int(nil), p.sets[k]...)
	sort.Ints(s)
	return s
}
