package span

import (
	"container/heap"

	"github.com/mrrlab/histalign/align"
)

// Edge is a pairwise alignment of two rows.
type Edge struct {
	Row1, Row2 int
	LogProb    float64
	Path       align.Path
	// order is the insertion number, earlier edges win ties
	order int
}

// Other returns the other end of the edge.
func (e *Edge) Other(row int) int {
	if e.Row1 == row {
		return e.Row2
	}
	return e.Row1
}

// better returns true if e is preferred over o.
func (e *Edge) better(o *Edge) bool {
	if e.LogProb != o.LogProb {
		return e.LogProb > o.LogProb
	}
	return e.order < o.order
}

// edgeQueue is a max-heap of edges.
type edgeQueue []*Edge

func (q edgeQueue) Len() int           { return len(q) }
func (q edgeQueue) Less(i, j int) bool { return q[i].better(q[j]) }
func (q edgeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *edgeQueue) Push(x interface{}) {
	*q = append(*q, x.(*Edge))
}

func (q *edgeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// top returns the best edge or nil.
func (q edgeQueue) top() *Edge {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *edgeQueue) push(e *Edge) {
	heap.Push(q, e)
}

func (q *edgeQueue) pop() *Edge {
	return heap.Pop(q).(*Edge)
}

func (q edgeQueue) copy() edgeQueue {
	return append(edgeQueue(nil), q...)
}
