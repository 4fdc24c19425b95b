// Package align provides alignment paths, their merging and a simple
// pairwise aligner.
//
// An alignment path stores for every row (sequence index) and every
// column whether the row has a residue in the column. Paths do not
// store residues themselves, Gapped puts sequences and a path
// together.
package align

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/mrrlab/histalign/bio"
)

var (
	// ErrRowLength is returned when rows of a path have different
	// numbers of columns.
	ErrRowLength = errors.New("path rows have different lengths")
	// ErrResidueMismatch is returned when a row has a different
	// number of residues than expected.
	ErrResidueMismatch = errors.New("number of residues mismatch")
	// ErrDisconnectedPaths is returned when paths cannot be merged
	// because they don't share rows.
	ErrDisconnectedPaths = errors.New("paths don't share rows")
	// ErrCyclicPaths is returned when a path shares more than one row
	// with the paths merged before it.
	ErrCyclicPaths = errors.New("paths share more than one row")
	// ErrMissingRow is returned when a sequence has no path row.
	ErrMissingRow = errors.New("no path row for a sequence")
)

// Path maps row index to residue presence in every column.
type Path map[int][]bool

// Rows returns sorted row indices.
func (p Path) Rows() []int {
	rows := make([]int, 0, len(p))
	for r := range p {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}

// Columns returns the number of columns. Rows are assumed to have
// the same length.
func (p Path) Columns() int {
	for _, row := range p {
		return len(row)
	}
	return 0
}

// Residues returns the number of residues in a row.
func (p Path) Residues(row int) (n int) {
	for _, present := range p[row] {
		if present {
			n++
		}
	}
	return
}

// Check tests that all the rows have the same length.
func (p Path) Check() error {
	cols := -1
	for _, r := range p.Rows() {
		if cols >= 0 && len(p[r]) != cols {
			return pkgerrors.Wrapf(ErrRowLength, "row %d", r)
		}
		cols = len(p[r])
	}
	return nil
}

// String returns a human-readable representation, one line per row.
func (p Path) String() string {
	var b strings.Builder
	for _, r := range p.Rows() {
		fmt.Fprintf(&b, "%d ", r)
		for _, present := range p[r] {
			if present {
				b.WriteByte('*')
			} else {
				b.WriteByte(bio.GapChar)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Merge unites paths into one. Paths should form a tree: every path
// must share exactly one row with the union of the paths merged
// before it (in any order). The order of the columns with a gap in
// the shared row is: columns of the already merged rows first.
func Merge(paths []Path) (Path, error) {
	if len(paths) == 0 {
		return Path{}, nil
	}
	for _, p := range paths {
		if err := p.Check(); err != nil {
			return nil, err
		}
	}
	merged := copyPath(paths[0])
	pending := paths[1:]
	for len(pending) > 0 {
		next := pending[:0:0]
		progress := false
		for _, p := range pending {
			shared := -1
			nShared := 0
			for _, r := range p.Rows() {
				if _, ok := merged[r]; ok {
					if shared < 0 {
						shared = r
					}
					nShared++
				}
			}
			switch {
			case nShared == 0:
				next = append(next, p)
			case nShared > 1:
				return nil, ErrCyclicPaths
			default:
				var err error
				merged, err = mergePair(merged, p, shared)
				if err != nil {
					return nil, err
				}
				progress = true
			}
		}
		if !progress {
			return nil, ErrDisconnectedPaths
		}
		pending = next
	}
	return merged, nil
}

func copyPath(p Path) Path {
	c := make(Path, len(p))
	for r, row := range p {
		c[r] = append([]bool(nil), row...)
	}
	return c
}

// mergePair merges two paths sharing one row.
func mergePair(m, p Path, shared int) (Path, error) {
	if m.Residues(shared) != p.Residues(shared) {
		return nil, pkgerrors.Wrapf(ErrResidueMismatch, "shared row %d: %d vs %d",
			shared, m.Residues(shared), p.Residues(shared))
	}
	mRows := m.Rows()
	pRows := p.Rows()
	res := make(Path, len(m)+len(p)-1)
	for _, r := range mRows {
		res[r] = make([]bool, 0, m.Columns()+p.Columns())
	}
	for _, r := range pRows {
		if r != shared {
			res[r] = make([]bool, 0, m.Columns()+p.Columns())
		}
	}

	emit := func(i, j int) {
		for _, r := range mRows {
			res[r] = append(res[r], i >= 0 && m[r][i])
		}
		for _, r := range pRows {
			if r == shared {
				if j >= 0 && p[r][j] {
					res[r][len(res[r])-1] = true
				}
				continue
			}
			res[r] = append(res[r], j >= 0 && p[r][j])
		}
	}

	ms, ps := m[shared], p[shared]
	i, j := 0, 0
	for i < len(ms) || j < len(ps) {
		switch {
		case i < len(ms) && !ms[i]:
			emit(i, -1)
			i++
		case j < len(ps) && !ps[j]:
			emit(-1, j)
			j++
		case i < len(ms) && j < len(ps):
			emit(i, j)
			i++
			j++
		default:
			panic("shared row residues are out of sync")
		}
	}
	return res, nil
}

// Gapped creates gapped sequences from ungapped sequences and a path.
// Path rows are indices of seqs.
func Gapped(seqs []bio.Sequence, p Path) ([]bio.Sequence, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}
	cols := p.Columns()
	res := make([]bio.Sequence, len(seqs))
	for r, seq := range seqs {
		row, ok := p[r]
		if !ok {
			return nil, pkgerrors.Wrapf(ErrMissingRow, "sequence %s", seq.Name)
		}
		if p.Residues(r) != len(seq.Sequence) {
			return nil, pkgerrors.Wrapf(ErrResidueMismatch, "sequence %s: %d residues, path has %d",
				seq.Name, len(seq.Sequence), p.Residues(r))
		}
		b := make([]byte, cols)
		pos := 0
		for c, present := range row {
			if present {
				b[c] = seq.Sequence[pos]
				pos++
			} else {
				b[c] = bio.GapChar
			}
		}
		res[r] = bio.Sequence{Name: seq.Name, Sequence: string(b)}
	}
	return res, nil
}

// FromGapped creates a path from gapped sequences.
func FromGapped(gapped []bio.Sequence) (Path, error) {
	p := make(Path, len(gapped))
	for r, seq := range gapped {
		row := make([]bool, len(seq.Sequence))
		for c := 0; c < len(seq.Sequence); c++ {
			row[c] = !bio.IsGap(seq.Sequence[c])
		}
		p[r] = row
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}
