package sumprod

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/rmodel"
	"github.com/mrrlab/histalign/tree"
)

// ErrMissingRow is returned when a tree leaf has no alignment row.
var ErrMissingRow = errors.New("no alignment row for a tree node")

// Counts stores sufficient statistics for the rate model estimation.
type Counts struct {
	// Alphabet of the rate model.
	Alphabet string `json:"alphabet"`
	// RootCount is the expected number of insertions of every
	// state.
	RootCount []float64 `json:"rootCount"`
	// SubCount is the expected number of substitutions, diagonal
	// elements are expected times spent in a state.
	SubCount [][]float64 `json:"subCount"`
	// LogLikelihood is the alignment log-likelihood.
	LogLikelihood float64 `json:"logLikelihood"`
	// Columns is the number of alignment columns.
	Columns int `json:"columns"`
}

// NewCounts creates Counts from root counts and a substitution count
// matrix.
func NewCounts(alphabet string, rootCounts []float64, subCounts *mat.Dense) *Counts {
	n := len(alphabet)
	c := &Counts{
		Alphabet:  alphabet,
		RootCount: append([]float64(nil), rootCounts...),
		SubCount:  make([][]float64, n),
	}
	for i := range c.SubCount {
		c.SubCount[i] = mat.Row(nil, i, subCounts)
	}
	return c
}

// Add adds other counts to c. Alphabets must be the same.
func (c *Counts) Add(other *Counts) error {
	if c.Alphabet != other.Alphabet {
		return fmt.Errorf("alphabet mismatch: %q vs %q", c.Alphabet, other.Alphabet)
	}
	for i, v := range other.RootCount {
		c.RootCount[i] += v
	}
	for i, row := range other.SubCount {
		for j, v := range row {
			c.SubCount[i][j] += v
		}
	}
	c.LogLikelihood += other.LogLikelihood
	c.Columns += other.Columns
	return nil
}

// CollectCounts computes alignment log-likelihood and expected
// counts. Rows are indexed by tree node id.
func CollectCounts(model *rmodel.RateModel, t *tree.Tree, gapped []bio.Sequence) (*Counts, error) {
	csp, err := New(model, t, gapped)
	if err != nil {
		return nil, err
	}
	n := model.AlphabetSize()
	rootCounts := make([]float64, n)
	eigenCounts := mat.NewCDense(n, n, nil)
	lnL := 0.0
	cols := 0
	for ; !csp.Done(); csp.Next() {
		csp.FillUp()
		csp.FillDown()
		lnL += csp.LogLikelihood()
		csp.AccumulateEigenCounts(rootCounts, eigenCounts)
		log.Debugf("Column #%d: lnL=%v", csp.Column(), csp.LogLikelihood())
		cols++
	}
	counts := NewCounts(model.Alphabet, rootCounts, csp.SubCounts(eigenCounts))
	counts.LogLikelihood = lnL
	counts.Columns = cols
	log.Infof("Alignment of %d columns, lnL=%v", cols, lnL)
	return counts, nil
}

// Reconstruct replaces wildcards by the states with maximum posterior
// probability. It returns the reconstructed rows and the alignment
// log-likelihood.
func Reconstruct(model *rmodel.RateModel, t *tree.Tree, gapped []bio.Sequence) ([]bio.Sequence, float64, error) {
	csp, err := New(model, t, gapped)
	if err != nil {
		return nil, 0, err
	}
	rows := make([][]byte, len(gapped))
	for i, row := range gapped {
		rows[i] = []byte(row.Sequence)
	}
	lnL := 0.0
	for ; !csp.Done(); csp.Next() {
		csp.FillUp()
		csp.FillDown()
		lnL += csp.LogLikelihood()
		for _, r := range csp.UngappedRows() {
			if csp.isWild(r) {
				rows[r][csp.Column()] = model.Alphabet[csp.MaxPostState(r)]
			}
		}
	}
	res := make([]bio.Sequence, len(gapped))
	for i, row := range gapped {
		res[i] = bio.Sequence{Name: row.Name, Sequence: string(rows[i])}
	}
	return res, lnL, nil
}

// RowsByNode orders alignment rows by tree node id using node names.
// If the alignment contains only leaves, internal rows are created by
// ImputeAncestors.
func RowsByNode(t *tree.Tree, seqs bio.Sequences) ([]bio.Sequence, error) {
	byName := make(map[string]bio.Sequence, len(seqs))
	for _, s := range seqs {
		byName[s.Name] = s
	}
	if len(seqs) == t.NLeaves() {
		leaves := make([]bio.Sequence, t.NNodes())
		for node := range t.Terminals() {
			s, ok := byName[node.Name]
			if !ok {
				return nil, pkgerrors.Wrapf(ErrMissingRow, "leaf %s", node.Name)
			}
			leaves[node.Id] = s
		}
		return ImputeAncestors(t, leaves)
	}
	if len(seqs) != t.NNodes() {
		return nil, pkgerrors.Wrapf(ErrRowMismatch, "%d nodes, %d rows", t.NNodes(), len(seqs))
	}
	rows := make([]bio.Sequence, t.NNodes())
	for _, node := range t.Nodes() {
		s, ok := byName[node.Name]
		if !ok {
			return nil, pkgerrors.Wrapf(ErrMissingRow, "node %s (id=%d)", node.Name, node.Id)
		}
		rows[node.Id] = s
	}
	return rows, nil
}

// ImputeAncestors fills internal node rows (indexed by node id) of an
// alignment which has only leaf rows. An internal node has a wildcard
// in a column if any of its descendant leaves has a residue, so every
// non-empty column is a connected subtree.
func ImputeAncestors(t *tree.Tree, leaves []bio.Sequence) ([]bio.Sequence, error) {
	if len(leaves) != t.NNodes() {
		return nil, pkgerrors.Wrapf(ErrRowMismatch, "%d nodes, %d rows", t.NNodes(), len(leaves))
	}
	length := -1
	for node := range t.Terminals() {
		s := leaves[node.Id].Sequence
		if length >= 0 && len(s) != length {
			return nil, pkgerrors.Wrapf(ErrRowLength, "row %s", node.Name)
		}
		length = len(s)
	}
	if length < 0 {
		length = 0
	}

	rows := make([]bio.Sequence, len(leaves))
	copy(rows, leaves)
	for _, node := range t.NodeOrder() {
		if node.IsTerminal() {
			continue
		}
		b := []byte(strings.Repeat(string(bio.GapChar), length))
		for _, child := range node.ChildNodes() {
			cs := rows[child.Id].Sequence
			for i := 0; i < length; i++ {
				if !bio.IsGap(cs[i]) {
					b[i] = bio.WildcardChar
				}
			}
		}
		name := node.Name
		if name == "" {
			name = fmt.Sprintf("node%d", node.Id)
		}
		rows[node.Id] = bio.Sequence{Name: name, Sequence: string(b)}
	}
	return rows, nil
}
