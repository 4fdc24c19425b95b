// Package sumprod implements column-by-column sum-product
// (inside-outside) inference on a multiple alignment with a tree.
//
// Every tree node has an alignment row. Leaves carry observed
// residues or gaps, internal nodes carry wildcards or gaps. Within a
// column the non-gap rows must form one connected subtree; its top
// node (the column root) is where the residue was inserted, so the
// insertion distribution of the rate model serves as the prior there.
//
// For every column the usual cycle is:
//
//	for ; !csp.Done(); csp.Next() {
//		csp.FillUp()
//		csp.FillDown()
//		// query posteriors or accumulate counts
//	}
//
// All the probabilities are kept in log space.
package sumprod

import (
	"errors"
	"fmt"
	"math"

	"github.com/op/go-logging"
	pkgerrors "github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/eigen"
	"github.com/mrrlab/histalign/rmodel"
	"github.com/mrrlab/histalign/tree"
)

var log = logging.MustGetLogger("sumprod")

var (
	// ErrRowMismatch is returned when the number of alignment rows
	// differs from the number of tree nodes.
	ErrRowMismatch = errors.New("every tree node must have an alignment row")
	// ErrRowLength is returned when alignment rows have different
	// lengths.
	ErrRowLength = errors.New("alignment rows have different lengths")
	// ErrUnknownSymbol is returned for characters which are neither
	// gaps, wildcards nor alphabet symbols.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// ColumnSumProduct stores per-column inference state.
type ColumnSumProduct struct {
	model  *rmodel.RateModel
	eigen  *eigen.EigenModel
	tree   *tree.Tree
	gapped []bio.Sequence
	nodes  []*tree.Node
	order  []*tree.Node
	// parent and sibling node ids, -1 for the root
	parent  []int
	sibling []int

	logInsProb []float64
	// branchLogSubProb[node][i][j] is log P(j|i) on the branch
	// leading to node
	branchLogSubProb    [][][]float64
	branchSubProb       []*mat.Dense
	branchEigenSubCount []*mat.CDense

	col          int
	present      []bool
	ungappedRows []int

	// up is the evidence from below the node, upProp is up pushed
	// through the branch to the parent, down is the evidence from
	// the rest of the tree at the node (including the prior)
	up, upProp, down [][]float64
	colLogLike       float64

	scratch []float64
}

// New creates ColumnSumProduct for the gapped alignment. Rows are
// indexed by tree node id. The tree must be binary. Branch
// substitution matrices are computed once for all the columns.
func New(model *rmodel.RateModel, t *tree.Tree, gapped []bio.Sequence) (*ColumnSumProduct, error) {
	nNodes := t.NNodes()
	if nNodes != len(gapped) {
		return nil, pkgerrors.Wrapf(ErrRowMismatch, "%d nodes, %d rows", nNodes, len(gapped))
	}
	if !t.IsBinary() {
		return nil, tree.ErrNonBinary
	}
	for _, row := range gapped {
		if len(row.Sequence) != len(gapped[0].Sequence) {
			return nil, pkgerrors.Wrapf(ErrRowLength, "row %s", row.Name)
		}
		for i := 0; i < len(row.Sequence); i++ {
			c := row.Sequence[i]
			if _, ok := model.Tokenize(c); !ok && !bio.IsGap(c) && !bio.IsWildcard(c) {
				return nil, pkgerrors.Wrapf(ErrUnknownSymbol, "%q in row %s, column %d", c, row.Name, i+1)
			}
		}
	}

	n := model.AlphabetSize()
	csp := &ColumnSumProduct{
		model:               model,
		eigen:               eigen.New(model),
		tree:                t,
		gapped:              gapped,
		nodes:               t.Nodes(),
		order:               t.NodeOrder(),
		parent:              make([]int, nNodes),
		sibling:             make([]int, nNodes),
		logInsProb:          make([]float64, n),
		branchLogSubProb:    make([][][]float64, nNodes),
		branchSubProb:       make([]*mat.Dense, nNodes),
		branchEigenSubCount: make([]*mat.CDense, nNodes),
		present:             make([]bool, nNodes),
		ungappedRows:        make([]int, 0, nNodes),
		up:                  newVectors(nNodes, n),
		upProp:              newVectors(nNodes, n),
		down:                newVectors(nNodes, n),
		scratch:             make([]float64, n),
	}
	for i, p := range model.InsProb {
		csp.logInsProb[i] = math.Log(p)
	}

	for _, node := range csp.nodes {
		r := node.Id
		if node.IsRoot() {
			csp.parent[r] = -1
			csp.sibling[r] = -1
			continue
		}
		csp.parent[r] = node.Parent.Id
		sib, err := node.Sibling()
		if err != nil {
			return nil, err
		}
		csp.sibling[r] = sib.Id

		sub := csp.eigen.SubProbMatrix(node.BranchLength)
		csp.branchSubProb[r] = sub
		csp.branchLogSubProb[r] = make([][]float64, n)
		for i := 0; i < n; i++ {
			csp.branchLogSubProb[r][i] = make([]float64, n)
			for j := 0; j < n; j++ {
				csp.branchLogSubProb[r][i][j] = math.Log(sub.At(i, j))
			}
		}
		csp.branchEigenSubCount[r] = csp.eigen.EigenSubCount(node.BranchLength)
	}

	if !csp.Done() {
		csp.initColumn()
	}
	return csp, nil
}

func newVectors(m, n int) [][]float64 {
	v := make([][]float64, m)
	for i := range v {
		v[i] = make([]float64, n)
	}
	return v
}

// Eigen returns the eigen model used for the inference.
func (csp *ColumnSumProduct) Eigen() *eigen.EigenModel {
	return csp.eigen
}

// Column returns the current column index.
func (csp *ColumnSumProduct) Column() int {
	return csp.col
}

// Done returns true when all the columns were processed.
func (csp *ColumnSumProduct) Done() bool {
	return len(csp.gapped) == 0 || csp.col >= len(csp.gapped[0].Sequence)
}

// Next advances to the next column.
func (csp *ColumnSumProduct) Next() {
	csp.col++
	if !csp.Done() {
		csp.initColumn()
	}
}

// Empty returns true if all the rows are gaps in the current column.
func (csp *ColumnSumProduct) Empty() bool {
	return len(csp.ungappedRows) == 0
}

// Root returns the top non-gap node of the current column. Column
// must not be empty.
func (csp *ColumnSumProduct) Root() int {
	return csp.ungappedRows[len(csp.ungappedRows)-1]
}

// UngappedRows returns non-gap rows of the current column in
// postorder.
func (csp *ColumnSumProduct) UngappedRows() []int {
	return csp.ungappedRows
}

// Present tests if a node has a residue in the current column.
func (csp *ColumnSumProduct) Present(node int) bool {
	return csp.present[node]
}

func (csp *ColumnSumProduct) char(node int) byte {
	return csp.gapped[node].Sequence[csp.col]
}

func (csp *ColumnSumProduct) isWild(node int) bool {
	return bio.IsWildcard(csp.char(node))
}

func (csp *ColumnSumProduct) initColumn() {
	csp.ungappedRows = csp.ungappedRows[:0]
	for _, node := range csp.order {
		csp.present[node.Id] = !bio.IsGap(csp.char(node.Id))
	}
	roots := 0
	for _, node := range csp.order {
		r := node.Id
		if !csp.present[r] {
			continue
		}
		csp.ungappedRows = append(csp.ungappedRows, r)
		if !node.IsTerminal() && !csp.isWild(r) {
			panic(fmt.Sprintf("at node %d (%s), column %d (%c): internal node sequences must be wildcards (%c)",
				r, node.Name, csp.col, csp.char(r), bio.WildcardChar))
		}
		if rp := csp.parent[r]; rp < 0 || !csp.present[rp] {
			roots++
		}
	}
	if roots > 1 {
		panic(fmt.Sprintf("column %d: multiple root nodes", csp.col))
	}
}

// siblingLogUp returns evidence of the node's sibling subtree pushed
// to the parent. A gapped sibling contributes nothing.
func (csp *ColumnSumProduct) siblingLogUp(node, state int) float64 {
	rs := csp.sibling[node]
	if rs < 0 || !csp.present[rs] {
		return 0
	}
	return csp.upProp[rs][state]
}

// FillUp performs the upward (inside) pass and computes the column
// log-likelihood.
func (csp *ColumnSumProduct) FillUp() {
	n := csp.model.AlphabetSize()
	csp.colLogLike = 0
	for idx, r := range csp.ungappedRows {
		up := csp.up[r]
		if csp.isWild(r) {
			for i := range up {
				up[i] = 0
			}
			for _, child := range csp.nodes[r].ChildNodes() {
				if csp.present[child.Id] {
					floats.Add(up, csp.upProp[child.Id])
				}
			}
		} else {
			tok, _ := csp.model.Tokenize(csp.char(r))
			for i := range up {
				up[i] = math.Inf(-1)
			}
			up[tok] = 0
		}

		if idx == len(csp.ungappedRows)-1 {
			csp.colLogLike = csp.logInnerProduct(up, csp.logInsProb)
		} else {
			for i := 0; i < n; i++ {
				floats.AddTo(csp.scratch, csp.branchLogSubProb[r][i], up)
				csp.upProp[r][i] = floats.LogSumExp(csp.scratch)
			}
		}
	}
}

// FillDown performs the downward (outside) pass. FillUp must be
// called first.
func (csp *ColumnSumProduct) FillDown() {
	if csp.Empty() {
		return
	}
	n := csp.model.AlphabetSize()
	copy(csp.down[csp.Root()], csp.logInsProb)
	for idx := len(csp.ungappedRows) - 2; idx >= 0; idx-- {
		r := csp.ungappedRows[idx]
		rp := csp.parent[r]
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				csp.scratch[i] = csp.down[rp][i] + csp.branchLogSubProb[r][i][j] + csp.siblingLogUp(r, i)
			}
			csp.down[r][j] = floats.LogSumExp(csp.scratch)
		}
	}
}

func (csp *ColumnSumProduct) logInnerProduct(a, b []float64) float64 {
	floats.AddTo(csp.scratch, a, b)
	return floats.LogSumExp(csp.scratch)
}

// LogLikelihood returns the log-likelihood of the current column.
func (csp *ColumnSumProduct) LogLikelihood() float64 {
	return csp.colLogLike
}

// LogNodePostProb returns log posterior probabilities of the node
// states.
func (csp *ColumnSumProduct) LogNodePostProb(node int) []float64 {
	lpp := make([]float64, csp.model.AlphabetSize())
	for i := range lpp {
		lpp[i] = csp.up[node][i] + csp.down[node][i] - csp.colLogLike
	}
	return lpp
}

// LogBranchPostProb returns log posterior probability of the parent
// being in parentState and the node being in nodeState.
func (csp *ColumnSumProduct) LogBranchPostProb(node, parentState, nodeState int) float64 {
	parent := csp.parent[node]
	return csp.down[parent][parentState] + csp.branchLogSubProb[node][parentState][nodeState] +
		csp.up[node][nodeState] + csp.siblingLogUp(node, parentState) - csp.colLogLike
}

// MaxPostState returns the most probable state of the node.
func (csp *ColumnSumProduct) MaxPostState(node int) int {
	return floats.MaxIdx(csp.LogNodePostProb(node))
}

// AccumulateRootCounts adds expected root state counts.
func (csp *ColumnSumProduct) AccumulateRootCounts(rootCounts []float64) {
	if csp.Empty() {
		return
	}
	root := csp.Root()
	for i := range rootCounts {
		rootCounts[i] += math.Exp(csp.logInsProb[i] + csp.up[root][i] - csp.colLogLike)
	}
}

// AccumulateSubCounts adds expected root state counts and expected
// substitution counts (diagonal contains expected time spent in a
// state). It is slow (A^6 per branch), AccumulateEigenCounts should
// be preferred.
func (csp *ColumnSumProduct) AccumulateSubCounts(rootCounts []float64, subCounts *mat.Dense) {
	csp.AccumulateRootCounts(rootCounts)

	n := csp.model.AlphabetSize()
	for _, node := range csp.ungappedRows {
		if node == csp.Root() {
			continue
		}
		sub := csp.branchSubProb[node]
		esub := csp.branchEigenSubCount[node]
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				csp.eigen.AccumSubCounts(subCounts, a, b, math.Exp(csp.LogBranchPostProb(node, a, b)), sub, esub)
			}
		}
	}
}

// AccumulateEigenCounts adds expected root state counts and expected
// substitution counts in the eigenvector basis. Use SubCounts to
// transform eigenCounts to substitution counts.
func (csp *ColumnSumProduct) AccumulateEigenCounts(rootCounts []float64, eigenCounts *mat.CDense) {
	csp.AccumulateRootCounts(rootCounts)

	n := csp.model.AlphabetSize()
	evec := csp.eigen.Evec()
	evecInv := csp.eigen.EvecInv()
	logD := make([]float64, n)
	uBasis := make([]complex128, n)
	dBasis := make([]complex128, n)
	for _, node := range csp.ungappedRows {
		if node == csp.Root() {
			continue
		}
		parent := csp.parent[node]
		logU := csp.up[node]
		for i := 0; i < n; i++ {
			logD[i] = csp.down[parent][i] + csp.siblingLogUp(node, i)
		}
		maxLogU := floats.Max(logU)
		maxLogD := floats.Max(logD)
		norm := math.Exp(csp.colLogLike - maxLogU - maxLogD)

		// uBasis[l] = sum_b exp(logU[b]-maxLogU) * evecInv[l][b]
		for l := 0; l < n; l++ {
			uBasis[l] = 0
			for b := 0; b < n; b++ {
				uBasis[l] += evecInv.At(l, b) * complex(math.Exp(logU[b]-maxLogU), 0)
			}
		}
		// dBasis[k] = sum_a exp(logD[a]-maxLogD) * evec[a][k]
		for k := 0; k < n; k++ {
			dBasis[k] = 0
			for a := 0; a < n; a++ {
				dBasis[k] += evec.At(a, k) * complex(math.Exp(logD[a]-maxLogD), 0)
			}
		}

		esub := csp.branchEigenSubCount[node]
		for k := 0; k < n; k++ {
			for l := 0; l < n; l++ {
				eigenCounts.Set(k, l, eigenCounts.At(k, l)+dBasis[k]*esub.At(k, l)*uBasis[l]/complex(norm, 0))
			}
		}
	}
}

// SubCounts transforms counts accumulated by AccumulateEigenCounts to
// substitution counts. Diagonal elements are expected times spent in
// a state.
func (csp *ColumnSumProduct) SubCounts(eigenCounts *mat.CDense) *mat.Dense {
	n := csp.model.AlphabetSize()
	evec := csp.eigen.Evec()
	evecInv := csp.eigen.EvecInv()
	counts := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var c complex128
			for k := 0; k < n; k++ {
				var ck complex128
				for l := 0; l < n; l++ {
					ck += eigenCounts.At(k, l) * evec.At(j, l)
				}
				c += evecInv.At(k, i) * ck
			}
			if !eigen.NearReal(c) {
				panic(fmt.Sprintf("count has imaginary part: c=(%g,%g)", real(c), imag(c)))
			}
			if i == j {
				counts.Set(i, j, real(c))
			} else {
				counts.Set(i, j, real(c)*csp.model.Rate(i, j))
			}
		}
	}
	return counts
}
