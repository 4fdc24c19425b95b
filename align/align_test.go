package align

import (
	"testing"

	"github.com/op/go-logging"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/eigen"
	"github.com/mrrlab/histalign/rmodel"
)

func init() {
	logging.SetLevel(logging.WARNING, "align")
}

func pathFromStrings(rows map[int]string) Path {
	p := make(Path, len(rows))
	for r, s := range rows {
		row := make([]bool, len(s))
		for i := 0; i < len(s); i++ {
			row[i] = s[i] != '-'
		}
		p[r] = row
	}
	return p
}

func pathStrings(p Path) map[int]string {
	res := make(map[int]string, len(p))
	for r, row := range p {
		b := make([]byte, len(row))
		for i, present := range row {
			if present {
				b[i] = '*'
			} else {
				b[i] = '-'
			}
		}
		res[r] = string(b)
	}
	return res
}

func TestMergeTwo(tst *testing.T) {
	p1 := pathFromStrings(map[int]string{
		0: "**-*",
		1: "*-**",
	})
	p2 := pathFromStrings(map[int]string{
		1: "*-**",
		2: "****",
	})
	m, err := Merge([]Path{p1, p2})
	require.NoError(tst, err)
	// gap column of row 1 in p1 goes before gap column in p2
	assert.Equal(tst, map[int]string{
		0: "**--*",
		1: "*--**",
		2: "*-***",
	}, pathStrings(m))
}

func TestMergeOrder(tst *testing.T) {
	p1 := pathFromStrings(map[int]string{0: "*", 1: "-"})
	p2 := pathFromStrings(map[int]string{1: "-", 2: "*"})
	m, err := Merge([]Path{p1, p2})
	require.NoError(tst, err)
	assert.Equal(tst, map[int]string{0: "*-", 1: "--", 2: "-*"}, pathStrings(m))
}

func TestMergeChain(tst *testing.T) {
	// p3 shares no rows with p1 and is merged after p2
	p1 := pathFromStrings(map[int]string{0: "**", 1: "**"})
	p3 := pathFromStrings(map[int]string{2: "*-*", 3: "***"})
	p2 := pathFromStrings(map[int]string{1: "**", 2: "**"})
	m, err := Merge([]Path{p1, p3, p2})
	require.NoError(tst, err)
	require.NoError(tst, m.Check())
	assert.Equal(tst, []int{0, 1, 2, 3}, m.Rows())
	assert.Equal(tst, 3, m.Columns())
	for r, n := range map[int]int{0: 2, 1: 2, 2: 2, 3: 3} {
		assert.Equal(tst, n, m.Residues(r), "row %d", r)
	}
}

func TestMergeErrors(tst *testing.T) {
	p1 := pathFromStrings(map[int]string{0: "**", 1: "**"})
	p2 := pathFromStrings(map[int]string{2: "**", 3: "**"})
	_, err := Merge([]Path{p1, p2})
	assert.Equal(tst, ErrDisconnectedPaths, err)

	p3 := pathFromStrings(map[int]string{0: "**", 1: "*"})
	_, err = Merge([]Path{p3})
	assert.Equal(tst, ErrRowLength, pkgerrors.Cause(err))

	p4 := pathFromStrings(map[int]string{1: "*-", 2: "**"})
	_, err = Merge([]Path{p1, p4})
	assert.Equal(tst, ErrResidueMismatch, pkgerrors.Cause(err))

	p5 := pathFromStrings(map[int]string{0: "**", 1: "**"})
	_, err = Merge([]Path{p1, p5})
	assert.Equal(tst, ErrCyclicPaths, err)
}

func TestGapped(tst *testing.T) {
	seqs := []bio.Sequence{{Name: "x", Sequence: "AC"}, {Name: "y", Sequence: "GTA"}}
	p := pathFromStrings(map[int]string{0: "*--*", 1: "-***"})
	g, err := Gapped(seqs, p)
	require.NoError(tst, err)
	assert.Equal(tst, "A--C", g[0].Sequence)
	assert.Equal(tst, "-GTA", g[1].Sequence)

	back, err := FromGapped(g)
	require.NoError(tst, err)
	assert.Equal(tst, p, back)

	_, err = Gapped(seqs, pathFromStrings(map[int]string{0: "**", 1: "**"}))
	assert.Equal(tst, ErrResidueMismatch, pkgerrors.Cause(err))
	_, err = Gapped(seqs, pathFromStrings(map[int]string{0: "**"}))
	assert.Equal(tst, ErrMissingRow, pkgerrors.Cause(err))
}

func newAligner(tst *testing.T) (*QuickAligner, *rmodel.RateModel) {
	m, err := rmodel.NewJukesCantor("acgt")
	require.NoError(tst, err)
	return NewQuickAligner(eigen.New(m)), m
}

func TestQuickAlignIdentical(tst *testing.T) {
	qa, m := newAligner(tst)
	x, err := m.TokenizeString("acgtacgt")
	require.NoError(tst, err)
	p, score, err := qa.Align(x, x, 0.1)
	require.NoError(tst, err)
	assert.Equal(tst, map[int]string{0: "********", 1: "********"}, pathStrings(p))
	assert.True(tst, score < 0)
}

func TestQuickAlignDeletion(tst *testing.T) {
	qa, m := newAligner(tst)
	x, _ := m.TokenizeString("aaaacccc")
	y, _ := m.TokenizeString("aaaagggcccc")
	p, _, err := qa.Align(x, y, 0.05)
	require.NoError(tst, err)
	require.NoError(tst, p.Check())
	assert.Equal(tst, 8, p.Residues(0))
	assert.Equal(tst, 11, p.Residues(1))
	assert.Equal(tst, "****---****", pathStrings(p)[0])
}

func TestQuickAlignEmpty(tst *testing.T) {
	qa, m := newAligner(tst)
	y, _ := m.TokenizeString("acg")
	p, _, err := qa.Align(nil, y, 0.1)
	require.NoError(tst, err)
	assert.Equal(tst, map[int]string{0: "---", 1: "***"}, pathStrings(p))

	p, score, err := qa.Align(nil, nil, 0.1)
	require.NoError(tst, err)
	assert.Equal(tst, 0, p.Columns())
	assert.Equal(tst, 0.0, score)
}

func TestQuickAlignGapProb(tst *testing.T) {
	qa, _ := newAligner(tst)
	qa.GapOpen = 0.6
	_, _, err := qa.Align([]int{0}, []int{0}, 0.1)
	assert.Equal(tst, ErrGapProb, err)
}
