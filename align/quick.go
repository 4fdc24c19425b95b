package align

import (
	"errors"
	"math"

	"github.com/op/go-logging"

	"github.com/mrrlab/histalign/eigen"
)

var log = logging.MustGetLogger("align")

// ErrGapProb is returned for invalid gap probabilities.
var ErrGapProb = errors.New("gap probabilities should be in (0, 0.5) and (0, 1)")

// PairAligner aligns two tokenized sequences separated by time t. It
// returns a path with rows 0 (x) and 1 (y) and the alignment score
// (log-probability).
type PairAligner interface {
	Align(x, y []int, t float64) (Path, float64, error)
}

// Default gap parameters of QuickAligner.
const (
	DefaultGapOpen   = 0.05
	DefaultGapExtend = 0.5
)

// HMM states.
const (
	stMatch = iota
	stInsX
	stInsY
	nStates
)

// QuickAligner is a Viterbi pair HMM aligner. Match emission is
// pi[i]*P(j|i,t), insertions emit from the root distribution.
type QuickAligner struct {
	Eigen     *eigen.EigenModel
	GapOpen   float64
	GapExtend float64
}

// NewQuickAligner creates an aligner with the default gap
// probabilities.
func NewQuickAligner(em *eigen.EigenModel) *QuickAligner {
	return &QuickAligner{
		Eigen:     em,
		GapOpen:   DefaultGapOpen,
		GapExtend: DefaultGapExtend,
	}
}

// Align aligns two sequences with the Viterbi algorithm.
func (qa *QuickAligner) Align(x, y []int, t float64) (Path, float64, error) {
	if qa.GapOpen <= 0 || qa.GapOpen >= 0.5 || qa.GapExtend <= 0 || qa.GapExtend >= 1 {
		return nil, 0, ErrGapProb
	}
	model := qa.Eigen.Model()
	n := model.AlphabetSize()
	sub := qa.Eigen.SubProbMatrix(t)

	logIns := make([]float64, n)
	logMatch := make([][]float64, n)
	for i := 0; i < n; i++ {
		logIns[i] = math.Log(model.InsProb[i])
		logMatch[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			logMatch[i][j] = logIns[i] + math.Log(sub.At(i, j))
		}
	}

	// transitions[from][to]
	var trans [nStates][nStates]float64
	trans[stMatch][stMatch] = math.Log(1 - 2*qa.GapOpen)
	trans[stMatch][stInsX] = math.Log(qa.GapOpen)
	trans[stMatch][stInsY] = math.Log(qa.GapOpen)
	trans[stInsX][stInsX] = math.Log(qa.GapExtend)
	trans[stInsX][stMatch] = math.Log(1 - qa.GapExtend)
	trans[stInsX][stInsY] = math.Inf(-1)
	trans[stInsY][stInsY] = math.Log(qa.GapExtend)
	trans[stInsY][stMatch] = math.Log(1 - qa.GapExtend)
	trans[stInsY][stInsX] = math.Inf(-1)

	nx, ny := len(x), len(y)
	w := ny + 1
	score := make([][]float64, nStates)
	back := make([][]int8, nStates)
	for s := range score {
		score[s] = make([]float64, (nx+1)*w)
		back[s] = make([]int8, (nx+1)*w)
		for k := range score[s] {
			score[s][k] = math.Inf(-1)
			back[s][k] = -1
		}
	}
	// the start cell is treated as a match state
	score[stMatch][0] = 0

	best := func(i, j int, to int) (float64, int8) {
		b, bs := math.Inf(-1), int8(-1)
		for from := 0; from < nStates; from++ {
			v := score[from][i*w+j] + trans[from][to]
			if v > b {
				b, bs = v, int8(from)
			}
		}
		return b, bs
	}

	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			k := i*w + j
			if i > 0 && j > 0 {
				v, s := best(i-1, j-1, stMatch)
				score[stMatch][k] = v + logMatch[x[i-1]][y[j-1]]
				back[stMatch][k] = s
			}
			if i > 0 {
				v, s := best(i-1, j, stInsX)
				score[stInsX][k] = v + logIns[x[i-1]]
				back[stInsX][k] = s
			}
			if j > 0 {
				v, s := best(i, j-1, stInsY)
				score[stInsY][k] = v + logIns[y[j-1]]
				back[stInsY][k] = s
			}
		}
	}

	end := nx*w + ny
	state, lp := stMatch, score[stMatch][end]
	for s := 1; s < nStates; s++ {
		if score[s][end] > lp {
			state, lp = s, score[s][end]
		}
	}
	if math.IsInf(lp, -1) && nx+ny > 0 {
		return nil, 0, errors.New("no alignment with non-zero probability")
	}

	var rx, ry []bool
	i, j := nx, ny
	for i > 0 || j > 0 {
		prev := back[state][i*w+j]
		switch state {
		case stMatch:
			rx, ry = append(rx, true), append(ry, true)
			i--
			j--
		case stInsX:
			rx, ry = append(rx, true), append(ry, false)
			i--
		case stInsY:
			rx, ry = append(rx, false), append(ry, true)
			j--
		}
		state = int(prev)
	}
	reverse(rx)
	reverse(ry)
	if rx == nil {
		rx, ry = []bool{}, []bool{}
	}
	log.Debugf("Aligned %d and %d residues, %d columns, score=%v", nx, ny, len(rx), lp)
	return Path{0: rx, 1: ry}, lp, nil
}

func reverse(s []bool) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

