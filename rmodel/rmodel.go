// Package rmodel provides continuous-time Markov substitution models
// (rate models): an alphabet, a generator matrix and an insertion
// (root) distribution.
package rmodel

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/op/go-logging"
	pkgerrors "github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/mrrlab/histalign/bio"
)

var log = logging.MustGetLogger("rmodel")

var (
	// ErrAlphabet is returned for an empty alphabet or an alphabet
	// with repeated symbols.
	ErrAlphabet = errors.New("bad alphabet")
	// ErrDimension is returned when rate matrix or insertion
	// probabilities do not match the alphabet size.
	ErrDimension = errors.New("dimensions don't match alphabet size")
	// ErrNegativeRate is returned for negative off-diagonal rates.
	ErrNegativeRate = errors.New("negative substitution rate")
	// ErrInsProb is returned for invalid insertion probabilities.
	ErrInsProb = errors.New("invalid insertion probabilities")
	// ErrUnknownSymbol is returned when a sequence contains a symbol
	// which is not in the alphabet.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// RateModel is a substitution model. It should not be modified after
// creation.
type RateModel struct {
	// Alphabet contains one character per state.
	Alphabet string
	// SubRate is the generator matrix, rows sum to zero.
	SubRate *mat.Dense
	// InsProb is the insertion (and root) distribution.
	InsProb []float64

	tokens [256]int
}

// New creates a rate model. Diagonal elements of rates are ignored
// and replaced by the negated sums of the off-diagonal elements.
// Insertion probabilities are normalized.
func New(alphabet string, rates [][]float64, insProb []float64) (*RateModel, error) {
	n := len(alphabet)
	if n == 0 {
		return nil, ErrAlphabet
	}
	if len(rates) != n || len(insProb) != n {
		return nil, ErrDimension
	}
	m := &RateModel{
		Alphabet: alphabet,
		SubRate:  mat.NewDense(n, n, nil),
		InsProb:  make([]float64, n),
	}
	for i := range m.tokens {
		m.tokens[i] = -1
	}
	for i := 0; i < n; i++ {
		lc, uc := lower(alphabet[i]), upper(alphabet[i])
		if bio.IsGap(lc) || bio.IsWildcard(lc) {
			return nil, pkgerrors.Wrapf(ErrAlphabet, "reserved symbol %q", alphabet[i])
		}
		if m.tokens[lc] != -1 {
			return nil, pkgerrors.Wrapf(ErrAlphabet, "repeated symbol %q", alphabet[i])
		}
		m.tokens[lc] = i
		m.tokens[uc] = i
	}
	for i, row := range rates {
		if len(row) != n {
			return nil, ErrDimension
		}
		sum := 0.0
		for j, r := range row {
			if i == j {
				continue
			}
			if r < 0 {
				return nil, pkgerrors.Wrapf(ErrNegativeRate, "%c->%c", alphabet[i], alphabet[j])
			}
			m.SubRate.Set(i, j, r)
			sum += r
		}
		m.SubRate.Set(i, i, -sum)
	}
	for _, p := range insProb {
		if p < 0 {
			return nil, ErrInsProb
		}
	}
	total := floats.Sum(insProb)
	if total <= 0 {
		return nil, ErrInsProb
	}
	floats.ScaleTo(m.InsProb, 1/total, insProb)
	return m, nil
}

// AlphabetSize returns the number of states.
func (m *RateModel) AlphabetSize() int {
	return len(m.Alphabet)
}

// Rate returns the rate of i->j substitution.
func (m *RateModel) Rate(i, j int) float64 {
	return m.SubRate.At(i, j)
}

// Tokenize converts a symbol to a state index (case insensitive).
func (m *RateModel) Tokenize(c byte) (int, bool) {
	t := m.tokens[c]
	return t, t >= 0
}

// TokenizeString converts an ungapped sequence to states.
func (m *RateModel) TokenizeString(s string) ([]int, error) {
	tok := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		t, ok := m.Tokenize(s[i])
		if !ok {
			return nil, pkgerrors.Wrapf(ErrUnknownSymbol, "%q at position %d", s[i], i+1)
		}
		tok[i] = t
	}
	return tok, nil
}

// modelFile is the on-disk representation of a rate model.
type modelFile struct {
	Alphabet string                        `yaml:"alphabet"`
	SubRate  map[string]map[string]float64 `yaml:"subrate"`
	RootProb map[string]float64            `yaml:"rootprob"`
}

// Read reads a rate model in YAML or JSON format, e.g.:
//
//	{"alphabet": "acgt",
//	 "subrate": {"a": {"c": 0.1, "g": 0.2, "t": 0.1}, ...},
//	 "rootprob": {"a": 0.25, "c": 0.25, "g": 0.25, "t": 0.25}}
//
// Missing rates are zero. Missing root probabilities default to the
// uniform distribution.
func Read(rd io.Reader) (*RateModel, error) {
	var mf modelFile
	if err := yaml.NewDecoder(rd).Decode(&mf); err != nil {
		return nil, pkgerrors.Wrap(err, "error parsing rate model")
	}
	n := len(mf.Alphabet)
	idx := make(map[string]int, n)
	for i := 0; i < n; i++ {
		idx[strings.ToLower(mf.Alphabet[i:i+1])] = i
	}
	lookup := func(s string) (int, error) {
		i, ok := idx[strings.ToLower(s)]
		if !ok {
			return 0, fmt.Errorf("symbol %q is not in the alphabet", s)
		}
		return i, nil
	}

	rates := make([][]float64, n)
	for i := range rates {
		rates[i] = make([]float64, n)
	}
	for src, row := range mf.SubRate {
		i, err := lookup(src)
		if err != nil {
			return nil, err
		}
		for dest, r := range row {
			j, err := lookup(dest)
			if err != nil {
				return nil, err
			}
			rates[i][j] = r
		}
	}

	insProb := make([]float64, n)
	if len(mf.RootProb) == 0 {
		log.Debug("No root probabilities, using uniform distribution")
		for i := range insProb {
			insProb[i] = 1
		}
	}
	for s, p := range mf.RootProb {
		i, err := lookup(s)
		if err != nil {
			return nil, err
		}
		insProb[i] = p
	}

	return New(mf.Alphabet, rates, insProb)
}

// NewJukesCantor creates a model with equal rates between all the
// states, scaled to one expected substitution per unit of time, and
// uniform insertion probabilities.
func NewJukesCantor(alphabet string) (*RateModel, error) {
	n := len(alphabet)
	if n < 2 {
		return nil, ErrAlphabet
	}
	rates := make([][]float64, n)
	insProb := make([]float64, n)
	for i := range rates {
		rates[i] = make([]float64, n)
		for j := range rates[i] {
			rates[i][j] = 1 / float64(n-1)
		}
		insProb[i] = 1
	}
	return New(alphabet, rates, insProb)
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c + 'A' - 'a'
	}
	return c
}
