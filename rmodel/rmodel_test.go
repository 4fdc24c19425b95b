package rmodel

import (
	"bytes"
	"math"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

const smallDiff = 1e-12

const model1 = `{"alphabet": "acgt",
 "subrate": {"a": {"c": 0.1, "g": 0.3, "t": 0.1},
             "c": {"a": 0.2, "g": 0.1, "t": 0.4},
             "G": {"a": 0.3, "c": 0.1, "t": 0.1},
             "t": {"a": 0.1, "c": 0.3, "g": 0.1}},
 "rootprob": {"a": 2, "c": 1, "g": 1, "t": 4}}`

const model2 = `
alphabet: xy
subrate:
  x: {y: 2}
  y: {x: 1}
`

func TestReadJSON(tst *testing.T) {
	m, err := Read(bytes.NewBufferString(model1))
	if err != nil {
		tst.Fatal("Error reading model:", err)
	}
	if m.AlphabetSize() != 4 {
		tst.Fatal("Wrong alphabet size", m.AlphabetSize())
	}
	for i := 0; i < 4; i++ {
		sum := 0.0
		for j := 0; j < 4; j++ {
			sum += m.Rate(i, j)
		}
		if math.Abs(sum) > smallDiff {
			tst.Error("Row", i, "sums to", sum)
		}
	}
	if math.Abs(m.Rate(2, 0)-0.3) > smallDiff {
		tst.Error("Upper case symbol was not read, got", m.Rate(2, 0))
	}
	if math.Abs(m.InsProb[3]-0.5) > smallDiff || math.Abs(m.InsProb[1]-0.125) > smallDiff {
		tst.Error("Root probabilities are not normalized:", m.InsProb)
	}
}

func TestReadYAML(tst *testing.T) {
	m, err := Read(bytes.NewBufferString(model2))
	if err != nil {
		tst.Fatal("Error reading model:", err)
	}
	if m.Rate(0, 0) != -2 || m.Rate(1, 1) != -1 {
		tst.Error("Wrong diagonal:", m.Rate(0, 0), m.Rate(1, 1))
	}
	if m.InsProb[0] != 0.5 || m.InsProb[1] != 0.5 {
		tst.Error("Expected uniform root probabilities, got", m.InsProb)
	}
}

func TestReadUnknownSymbol(tst *testing.T) {
	_, err := Read(bytes.NewBufferString(`{"alphabet": "ab", "subrate": {"a": {"z": 1}}}`))
	if err == nil {
		tst.Error("Expected error for unknown symbol")
	}
}

func TestNewErrors(tst *testing.T) {
	if _, err := New("", nil, nil); err != ErrAlphabet {
		tst.Error("Expected ErrAlphabet, got", err)
	}
	if _, err := New("aA", [][]float64{{0, 1}, {1, 0}}, []float64{1, 1}); pkgerrors.Cause(err) != ErrAlphabet {
		tst.Error("Expected ErrAlphabet for repeated symbol, got", err)
	}
	if _, err := New("a-", [][]float64{{0, 1}, {1, 0}}, []float64{1, 1}); pkgerrors.Cause(err) != ErrAlphabet {
		tst.Error("Expected ErrAlphabet for gap symbol, got", err)
	}
	if _, err := New("ab", [][]float64{{0, 1}}, []float64{1, 1}); err != ErrDimension {
		tst.Error("Expected ErrDimension, got", err)
	}
	if _, err := New("ab", [][]float64{{0, -1}, {1, 0}}, []float64{1, 1}); pkgerrors.Cause(err) != ErrNegativeRate {
		tst.Error("Expected ErrNegativeRate, got", err)
	}
	if _, err := New("ab", [][]float64{{0, 1}, {1, 0}}, []float64{0, 0}); err != ErrInsProb {
		tst.Error("Expected ErrInsProb, got", err)
	}
}

func TestTokenize(tst *testing.T) {
	m, err := NewJukesCantor("ACGT")
	if err != nil {
		tst.Fatal(err)
	}
	tok, err := m.TokenizeString("acGT")
	if err != nil {
		tst.Fatal(err)
	}
	for i, t := range tok {
		if t != i {
			tst.Error("Wrong token at", i, ":", t)
		}
	}
	if _, ok := m.Tokenize('N'); ok {
		tst.Error("N should not be tokenized")
	}
	if _, err := m.TokenizeString("ACN"); err == nil {
		tst.Error("Expected error for unknown symbol")
	}
}
