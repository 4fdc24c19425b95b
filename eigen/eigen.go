// Package eigen computes substitution probabilities and expected
// substitution counts of a rate model from the eigendecomposition of
// its generator matrix.
//
// The generator matrix is in general not symmetric, so eigenvalues
// and eigenvectors are complex. All the results which have a physical
// meaning (probabilities and counts) are real; the imaginary parts of
// these values are checked against Epsilon and a violation is treated
// as a fatal numerical error (panic).
//
// EigenModel does not keep any per-query state and can be shared
// between goroutines.
package eigen

import (
	"bytes"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/mat"

	"github.com/mrrlab/histalign/rmodel"
)

var log = logging.MustGetLogger("eigen")

// Epsilon is the absolute tolerance for imaginary parts of real
// values and for eigenvalue equality. It does not scale with the
// magnitude of the values.
const Epsilon = 1e-6

// EigenModel stores eigenvalues, right eigenvectors (V) and their
// inverse (V^-1) of a generator matrix.
type EigenModel struct {
	model   *rmodel.RateModel
	eval    []complex128
	evec    *mat.CDense
	evecInv *mat.CDense
}

// New performs eigendecomposition of the model generator matrix. It
// panics if the eigenvector matrix cannot be inverted, which means
// the generator matrix is malformed.
func New(model *rmodel.RateModel) *EigenModel {
	var eig mat.Eigen
	if ok := eig.Factorize(model.SubRate, mat.EigenRight); !ok {
		panic("eigendecomposition of the rate matrix failed")
	}
	em := &EigenModel{
		model: model,
		eval:  eig.Values(nil),
		evec:  &mat.CDense{},
	}
	eig.VectorsTo(em.evec)

	var err error
	em.evecInv, err = invertComplex(em.evec)
	if err != nil {
		panic(fmt.Sprintf("cannot invert eigenvector matrix: %v", err))
	}

	if log.IsEnabledFor(logging.DEBUG) {
		log.Debugf("Eigenvalues: %v", em.eval)
		log.Debugf("Right eigenvector matrix, V:\n%s", complexMatrixString(em.evec))
		log.Debugf("Left eigenvector matrix, V^-1:\n%s", complexMatrixString(em.evecInv))
		log.Debugf("Product V^-1 * V:\n%s", complexMatrixString(em.InverseCheck()))
		log.Debugf("Reconstituted rate matrix:\n%s", complexMatrixString(em.RateMatrix()))
	}

	return em
}

// Model returns the rate model.
func (em *EigenModel) Model() *rmodel.RateModel {
	return em.model
}

// Eigenvalues returns the eigenvalues. The slice should not be
// modified.
func (em *EigenModel) Eigenvalues() []complex128 {
	return em.eval
}

// Evec returns the right eigenvector matrix V. It should not be
// modified.
func (em *EigenModel) Evec() *mat.CDense {
	return em.evec
}

// EvecInv returns the left eigenvector matrix V^-1. It should not be
// modified.
func (em *EigenModel) EvecInv() *mat.CDense {
	return em.evecInv
}

// RateMatrix reconstitutes the generator matrix as V diag(eval) V^-1.
func (em *EigenModel) RateMatrix() *mat.CDense {
	n := len(em.eval)
	r := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var rij complex128
			for k := 0; k < n; k++ {
				rij += em.evec.At(i, k) * em.evecInv.At(k, j) * em.eval[k]
			}
			r.Set(i, j, rij)
		}
	}
	return r
}

// InverseCheck returns V^-1 V, which should be the identity.
func (em *EigenModel) InverseCheck() *mat.CDense {
	n := len(em.eval)
	e := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var eij complex128
			for k := 0; k < n; k++ {
				eij += em.evecInv.At(i, k) * em.evec.At(k, j)
			}
			e.Set(i, j, eij)
		}
	}
	return e
}

// expEigenvalues computes exp(eval*t).
func (em *EigenModel) expEigenvalues(t float64) []complex128 {
	// allow infinite times (equilibrium)
	if math.IsInf(t, 1) {
		t = math.MaxFloat64
	}
	e := make([]complex128, len(em.eval))
	for k, ev := range em.eval {
		if ev == 0 {
			e[k] = 1
			continue
		}
		e[k] = cmplx.Exp(ev * complex(t, 0))
	}
	return e
}

// SubProb returns probability of i->j substitution in time t.
func (em *EigenModel) SubProb(t float64, i, j int) float64 {
	return em.subProb(em.expEigenvalues(t), i, j)
}

func (em *EigenModel) subProb(expEv []complex128, i, j int) float64 {
	var p complex128
	for k, e := range expEv {
		p += em.evec.At(i, k) * em.evecInv.At(k, j) * e
	}
	if !nearReal(p) {
		panic(fmt.Sprintf("probability has imaginary part: p=(%g,%g)", real(p), imag(p)))
	}
	return math.Min(1, math.Max(0, real(p)))
}

// SubProbMatrix returns the substitution probability matrix for time
// t, i.e. exp(Qt).
func (em *EigenModel) SubProbMatrix(t float64) *mat.Dense {
	n := len(em.eval)
	expEv := em.expEigenvalues(t)
	sub := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sub.Set(i, j, em.subProb(expEv, i, j))
		}
	}
	return sub
}

// EigenSubCount returns the matrix of integrals
// J(k,l) = int_0^t exp(eval_k s) exp(eval_l (t-s)) ds.
func (em *EigenModel) EigenSubCount(t float64) *mat.CDense {
	n := len(em.eval)
	expEv := em.expEigenvalues(t)
	esub := mat.NewCDense(n, n, nil)
	for k := 0; k < n; k++ {
		for l := 0; l < n; l++ {
			if k == l || nearEqualComplex(em.eval[k], em.eval[l]) {
				esub.Set(k, l, expEv[k]*complex(t, 0))
			} else {
				esub.Set(k, l, (expEv[k]-expEv[l])/(em.eval[k]-em.eval[l]))
			}
		}
	}
	if log.IsEnabledFor(logging.DEBUG) {
		log.Debugf("Eigensubstitution matrix at time t=%v:\n%s", t, complexMatrixString(esub))
	}
	return esub
}

// SubCount returns the expected number of i->j substitutions (or the
// expected time spent in state i, if i == j) on a branch, given the
// states at the start (a) and at the end (b) of the branch. sub and
// esub are SubProbMatrix and EigenSubCount for the branch length.
func (em *EigenModel) SubCount(a, b, i, j int, sub *mat.Dense, esub *mat.CDense) float64 {
	pab := sub.At(a, b)
	if pab == 0 {
		return 0
	}
	n := len(em.eval)
	var cij complex128
	for k := 0; k < n; k++ {
		var cijk complex128
		for l := 0; l < n; l++ {
			cijk += em.evec.At(j, l) * em.evecInv.At(l, b) * esub.At(k, l)
		}
		cij += em.evec.At(a, k) * em.evecInv.At(k, i) * cijk
	}
	if !nearReal(cij) {
		panic(fmt.Sprintf("count has imaginary part: c=(%g,%g)", real(cij), imag(cij)))
	}
	rij := 1.0
	if i != j {
		rij = em.model.Rate(i, j)
	}
	return math.Max(0, rij*real(cij)/pab)
}

// AccumSubCounts adds weighted expected substitution counts for a
// branch with endpoint states a and b to counts.
func (em *EigenModel) AccumSubCounts(counts *mat.Dense, a, b int, weight float64, sub *mat.Dense, esub *mat.CDense) {
	n := len(em.eval)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			counts.Set(i, j, counts.At(i, j)+em.SubCount(a, b, i, j, sub, esub)*weight)
		}
	}
}

// NearReal tests if the imaginary part of c is negligible.
func NearReal(c complex128) bool {
	return nearReal(c)
}

func nearReal(c complex128) bool {
	return math.Abs(imag(c)) <= Epsilon
}

func nearEqual(x, y float64) bool {
	return math.Abs(x-y) <= Epsilon
}

func nearEqualComplex(x, y complex128) bool {
	return nearEqual(real(x), real(y)) && nearEqual(imag(x), imag(y))
}

func complexMatrixString(m *mat.CDense) string {
	var b bytes.Buffer
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			fmt.Fprintf(&b, " (%g,%g)", real(v), imag(v))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
