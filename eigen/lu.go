package eigen

import (
	"errors"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a complex matrix cannot be inverted.
var ErrSingular = errors.New("matrix is singular")

// invertComplex computes the inverse of a square complex matrix by LU
// decomposition with partial pivoting.
func invertComplex(a *mat.CDense) (*mat.CDense, error) {
	n, c := a.Dims()
	if n != c {
		panic("inverting a non-square matrix")
	}
	lu := make([][]complex128, n)
	for i := range lu {
		lu[i] = make([]complex128, n)
		for j := range lu[i] {
			lu[i][j] = a.At(i, j)
		}
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	for k := 0; k < n; k++ {
		p := k
		for i := k + 1; i < n; i++ {
			if cmplx.Abs(lu[i][k]) > cmplx.Abs(lu[p][k]) {
				p = i
			}
		}
		if lu[p][k] == 0 {
			return nil, ErrSingular
		}
		if p != k {
			lu[p], lu[k] = lu[k], lu[p]
			perm[p], perm[k] = perm[k], perm[p]
		}
		for i := k + 1; i < n; i++ {
			lu[i][k] /= lu[k][k]
			f := lu[i][k]
			if f == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				lu[i][j] -= f * lu[k][j]
			}
		}
	}

	inv := mat.NewCDense(n, n, nil)
	x := make([]complex128, n)
	for col := 0; col < n; col++ {
		// forward substitution with the permuted unit vector
		for i := 0; i < n; i++ {
			var s complex128
			if perm[i] == col {
				s = 1
			}
			for j := 0; j < i; j++ {
				s -= lu[i][j] * x[j]
			}
			x[i] = s
		}
		// back substitution
		for i := n - 1; i >= 0; i-- {
			s := x[i]
			for j := i + 1; j < n; j++ {
				s -= lu[i][j] * x[j]
			}
			x[i] = s / lu[i][i]
		}
		for i := 0; i < n; i++ {
			inv.Set(i, col, x[i])
		}
	}
	return inv, nil
}
