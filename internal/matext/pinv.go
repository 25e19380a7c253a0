package matext

import (
	"gonum.org/v1/gonum/mat"
)

// PseudoInverse computes the Moore-Penrose inverse of a via thin SVD.
// Singular values below max(m,n)*eps*s_max are treated as zero, so
// rank-deficient inputs are handled without error.
func PseudoInverse(a mat.Matrix) (*mat.Dense, error) {
	r, c := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, ErrSVDFailed
	}

	s := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	maxS := 0.0
	for _, sv := range s {
		if sv > maxS {
			maxS = sv
		}
	}

	tol := float64(max(r, c)) * machineEpsilon * maxS

	// Scale the columns of V by the inverted singular values; zeroed
	// columns drop the corresponding rank-deficient directions.
	inv := mat.NewDense(c, len(s), nil)
	for j, sv := range s {
		if sv <= tol {
			continue
		}

		f := 1 / sv
		for i := 0; i < c; i++ {
			inv.Set(i, j, v.At(i, j)*f)
		}
	}

	out := mat.NewDense(c, r, nil)
	out.Mul(inv, u.T())

	return out, nil
}

// machineEpsilon is the float64 unit roundoff, 2^-52.
const machineEpsilon = 2.220446049250313e-16
