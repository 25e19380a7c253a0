// Package lsqr solves sparse least squares problems with the iterative
// algorithm of Paige and Saunders (ACM TOMS 8, 1982).
//
// Solve finds x minimizing ||A*x - b||^2 + damp^2*||x||^2 using only
// matrix-vector products with A and A'. The matrix is never modified, so
// the method suits the large sparse design matrices assembled by the
// coadd package.
package lsqr

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrShapeMismatch reports a right-hand side whose length does not match
// the operator row count.
var ErrShapeMismatch = errors.New("lsqr: right-hand side length does not match operator row count")

// float64 unit roundoff, 2^-52.
const eps = 2.220446049250313e-16

// Stopping tolerances used by DefaultSettings.
const (
	defaultTol     = 1e-8
	defaultCondLim = 1e8
)

// StopReason identifies why the iteration terminated.
type StopReason int

const (
	// StopZeroSolution means x = 0 solves the problem exactly, either
	// because b is zero or because A'*b is zero.
	StopZeroSolution StopReason = iota
	// StopResidualTol means A*x ~ b held to within ATol and BTol, treating
	// the system as consistent.
	StopResidualTol
	// StopNormalResidualTol means the least squares optimality residual
	// A'*(b - A*x) dropped below ATol.
	StopNormalResidualTol
	// StopConditionLimit means the condition estimate exceeded CondLim.
	StopConditionLimit
	// StopResidualRoundoff and the two reasons after it are the machine
	// precision analogues of the preceding three.
	StopResidualRoundoff
	StopNormalResidualRoundoff
	StopConditionRoundoff
	// StopIterationLimit means MaxIterations was reached first.
	StopIterationLimit
)

func (r StopReason) String() string {
	switch r {
	case StopZeroSolution:
		return "zero solution is exact"
	case StopResidualTol:
		return "residual within tolerance"
	case StopNormalResidualTol:
		return "normal equations residual within tolerance"
	case StopConditionLimit:
		return "condition limit exceeded"
	case StopResidualRoundoff:
		return "residual at machine precision"
	case StopNormalResidualRoundoff:
		return "normal equations residual at machine precision"
	case StopConditionRoundoff:
		return "condition estimate beyond machine precision"
	case StopIterationLimit:
		return "iteration limit reached"
	default:
		return "unknown"
	}
}

// Settings control the iteration. Tolerances are taken verbatim, so a
// zero tolerance disables that stopping test and lets the iteration run
// to machine precision or the iteration limit. Use DefaultSettings for
// conventional values.
type Settings struct {
	// Damp is the Tikhonov damping coefficient. Zero solves the plain
	// least squares problem.
	Damp float64
	// ATol and BTol are the relative stopping tolerances on the normal
	// equations residual and on the system residual.
	ATol float64
	BTol float64
	// CondLim stops the iteration once the estimated condition number of
	// the damped operator exceeds it. Zero disables the test.
	CondLim float64
	// MaxIterations bounds the iteration count. Zero selects twice the
	// column count.
	MaxIterations int
	// ComputeVariance accumulates the running estimate of
	// diag(inv(A'A + Damp^2 I)) into Result.Variance.
	ComputeVariance bool
}

// DefaultSettings returns conventional stopping tolerances: 1e-8 for ATol
// and BTol and a condition limit of 1e8.
func DefaultSettings() Settings {
	return Settings{ATol: defaultTol, BTol: defaultTol, CondLim: defaultCondLim}
}

// Stats reports the state of the iteration at termination. The norm
// fields are the algorithm's running estimates, not freshly recomputed
// quantities.
type Stats struct {
	Iterations int
	StopReason StopReason
	// ResidualNorm estimates ||b - A*x||.
	ResidualNorm float64
	// DampedResidualNorm estimates sqrt(||b - A*x||^2 + Damp^2*||x||^2).
	// Equal to ResidualNorm when Damp is zero.
	DampedResidualNorm float64
	// NormalResidualNorm estimates ||A'*(b - A*x) - Damp^2*x||.
	NormalResidualNorm float64
	// MatrixNorm and Condition estimate the Frobenius norm and condition
	// number of the damped operator.
	MatrixNorm float64
	Condition  float64
	// SolutionNorm estimates ||x||.
	SolutionNorm float64
}

// Result holds the solution vector and termination diagnostics.
type Result struct {
	X []float64
	// Variance is nil unless Settings.ComputeVariance was set.
	Variance []float64
	Stats    Stats
}

// Solve runs LSQR on the damped least squares problem defined by a, b and
// s. It returns once a stopping test fires or the iteration limit is
// reached; the returned error reports shape problems only, never failure
// to converge, which is expressed through Stats.StopReason.
func Solve(a Operator, b []float64, s Settings) (*Result, error) {
	rows, cols := a.Dims()
	if len(b) != rows {
		return nil, ErrShapeMismatch
	}

	atol, btol := s.ATol, s.BTol
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 2 * cols
	}
	var ctol float64
	if s.CondLim > 0 {
		ctol = 1 / s.CondLim
	}

	damp := s.Damp
	dampSq := damp * damp

	x := make([]float64, cols)
	var variance []float64
	if s.ComputeVariance {
		variance = make([]float64, cols)
	}

	// Golub-Kahan bidiagonalization vectors.
	u := make([]float64, rows)
	copy(u, b)
	v := make([]float64, cols)

	bnorm := floats.Norm(b, 2)
	beta := bnorm
	var alfa float64
	if beta > 0 {
		floats.Scale(1/beta, u)
		a.MatTVec(v, u)
		alfa = floats.Norm(v, 2)
	}
	if alfa > 0 {
		floats.Scale(1/alfa, v)
	}
	w := make([]float64, cols)
	copy(w, v)

	rhobar := alfa
	phibar := beta
	rnorm := beta
	r1norm := rnorm
	r2norm := rnorm
	arnorm := alfa * beta

	if arnorm == 0 {
		// Either b is zero or A'*b is zero; x = 0 is already optimal.
		return &Result{X: x, Variance: variance, Stats: Stats{
			StopReason:         StopZeroSolution,
			ResidualNorm:       r1norm,
			DampedResidualNorm: r2norm,
		}}, nil
	}

	var anorm, acond float64
	var ddnorm, res2 float64
	var xnorm, xxnorm float64
	var z float64
	cs2, sn2 := -1.0, 0.0

	tmpRow := make([]float64, rows)
	tmpCol := make([]float64, cols)
	dk := make([]float64, cols)

	itn := 0
	var istop StopReason

	for itn < maxIter {
		itn++

		// Continue the bidiagonalization: generate the next beta, u,
		// alfa and v satisfying beta*u = A*v - alfa*u and
		// alfa*v = A'*u - beta*v.
		a.MatVec(tmpRow, v)
		for i := range u {
			u[i] = tmpRow[i] - alfa*u[i]
		}
		beta = floats.Norm(u, 2)

		if beta > 0 {
			floats.Scale(1/beta, u)
			anorm = math.Sqrt(anorm*anorm + alfa*alfa + beta*beta + dampSq)
			a.MatTVec(tmpCol, u)
			for i := range v {
				v[i] = tmpCol[i] - beta*v[i]
			}
			alfa = floats.Norm(v, 2)
			if alfa > 0 {
				floats.Scale(1/alfa, v)
			}
		}

		// Plane rotation eliminating the damping parameter.
		rhobar1 := rhobar
		var psi float64
		if damp > 0 {
			rhobar1 = math.Sqrt(rhobar*rhobar + dampSq)
			cs1 := rhobar / rhobar1
			sn1 := damp / rhobar1
			psi = sn1 * phibar
			phibar = cs1 * phibar
		}

		// Plane rotation eliminating the subdiagonal element beta.
		cs, sn, rho := symOrtho(rhobar1, beta)
		theta := sn * alfa
		rhobar = -cs * alfa
		phi := cs * phibar
		phibar = sn * phibar
		tau := sn * phi

		// Update x and the search direction w.
		step := phi / rho
		shrink := -theta / rho
		for i := range w {
			dk[i] = w[i] / rho
			x[i] += step * w[i]
			w[i] = v[i] + shrink*w[i]
		}
		ddnorm += floats.Dot(dk, dk)
		if variance != nil {
			for i := range dk {
				variance[i] += dk[i] * dk[i]
			}
		}

		// Rotation on the right to estimate ||x||.
		delta := sn2 * rho
		gambar := -cs2 * rho
		rhs := phi - delta*z
		zbar := rhs / gambar
		xnorm = math.Sqrt(xxnorm + zbar*zbar)
		gamma := math.Sqrt(gambar*gambar + theta*theta)
		cs2 = gambar / gamma
		sn2 = theta / gamma
		z = rhs / gamma
		xxnorm += z * z

		acond = anorm * math.Sqrt(ddnorm)
		res1 := phibar * phibar
		res2 += psi * psi
		rnorm = math.Sqrt(res1 + res2)
		arnorm = alfa * math.Abs(tau)

		// Separate ||b - A*x|| from the damped residual.
		if damp > 0 {
			r1sq := rnorm*rnorm - dampSq*xxnorm
			r1norm = math.Sqrt(math.Abs(r1sq))
			if r1sq < 0 {
				r1norm = -r1norm
			}
		} else {
			r1norm = rnorm
		}
		r2norm = rnorm

		test1 := rnorm / bnorm
		test2 := arnorm / (anorm*rnorm + eps)
		test3 := 1 / (acond + eps)
		ratio1 := test1 / (1 + anorm*xnorm/bnorm)
		rtol := btol + atol*anorm*xnorm/bnorm

		// The roundoff variants guard against tolerances tighter than
		// the working precision supports.
		if itn >= maxIter {
			istop = StopIterationLimit
		}
		if 1+test3 <= 1 {
			istop = StopConditionRoundoff
		}
		if 1+test2 <= 1 {
			istop = StopNormalResidualRoundoff
		}
		if 1+ratio1 <= 1 {
			istop = StopResidualRoundoff
		}

		if test3 <= ctol {
			istop = StopConditionLimit
		}
		if test2 <= atol {
			istop = StopNormalResidualTol
		}
		if test1 <= rtol {
			istop = StopResidualTol
		}

		if istop != 0 {
			break
		}
	}

	return &Result{
		X:        x,
		Variance: variance,
		Stats: Stats{
			Iterations:         itn,
			StopReason:         istop,
			ResidualNorm:       r1norm,
			DampedResidualNorm: r2norm,
			NormalResidualNorm: arnorm,
			MatrixNorm:         anorm,
			Condition:          acond,
			SolutionNorm:       xnorm,
		},
	}, nil
}

// symOrtho computes a stable Givens rotation: c, s and r such that
// [c s; s -c] * [a; b] = [r; 0].
func symOrtho(a, b float64) (c, s, r float64) {
	switch {
	case b == 0:
		return sign(a), 0, math.Abs(a)
	case a == 0:
		return 0, sign(b), math.Abs(b)
	case math.Abs(b) > math.Abs(a):
		tau := a / b
		s = sign(b) / math.Sqrt(1+tau*tau)
		c = s * tau
		r = b / s
	default:
		tau := b / a
		c = sign(a) / math.Sqrt(1+tau*tau)
		s = c * tau
		r = a / c
	}

	return c, s, r
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
