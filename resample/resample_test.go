package resample

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/quidditymaster/resampling/density"
	"github.com/quidditymaster/resampling/internal/matext"
	"github.com/quidditymaster/resampling/internal/testutil"
)

func TestMatrixIdentity(t *testing.T) {
	centers := []float64{0, 1, 2, 3, 4}

	trans, err := Matrix(centers, centers)
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	for i := range centers {
		for j := range centers {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if got := trans.At(i, j); got != want {
				t.Fatalf("identity entry (%d,%d) = %v, want exactly %v", i, j, got, want)
			}
		}
	}
}

func TestMatrixDownsampleEntries(t *testing.T) {
	input := []float64{0, 1, 2, 3, 4}
	output := []float64{0, 2, 4}

	trans, err := Matrix(input, output)
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	want := [][]float64{
		{1, 0.5, 0, 0, 0},
		{0, 0.5, 1, 0.5, 0},
		{0, 0, 0, 0.5, 1},
	}
	for i := range want {
		for j := range want[i] {
			if d := math.Abs(trans.At(i, j) - want[i][j]); d > 1e-12 {
				t.Fatalf("entry (%d,%d) = %v, want %v", i, j, trans.At(i, j), want[i][j])
			}
		}
	}
}

func TestMatrixConservesFlux(t *testing.T) {
	// When the output grid covers the full input support, every input
	// pixel's flux must land somewhere: column sums of one.
	input := []float64{0, 1, 2, 3, 4}
	output := []float64{0, 2, 4}

	trans, err := Matrix(input, output)
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	colSums := matext.MulTVec(trans, testutil.Ones(len(output)))
	testutil.RequireSliceNearlyEqual(t, colSums, testutil.Ones(len(input)), 1e-12)
}

func TestMatrixNoFluxCreation(t *testing.T) {
	// Without normalization or upweighting, no input pixel may deposit
	// more than its whole flux: column sums stay at or below one even
	// when the grids are uneven and only partially overlap.
	input := testutil.LinearGrid(0, 10, 23)
	output := testutil.LinearGrid(-2, 7, 11)

	trans, err := Matrix(input, output, WithEdgeUpweighting(false))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	colSums := matext.MulTVec(trans, testutil.Ones(len(output)))
	for j, s := range colSums {
		if s > 1+1e-12 {
			t.Fatalf("column %d sum = %v, want <= 1", j, s)
		}
	}
}

func TestMatrixConservesAbsorptionFlux(t *testing.T) {
	// A structured spectrum keeps its total flux when the output grid
	// covers the whole input support, not just a flat one.
	input := testutil.LinearGrid(0, 10, 21)
	output := testutil.LinearGrid(-1, 11, 13)
	flux := testutil.GaussianDip(input, 5, 0.6, 0.8)

	trans, err := Matrix(input, output, WithEdgeUpweighting(false))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	got := matext.MulVec(trans, flux)
	testutil.RequireFinite(t, got)

	sumIn, sumOut := 0.0, 0.0
	for _, v := range flux {
		sumIn += v
	}
	for _, v := range got {
		sumOut += v
	}
	if d := math.Abs(sumOut - sumIn); d > 1e-9 {
		t.Fatalf("total flux = %v, want %v (diff %v)", sumOut, sumIn, d)
	}
}

func TestMatrixImpulseLandsOnce(t *testing.T) {
	// A point source at any input pixel deposits exactly its unit flux
	// somewhere on a covering output grid.
	input := []float64{0, 1, 2, 3, 4}
	output := []float64{0, 2, 4}

	trans, err := Matrix(input, output, WithEdgeUpweighting(false))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	for k := range input {
		out := matext.MulVec(trans, testutil.Impulse(len(input), k))
		sum := 0.0
		for _, v := range out {
			sum += v
		}
		if d := math.Abs(sum - 1); d > 1e-12 {
			t.Fatalf("impulse at %d: deposited flux = %v, want 1", k, sum)
		}
	}
}

func TestMatrixNormalizationRowSums(t *testing.T) {
	input := testutil.LinearGrid(0, 10, 101)
	output := testutil.LinearGrid(-1, 11, 25)

	trans, err := Matrix(input, output, WithNormalization(true))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	sums := matext.RowSums(trans)
	for i, s := range sums {
		if s == 0 {
			// Rows with no input coverage stay empty.
			continue
		}
		if d := math.Abs(s - 1); d > 1e-12 {
			t.Fatalf("row %d sum = %v, want 1", i, s)
		}
	}
}

func TestMatrixNormalizationPreservesConstant(t *testing.T) {
	input := testutil.LinearGrid(0, 10, 101)
	output := testutil.LinearGrid(1, 9, 33)

	trans, err := Matrix(input, output, WithNormalization(true))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	got := matext.MulVec(trans, testutil.Constant(2.5, len(input)))
	testutil.RequireSliceNearlyEqual(t, got, testutil.Constant(2.5, len(output)), 1e-9)
}

func TestMatrixEdgeUpweighting(t *testing.T) {
	input := testutil.LinearGrid(0, 10, 101)
	output := testutil.LinearGrid(0, 10, 21)
	widths := testutil.Constant(0.5, len(input))
	dens := density.NewGaussian(input, widths)

	plain, err := Matrix(input, output, WithDensity(dens), WithEdgeUpweighting(false))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	up, err := Matrix(input, output, WithDensity(dens))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	plainSums := matext.RowSums(plain)
	upSums := matext.RowSums(up)

	// Without correction the boundary rows collect visibly less flux than
	// the interior.
	if plainSums[0] >= plainSums[10]-0.5 {
		t.Fatalf("uncorrected edge row sum %v not suppressed relative to interior %v", plainSums[0], plainSums[10])
	}

	// Upweighting levels every row onto the interior reference sum.
	for i, s := range upSums {
		if d := math.Abs(s - plainSums[10]); d > 1e-9 {
			t.Fatalf("upweighted row %d sum = %v, want %v", i, s, plainSums[10])
		}
	}
}

func TestMatrixDisjointGrids(t *testing.T) {
	trans, err := Matrix([]float64{0, 1, 2}, []float64{10, 11, 12})
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	if nnz := trans.NNZ(); nnz != 0 {
		t.Fatalf("disjoint grids produced %d nonzero entries, want 0", nnz)
	}
}

func TestMatrixOffGridOverlap(t *testing.T) {
	// Output pixels centered beyond the input grid but whose first bin
	// still overlaps the last input pixel receive a partial entry.
	input := []float64{0, 1, 2}
	output := []float64{2.6, 3.0, 3.4}

	trans, err := Matrix(input, output, WithEdgeUpweighting(false))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	if d := math.Abs(trans.At(0, 2) - 0.1); d > 1e-12 {
		t.Fatalf("overlap entry (0,2) = %v, want 0.1", trans.At(0, 2))
	}
	sums := matext.RowSums(trans)
	if sums[1] != 0 || sums[2] != 0 {
		t.Fatalf("rows beyond overlap have sums %v, %v, want 0, 0", sums[1], sums[2])
	}
}

func TestMatrixUpweightFallbackStaysFinite(t *testing.T) {
	// Density support far wider than the whole output grid forces the
	// upweight run against the grid end.
	input := testutil.LinearGrid(0, 10, 50)
	widths := testutil.Constant(5, len(input))
	dens := density.NewGaussian(input, widths)
	output := testutil.LinearGrid(0, 10, 6)

	trans, err := Matrix(input, output, WithDensity(dens))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	testutil.RequireFinite(t, matext.RowSums(trans))
}

func TestMatrixGridTooShort(t *testing.T) {
	if _, err := Matrix([]float64{1}, []float64{1, 2}); !errors.Is(err, ErrGridTooShort) {
		t.Fatalf("short input error = %v, want %v", err, ErrGridTooShort)
	}
	if _, err := Matrix([]float64{1, 2}, []float64{1}); !errors.Is(err, ErrGridTooShort) {
		t.Fatalf("short output error = %v, want %v", err, ErrGridTooShort)
	}
}

func TestPropagateVarianceIdentity(t *testing.T) {
	centers := []float64{0, 1, 2, 3}

	trans, err := Matrix(centers, centers)
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	variance := []float64{1, 2, 3, 4}
	cov := PropagateVariance(trans, variance)

	for i, v := range variance {
		if d := math.Abs(cov.At(i, i) - v); d > 1e-12 {
			t.Fatalf("diag(%d) = %v, want %v", i, cov.At(i, i), v)
		}
	}
}

func TestPropagateVarianceMixing(t *testing.T) {
	input := []float64{0, 1, 2, 3, 4}
	output := []float64{0, 2, 4}

	trans, err := Matrix(input, output)
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	cov := PropagateVariance(trans, testutil.Ones(len(input)))

	// Rows [1 .5 0 0 0], [0 .5 1 .5 0] and [0 0 0 .5 1] with unit input
	// variance give diag {1.25, 1.5, 1.25} and shared-pixel cross terms.
	want := mat.NewDense(3, 3, []float64{
		1.25, 0.25, 0,
		0.25, 1.5, 0.25,
		0, 0.25, 1.25,
	})
	testutil.RequireMatrixNearlyEqual(t, cov, want, 1e-12)
}

func TestPropagateVarianceFill(t *testing.T) {
	input := []float64{0, 1, 2}
	output := []float64{0, 1, 50, 51}

	trans, err := Matrix(input, output, WithEdgeUpweighting(false))
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	filled := PropagateVariance(trans, testutil.Ones(len(input)), WithFillVariance(1e10))

	if got := filled.At(3, 3); got != 1e10 {
		t.Fatalf("empty row diagonal = %v, want fill value 1e10", got)
	}
	if got := filled.At(0, 0); got == 1e10 || got == 0 {
		t.Fatalf("covered row diagonal = %v, want genuine variance", got)
	}
}

func TestPropagateCovarianceDense(t *testing.T) {
	centers := []float64{0, 1, 2}

	trans, err := Matrix(centers, centers)
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	cov := mat.NewDense(3, 3, []float64{
		2, 1, 0,
		1, 2, 1,
		0, 1, 2,
	})
	got := PropagateCovariance(trans, cov)

	testutil.RequireMatrixNearlyEqual(t, got, cov, 1e-12)
}

func BenchmarkMatrix(b *testing.B) {
	input := testutil.LinearGrid(300, 1000, 4000)
	output := testutil.LinearGrid(350, 950, 1500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Matrix(input, output); err != nil {
			b.Fatal(err)
		}
	}
}
