package coadd

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/quidditymaster/resampling/internal/testutil"
)

func TestBlockwiseOverlapTooLarge(t *testing.T) {
	orders := []Order{{
		Wavelengths: testutil.LinearGrid(0, 9, 10),
		Flux:        testutil.Ones(10),
		Variance:    testutil.Ones(10),
	}}
	_, err := Blockwise(orders, testutil.LinearGrid(0, 9, 10),
		WithBlockSize(10), WithBlockOverlap(10))
	if !errors.Is(err, ErrOverlapTooLarge) {
		t.Fatalf("Blockwise() error = %v, want ErrOverlapTooLarge", err)
	}
}

func TestBlockwiseSingleBlockConstant(t *testing.T) {
	wvs := testutil.LinearGrid(0, 29, 30)
	orders := []Order{{
		Wavelengths: wvs,
		Flux:        testutil.Ones(30),
		Variance:    testutil.Ones(30),
	}}

	res, err := Blockwise(orders, wvs)
	if err != nil {
		t.Fatalf("Blockwise() error = %v", err)
	}
	// The grid is shorter than one block, so a single unapodized solve
	// covers it and the constant comes back everywhere.
	testutil.RequireSliceNearlyEqual(t, res.Flux, testutil.Ones(30), 1e-6)
	if res.DegradedOverlap {
		t.Fatalf("DegradedOverlap = true, want false")
	}
}

func TestBlockwiseMultiBlockConstant(t *testing.T) {
	wvs := testutil.LinearGrid(0, 119, 120)
	orders := []Order{{
		Wavelengths: wvs,
		Flux:        testutil.Ones(120),
		Variance:    testutil.Ones(120),
	}}

	res, err := Blockwise(orders, wvs)
	if err != nil {
		t.Fatalf("Blockwise() error = %v", err)
	}

	// The outermost pixel of each end carries zero apodization weight
	// and stays empty; everything in between recovers the constant.
	if res.Flux[0] != 0 {
		t.Errorf("Flux[0] = %v, want 0", res.Flux[0])
	}
	if res.Flux[119] != 0 {
		t.Errorf("Flux[119] = %v, want 0", res.Flux[119])
	}
	testutil.RequireSliceNearlyEqual(t, res.Flux[1:119], testutil.Ones(118), 1e-6)
}

func TestBlockwiseWorkersDeterministic(t *testing.T) {
	wvs := testutil.LinearGrid(0, 119, 120)
	flux := testutil.Ones(120)
	noise := testutil.DeterministicNoise(7, 0.05, 120)
	for i := range flux {
		flux[i] += noise[i]
	}
	orders := []Order{{
		Wavelengths: wvs,
		Flux:        flux,
		Variance:    testutil.Constant(0.01, 120),
	}}

	serial, err := Blockwise(orders, wvs)
	if err != nil {
		t.Fatalf("Blockwise() error = %v", err)
	}
	parallel, err := Blockwise(orders, wvs, WithWorkers(4))
	if err != nil {
		t.Fatalf("Blockwise(WithWorkers) error = %v", err)
	}

	// Block solves are independent and merged in block order, so the
	// worker count must not change a single bit of the output.
	maxDiff, err := testutil.MaxAbsDiff(serial.Flux, parallel.Flux)
	if err != nil {
		t.Fatalf("MaxAbsDiff() error = %v", err)
	}
	if maxDiff != 0 {
		t.Fatalf("flux differs between 1 and 4 workers: max diff %v", maxDiff)
	}
}

func TestBlockwiseNoCoverage(t *testing.T) {
	orders := []Order{{
		Wavelengths: testutil.LinearGrid(100, 105, 6),
		Flux:        testutil.Ones(6),
		Variance:    testutil.Ones(6),
	}}

	res, err := Blockwise(orders, testutil.LinearGrid(0, 9, 10))
	if err != nil {
		t.Fatalf("Blockwise() error = %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, res.Flux, make([]float64, 10), 0)
}

func TestBlockwiseDegradedOverlapFlag(t *testing.T) {
	wvs := testutil.LinearGrid(0, 29, 30)
	orders := []Order{{
		Wavelengths: wvs,
		Flux:        testutil.Ones(30),
		Variance:    testutil.Ones(30),
	}}

	res, err := Blockwise(orders, wvs, WithBlockOverlap(2))
	if err != nil {
		t.Fatalf("Blockwise() error = %v", err)
	}
	if !res.DegradedOverlap {
		t.Fatalf("DegradedOverlap = false, want true")
	}
}

func TestBlockRanges(t *testing.T) {
	cases := []struct {
		name    string
		nOut    int
		size    int
		overlap int
		want    [][2]int
	}{
		{
			name:    "short grid",
			nOut:    30,
			size:    50,
			overlap: 10,
			want:    [][2]int{{0, 30}},
		},
		{
			name:    "exact fit",
			nOut:    90,
			size:    50,
			overlap: 10,
			want:    [][2]int{{0, 50}, {40, 90}, {40, 90}},
		},
		{
			name:    "clipped interior",
			nOut:    120,
			size:    50,
			overlap: 10,
			want:    [][2]int{{0, 50}, {40, 90}, {80, 120}, {70, 120}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := blockRanges(tc.nOut, tc.size, tc.overlap)
			if len(got) != len(tc.want) {
				t.Fatalf("blockRanges() = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("blockRanges()[%d] = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestBlockTaper(t *testing.T) {
	got := blockTaper(10, 4)
	want := []float64{0, 1. / 9, 4. / 9, 1, 1, 1, 1, 4. / 9, 1. / 9, 0}
	testutil.RequireSliceNearlyEqual(t, got, want, 1e-15)

	got = blockTaper(5, 1)
	testutil.RequireSliceNearlyEqual(t, got, []float64{0, 1, 1, 1, 1}, 1e-15)

	got = blockTaper(5, 0)
	testutil.RequireSliceNearlyEqual(t, got, testutil.Ones(5), 1e-15)

	// Overlaps wider than the block are clamped instead of panicking.
	got = blockTaper(3, 5)
	testutil.RequireFinite(t, got)
	if len(got) != 3 {
		t.Fatalf("len(blockTaper(3, 5)) = %d, want 3", len(got))
	}
}

func TestBlockInverse(t *testing.T) {
	cv := mat.NewDense(3, 3, []float64{
		4, 0, 0,
		0, 0, 0,
		0, 0, 2,
	})
	inv, err := blockInverse(cv)
	if err != nil {
		t.Fatalf("blockInverse() error = %v", err)
	}
	want := mat.NewDense(3, 3, []float64{
		0.25, 0, 0,
		0, 0, 0,
		0, 0, 0.5,
	})
	testutil.RequireMatrixNearlyEqual(t, inv, want, 1e-12)

	inv, err = blockInverse(mat.NewDense(2, 2, nil))
	if err != nil {
		t.Fatalf("blockInverse(zero) error = %v", err)
	}
	if inv != nil {
		t.Fatalf("blockInverse(zero) = %v, want nil", inv)
	}
}
