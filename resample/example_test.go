package resample_test

import (
	"fmt"

	"github.com/quidditymaster/resampling/resample"
)

func ExampleMatrix() {
	input := []float64{0, 1, 2, 3, 4}
	output := []float64{0, 2, 4}

	t, _ := resample.Matrix(input, output)
	rows, cols := t.Dims()
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += t.At(i, j)
		}
		fmt.Printf("output pixel %d collects %.1f input pixels\n", i, sum)
	}
	// Output:
	// output pixel 0 collects 1.5 input pixels
	// output pixel 1 collects 2.0 input pixels
	// output pixel 2 collects 1.5 input pixels
}

func ExampleMatrix_normalization() {
	input := []float64{0, 1, 2, 3, 4}
	output := []float64{0, 2, 4}

	t, _ := resample.Matrix(input, output, resample.WithNormalization(true))
	flux := []float64{3, 3, 3, 3, 3}
	rows, cols := t.Dims()
	for i := 0; i < rows; i++ {
		v := 0.0
		for j := 0; j < cols; j++ {
			v += t.At(i, j) * flux[j]
		}
		fmt.Printf("%.1f\n", v)
	}
	// Output:
	// 3.0
	// 3.0
	// 3.0
}
