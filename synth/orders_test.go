package synth

import (
	"math"
	"testing"

	"github.com/quidditymaster/resampling/grid"
)

func TestContinuum(t *testing.T) {
	got := Continuum([]float64{0, 2, 4}, 2, 0.5)
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Continuum()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAbsorptionLineDepth(t *testing.T) {
	wvs := []float64{3, 4, 5, 6, 7}
	continuum := Continuum(wvs, 2, 0)
	flux := Absorption(wvs, continuum, []Line{{Center: 5, Depth: 0.5, Width: 0.3}})

	// At line center the flux drops to depth times the continuum; far
	// away it recovers it.
	if got, want := flux[2], 1.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("flux at center = %v, want %v", got, want)
	}
	if got := flux[0]; math.Abs(got-2) > 1e-6 {
		t.Fatalf("flux far from line = %v, want 2", got)
	}
}

func TestAbsorptionSkipsDegenerateLines(t *testing.T) {
	wvs := []float64{0, 1, 2}
	flux := Absorption(wvs, Continuum(wvs, 1, 0), []Line{{Center: 1, Depth: 0.9, Width: 0}})
	for i, v := range flux {
		if v != 1 {
			t.Fatalf("flux[%d] = %v, want 1", i, v)
		}
	}
}

func TestMakeOrder(t *testing.T) {
	g := NewGenerator(WithSeed(9))
	o, err := g.MakeOrder(OrderConfig{
		MinWv:      4000,
		MaxWv:      4100,
		Pixels:     50,
		Spacing:    grid.SpacingLinear,
		Lines:      []Line{{Center: 4050, Depth: 0.6, Width: 2}},
		NoiseSigma: 0.01,
		Resolution: 4,
	})
	if err != nil {
		t.Fatalf("MakeOrder() error = %v", err)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(o.Wavelengths) != 50 {
		t.Fatalf("len(Wavelengths) = %d, want 50", len(o.Wavelengths))
	}
	for i := 1; i < len(o.Wavelengths); i++ {
		if o.Wavelengths[i] <= o.Wavelengths[i-1] {
			t.Fatalf("wavelengths not increasing at %d", i)
		}
	}
	wantVar := 0.01 * 0.01
	for i, v := range o.Variance {
		if v != wantVar {
			t.Fatalf("Variance[%d] = %v, want %v", i, v, wantVar)
		}
	}
	for i, v := range o.Resolution {
		if v != 4 {
			t.Fatalf("Resolution[%d] = %v, want 4", i, v)
		}
	}
}

func TestMakeOrderNoiseless(t *testing.T) {
	g := NewGenerator()
	o, err := g.MakeOrder(OrderConfig{
		MinWv:   0,
		MaxWv:   9,
		Pixels:  10,
		Spacing: grid.SpacingLinear,
	})
	if err != nil {
		t.Fatalf("MakeOrder() error = %v", err)
	}
	for i, v := range o.Flux {
		if v != 1 {
			t.Fatalf("Flux[%d] = %v, want unit continuum", i, v)
		}
	}
	for i, v := range o.Variance {
		if v != 1 {
			t.Fatalf("Variance[%d] = %v, want 1", i, v)
		}
	}
	if o.Resolution != nil {
		t.Fatalf("Resolution = %v, want nil", o.Resolution)
	}
}

func TestMakeOrderValidation(t *testing.T) {
	g := NewGenerator()
	if _, err := g.MakeOrder(OrderConfig{MinWv: 0, MaxWv: 9, Pixels: 0}); err == nil {
		t.Fatalf("MakeOrder(Pixels: 0) error = nil, want error")
	}
	if _, err := g.MakeOrder(OrderConfig{MinWv: 0, MaxWv: 9, Pixels: 10, Spacing: grid.Spacing(99)}); err == nil {
		t.Fatalf("MakeOrder(bad spacing) error = nil, want error")
	}
}

func TestMakeOrdersDistinctNoise(t *testing.T) {
	g := NewGenerator(WithSeed(21))
	cfg := OrderConfig{
		MinWv:      0,
		MaxWv:      9,
		Pixels:     10,
		Spacing:    grid.SpacingLinear,
		NoiseSigma: 0.1,
	}
	orders, err := g.MakeOrders([]OrderConfig{cfg, cfg})
	if err != nil {
		t.Fatalf("MakeOrders() error = %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("len(orders) = %d, want 2", len(orders))
	}
	same := true
	for i := range orders[0].Flux {
		if orders[0].Flux[i] != orders[1].Flux[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("orders share one noise realization")
	}
}
