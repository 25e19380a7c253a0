package coadd

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOrders is returned when a coadd is requested without input.
	ErrNoOrders = errors.New("coadd: no orders supplied")
	// ErrEmptyOrder is returned when an order carries no pixels.
	ErrEmptyOrder = errors.New("coadd: order has no pixels")
	// ErrLengthMismatch is returned when the per-pixel slices of an
	// order disagree in length.
	ErrLengthMismatch = errors.New("coadd: order slice lengths differ")
	// ErrNoUncertainty is returned when an order carries neither a
	// Variance nor an InvVar slice.
	ErrNoUncertainty = errors.New("coadd: order needs Variance or InvVar")
	// ErrNoResolution is returned when a deconvolving coadd is asked
	// to process an order without resolution information.
	ErrNoResolution = errors.New("coadd: order needs Resolution")
)

// Order is one observed spectral segment: a strictly increasing
// wavelength vector with per-pixel flux and uncertainty. Either
// Variance or InvVar may be supplied; the missing one is derived with
// a guarded reciprocal. A zero entry in either form marks a pixel
// without information (masked, dead or unexposed) and contributes no
// weight to any coadd.
//
// Resolution holds the per-pixel line spread width in wavelength units
// and is only required by the deconvolving coadds.
type Order struct {
	Wavelengths []float64
	Flux        []float64
	Variance    []float64
	InvVar      []float64
	Resolution  []float64
}

// Validate reports whether the order's slices are usable: a non-empty
// wavelength vector, matching lengths and at least one uncertainty
// slice.
func (o *Order) Validate() error {
	n := len(o.Wavelengths)
	if n == 0 {
		return ErrEmptyOrder
	}
	if len(o.Flux) != n {
		return ErrLengthMismatch
	}
	if o.Variance == nil && o.InvVar == nil {
		return ErrNoUncertainty
	}
	if o.Variance != nil && len(o.Variance) != n {
		return ErrLengthMismatch
	}
	if o.InvVar != nil && len(o.InvVar) != n {
		return ErrLengthMismatch
	}
	if o.Resolution != nil && len(o.Resolution) != n {
		return ErrLengthMismatch
	}
	return nil
}

// variance returns the per-pixel variance, deriving it from InvVar
// when only that is present. Zero inverse variance stays zero so that
// masked pixels remain masked.
func (o *Order) variance() []float64 {
	if o.Variance != nil {
		return o.Variance
	}
	out := make([]float64, len(o.InvVar))
	for i, iv := range o.InvVar {
		if iv > 0 {
			out[i] = 1 / iv
		}
	}
	return out
}

// invVar returns the per-pixel inverse variance, deriving it from
// Variance when only that is present. Zero variance stays zero.
func (o *Order) invVar() []float64 {
	if o.InvVar != nil {
		return o.InvVar
	}
	out := make([]float64, len(o.Variance))
	for i, v := range o.Variance {
		if v > 0 {
			out[i] = 1 / v
		}
	}
	return out
}

// validateOrders runs Validate over a set of orders, tagging failures
// with the offending index.
func validateOrders(orders []Order) error {
	if len(orders) == 0 {
		return ErrNoOrders
	}
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
	}
	return nil
}
