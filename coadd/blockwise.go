package coadd

import (
	"errors"
	"sync"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/mat"

	"github.com/quidditymaster/resampling/internal/lsqr"
	"github.com/quidditymaster/resampling/internal/matext"
	"github.com/quidditymaster/resampling/resample"
)

// ErrOverlapTooLarge is returned when the configured block overlap is
// not smaller than the block size.
var ErrOverlapTooLarge = errors.New("coadd: block overlap must be smaller than block size")

// BlockOption adjusts a blockwise coadd.
type BlockOption func(*blockConfig)

type blockConfig struct {
	size         int
	overlap      int
	wvOverlap    float64
	preserveNorm bool
	damp         float64
	workers      int
}

func defaultBlockConfig() blockConfig {
	return blockConfig{
		size:         50,
		overlap:      10,
		wvOverlap:    0.1,
		preserveNorm: true,
		damp:         1e-6,
		workers:      1,
	}
}

// WithBlockSize sets the number of output pixels solved per block.
func WithBlockSize(n int) BlockOption {
	return func(c *blockConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithBlockOverlap sets how many output pixels adjacent blocks share.
// Overlaps of 2 or less are accepted but flagged in the result, since
// the stitching ramps then have too few pixels to suppress block
// boundary artifacts.
func WithBlockOverlap(n int) BlockOption {
	return func(c *blockConfig) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// WithWvOverlap widens, in wavelength units, the input window gathered
// around each block beyond the block's own span.
func WithWvOverlap(v float64) BlockOption {
	return func(c *blockConfig) {
		if v >= 0 {
			c.wvOverlap = v
		}
	}
}

// WithBlockNormalization controls the row normalization of the
// per-block resampling matrices. It defaults to on.
func WithBlockNormalization(enabled bool) BlockOption {
	return func(c *blockConfig) {
		c.preserveNorm = enabled
	}
}

// WithBlockDamping sets the damping passed to the per-block solver.
func WithBlockDamping(v float64) BlockOption {
	return func(c *blockConfig) {
		if v >= 0 {
			c.damp = v
		}
	}
}

// WithWorkers sets how many blocks are solved concurrently. The
// default of 1 solves them sequentially; results are identical either
// way.
func WithWorkers(n int) BlockOption {
	return func(c *blockConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// BlockwiseResult holds the output of Blockwise.
type BlockwiseResult struct {
	// Flux is the stitched combined spectrum. Pixels no block could
	// constrain are zero.
	Flux []float64
	// DegradedOverlap reports that the block overlap was 2 or less, a
	// regime where block boundaries leave visible artifacts.
	DegradedOverlap bool
}

// Blockwise combines the orders onto outputWvs one overlapping block
// at a time. Within a block every order is resampled onto the block's
// wavelengths, weighted by the pseudoinverse of its propagated
// covariance and merged through a damped least squares solve; adjacent
// block solutions are then stitched with squared-ramp apodization
// weights. Cross-normalized inputs are assumed, since blocks carry no
// global flux scale.
//
// Orders enter a block when more than one of their pixels lands inside
// the block's wavelength span widened by the wavelength overlap.
// Blocks without such an order, or whose weighted data reduce to a
// single nonzero value, contribute nothing.
func Blockwise(orders []Order, outputWvs []float64, opts ...BlockOption) (*BlockwiseResult, error) {
	cfg := defaultBlockConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.overlap >= cfg.size {
		return nil, ErrOverlapTooLarge
	}
	if err := validateOrders(orders); err != nil {
		return nil, err
	}

	variances := make([][]float64, len(orders))
	for i := range orders {
		variances[i] = orders[i].variance()
	}

	nOut := len(outputWvs)
	blocks := blockRanges(nOut, cfg.size, cfg.overlap)

	// Blocks are independent; solve them under a bounded pool and
	// merge in block order afterwards so the result does not depend on
	// scheduling.
	solutions := make([][]float64, len(blocks))
	sem := make(chan struct{}, cfg.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for bi := range blocks {
		wg.Add(1)
		go func(bi int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			sol, err := solveBlock(orders, variances, outputWvs, blocks[bi], &cfg)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			solutions[bi] = sol
		}(bi)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	flux := make([]float64, nOut)
	weight := make([]float64, nOut)
	for bi, blk := range blocks {
		sol := solutions[bi]
		if sol == nil {
			continue
		}
		bs := blk[1] - blk[0]
		taper := matext.Ones(bs)
		if len(blocks) > 1 {
			taper = blockTaper(bs, cfg.overlap)
		}
		contrib := make([]float64, bs)
		vecmath.MulBlock(contrib, taper, sol)
		for k := 0; k < bs; k++ {
			flux[blk[0]+k] += contrib[k]
			weight[blk[0]+k] += taper[k]
		}
	}
	for i := range flux {
		if weight[i] > 0 {
			flux[i] /= weight[i]
		}
	}

	return &BlockwiseResult{Flux: flux, DegradedOverlap: cfg.overlap <= 2}, nil
}

// solveBlock combines every order's contribution to one output block
// and solves for the block spectrum. A nil solution with a nil error
// means the block had no usable data.
func solveBlock(orders []Order, variances [][]float64, outputWvs []float64, blk [2]int, cfg *blockConfig) ([]float64, error) {
	lo, hi := blk[0], blk[1]
	bs := hi - lo
	outBlock := outputWvs[lo:hi]
	minWv := outputWvs[lo] - cfg.wvOverlap
	maxWv := outputWvs[hi-1] + cfg.wvOverlap

	lhs := mat.NewDense(bs, bs, nil)
	rhs := make([]float64, bs)
	for oi := range orders {
		o := &orders[oi]
		var wvs, flux, vr []float64
		for k, wv := range o.Wavelengths {
			if wv > minWv && wv < maxWv {
				wvs = append(wvs, wv)
				flux = append(flux, o.Flux[k])
				vr = append(vr, variances[oi][k])
			}
		}
		if len(wvs) < 2 {
			continue
		}

		trans, err := resample.Matrix(wvs, outBlock, resample.WithNormalization(cfg.preserveNorm))
		if err != nil {
			return nil, err
		}
		data := matext.MulVec(trans, flux)
		w, err := blockInverse(resample.PropagateVariance(trans, vr).ToDense())
		if err != nil {
			return nil, err
		}
		if w == nil {
			continue
		}
		for i := 0; i < bs; i++ {
			for j := 0; j < bs; j++ {
				v := w.At(i, j)
				if v != 0 {
					lhs.Set(i, j, lhs.At(i, j)+v)
					rhs[i] += v * data[j]
				}
			}
		}
	}

	nonzero := 0
	for _, v := range rhs {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero <= 1 {
		return nil, nil
	}

	settings := lsqr.DefaultSettings()
	settings.Damp = cfg.damp
	res, err := lsqr.Solve(lsqr.DenseOperator{A: lhs}, rhs, settings)
	if err != nil {
		return nil, err
	}
	return res.X, nil
}

// blockInverse pseudoinverts the part of a propagated block covariance
// that carries data. Rows and columns with zero sums stay zero in the
// inverse. A nil result marks an all-zero matrix.
func blockInverse(cv *mat.Dense) (*mat.Dense, error) {
	n, _ := cv.Dims()
	var nz []int
	for j := 0; j < n; j++ {
		s := 0.0
		for i := 0; i < n; i++ {
			s += cv.At(i, j)
		}
		if s > 0 {
			nz = append(nz, j)
		}
	}
	if len(nz) == 0 {
		return nil, nil
	}
	sub := mat.NewDense(len(nz), len(nz), nil)
	for a, i := range nz {
		for b, j := range nz {
			sub.Set(a, b, cv.At(i, j))
		}
	}
	pinv, err := matext.PseudoInverse(sub)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(n, n, nil)
	for a, i := range nz {
		for b, j := range nz {
			out.Set(i, j, pinv.At(a, b))
		}
	}
	return out, nil
}

// blockRanges tiles [0, nOut) into overlapping index windows. The last
// window is pinned to the end of the grid so it spans a full block.
// Grids no longer than one block collapse to a single window.
func blockRanges(nOut, size, overlap int) [][2]int {
	if nOut <= size {
		return [][2]int{{0, nOut}}
	}
	step := size - overlap
	nBlocks := nOut/step + 1
	blocks := make([][2]int, 0, nBlocks)
	for bi := 0; bi < nBlocks-1; bi++ {
		lo := step * bi
		blocks = append(blocks, [2]int{lo, min(nOut, lo+size)})
	}
	return append(blocks, [2]int{nOut - size, nOut})
}

// blockTaper builds the squared-ramp apodization weights that stitch
// adjacent block solutions: zero at the block edges, rising to one
// over the overlap. The trailing ramp wins where the two ramps meet.
// Ramps longer than the block are clamped to its length.
func blockTaper(size, overlap int) []float64 {
	if overlap >= size {
		overlap = size - 1
	}
	alpha := matext.Ones(size)
	switch {
	case overlap == 1:
		alpha[0] = 0
	case overlap > 1:
		for k := 0; k < overlap; k++ {
			alpha[k] = float64(k) / float64(overlap-1)
		}
		for k := 0; k < overlap; k++ {
			alpha[size-overlap+k] = 1 - float64(k)/float64(overlap-1)
		}
	}
	for i, v := range alpha {
		alpha[i] = v * v
	}
	return alpha
}
