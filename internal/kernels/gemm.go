package kernels

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Gemm describes a strided batched matrix product
//
//	C[b] = Alpha * A[b] × B[b] + Beta * C[b]
//
// with A[b] of size M×K, B[b] of size K×N and C[b] of size M×N. Each matrix
// is addressed by a (batch, row, col) stride triple; a zero batch stride
// shares one matrix across the batch, and a unit row stride reads it
// transposed.
type Gemm struct {
	Batch, M, N, K int
	Alpha, Beta    float64
	AStrides       [3]int
	BStrides       [3]int
	CStrides       [3]int
}

func (g Gemm) info() []int {
	return info(g.AStrides[:], g.BStrides[:], g.CStrides[:])
}

// extent returns one past the largest offset a matrix with these strides reaches.
func extent(strides [3]int, batch, rows, cols int) int {
	if batch == 0 || rows == 0 || cols == 0 {
		return 0
	}
	return (batch-1)*strides[0] + (rows-1)*strides[1] + (cols-1)*strides[2] + 1
}

// GemmBatched launches g over raw buffers.
//
// Launch: blas/gemm_batched_<dt>(batch, m, n, k, alpha, beta, info = aStrides ++ bStrides ++ cStrides, a, b, c).
func GemmBatched(dev tensor.Device, dt tensor.DataType, g Gemm, a, b, c tensor.Memory) error {
	if g.Batch < 0 || g.M < 0 || g.N < 0 || g.K < 0 {
		return errors.Wrapf(tensor.ErrShapeMismatch, "gemm: negative extent in %+v", g)
	}
	if extent(g.AStrides, g.Batch, g.M, g.K) > a.Len() ||
		extent(g.BStrides, g.Batch, g.K, g.N) > b.Len() ||
		extent(g.CStrides, g.Batch, g.M, g.N) > c.Len() {
		return errors.Wrapf(tensor.ErrShapeMismatch, "gemm: strides exceed buffers (a=%d b=%d c=%d) in %+v",
			a.Len(), b.Len(), c.Len(), g)
	}
	return launch(dev, ModuleBLAS, "gemm_batched", dt, g.Batch*g.M*g.N,
		g.Batch, g.M, g.N, g.K, g.Alpha, g.Beta, g.info(), a, b, c)
}
