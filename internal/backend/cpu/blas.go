package cpu

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// matrix is one strided operand of a batched product.
type matrix struct {
	batch, row, col int // strides
	rows, cols      int
}

// layout returns the BLAS view of m: transpose flag and leading dimension.
// ok is false when neither axis is unit-stride with a wide enough pitch.
func (m matrix) layout() (t blas.Transpose, ld int, ok bool) {
	switch {
	case m.col == 1 && (m.row >= m.cols || m.rows == 1):
		return blas.NoTrans, max(m.row, m.cols, 1), true
	case m.row == 1 && (m.col >= m.rows || m.cols == 1):
		return blas.Trans, max(m.col, m.rows, 1), true
	default:
		return blas.NoTrans, 0, false
	}
}

// gemmBatched computes C[b] = alpha*A[b]×B[b] + beta*C[b]. Row-major layouts
// go through gonum's BLAS; anything else falls back to a direct loop.
func gemmBatched[E tensor.Float](c *call) error {
	batch, m, n, k := c.int(), c.int(), c.int(), c.int()
	alpha, beta := E(c.float()), E(c.float())
	meta := c.ints(3)
	a, b, out := slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	if len(meta) != 9 {
		return errors.Wrapf(tensor.ErrBadArgument, "gemm: %d stride values, want 9", len(meta))
	}
	am := matrix{meta[0], meta[1], meta[2], m, k}
	bm := matrix{meta[3], meta[4], meta[5], k, n}
	cm := matrix{meta[6], meta[7], meta[8], m, n}

	ta, lda, okA := am.layout()
	tb, ldb, okB := bm.layout()
	_, ldc, okC := cm.layout()
	fast := okA && okB && okC && cm.col == 1 && k > 0

	one := func(i int) {
		aa, bb, cc := tail(a, i*am.batch), tail(b, i*bm.batch), tail(out, i*cm.batch)
		if fast && gemm(ta, tb, m, n, k, alpha, aa, lda, bb, ldb, beta, cc, ldc) {
			return
		}
		naiveGemm(am, bm, cm, k, alpha, aa, bb, beta, cc)
	}

	// A shared C is accumulated by every batch entry.
	if cm.batch == 0 && batch > 1 {
		for i := 0; i < batch; i++ {
			one(i)
		}
		return nil
	}
	par := c.par
	par.MinChunkSize = 1
	parallel.For(batch, one, par)
	return nil
}

// gemm dispatches to gonum for the concrete float types.
func gemm[E tensor.Float](ta, tb blas.Transpose, m, n, k int, alpha E, a []E, lda int,
	b []E, ldb int, beta E, c []E, ldc int) bool {
	switch a := any(a).(type) {
	case []float32:
		blas32.Implementation().Sgemm(ta, tb, m, n, k, float32(alpha), a, lda,
			any(b).([]float32), ldb, float32(beta), any(c).([]float32), ldc)
		return true
	case []float64:
		blas64.Implementation().Dgemm(ta, tb, m, n, k, float64(alpha), a, lda,
			any(b).([]float64), ldb, float64(beta), any(c).([]float64), ldc)
		return true
	default:
		return false
	}
}

func naiveGemm[E tensor.Float](am, bm, cm matrix, k int, alpha E, a, b []E, beta E, c []E) {
	for i := 0; i < cm.rows; i++ {
		for j := 0; j < cm.cols; j++ {
			var sum E
			for p := 0; p < k; p++ {
				sum += a[i*am.row+p*am.col] * b[p*bm.row+j*bm.col]
			}
			o := i*cm.row + j*cm.col
			if beta == 0 {
				c[o] = alpha * sum
			} else {
				c[o] = alpha*sum + beta*c[o]
			}
		}
	}
}

// tail returns s[off:], or nil when an empty operand is offset past its end.
func tail[E any](s []E, off int) []E {
	if off >= len(s) {
		return nil
	}
	return s[off:]
}
