package cpu

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func upload[T tensor.Element](t *testing.T, d *Device, dt tensor.DataType, data []T) tensor.Memory {
	t.Helper()
	m, err := d.Alloc(dt, len(data))
	require.NoError(t, err)
	require.NoError(t, d.Upload(m, data))
	return m
}

func TestDevice_Identity(t *testing.T) {
	d := New()
	assert.Equal(t, "cpu", d.Name())
	assert.Equal(t, tensor.Host, d.Kind())
	assert.NoError(t, d.Synchronize())
	assert.NoError(t, d.Close())
}

func TestDevice_AllocAccounting(t *testing.T) {
	d := NewWithConfig(Config{MemoryLimit: 64})

	m, err := d.AllocZeroed(tensor.Float32, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(32), d.Allocated())

	_, err = d.Alloc(tensor.Float64, 8)
	assert.True(t, errors.Is(err, tensor.ErrAlloc))
	assert.Equal(t, int64(32), d.Allocated())

	m.Release()
	m.Release()
	assert.Equal(t, int64(0), d.Allocated())

	_, err = d.Alloc(tensor.Float32, -1)
	assert.True(t, errors.Is(err, tensor.ErrAlloc))
}

func TestDevice_UploadDownloadCopy(t *testing.T) {
	d := New()
	src := upload(t, d, tensor.Float64, []float64{1, 2, 3})
	dst, err := d.Alloc(tensor.Float64, 3)
	require.NoError(t, err)
	require.NoError(t, d.Copy(dst, src))

	got := make([]float64, 3)
	require.NoError(t, d.Download(dst, got))
	assert.Equal(t, []float64{1, 2, 3}, got)

	assert.Error(t, d.Download(dst, make([]float64, 2)))
	assert.True(t, errors.Is(d.Upload(dst, []float32{1, 2, 3}), tensor.ErrUnsupportedDType))
}

func TestDevice_ForeignAndReleasedBuffers(t *testing.T) {
	a, b := New(), New()
	m := upload(t, a, tensor.Float32, []float32{1})

	err := b.Download(m, make([]float32, 1))
	assert.True(t, errors.Is(err, tensor.ErrDeviceMismatch))

	m.Release()
	err = a.Download(m, make([]float32, 1))
	assert.True(t, errors.Is(err, tensor.ErrBadArgument))
}

func TestDevice_Run(t *testing.T) {
	d := New()
	out, err := d.Alloc(tensor.Float32, 4)
	require.NoError(t, err)

	require.NoError(t, d.Run("fill", "fill_f32", tensor.LaunchFor(4), 2.5, out))
	got := make([]float32, 4)
	require.NoError(t, d.Download(out, got))
	assert.Equal(t, []float32{2.5, 2.5, 2.5, 2.5}, got)

	t.Run("missing kernel", func(t *testing.T) {
		err := d.Run("fill", "fill_bf16", tensor.LaunchFor(4), 0.0, out)
		assert.True(t, errors.Is(err, tensor.ErrKernelLoad))
		err = d.Run("nope", "fill_f32", tensor.LaunchFor(4), 0.0, out)
		assert.True(t, errors.Is(err, tensor.ErrKernelLoad))
	})

	t.Run("bad arguments", func(t *testing.T) {
		err := d.Run("fill", "fill_f32", tensor.LaunchFor(4), 1, out)
		assert.True(t, errors.Is(err, tensor.ErrBadArgument))
		err = d.Run("fill", "fill_f32", tensor.LaunchFor(4), 1.0, out, out)
		assert.True(t, errors.Is(err, tensor.ErrBadArgument))
		err = d.Run("fill", "fill_f32", tensor.LaunchFor(4), 1.0)
		assert.True(t, errors.Is(err, tensor.ErrBadArgument))
	})

	t.Run("wrong element type", func(t *testing.T) {
		err := d.Run("fill", "fill_f64", tensor.LaunchFor(4), 1.0, out)
		assert.True(t, errors.Is(err, tensor.ErrUnsupportedDType))
	})
}

func TestDevice_ConcurrentKernelLoad(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := d.Alloc(tensor.Float64, 2)
			if err != nil {
				errs[i] = err
				return
			}
			defer out.Release()
			errs[i] = d.Run("fill", "fill_f64", tensor.LaunchFor(2), float64(i), out)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func refGemm(am, bm, cm matrix, batch, k int, a, b, c []float64) {
	for bi := 0; bi < batch; bi++ {
		for i := 0; i < cm.rows; i++ {
			for j := 0; j < cm.cols; j++ {
				var sum float64
				for p := 0; p < k; p++ {
					sum += a[bi*am.batch+i*am.row+p*am.col] * b[bi*bm.batch+p*bm.row+j*bm.col]
				}
				c[bi*cm.batch+i*cm.row+j*cm.col] += sum
			}
		}
	}
}

func TestGemmBatched_Layouts(t *testing.T) {
	const batch, m, n, k = 2, 3, 4, 5
	seq := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = float64(i%7) - 3
		}
		return s
	}

	cases := []struct {
		name string
		a, b matrix
		aLen int
		bLen int
	}{
		{"row-major", matrix{m * k, k, 1, m, k}, matrix{k * n, n, 1, k, n}, batch * m * k, batch * k * n},
		{"transposed b", matrix{m * k, k, 1, m, k}, matrix{k * n, 1, k, k, n}, batch * m * k, batch * k * n},
		{"transposed a", matrix{m * k, 1, m, m, k}, matrix{k * n, n, 1, k, n}, batch * m * k, batch * k * n},
		{"shared a", matrix{0, k, 1, m, k}, matrix{k * n, n, 1, k, n}, m * k, batch * k * n},
		{"strided fallback", matrix{2 * m * k, 2 * k, 2, m, k}, matrix{k * n, n, 1, k, n}, 2 * batch * m * k, batch * k * n},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewWithConfig(Config{Parallel: parallel.Sequential()})
			cm := matrix{m * n, n, 1, m, n}
			aData, bData, cData := seq(tc.aLen), seq(tc.bLen), seq(batch*m*n)

			want := append([]float64(nil), cData...)
			refGemm(tc.a, tc.b, cm, batch, k, aData, bData, want)

			a := upload(t, d, tensor.Float64, aData)
			b := upload(t, d, tensor.Float64, bData)
			c := upload(t, d, tensor.Float64, cData)
			meta := []int{tc.a.batch, tc.a.row, tc.a.col, tc.b.batch, tc.b.row, tc.b.col, cm.batch, cm.row, cm.col}
			require.NoError(t, d.Run("blas", "gemm_batched_f64", tensor.LaunchFor(batch*m*n),
				batch, m, n, k, 1.0, 1.0, meta, a, b, c))

			got := make([]float64, len(want))
			require.NoError(t, d.Download(c, got))
			assert.InDeltaSlice(t, want, got, 1e-9)
		})
	}
}

func TestMatrix_Layout(t *testing.T) {
	tr, ld, ok := matrix{rows: 3, cols: 4, row: 4, col: 1}.layout()
	assert.True(t, ok)
	assert.Equal(t, 4, ld)
	assert.Equal(t, blas.NoTrans, tr)

	tr, ld, ok = matrix{rows: 3, cols: 4, row: 1, col: 3}.layout()
	assert.True(t, ok)
	assert.Equal(t, blas.Trans, tr)
	assert.Equal(t, 3, ld)

	_, _, ok = matrix{rows: 3, cols: 4, row: 8, col: 2}.layout()
	assert.False(t, ok)
}
