package cpu

import (
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// modules is the host kernel table: module -> function -> kernel. It plays
// the role of the compiled artifacts an accelerator loads; Device.kernel
// resolves entries lazily and caches them per device.
var modules = map[string]map[string]kernelFunc{}

func register(module, function string, k kernelFunc) {
	m, ok := modules[module]
	if !ok {
		m = map[string]kernelFunc{}
		modules[module] = m
	}
	m[function] = k
}

func lookup(module, function string) (kernelFunc, bool) {
	k, ok := modules[module][function]
	return k, ok
}

// registerFloat registers every kernel for element type E under the
// "<name>_<suffix>" convention.
func registerFloat[E tensor.Float]() {
	name := tensor.KernelName[E]

	register(kernels.ModuleFill, name("fill"), fill[E])
	register(kernels.ModuleCopy, name("copy_strided_fwd"), copyStridedFwd[E])
	register(kernels.ModuleCopy, name("copy_strided_bwd"), copyStridedBwd[E])

	register(kernels.ModuleUnary, name("unary_fwd"), unaryFwd[E])
	register(kernels.ModuleUnary, name("unary_bwd"), unaryBwd[E])
	register(kernels.ModuleBinary, name("binary_fwd"), binaryFwd[E])
	register(kernels.ModuleBinary, name("binary_bwd"), binaryBwd[E])

	register(kernels.ModuleCmp, name("cmp"), cmp[E])
	register(kernels.ModuleCmp, name("scalar_cmp"), scalarCmp[E])
	register(kernels.ModuleChoose, name("choose_fwd"), chooseFwd[E])
	register(kernels.ModuleChoose, name("choose_bwd"), chooseBwd[E])

	for _, op := range []kernels.ReduceOp{kernels.ReduceSum, kernels.ReduceMin, kernels.ReduceMax} {
		register(kernels.ModuleReduce, name(op.String()+"_fwd"), reduceFwd[E](op))
		register(kernels.ModuleReduce, name(op.String()+"_bwd"), reduceBwd[E](op))
	}

	for _, kind := range []kernels.PoolKind{kernels.PoolAvg, kernels.PoolMax, kernels.PoolMin} {
		register(kernels.ModulePool2D, name(kind.String()+"_fwd"), pool2DFwd[E](kind))
		register(kernels.ModulePool2D, name(kind.String()+"_bwd"), pool2DBwd[E](kind))
	}

	register(kernels.ModuleConv2D, name("unfold_input"), unfoldInput[E])
	register(kernels.ModuleConv2D, name("unfold_output"), unfoldOutput[E])
	register(kernels.ModuleConv2D, name("transpose_filters"), transposeFilters[E])
	register(kernels.ModuleConv2D, name("sum_transposed_filters"), sumTransposedFilters[E])
	register(kernels.ModuleBLAS, name("gemm_batched"), gemmBatched[E])

	register(kernels.ModuleSelect, name("select_fwd"), selectFwd[E])
	register(kernels.ModuleSelect, name("select_bwd"), selectBwd[E])

	register(kernels.ModuleOptim, name("sgd_update"), sgdUpdate[E])
	register(kernels.ModuleOptim, name("rmsprop_update"), rmspropUpdate[E])
}

func init() {
	registerFloat[float32]()
	registerFloat[float64]()
}
