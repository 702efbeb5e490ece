package webgpu

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// binding declares one storage buffer of a kernel.
type binding struct {
	name  string
	elem  string // WGSL element type
	write bool

	// atomic buffers are accumulated with add_<name>, a CAS loop on the
	// f32 bits, because several threads may target one slot.
	atomic bool
}

func read(name string) binding       { return binding{name: name, elem: "f32"} }
func readWrite(name string) binding  { return binding{name: name, elem: "f32", write: true} }
func accumulate(name string) binding { return binding{name: name, elem: "f32", write: true, atomic: true} }

// kernelSource is the WGSL of one (module, function) pair before assembly.
type kernelSource struct {
	bindings []binding
	helpers  string
	body     string // runs with i, the thread index, already bounds-checked

	// opCount bounds the leading int argument when it selects an operation.
	opCount int
}

// prelude is shared by every kernel. Args words are documented on packArgs.
const prelude = `
const WG: u32 = 256u;

fn arg_f32(k: u32) -> f32 {
    return bitcast<f32>(args[k]);
}

fn inf() -> f32 {
    return bitcast<f32>(0x7f800000u);
}

// offset maps logical index i through rank dims at args[dims] and strides
// at args[strides].
fn offset(i: u32, rank: u32, dims: u32, strides: u32) -> u32 {
    var rem = i;
    var off = 0u;
    var d = rank;
    loop {
        if (d == 0u) { break; }
        d = d - 1u;
        let n = args[dims + d];
        off = off + (rem % n) * args[strides + d];
        rem = rem / n;
    }
    return off;
}
`

const atomicAdd = `
fn add_%[1]s(k: u32, v: f32) {
    var old = atomicLoad(&%[1]s[k]);
    loop {
        let r = atomicCompareExchangeWeak(&%[1]s[k], old, bitcast<u32>(bitcast<f32>(old) + v));
        if (r.exchanged) { break; }
        old = r.old_value;
    }
}
`

const entry = `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let i = gid.x + gid.y * groups.x * WG;
    if (i >= args[0]) { return; }
%s
}
`

// wgsl assembles the full module. Buffers take bindings 0..n-1 and args
// takes binding n.
func (k kernelSource) wgsl() string {
	var sb strings.Builder
	for n, b := range k.bindings {
		access, elem := "read", b.elem
		if b.write {
			access = "read_write"
		}
		if b.atomic {
			elem = "atomic<u32>"
		}
		fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, %s> %s: array<%s>;\n", n, access, b.name, elem)
	}
	fmt.Fprintf(&sb, "@group(0) @binding(%d) var<storage, read> args: array<u32>;\n", len(k.bindings))
	sb.WriteString(prelude)
	for _, b := range k.bindings {
		if b.atomic {
			fmt.Fprintf(&sb, atomicAdd, b.name)
		}
	}
	sb.WriteString(k.helpers)
	fmt.Fprintf(&sb, entry, k.body)
	return sb.String()
}

// shaders maps module -> base function name -> source.
var shaders = map[string]map[string]kernelSource{
	kernels.ModuleFill: {
		"fill": {
			bindings: []binding{readWrite("out")},
			body:     `    out[i] = arg_f32(1u);`,
		},
	},
	kernels.ModuleCopy: {
		"copy_strided_fwd": {
			bindings: []binding{read("inp"), readWrite("out")},
			body: `    let rank = args[1u] / 2u;
    out[i] = inp[offset(i, rank, 2u, 2u + rank)];`,
		},
		"copy_strided_bwd": {
			bindings: []binding{accumulate("grad_inp"), read("grad_out")},
			body: `    let rank = args[1u] / 2u;
    add_grad_inp(offset(i, rank, 2u, 2u + rank), grad_out[i]);`,
		},
	},
	kernels.ModuleUnary: {
		"unary_fwd": {
			bindings: []binding{read("inp"), readWrite("out")},
			helpers:  unaryHelpers,
			opCount:  int(kernels.UnaryPowScalar) + 1,
			body: `    let rank = args[3u] / 2u;
    out[i] = unary_value(args[1u], arg_f32(2u), inp[offset(i, rank, 4u, 4u + rank)]);`,
		},
		"unary_bwd": {
			bindings: []binding{read("inp"), read("out"), accumulate("grad_inp"), read("grad_out")},
			helpers:  unaryHelpers,
			opCount:  int(kernels.UnaryPowScalar) + 1,
			body: `    let rank = args[3u] / 2u;
    let off = offset(i, rank, 4u, 4u + rank);
    add_grad_inp(off, unary_deriv(args[1u], arg_f32(2u), inp[off], out[i]) * grad_out[i]);`,
		},
	},
	kernels.ModuleBinary: {
		"binary_fwd": {
			bindings: []binding{read("lhs"), read("rhs"), readWrite("out")},
			helpers:  binaryHelpers,
			opCount:  int(kernels.BinaryMinimum) + 1,
			body: `    let rank = args[2u] / 3u;
    let l = lhs[offset(i, rank, 3u, 3u + rank)];
    let r = rhs[offset(i, rank, 3u, 3u + 2u * rank)];
    out[i] = binary_value(args[1u], l, r);`,
		},
		"binary_bwd": {
			bindings: []binding{read("lhs"), read("rhs"), accumulate("grad_lhs"), accumulate("grad_rhs"), read("grad_out")},
			helpers:  binaryHelpers,
			opCount:  int(kernels.BinaryMinimum) + 1,
			body: `    let rank = args[2u] / 3u;
    let lo = offset(i, rank, 3u, 3u + rank);
    let ro = offset(i, rank, 3u, 3u + 2u * rank);
    let d = binary_deriv(args[1u], lhs[lo], rhs[ro]);
    add_grad_lhs(lo, d.x * grad_out[i]);
    add_grad_rhs(ro, d.y * grad_out[i]);`,
		},
	},
	kernels.ModuleCmp: {
		"cmp": {
			bindings: []binding{read("lhs"), read("rhs"), {name: "out", elem: "u32", write: true}},
			helpers:  compareHelper,
			opCount:  int(kernels.CmpLe) + 1,
			body: `    let rank = args[2u] / 3u;
    let l = lhs[offset(i, rank, 3u, 3u + rank)];
    let r = rhs[offset(i, rank, 3u, 3u + 2u * rank)];
    out[i] = select(0u, 1u, compare(args[1u], l, r));`,
		},
		"scalar_cmp": {
			bindings: []binding{read("inp"), {name: "out", elem: "u32", write: true}},
			helpers:  compareHelper,
			opCount:  int(kernels.CmpLe) + 1,
			body: `    let rank = args[3u] / 2u;
    let x = inp[offset(i, rank, 4u, 4u + rank)];
    out[i] = select(0u, 1u, compare(args[1u], x, arg_f32(2u)));`,
		},
	},
	kernels.ModuleChoose: {
		"choose_fwd": {
			bindings: []binding{{name: "cond", elem: "u32"}, read("lhs"), read("rhs"), readWrite("out")},
			body: `    let rank = args[1u] / 4u;
    if (cond[offset(i, rank, 2u, 2u + rank)] != 0u) {
        out[i] = lhs[offset(i, rank, 2u, 2u + 2u * rank)];
    } else {
        out[i] = rhs[offset(i, rank, 2u, 2u + 3u * rank)];
    }`,
		},
		"choose_bwd": {
			bindings: []binding{{name: "cond", elem: "u32"}, accumulate("grad_lhs"), accumulate("grad_rhs"), read("grad_out")},
			body: `    let rank = args[1u] / 4u;
    if (cond[offset(i, rank, 2u, 2u + rank)] != 0u) {
        add_grad_lhs(offset(i, rank, 2u, 2u + 2u * rank), grad_out[i]);
    } else {
        add_grad_rhs(offset(i, rank, 2u, 2u + 3u * rank), grad_out[i]);
    }`,
		},
	},
	kernels.ModuleConv2D: {
		"unfold_input": {
			bindings: []binding{read("img"), readWrite("patches")},
			helpers:  convHelpers,
			body: `    let p = conv_info();
    let ow = i32(i % p.w_out);
    var r = i / p.w_out;
    let oh = i32(r % p.h_out);
    r = r / p.h_out;
    let k2 = i32(r % p.kernel);
    r = r / p.kernel;
    let k1 = i32(r % p.kernel);
    let plane = r / p.kernel;
    let y = oh * i32(p.stride) + k1 - i32(p.pad);
    let x = ow * i32(p.stride) + k2 - i32(p.pad);
    if (y < 0 || y >= i32(p.h_in) || x < 0 || x >= i32(p.w_in)) {
        patches[i] = 0.0;
        return;
    }
    patches[i] = img[(plane * p.h_in + u32(y)) * p.w_in + u32(x)];`,
		},
		"unfold_output": {
			bindings: []binding{read("grad_out"), readWrite("patches")},
			helpers:  convHelpers,
			body: `    let p = conv_info();
    let x = i32(i % p.w_in);
    var r = i / p.w_in;
    let y = i32(r % p.h_in);
    r = r / p.h_in;
    let k2 = i32(r % p.kernel);
    r = r / p.kernel;
    let k1 = i32(r % p.kernel);
    let plane = r / p.kernel;
    patches[i] = 0.0;
    let s = i32(p.stride);
    let ohs = y + i32(p.pad) - k1;
    let ows = x + i32(p.pad) - k2;
    if (ohs < 0 || ows < 0) { return; }
    if (ohs % s != 0 || ows % s != 0) { return; }
    let oh = u32(ohs / s);
    let ow = u32(ows / s);
    if (oh >= p.h_out || ow >= p.w_out) { return; }
    patches[i] = grad_out[(plane * p.h_out + oh) * p.w_out + ow];`,
		},
		"transpose_filters": {
			bindings: []binding{read("filters"), readWrite("ft")},
			helpers:  convHelpers,
			body: `    let p = conv_info();
    let kk = p.kernel * p.kernel;
    let k = i % kk;
    let o = (i / kk) % p.chan_out;
    let c = i / (kk * p.chan_out);
    ft[i] = filters[(o * p.chan_in + c) * kk + k];`,
		},
		"sum_transposed_filters": {
			bindings: []binding{read("grad_fb"), readWrite("grad_filters")},
			helpers:  convHelpers,
			body: `    let p = conv_info();
    let kk = p.kernel * p.kernel;
    let per = p.chan_in * p.chan_out * kk;
    let k = i % kk;
    let o = (i / kk) % p.chan_out;
    let c = i / (kk * p.chan_out);
    var sum = 0.0;
    for (var b = 0u; b < p.batch; b = b + 1u) {
        sum = sum + grad_fb[b * per + i];
    }
    let dst = (o * p.chan_in + c) * kk + k;
    grad_filters[dst] = grad_filters[dst] + sum;`,
		},
	},
	kernels.ModuleBLAS: {
		"gemm_batched": {
			bindings: []binding{read("a"), read("b"), readWrite("c")},
			body: `    let batch = args[1u];
    let m = args[2u];
    let n = args[3u];
    let k = args[4u];
    let alpha = arg_f32(5u);
    let beta = arg_f32(6u);
    // Strides start at word 8: a, b, c as (batch, row, col).
    let shared_c = args[14u] == 0u && batch > 1u;
    if (shared_c && i >= m * n) { return; }
    var first = i / (m * n);
    var last = first + 1u;
    if (shared_c) {
        first = 0u;
        last = batch;
    }
    let row = (i / n) % m;
    let col = i % n;
    let co = first * args[14u] + row * args[15u] + col * args[16u];
    var acc = c[co];
    for (var bi = first; bi < last; bi = bi + 1u) {
        var prod = 0.0;
        for (var kk = 0u; kk < k; kk = kk + 1u) {
            let av = a[bi * args[8u] + row * args[9u] + kk * args[10u]];
            let bv = b[bi * args[11u] + kk * args[12u] + col * args[13u]];
            prod = prod + av * bv;
        }
        if (beta == 0.0) {
            acc = alpha * prod;
        } else {
            acc = alpha * prod + beta * acc;
        }
    }
    c[co] = acc;`,
		},
	},
	kernels.ModuleSelect: {
		"select_fwd": {
			bindings: []binding{read("src"), {name: "idx", elem: "i32"}, readWrite("out")},
			helpers:  selectHelpers,
			body: `    let off = source_offset(i);
    if (off < 0) {
        out[i] = 0.0;
        return;
    }
    out[i] = src[u32(off)];`,
		},
		"select_bwd": {
			bindings: []binding{{name: "idx", elem: "i32"}, accumulate("grad_src"), read("grad_out")},
			helpers:  selectHelpers,
			body: `    let off = source_offset(i);
    if (off < 0) { return; }
    add_grad_src(u32(off), grad_out[i]);`,
		},
	},
	kernels.ModuleOptim: {
		"sgd_update": {
			bindings: []binding{readWrite("param"), read("grad"), readWrite("velocity")},
			body: `    let lr = arg_f32(1u);
    let momentum = args[2u];
    let mu = arg_f32(3u);
    let decay = args[4u];
    let lambda = arg_f32(5u);
    let p = param[i];
    var g = grad[i];
    if (decay == 1u) { g = g + lambda * p; }
    if (momentum == 1u) {
        velocity[i] = g + mu * velocity[i];
        g = velocity[i] * lr;
    } else if (momentum == 2u) {
        velocity[i] = g + mu * velocity[i];
        g = (g + mu * velocity[i]) * lr;
    } else {
        g = g * lr;
    }
    if (decay == 2u) { g = g + lambda * lr * p; }
    param[i] = p - g;`,
		},
		"rmsprop_update": {
			bindings: []binding{readWrite("param"), read("grad"), readWrite("square_avg"), readWrite("grad_avg"), readWrite("momentum_buf")},
			body: `    let lr = arg_f32(1u);
    let alpha = arg_f32(2u);
    let eps = arg_f32(3u);
    let centered = args[4u] != 0u;
    let momentum = args[5u] != 0u;
    let mu = arg_f32(6u);
    let decay = args[7u];
    let lambda = arg_f32(8u);
    let p = param[i];
    var g = grad[i];
    if (decay == 1u) { g = g + lambda * p; }
    var sa = square_avg[i];
    sa = sa + (1.0 - alpha) * (g * g - sa);
    square_avg[i] = sa;
    var avg = 0.0;
    if (centered) {
        var ga = grad_avg[i];
        ga = ga + (1.0 - alpha) * (g - ga);
        grad_avg[i] = ga;
        avg = sqrt(sa - ga * ga + eps);
    } else {
        avg = sqrt(sa + eps);
    }
    g = g / avg;
    if (momentum) {
        momentum_buf[i] = momentum_buf[i] * mu + g;
        g = momentum_buf[i] * lr;
    } else {
        g = g * lr;
    }
    if (decay == 2u) { g = g + lambda * lr * p; }
    param[i] = p - g;`,
		},
	},
}

func init() {
	for _, op := range []kernels.ReduceOp{kernels.ReduceSum, kernels.ReduceMin, kernels.ReduceMax} {
		shaders[kernels.ModuleReduce] = withEntry(shaders[kernels.ModuleReduce], op.String()+"_fwd", reduceFwd(op))
		shaders[kernels.ModuleReduce] = withEntry(shaders[kernels.ModuleReduce], op.String()+"_bwd", reduceBwd(op))
	}
	for _, kind := range []kernels.PoolKind{kernels.PoolAvg, kernels.PoolMax, kernels.PoolMin} {
		shaders[kernels.ModulePool2D] = withEntry(shaders[kernels.ModulePool2D], kind.String()+"_fwd", poolFwd(kind))
		shaders[kernels.ModulePool2D] = withEntry(shaders[kernels.ModulePool2D], kind.String()+"_bwd", poolBwd(kind))
	}
}

func withEntry(m map[string]kernelSource, name string, k kernelSource) map[string]kernelSource {
	if m == nil {
		m = map[string]kernelSource{}
	}
	m[name] = k
	return m
}

// lookupShader resolves a launch name such as "unary_fwd_f32".
func lookupShader(module, function string) (kernelSource, error) {
	base, suffix, ok := cutSuffix(function)
	if !ok {
		return kernelSource{}, errors.Wrapf(tensor.ErrKernelLoad, "webgpu: %s/%s has no dtype suffix", module, function)
	}
	k, found := shaders[module][base]
	if !found {
		return kernelSource{}, errors.Wrapf(tensor.ErrKernelLoad, "webgpu: no kernel %s/%s", module, function)
	}
	if suffix != tensor.Float32.Suffix() {
		return kernelSource{}, fmt.Errorf("webgpu: %s/%s: %w: %w",
			module, function, tensor.ErrKernelLoad, tensor.ErrUnsupportedDType)
	}
	return k, nil
}

func cutSuffix(function string) (base, suffix string, ok bool) {
	i := strings.LastIndexByte(function, '_')
	if i <= 0 {
		return "", "", false
	}
	return function[:i], function[i+1:], true
}

const unaryHelpers = `
// powf extends pow to negative bases with integral exponents.
fn powf(x: f32, s: f32) -> f32 {
    if (x >= 0.0 || s != floor(s)) {
        return pow(x, s);
    }
    let m = pow(-x, s);
    if (s % 2.0 == 0.0) {
        return m;
    }
    return -m;
}

fn unary_value(op: u32, s: f32, x: f32) -> f32 {
    switch op {
        case 0u: { return -x; }
        case 1u: { return sin(x); }
        case 2u: { return cos(x); }
        case 3u: { return exp(x); }
        case 4u: { return log(x); }
        case 5u: { return sqrt(x); }
        case 6u: { return x * x; }
        case 7u: { return abs(x); }
        case 8u: { return max(x, 0.0); }
        case 9u: { return tanh(x); }
        case 10u: { return 1.0 / (1.0 + exp(-x)); }
        case 11u: { return x + s; }
        case 12u: { return x * s; }
        default: { return powf(x, s); }
    }
}

fn unary_deriv(op: u32, s: f32, x: f32, y: f32) -> f32 {
    switch op {
        case 0u: { return -1.0; }
        case 1u: { return cos(x); }
        case 2u: { return -sin(x); }
        case 3u: { return y; }
        case 4u: { return 1.0 / x; }
        case 5u: { return 0.5 / y; }
        case 6u: { return 2.0 * x; }
        case 7u: { return sign(x); }
        case 8u: { return select(0.0, 1.0, x > 0.0); }
        case 9u: { return 1.0 - y * y; }
        case 10u: { return y * (1.0 - y); }
        case 11u: { return 1.0; }
        case 12u: { return s; }
        default: { return s * powf(x, s - 1.0); }
    }
}
`

const binaryHelpers = `
fn binary_value(op: u32, l: f32, r: f32) -> f32 {
    switch op {
        case 0u: { return l + r; }
        case 1u: { return l - r; }
        case 2u: { return l * r; }
        case 3u: { return l / r; }
        case 4u: { return max(l, r); }
        default: { return min(l, r); }
    }
}

// binary_deriv returns the partials with respect to l and r. Ties of
// maximum and minimum split evenly.
fn binary_deriv(op: u32, l: f32, r: f32) -> vec2<f32> {
    switch op {
        case 0u: { return vec2<f32>(1.0, 1.0); }
        case 1u: { return vec2<f32>(1.0, -1.0); }
        case 2u: { return vec2<f32>(r, l); }
        case 3u: { return vec2<f32>(1.0 / r, -l / (r * r)); }
        case 4u: {
            if (l > r) { return vec2<f32>(1.0, 0.0); }
            if (l < r) { return vec2<f32>(0.0, 1.0); }
            return vec2<f32>(0.5, 0.5);
        }
        default: {
            if (l < r) { return vec2<f32>(1.0, 0.0); }
            if (l > r) { return vec2<f32>(0.0, 1.0); }
            return vec2<f32>(0.5, 0.5);
        }
    }
}
`

const compareHelper = `
fn compare(op: u32, l: f32, r: f32) -> bool {
    switch op {
        case 0u: { return l == r; }
        case 1u: { return l != r; }
        case 2u: { return l > r; }
        case 3u: { return l >= r; }
        case 4u: { return l < r; }
        default: { return l <= r; }
    }
}
`

// reduceFwd folds chunk consecutive permuted elements into each output.
// Args: chunk, scale, info = dims ++ strides.
func reduceFwd(op kernels.ReduceOp) kernelSource {
	identity, combine, finish := "0.0", "acc + x", "acc * arg_f32(2u)"
	switch op {
	case kernels.ReduceMin:
		identity, combine, finish = "inf()", "min(acc, x)", "acc"
	case kernels.ReduceMax:
		identity, combine, finish = "-inf()", "max(acc, x)", "acc"
	}
	return kernelSource{
		bindings: []binding{read("inp"), readWrite("out")},
		body: fmt.Sprintf(`    let chunk = args[1u];
    let rank = args[3u] / 2u;
    var acc = %s;
    for (var j = 0u; j < chunk; j = j + 1u) {
        let x = inp[offset(i * chunk + j, rank, 4u, 4u + rank)];
        acc = %s;
    }
    out[i] = %s;`, identity, combine, finish),
	}
}

// reduceBwd routes each input element's share of the output gradient.
// Args: info = dims ++ inpStrides ++ outStrides.
func reduceBwd(op kernels.ReduceOp) kernelSource {
	return kernelSource{
		bindings: []binding{read("inp"), read("out"), accumulate("grad_inp"), read("grad_out")},
		body: fmt.Sprintf(`    let rank = args[1u] / 3u;
    let xo = offset(i, rank, 2u, 2u + rank);
    let yo = offset(i, rank, 2u, 2u + 2u * rank);
    if (%du == 0u || inp[xo] == out[yo]) {
        add_grad_inp(xo, grad_out[yo]);
    }`, int(op)),
	}
}

const poolHelpers = `
struct PoolInfo {
    batch: u32, chans: u32, h_in: u32, w_in: u32, h_out: u32, w_out: u32,
    kernel: u32, stride: u32, pad: u32,
}

fn pool_info() -> PoolInfo {
    return PoolInfo(args[2u], args[3u], args[4u], args[5u], args[6u], args[7u],
        args[8u], args[9u], args[10u]);
}
`

// poolFwd reduces one window per output element. Average divides by the
// full window area, padding included.
func poolFwd(kind kernels.PoolKind) kernelSource {
	identity, combine, finish := "0.0", "acc + v", "acc / f32(p.kernel * p.kernel)"
	switch kind {
	case kernels.PoolMax:
		identity, combine, finish = "-inf()", "max(acc, v)", "acc"
	case kernels.PoolMin:
		identity, combine, finish = "inf()", "min(acc, v)", "acc"
	}
	return kernelSource{
		bindings: []binding{read("inp"), readWrite("out")},
		helpers:  poolHelpers,
		body: fmt.Sprintf(`    let p = pool_info();
    let ow = i32(i %% p.w_out);
    let oh = i32((i / p.w_out) %% p.h_out);
    let base = (i / (p.w_out * p.h_out)) * p.h_in * p.w_in;
    var acc = %s;
    for (var k1 = 0; k1 < i32(p.kernel); k1 = k1 + 1) {
        let y = oh * i32(p.stride) + k1 - i32(p.pad);
        if (y < 0 || y >= i32(p.h_in)) { continue; }
        for (var k2 = 0; k2 < i32(p.kernel); k2 = k2 + 1) {
            let x = ow * i32(p.stride) + k2 - i32(p.pad);
            if (x < 0 || x >= i32(p.w_in)) { continue; }
            let v = inp[base + u32(y) * p.w_in + u32(x)];
            acc = %s;
        }
    }
    out[i] = %s;`, identity, combine, finish),
	}
}

// poolBwd runs one thread per input element and gathers from every window
// covering it, so threads never share a target.
func poolBwd(kind kernels.PoolKind) kernelSource {
	return kernelSource{
		bindings: []binding{read("inp"), read("out"), readWrite("grad_inp"), read("grad_out")},
		helpers:  poolHelpers,
		body: fmt.Sprintf(`    let p = pool_info();
    let x = i32(i %% p.w_in);
    let y = i32((i / p.w_in) %% p.h_in);
    let base = (i / (p.w_in * p.h_in)) * p.h_out * p.w_out;
    let s = i32(p.stride);
    let area = f32(p.kernel * p.kernel);
    var g = 0.0;
    for (var k1 = 0; k1 < i32(p.kernel); k1 = k1 + 1) {
        let ohs = y + i32(p.pad) - k1;
        if (ohs < 0 || ohs %% s != 0 || u32(ohs / s) >= p.h_out) { continue; }
        for (var k2 = 0; k2 < i32(p.kernel); k2 = k2 + 1) {
            let ows = x + i32(p.pad) - k2;
            if (ows < 0 || ows %% s != 0 || u32(ows / s) >= p.w_out) { continue; }
            let o = base + u32(ohs / s) * p.w_out + u32(ows / s);
            if (%du == 0u) {
                g = g + grad_out[o] / area;
            } else if (inp[i] == out[o]) {
                g = g + grad_out[o];
            }
        }
    }
    grad_inp[i] = grad_inp[i] + g;`, int(kind)),
	}
}

const convHelpers = `
struct ConvInfo {
    batch: u32, chan_in: u32, chan_out: u32, kernel: u32,
    h_in: u32, w_in: u32, h_out: u32, w_out: u32, stride: u32, pad: u32,
}

fn conv_info() -> ConvInfo {
    return ConvInfo(args[2u], args[3u], args[4u], args[5u], args[6u], args[7u],
        args[8u], args[9u], args[10u], args[11u]);
}
`

// Select args: mode, axis, axisLen, srcRank, idxRank,
// info = outDims ++ srcStrides ++ idxStrides starting at word 7.
const selectHelpers = `
// coord returns coordinate j of index i in a shape of rank dims at args[dims].
fn coord(i: u32, j: u32, rank: u32, dims: u32) -> u32 {
    var rem = i;
    var d = rank - 1u;
    loop {
        if (d == j) { break; }
        rem = rem / args[dims + d];
        d = d - 1u;
    }
    return rem % args[dims + j];
}

// source_offset returns the source element read by output i, or -1 when its
// index is outside the axis.
fn source_offset(i: u32) -> i32 {
    let mode = args[1u];
    let axis = args[2u];
    let axis_len = args[3u];
    let src_rank = args[4u];
    let idx_rank = args[5u];
    var out_rank = src_rank - 1u;
    if (mode != 0u) {
        out_rank = src_rank + idx_rank - axis - 1u;
    }
    let src_strides = 7u + out_rank;
    let idx_strides = src_strides + src_rank;

    var idx_off = 0u;
    for (var j = 0u; j < idx_rank; j = j + 1u) {
        idx_off = idx_off + coord(i, j, out_rank, 7u) * args[idx_strides + j];
    }
    let v = idx[idx_off];
    if (v < 0 || u32(v) >= axis_len) {
        return -1;
    }
    var off = u32(v) * args[src_strides + axis];
    for (var j = 0u; j < src_rank; j = j + 1u) {
        if (j == axis) { continue; }
        var k = j;
        if (mode == 0u && j > axis) {
            k = j - 1u;
        }
        off = off + coord(i, k, out_rank, 7u) * args[src_strides + j];
    }
    return i32(off);
}
`
