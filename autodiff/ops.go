// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.
package autodiff

import (
	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/tensor"
)

// Unary operations.

// Neg returns -x.
func Neg[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Neg(x)
}

// Sin returns sin(x).
func Sin[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Sin(x)
}

// Cos returns cos(x).
func Cos[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Cos(x)
}

// Exp returns e^x.
func Exp[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Exp(x)
}

// Ln returns the natural logarithm of x.
func Ln[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Ln(x)
}

// Sqrt returns the square root of x.
func Sqrt[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Sqrt(x)
}

// Square returns x*x.
func Square[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Square(x)
}

// Abs returns |x|.
func Abs[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Abs(x)
}

// ReLU returns max(x, 0).
func ReLU[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.ReLU(x)
}

// Tanh returns tanh(x).
func Tanh[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Tanh(x)
}

// Sigmoid returns 1/(1+e^-x).
func Sigmoid[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Sigmoid(x)
}

// AddScalar returns x + s.
func AddScalar[E tensor.Float](x *Tensor[E], s E) (*Tensor[E], error) {
	return ops.AddScalar(x, s)
}

// MulScalar returns x * s.
func MulScalar[E tensor.Float](x *Tensor[E], s E) (*Tensor[E], error) {
	return ops.MulScalar(x, s)
}

// PowScalar returns x^s.
func PowScalar[E tensor.Float](x *Tensor[E], s E) (*Tensor[E], error) {
	return ops.PowScalar(x, s)
}

// Binary operations.

// Add returns lhs + rhs with broadcasting.
func Add[E tensor.Float](lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Add(lhs, rhs)
}

// Sub returns lhs - rhs with broadcasting.
func Sub[E tensor.Float](lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Sub(lhs, rhs)
}

// Mul returns lhs * rhs with broadcasting.
func Mul[E tensor.Float](lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Mul(lhs, rhs)
}

// Div returns lhs / rhs with broadcasting.
func Div[E tensor.Float](lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Div(lhs, rhs)
}

// Maximum returns the elementwise maximum.
func Maximum[E tensor.Float](lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Maximum(lhs, rhs)
}

// Minimum returns the elementwise minimum.
func Minimum[E tensor.Float](lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Minimum(lhs, rhs)
}

// Comparisons produce bool masks and are not differentiated.

// Eq compares lhs and rhs elementwise.
func Eq[E tensor.Float](lhs, rhs *Tensor[E]) (*tensor.Storage[bool], error) {
	return ops.Eq(lhs, rhs)
}

// Ne compares lhs and rhs elementwise.
func Ne[E tensor.Float](lhs, rhs *Tensor[E]) (*tensor.Storage[bool], error) {
	return ops.Ne(lhs, rhs)
}

// Gt compares lhs and rhs elementwise.
func Gt[E tensor.Float](lhs, rhs *Tensor[E]) (*tensor.Storage[bool], error) {
	return ops.Gt(lhs, rhs)
}

// Ge compares lhs and rhs elementwise.
func Ge[E tensor.Float](lhs, rhs *Tensor[E]) (*tensor.Storage[bool], error) {
	return ops.Ge(lhs, rhs)
}

// Lt compares lhs and rhs elementwise.
func Lt[E tensor.Float](lhs, rhs *Tensor[E]) (*tensor.Storage[bool], error) {
	return ops.Lt(lhs, rhs)
}

// Le compares lhs and rhs elementwise.
func Le[E tensor.Float](lhs, rhs *Tensor[E]) (*tensor.Storage[bool], error) {
	return ops.Le(lhs, rhs)
}

// EqScalar compares x with s elementwise.
func EqScalar[E tensor.Float](x *Tensor[E], s E) (*tensor.Storage[bool], error) {
	return ops.EqScalar(x, s)
}

// NeScalar compares x with s elementwise.
func NeScalar[E tensor.Float](x *Tensor[E], s E) (*tensor.Storage[bool], error) {
	return ops.NeScalar(x, s)
}

// GtScalar compares x with s elementwise.
func GtScalar[E tensor.Float](x *Tensor[E], s E) (*tensor.Storage[bool], error) {
	return ops.GtScalar(x, s)
}

// GeScalar compares x with s elementwise.
func GeScalar[E tensor.Float](x *Tensor[E], s E) (*tensor.Storage[bool], error) {
	return ops.GeScalar(x, s)
}

// LtScalar compares x with s elementwise.
func LtScalar[E tensor.Float](x *Tensor[E], s E) (*tensor.Storage[bool], error) {
	return ops.LtScalar(x, s)
}

// LeScalar compares x with s elementwise.
func LeScalar[E tensor.Float](x *Tensor[E], s E) (*tensor.Storage[bool], error) {
	return ops.LeScalar(x, s)
}

// Choose picks lhs where cond is true and rhs elsewhere.
func Choose[E tensor.Float](cond *tensor.Storage[bool], lhs, rhs *Tensor[E]) (*Tensor[E], error) {
	return ops.Choose(cond, lhs, rhs)
}

// Reductions.

// SumTo sums over axes, removing them. No axes reduces all of them.
func SumTo[E tensor.Float](x *Tensor[E], axes ...int) (*Tensor[E], error) {
	return ops.SumTo(x, axes...)
}

// MinTo takes the minimum over axes. Tied elements each receive the full
// gradient.
func MinTo[E tensor.Float](x *Tensor[E], axes ...int) (*Tensor[E], error) {
	return ops.MinTo(x, axes...)
}

// MaxTo takes the maximum over axes. Tied elements each receive the full
// gradient.
func MaxTo[E tensor.Float](x *Tensor[E], axes ...int) (*Tensor[E], error) {
	return ops.MaxTo(x, axes...)
}

// Mean averages over axes.
func Mean[E tensor.Float](x *Tensor[E], axes ...int) (*Tensor[E], error) {
	return ops.Mean(x, axes...)
}

// Views. These share the input buffer.

// BroadcastTo expands x to shape.
func BroadcastTo[E tensor.Float](x *Tensor[E], shape tensor.Shape) (*Tensor[E], error) {
	return ops.BroadcastTo(x, shape)
}

// Permute reorders the axes of x.
func Permute[E tensor.Float](x *Tensor[E], perm ...int) (*Tensor[E], error) {
	return ops.Permute(x, perm...)
}

// Reshape changes the shape of a contiguous x.
func Reshape[E tensor.Float](x *Tensor[E], shape tensor.Shape) (*Tensor[E], error) {
	return ops.Reshape(x, shape)
}

// Contiguous copies x into row-major layout.
func Contiguous[E tensor.Float](x *Tensor[E]) (*Tensor[E], error) {
	return ops.Contiguous(x)
}

// Pooling and convolution.

// AvgPool2D averages each square window of a (C, H, W) or (B, C, H, W)
// input. Padding counts toward the divisor.
func AvgPool2D[E tensor.Float](x *Tensor[E], kernel, stride, padding int) (*Tensor[E], error) {
	return ops.AvgPool2D(x, kernel, stride, padding)
}

// MaxPool2D takes the maximum of each window.
func MaxPool2D[E tensor.Float](x *Tensor[E], kernel, stride, padding int) (*Tensor[E], error) {
	return ops.MaxPool2D(x, kernel, stride, padding)
}

// MinPool2D takes the minimum of each window.
func MinPool2D[E tensor.Float](x *Tensor[E], kernel, stride, padding int) (*Tensor[E], error) {
	return ops.MinPool2D(x, kernel, stride, padding)
}

// Conv2D convolves x, shaped (C, H, W) or (B, C, H, W), with filters shaped
// (O, C, K, K).
func Conv2D[E tensor.Float](x, filters *Tensor[E], stride, padding int) (*Tensor[E], error) {
	return ops.Conv2D(x, filters, stride, padding)
}

// Indexing.

// Select removes axis idx.Rank() of x, picking x[i..., idx[i...], ...] for
// every leading position.
func Select[E tensor.Float](x *Tensor[E], idx *tensor.Storage[int32]) (*Tensor[E], error) {
	return ops.Select(x, idx)
}

// Gather replaces axis idx.Rank()-1 of x with idx's last axis. Repeated
// indices accumulate their gradients.
func Gather[E tensor.Float](x *Tensor[E], idx *tensor.Storage[int32]) (*Tensor[E], error) {
	return ops.Gather(x, idx)
}
