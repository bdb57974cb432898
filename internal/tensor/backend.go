package tensor

// Backend defines the interface a compute backend must implement to drive the
// attention core. The core is a pure numeric pipeline: every operation here is
// a pure function of its inputs, and all parallelism (across batch elements,
// heads, or within a kernel) is the backend's business.
//
// Implementations:
//   - cpu: pure Go with gonum BLAS for the dense kernels
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(t *RawTensor, dim int) *RawTensor

	// Scalar operations (element-wise with a scalar of the tensor's type).
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math.
	Sqrt(x *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// Softmax along a dimension (negative dims count from the end).
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions along a dimension.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// MaskedFill writes value into every position of x where the
	// corresponding mask entry is zero. The mask must be broadcastable to
	// x's shape; broadcasting follows BroadcastShapes exactly.
	MaskedFill(x, mask *RawTensor, value float64) *RawTensor

	// Embedding gathers rows of weight [V, D] by indices, producing a tensor
	// of shape indices.Shape() + [D].
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
