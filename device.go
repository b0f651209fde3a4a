package wgtrain

// BufferUsage mirrors the WebGPU usage bits the trainer needs.
type BufferUsage uint32

const (
	UsageStorage BufferUsage = 1 << iota
	UsageUniform
	UsageCopySrc
	UsageCopyDst
)

// Device is the compute backend a Trainer runs on. The trainer never
// releases the device; whoever created it does.
type Device interface {
	// NewBuffer creates a zero-filled buffer of size bytes.
	NewBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)
	// WriteBuffer queues a write of data at offset 0. Writes are ordered
	// with later dispatches on the same device.
	WriteBuffer(buf Buffer, data []float32) error
	// ReadBuffer copies the whole buffer to the host, waiting for all
	// previously queued work. Temporary staging resources are released
	// before it returns.
	ReadBuffer(buf Buffer) ([]float32, error)
	// CompileKernel turns generated kernel source into a runnable program.
	CompileKernel(src KernelSource) (Kernel, error)
	// Name identifies the backend in logs.
	Name() string
	Release()
}

// Buffer is a device allocation.
type Buffer interface {
	Size() uint64
	Release()
}

// Kernel is a compiled training program for one ModelSpec.
type Kernel interface {
	Spec() ModelSpec
	// Bind attaches buffers in binding order: weightsIH, weightsHO,
	// samples, learning rate, cursor.
	Bind(buffers ...Buffer) (Binding, error)
	Release()
}

// Binding is a kernel with its buffers attached.
type Binding interface {
	// Dispatch records one single-workgroup dispatch per invocation in a
	// single compute pass and submits it. Each dispatch observes the writes
	// of the one before it.
	Dispatch(invocations int) error
	Release()
}

// binding indices shared by the WGSL source and the host program.
const (
	bindWeightsIH = iota
	bindWeightsHO
	bindSamples
	bindLearningRate
	bindCursor
	bindingCount
)

func releaseAll(bufs ...Buffer) {
	for _, b := range bufs {
		if b != nil {
			b.Release()
		}
	}
}
