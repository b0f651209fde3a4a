package wgtrain

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxBufferSize is the WebGPU default maxBufferSize limit (256 MiB).
const DefaultMaxBufferSize uint64 = 256 << 20

// HostDevice runs the training program on the calling goroutine in float32,
// one invocation after another. It needs no adapter, which makes it the
// device tests and headless machines use.
type HostDevice struct {
	MaxBufferSize uint64
	released      bool
}

// NewHostDevice returns a host device with WebGPU's default buffer limit.
func NewHostDevice() *HostDevice {
	return &HostDevice{MaxBufferSize: DefaultMaxBufferSize}
}

type hostBuffer struct {
	label string
	usage BufferUsage
	data  []float32
}

func (b *hostBuffer) Size() uint64 { return uint64(len(b.data)) * 4 }
func (b *hostBuffer) Release()     { b.data = nil }

func (d *HostDevice) Name() string { return "host" }

func (d *HostDevice) Release() { d.released = true }

func (d *HostDevice) NewBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if d.released {
		return nil, errors.New("host device released")
	}
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("buffer %q: size %d is not a positive multiple of 4", label, size)
	}
	if d.MaxBufferSize > 0 && size > d.MaxBufferSize {
		return nil, fmt.Errorf("buffer %q: size %d exceeds max buffer size %d", label, size, d.MaxBufferSize)
	}
	return &hostBuffer{label: label, usage: usage, data: make([]float32, size/4)}, nil
}

func (d *HostDevice) hostBuf(buf Buffer) (*hostBuffer, error) {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T does not belong to the host device", buf)
	}
	if hb.data == nil {
		return nil, fmt.Errorf("buffer %q used after release", hb.label)
	}
	return hb, nil
}

func (d *HostDevice) WriteBuffer(buf Buffer, data []float32) error {
	hb, err := d.hostBuf(buf)
	if err != nil {
		return err
	}
	if hb.usage&UsageCopyDst == 0 {
		return fmt.Errorf("buffer %q lacks copy-dst usage", hb.label)
	}
	if len(data) > len(hb.data) {
		return fmt.Errorf("write of %d floats overflows buffer %q (%d)", len(data), hb.label, len(hb.data))
	}
	copy(hb.data, data)
	return nil
}

func (d *HostDevice) ReadBuffer(buf Buffer) ([]float32, error) {
	hb, err := d.hostBuf(buf)
	if err != nil {
		return nil, err
	}
	if hb.usage&UsageCopySrc == 0 {
		return nil, fmt.Errorf("buffer %q lacks copy-src usage", hb.label)
	}
	out := make([]float32, len(hb.data))
	copy(out, hb.data)
	return out, nil
}

func (d *HostDevice) CompileKernel(src KernelSource) (Kernel, error) {
	if d.released {
		return nil, errors.New("host device released")
	}
	if !src.Spec.Valid() {
		return nil, fmt.Errorf("kernel %q: invalid dimensions %s", src.Label, src.Spec)
	}
	return &hostKernel{dev: d, spec: src.Spec}, nil
}

type hostKernel struct {
	dev  *HostDevice
	spec ModelSpec
}

func (k *hostKernel) Spec() ModelSpec { return k.spec }
func (k *hostKernel) Release()        {}

func (k *hostKernel) Bind(buffers ...Buffer) (Binding, error) {
	if len(buffers) != bindingCount {
		return nil, fmt.Errorf("kernel expects %d bindings, got %d", bindingCount, len(buffers))
	}
	b := &hostBinding{spec: k.spec}
	for i, buf := range buffers {
		hb, err := k.dev.hostBuf(buf)
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		b.bufs[i] = hb
	}
	if len(b.bufs[bindWeightsIH].data) < k.spec.WeightsIHLen() ||
		len(b.bufs[bindWeightsHO].data) < k.spec.WeightsHOLen() {
		return nil, fmt.Errorf("weight buffers too small for %s", k.spec)
	}
	return b, nil
}

type hostBinding struct {
	spec ModelSpec
	bufs [bindingCount]*hostBuffer
}

func (b *hostBinding) Release() {}

func (b *hostBinding) Dispatch(invocations int) error {
	for n := 0; n < invocations; n++ {
		if err := b.invoke(); err != nil {
			return err
		}
	}
	return nil
}

// invoke is one execution of the training program, statement for statement.
func (b *hostBinding) invoke() error {
	H, M, K := b.spec.InputSize, b.spec.HiddenSize, b.spec.OutputSize
	wIH := b.bufs[bindWeightsIH].data
	wHO := b.bufs[bindWeightsHO].data
	lr := b.bufs[bindLearningRate].data[0]
	cursor := b.bufs[bindCursor].data

	n := int(math.Float32bits(cursor[0]))
	stride := b.spec.SampleStride()
	samples := b.bufs[bindSamples].data
	if (n+1)*stride > len(samples) {
		return fmt.Errorf("sample cursor %d past end of batch", n)
	}
	input := samples[n*stride : n*stride+H]
	label := samples[n*stride+H : (n+1)*stride]

	h := make([]float32, M)
	for j := 0; j < M; j++ {
		var sm float32
		for i := 0; i < H; i++ {
			sm += input[i] * wIH[j*H+i]
		}
		h[j] = sigmoid32(sm)
	}

	o := make([]float32, K)
	for k := 0; k < K; k++ {
		var sm float32
		for j := 0; j < M; j++ {
			sm += h[j] * wHO[k*M+j]
		}
		o[k] = sigmoid32(sm)
	}

	for k := 0; k < K; k++ {
		gO := (o[k] - label[k]) * dsigmoid32(o[k])
		for j := 0; j < M; j++ {
			idxHO := k*M + j
			wHO[idxHO] -= lr * gO * h[j]
			gH := gO * wHO[idxHO] * dsigmoid32(h[j])
			for i := 0; i < H; i++ {
				wIH[j*H+i] -= lr * gH * input[i]
			}
		}
	}

	cursor[0] = math.Float32frombits(uint32(n + 1))
	return nil
}
