// webgpu.go
package wgtrain

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// WebGPUDevice runs kernels through a native WebGPU adapter. Unlike a
// process-wide context, each device is owned by whoever created it and is
// passed explicitly to the trainers that use it.
type WebGPUDevice struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	name     string

	// MapPollLimit bounds the poll loop while waiting for a staging map.
	MapPollLimit int
	Debug        bool
}

const defaultMapPollLimit = 10000

// NewWebGPUDevice requests the default adapter and a device on it.
func NewWebGPUDevice() (*WebGPUDevice, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("failed to create WebGPU instance")
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	return &WebGPUDevice{
		instance:     instance,
		adapter:      adapter,
		device:       device,
		queue:        device.GetQueue(),
		name:         adapter.GetInfo().Name,
		MapPollLimit: defaultMapPollLimit,
	}, nil
}

func (d *WebGPUDevice) Name() string {
	if d.name == "" {
		return "webgpu"
	}
	return "webgpu:" + d.name
}

func (d *WebGPUDevice) Release() {
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
	d.queue = nil
}

type webgpuBuffer struct {
	buf   *wgpu.Buffer
	label string
}

func (b *webgpuBuffer) Size() uint64 { return b.buf.GetSize() }

func (b *webgpuBuffer) Release() {
	if b.buf == nil {
		return
	}
	b.buf.Destroy()
	b.buf.Release()
	b.buf = nil
}

func toWGPUUsage(u BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&UsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&UsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&UsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&UsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}

func (d *WebGPUDevice) wgpuBuf(buf Buffer) (*webgpuBuffer, error) {
	wb, ok := buf.(*webgpuBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T does not belong to a WebGPU device", buf)
	}
	if wb.buf == nil {
		return nil, fmt.Errorf("buffer %q used after release", wb.label)
	}
	return wb, nil
}

func (d *WebGPUDevice) NewBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if d.device == nil {
		return nil, fmt.Errorf("WebGPU device released")
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: toWGPUUsage(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q (%d bytes): %w", label, size, err)
	}
	return &webgpuBuffer{buf: buf, label: label}, nil
}

func (d *WebGPUDevice) WriteBuffer(buf Buffer, data []float32) error {
	wb, err := d.wgpuBuf(buf)
	if err != nil {
		return err
	}
	if uint64(len(data))*4 > wb.buf.GetSize() {
		return fmt.Errorf("write of %d floats overflows buffer %q (%d bytes)", len(data), wb.label, wb.buf.GetSize())
	}
	if len(data) == 0 {
		return nil
	}
	d.queue.WriteBuffer(wb.buf, 0, wgpu.ToBytes(data))
	return nil
}

// ReadBuffer copies buf into a temporary staging buffer, maps it and copies
// the floats out. The staging buffer is unmapped and destroyed on every path.
func (d *WebGPUDevice) ReadBuffer(buf Buffer) ([]float32, error) {
	wb, err := d.wgpuBuf(buf)
	if err != nil {
		return nil, err
	}
	size := wb.buf.GetSize()

	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + "_Staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer for %q: %w", wb.label, err)
	}
	defer func() {
		staging.Destroy()
		staging.Release()
	}()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer enc.Release()
	enc.CopyBufferToBuffer(wb.buf, 0, staging, 0, size)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish command encoder: %w", err)
	}
	defer cmd.Release()
	d.queue.Submit(cmd)

	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		return nil, fmt.Errorf("failed to map staging buffer for %q: %w", wb.label, err)
	}

	limit := d.MapPollLimit
	if limit <= 0 {
		limit = defaultMapPollLimit
	}
	var status wgpu.BufferMapAsyncStatus
	for polls := 0; ; polls++ {
		d.device.Poll(true, nil)
		select {
		case status = <-done:
		default:
			if polls > limit {
				return nil, fmt.Errorf("buffer mapping timeout for %q", wb.label)
			}
			continue
		}
		break
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("buffer mapping failed for %q: %v", wb.label, status)
	}
	defer staging.Unmap()

	raw := staging.GetMappedRange(0, uint(size))
	if raw == nil {
		return nil, fmt.Errorf("failed to get mapped range for %q", wb.label)
	}
	out := make([]float32, size/4)
	copy(out, wgpu.FromBytes[float32](raw))
	return out, nil
}

// CompileKernel creates the shader module and compute pipeline. wgpu reports
// invalid WGSL through a panic in its error callback, so that is turned back
// into an error here.
func (d *WebGPUDevice) CompileKernel(src KernelSource) (k Kernel, err error) {
	if d.device == nil {
		return nil, fmt.Errorf("WebGPU device released")
	}
	defer func() {
		if r := recover(); r != nil {
			k, err = nil, fmt.Errorf("device rejected %s: %v", src.Label, r)
		}
	}()

	if d.Debug {
		fmt.Printf("Generated Shader (%s):\n%s\n", src.Label, src.WGSL)
	}
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          src.Label + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.WGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shader module: %w", err)
	}
	defer module.Release()

	pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: src.Label + "_Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: src.EntryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compute pipeline: %w", err)
	}

	return &webgpuKernel{
		dev:      d,
		spec:     src.Spec,
		label:    src.Label,
		pipeline: pipeline,
		layout:   pipeline.GetBindGroupLayout(0),
	}, nil
}

type webgpuKernel struct {
	dev      *WebGPUDevice
	spec     ModelSpec
	label    string
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

func (k *webgpuKernel) Spec() ModelSpec { return k.spec }

func (k *webgpuKernel) Release() {
	if k.layout != nil {
		k.layout.Release()
		k.layout = nil
	}
	if k.pipeline != nil {
		k.pipeline.Release()
		k.pipeline = nil
	}
}

func (k *webgpuKernel) Bind(buffers ...Buffer) (Binding, error) {
	if len(buffers) != bindingCount {
		return nil, fmt.Errorf("kernel expects %d bindings, got %d", bindingCount, len(buffers))
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(buffers))
	for i, buf := range buffers {
		wb, err := k.dev.wgpuBuf(buf)
		if err != nil {
			return nil, fmt.Errorf("binding %d: %w", i, err)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  wb.buf,
			Size:    wb.buf.GetSize(),
		})
	}
	bind, err := k.dev.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k.label + "_BindGroup",
		Layout:  k.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group: %w", err)
	}
	return &webgpuBinding{kernel: k, bind: bind}, nil
}

type webgpuBinding struct {
	kernel *webgpuKernel
	bind   *wgpu.BindGroup
}

func (b *webgpuBinding) Release() {
	if b.bind != nil {
		b.bind.Release()
		b.bind = nil
	}
}

func (b *webgpuBinding) Dispatch(invocations int) error {
	if invocations <= 0 {
		return nil
	}
	dev := b.kernel.dev
	enc, err := dev.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer enc.Release()

	pass := enc.BeginComputePass(&wgpu.ComputePassDescriptor{
		Label: b.kernel.label + "_Compute",
	})
	pass.SetPipeline(b.kernel.pipeline)
	pass.SetBindGroup(0, b.bind, nil)
	for i := 0; i < invocations; i++ {
		pass.DispatchWorkgroups(1, 1, 1)
	}
	pass.End()

	cmd, err := enc.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	defer cmd.Release()
	dev.queue.Submit(cmd)
	return nil
}
