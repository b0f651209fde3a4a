package wgtrain

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/openfluke/webgpu/wgpu"
)

// AdapterInfo describes one GPU adapter and the limits that bound a ModelSpec.
type AdapterInfo struct {
	Index                    int
	Name                     string
	DriverDescription        string
	AdapterType              string
	VendorID                 uint32
	VendorName               string
	Architecture             string
	DeviceID                 uint32
	BackendType              string
	MaxComputeInvocations    uint32
	MaxBufferSize            uint64
	MaxStorageBufferBinding  uint64
	MaxUniformBufferBinding  uint64
	MaxComputeWorkgroupSizeX uint32
}

// ListAdapters returns every non-CPU adapter that can create a device.
// All WebGPU resources it opens are released before it returns.
func ListAdapters() ([]AdapterInfo, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, fmt.Errorf("failed to create WebGPU instance")
	}
	defer instance.Release()

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no GPU adapters found")
	}

	var infos []AdapterInfo
	for i, adapter := range adapters {
		props := adapter.GetInfo()

		// Skip CPU-based adapters
		if fmt.Sprintf("%v", props.AdapterType) == "cpu" {
			adapter.Release()
			continue
		}

		device, err := adapter.RequestDevice(nil)
		if err != nil {
			adapter.Release()
			continue
		}
		limits := adapter.GetLimits()

		infos = append(infos, AdapterInfo{
			Index:                    i,
			Name:                     props.Name,
			DriverDescription:        props.DriverDescription,
			AdapterType:              fmt.Sprintf("%v", props.AdapterType),
			VendorID:                 uint32(props.VendorId),
			VendorName:               props.VendorName,
			Architecture:             props.Architecture,
			DeviceID:                 uint32(props.DeviceId),
			BackendType:              fmt.Sprintf("%v", props.BackendType),
			MaxComputeInvocations:    uint32(limits.Limits.MaxComputeInvocationsPerWorkgroup),
			MaxBufferSize:            uint64(limits.Limits.MaxBufferSize),
			MaxStorageBufferBinding:  uint64(limits.Limits.MaxStorageBufferBindingSize),
			MaxUniformBufferBinding:  uint64(limits.Limits.MaxUniformBufferBindingSize),
			MaxComputeWorkgroupSizeX: uint32(limits.Limits.MaxComputeWorkgroupSizeX),
		})

		device.Release()
		adapter.Release()
	}

	if len(infos) == 0 {
		return nil, fmt.Errorf("no valid GPU information retrieved")
	}
	return infos, nil
}

func (a AdapterInfo) String() string {
	return fmt.Sprintf("#%d %s (%s, %s, vendor 0x%X device 0x%X) maxBuffer=%.2fMB maxStorage=%.2fMB",
		a.Index, a.Name, a.BackendType, a.AdapterType, a.VendorID, a.DeviceID,
		float64(a.MaxBufferSize)/1024/1024, float64(a.MaxStorageBufferBinding)/1024/1024)
}

// HostInfo describes the CPU the host device and the evaluator run on.
type HostInfo struct {
	Brand         string
	Vendor        string
	PhysicalCores int
	LogicalCores  int
	Arch          string
	Features      []string
}

// Host reports the host CPU.
func Host() HostInfo {
	var feats []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.SSE4, "sse4.1"},
		{cpuid.AVX, "avx"},
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "asimd"},
	} {
		if cpuid.CPU.Supports(f.id) {
			feats = append(feats, f.name)
		}
	}
	logical := cpuid.CPU.LogicalCores
	if logical <= 0 {
		logical = runtime.NumCPU()
	}
	return HostInfo{
		Brand:         cpuid.CPU.BrandName,
		Vendor:        cpuid.CPU.VendorString,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  logical,
		Arch:          runtime.GOARCH,
		Features:      feats,
	}
}

func (h HostInfo) String() string {
	brand := h.Brand
	if brand == "" {
		brand = "unknown CPU"
	}
	return fmt.Sprintf("%s (%s, %d cores / %d threads) [%s]",
		brand, h.Arch, h.PhysicalCores, h.LogicalCores, strings.Join(h.Features, " "))
}

// OpenDevice opens a device by kind: "webgpu", "browser", "host", or "auto"
// (WebGPU when an adapter answers, the host otherwise).
func OpenDevice(kind string) (Device, error) {
	switch strings.ToLower(kind) {
	case "webgpu", "gpu":
		d, err := NewWebGPUDevice()
		if err != nil {
			return nil, err
		}
		return d, nil
	case "browser":
		d, err := NewBrowserDevice()
		if err != nil {
			return nil, err
		}
		return d, nil
	case "host", "cpu":
		return NewHostDevice(), nil
	case "", "auto":
		if d, err := NewWebGPUDevice(); err == nil {
			return d, nil
		}
		return NewHostDevice(), nil
	default:
		return nil, fmt.Errorf("unknown device kind %q", kind)
	}
}
