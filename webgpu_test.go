package wgtrain

import "testing"

func openWebGPU(t *testing.T) *WebGPUDevice {
	t.Helper()
	dev, err := NewWebGPUDevice()
	if err != nil {
		t.Skipf("no WebGPU adapter: %v", err)
	}
	t.Cleanup(dev.Release)
	return dev
}

func TestWebGPUBuildKernel(t *testing.T) {
	dev := openWebGPU(t)
	for _, spec := range []ModelSpec{
		{InputSize: 1, HiddenSize: 1, OutputSize: 1},
		{InputSize: 3, HiddenSize: 2, OutputSize: 1},
		{InputSize: 7, HiddenSize: 5, OutputSize: 3},
	} {
		k, err := BuildKernel(dev, spec)
		if err != nil {
			t.Errorf("BuildKernel(%s): %v", spec, err)
			continue
		}
		k.Release()
	}
}

func TestWebGPUMatchesHost(t *testing.T) {
	dev := openWebGPU(t)
	spec := ModelSpec{InputSize: 6, HiddenSize: 5, OutputSize: 3}

	gpu := NewTrainer(dev)
	if err := gpu.Init(spec); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer gpu.Close()
	start := mustExport(t, gpu)

	host := newHostTrainer(t, spec)
	if err := host.Import(start); err != nil {
		t.Fatalf("Import: %v", err)
	}

	samples := []Sample{
		{Input: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, Label: []float32{1, 0, 1}},
		{Input: []float32{0.9, 0.8, 0.7}, Label: []float32{0, 1, 0}},
	}
	for _, tr := range []*Trainer{gpu, host} {
		if err := tr.Train(samples, 4, nil); err != nil {
			t.Fatalf("Train on %s: %v", tr.Device().Name(), err)
		}
	}
	want := mustExport(t, host)
	got := mustExport(t, gpu)
	assertClose(t, "weightsIH", got.WeightsIH, toF64(want.WeightsIH), 1e-5)
	assertClose(t, "weightsHO", got.WeightsHO, toF64(want.WeightsHO), 1e-5)
}

func TestWebGPUImportExport(t *testing.T) {
	dev := openWebGPU(t)
	tr := NewTrainer(dev)
	defer tr.Close()
	snap := sampleSnapshot()
	if err := tr.Import(snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !sameWeights(snap, mustExport(t, tr)) {
		t.Error("exported weights differ from the imported snapshot")
	}
}

func TestListAdapters(t *testing.T) {
	openWebGPU(t)
	infos, err := ListAdapters()
	if err != nil {
		t.Skipf("no adapters listed: %v", err)
	}
	for _, a := range infos {
		if a.String() == "" {
			t.Error("empty adapter description")
		}
	}
}

func TestHostInfo(t *testing.T) {
	h := Host()
	if h.LogicalCores <= 0 || h.Arch == "" {
		t.Errorf("unexpected host info %+v", h)
	}
}

func TestOpenDevice(t *testing.T) {
	dev, err := OpenDevice("host")
	if err != nil || dev.Name() != "host" {
		t.Fatalf("OpenDevice(host) = %v, %v", dev, err)
	}
	dev.Release()
	if _, err := OpenDevice("tpu"); err == nil {
		t.Error("expected an error for an unknown kind")
	}
	auto, err := OpenDevice("auto")
	if err != nil {
		t.Fatalf("OpenDevice(auto): %v", err)
	}
	auto.Release()
}
