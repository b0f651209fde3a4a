//go:build js && wasm

package wgtrain

import (
	"fmt"
	"syscall/js"

	"github.com/openfluke/webgpu/wgpu"
)

// BrowserGlobal names the page object whose .device field holds a
// GPUDevice the page has already requested.
var BrowserGlobal = "wgtrainWebGPU"

// NewBrowserDevice wraps the device the host page exposes under
// BrowserGlobal. Releasing it leaves the page's device alive.
func NewBrowserDevice() (*WebGPUDevice, error) {
	page := js.Global().Get(BrowserGlobal)
	if !page.Truthy() {
		return nil, fmt.Errorf("page object %s not found", BrowserGlobal)
	}
	deviceJS := page.Get("device")
	if !deviceJS.Truthy() {
		return nil, fmt.Errorf("%s.device is not set", BrowserGlobal)
	}
	device := wgpu.NewDevice(deviceJS)
	d := &WebGPUDevice{
		device:       &device,
		name:         "browser",
		MapPollLimit: defaultMapPollLimit,
	}
	if d.queue = d.device.GetQueue(); d.queue == nil {
		return nil, fmt.Errorf("%s.device has no queue", BrowserGlobal)
	}
	return d, nil
}
