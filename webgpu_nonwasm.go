//go:build !(js && wasm)

package wgtrain

import "errors"

// NewBrowserDevice needs a page-provided GPUDevice and so only exists in
// js/wasm builds.
func NewBrowserDevice() (*WebGPUDevice, error) {
	return nil, errors.New("browser device requires a js/wasm build")
}
