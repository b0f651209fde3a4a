package wgtrain

import "fmt"

// LearningRate is the fixed step size uploaded before every training run.
const LearningRate float32 = 0.1

// KernelSource is a training program specialized to one ModelSpec.
type KernelSource struct {
	Spec       ModelSpec
	Label      string
	WGSL       string
	EntryPoint string
}

// trainKernelWGSL generates the fused forward/backward/update program.
//
// One invocation consumes samples[cursor[0]] and advances the cursor. Sample
// fields are always indexed in storage: naga rejects a runtime index into a
// struct value bound with let. The hidden gradient reads wHO after it was
// decremented, and wIH is updated inside the (k, j) loop; both must stay that
// way to reproduce weights trained by earlier releases.
func trainKernelWGSL(spec ModelSpec) string {
	return fmt.Sprintf(`
		const H: u32 = %du;
		const M: u32 = %du;
		const K: u32 = %du;

		struct Sample {
			input: array<f32, H>,
			label: array<f32, K>,
		};

		@group(0) @binding(0) var<storage, read_write> wIH: array<f32>;
		@group(0) @binding(1) var<storage, read_write> wHO: array<f32>;
		@group(0) @binding(2) var<storage, read> samples: array<Sample>;
		@group(0) @binding(3) var<uniform> lr: f32;
		@group(0) @binding(4) var<storage, read_write> cursor: array<u32>;

		fn sig(x: f32) -> f32 { return 1.0 / (1.0 + exp(-x)); }
		fn ds(y: f32) -> f32 { return y * (1.0 - y); }

		@compute @workgroup_size(1)
		fn main() {
			let n = cursor[0];

			var h: array<f32, M>;
			for (var j: u32 = 0u; j < M; j++) {
				var sm: f32 = 0.0;
				for (var i: u32 = 0u; i < H; i++) {
					sm += samples[n].input[i] * wIH[j * H + i];
				}
				h[j] = sig(sm);
			}

			var o: array<f32, K>;
			for (var k: u32 = 0u; k < K; k++) {
				var sm: f32 = 0.0;
				for (var j: u32 = 0u; j < M; j++) {
					sm += h[j] * wHO[k * M + j];
				}
				o[k] = sig(sm);
			}

			for (var k: u32 = 0u; k < K; k++) {
				let gO = (o[k] - samples[n].label[k]) * ds(o[k]);
				for (var j: u32 = 0u; j < M; j++) {
					let idxHO = k * M + j;
					wHO[idxHO] -= lr * gO * h[j];
					let gH = gO * wHO[idxHO] * ds(h[j]);
					for (var i: u32 = 0u; i < H; i++) {
						wIH[j * H + i] -= lr * gH * samples[n].input[i];
					}
				}
			}

			cursor[0] = n + 1u;
		}
	`, spec.InputSize, spec.HiddenSize, spec.OutputSize)
}

// BuildKernel compiles the training program for spec on dev. It never falls
// back to another device.
func BuildKernel(dev Device, spec ModelSpec) (Kernel, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("%w: invalid dimensions %s", ErrKernelBuild, spec)
	}
	k, err := dev.CompileKernel(KernelSource{
		Spec:       spec,
		Label:      "Train_" + spec.String(),
		WGSL:       trainKernelWGSL(spec),
		EntryPoint: "main",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %w", ErrKernelBuild, spec, dev.Name(), err)
	}
	return k, nil
}
