package gpu

import (
	"fmt"
	"strings"

	"github.com/openfluke/tapestry/tensor"
)

// kernelTile is the per-workgroup tile the conversion kernel is authored
// for. It is a contract between the kernel and the dispatch code, not a
// runtime knob.
const kernelTile = 8

// defaultEntry is the entry point of the generated kernel.
const defaultEntry = "main"

// generateConvertShader emits the WGSL transform-and-pack kernel for cfg.
// Target dimensions, channel count and normalization are baked as constants;
// only the sampling matrix varies per dispatch, via the uniform. Each lane
// handles one output pixel: sample the source under the matrix (zero outside
// the unit square, so letterbox bars read as zero), mirror the texel to the
// scratch surface, then write the leading C channels row-major.
func generateConvertShader(cfg tensor.Config, entry string) string {
	comps := [4]string{"x", "y", "z", "w"}
	var stores strings.Builder
	for ch := 0; ch < cfg.Channels; ch++ {
		fmt.Fprintf(&stores, "\t\t\tdst[base + %du] = v.%s;\n", ch, comps[ch])
	}

	var mean, std [4]float32
	for i := 0; i < 4; i++ {
		mean[i], std[i] = cfg.Norm(i)
	}

	return fmt.Sprintf(`
		@group(0) @binding(0) var src_tex : texture_2d<f32>;
		@group(0) @binding(1) var src_smp : sampler;
		@group(0) @binding(2) var<uniform> transform : mat4x4<f32>;
		@group(0) @binding(3) var scratch : texture_storage_2d<rgba8unorm, write>;
		@group(0) @binding(4) var<storage, read_write> dst : array<f32>;

		const W : u32 = %du;
		const H : u32 = %du;
		const C : u32 = %du;
		const MEAN : vec4<f32> = vec4<f32>(%f, %f, %f, %f);
		const STD : vec4<f32> = vec4<f32>(%f, %f, %f, %f);

		@compute @workgroup_size(%d, %d, 1)
		fn %s(@builtin(global_invocation_id) gid : vec3<u32>) {
			if (gid.x >= W || gid.y >= H) { return; }

			let uv_out = (vec2<f32>(f32(gid.x), f32(gid.y)) + vec2<f32>(0.5, 0.5)) / vec2<f32>(f32(W), f32(H));
			let pos = transform * vec4<f32>(uv_out, 0.0, 1.0);

			var texel = vec4<f32>(0.0, 0.0, 0.0, 0.0);
			if (pos.x >= 0.0 && pos.x <= 1.0 && pos.y >= 0.0 && pos.y <= 1.0) {
				texel = textureSampleLevel(src_tex, src_smp, pos.xy, 0.0);
			}
			textureStore(scratch, vec2<i32>(i32(gid.x), i32(gid.y)), texel);

			let v = (texel - MEAN) / STD;
			let base = (gid.y * W + gid.x) * C;
%s		}
	`, cfg.Width, cfg.Height, cfg.Channels,
		mean[0], mean[1], mean[2], mean[3],
		std[0], std[1], std[2], std[3],
		kernelTile, kernelTile, entry, stores.String())
}

// hasEntry reports whether src declares a function named entry.
func hasEntry(src, entry string) bool {
	return strings.Contains(src, "fn "+entry)
}
