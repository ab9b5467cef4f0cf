package backend

import (
	"strings"

	"styled/internal/kernel"
)

// The GPU backend compiles one compute pipeline per resident style. The
// shader is generated from a shared template with the style transform
// inlined, so the hot loop carries no runtime branching on the style code.
// Each snippet must stay numerically identical to its counterpart in
// internal/kernel/styles.go.

const shaderTemplate = `struct Params {
    width: u32,
    height: u32,
    strength: f32,
    _pad: u32,
};

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> src: array<u32>;
@group(0) @binding(2) var<storage, read_write> dst: array<u32>;

const GAMMA: f32 = 2.2;

fn blend(orig: f32, cand: f32, s: f32) -> f32 {
    let og = pow(orig / 255.0, GAMMA);
    let cg = pow(clamp(round(cand), 0.0, 255.0) / 255.0, GAMMA);
    return round(pow(og * (1.0 - s) + cg * s, 1.0 / GAMMA) * 255.0);
}

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= params.width || gid.y >= params.height) {
        return;
    }
    let idx = gid.y * params.width + gid.x;
    let px = src[idx];
    let r = f32(px & 0xffu);
    let g = f32((px >> 8u) & 0xffu);
    let b = f32((px >> 16u) & 0xffu);
    let a = (px >> 24u) & 0xffu;
    let x = f32(gid.x);
    let y = f32(gid.y);

//TRANSFORM//

    let s = clamp(params.strength, 0.0, 1.0);
    let outR = u32(blend(r, cr, s));
    let outG = u32(blend(g, cg, s));
    let outB = u32(blend(b, cb, s));
    dst[idx] = outR | (outG << 8u) | (outB << 16u) | (a << 24u);
}
`

var styleSnippets = map[string]string{
	kernel.StyleVanGogh: `    let swirl = sin(x * 0.02) * cos(y * 0.02) * 25.0;
    let cr = r * 1.4 + swirl + 20.0;
    let cg = g * 1.3 + swirl * 0.7 + 15.0;
    let cb = b * 1.2 + swirl * 0.5 + 10.0;`,

	kernel.StylePicasso: `    let blockX = gid.x / 12u;
    let blockY = gid.y / 12u;
    var cr: f32;
    var cg: f32;
    var cb: f32;
    if ((blockX + blockY) % 24u == 0u) {
        cr = r * 1.8;
        cg = g * 1.6;
        cb = b * 1.4;
    } else {
        cr = r * 0.5;
        cg = g * 0.6;
        cb = b * 0.7;
    }`,

	kernel.StyleCyberpunk: `    let glow = sin((x + y) * 0.01) * 30.0;
    let cr = r * 1.5 + glow;
    let cg = r * 0.8;
    let cb = b * 1.7 + glow;`,

	kernel.StyleMonet: `    let light = 0.05 * (1.0 + sin((x + y) * 0.001)) * 255.0;
    let cr = r * 1.1 + light;
    let cg = g * 1.1 + light;
    let cb = b * 1.1 + light;`,

	kernel.StyleAnime: `    let step = 255.0 / 6.0;
    var rq = floor(r / step) * step;
    if (rq > 127.5) {
        rq = rq * 1.3;
    } else {
        rq = rq * 0.9;
    }
    let cr = rq;
    let cg = g * 1.2;
    let cb = b * 1.1;`,
}

const defaultSnippet = `    let cr = r * 1.2;
    let cg = g * 1.2;
    let cb = b * 1.2;`

// shaderSource returns the full WGSL compute shader for a style id.
// Unknown ids get the default enhancement transform, mirroring the kernel.
func shaderSource(styleID string) string {
	snippet, ok := styleSnippets[styleID]
	if !ok {
		snippet = defaultSnippet
	}
	return strings.Replace(shaderTemplate, "//TRANSFORM//", snippet, 1)
}
