package tensor

// Matrix is a 4x4 affine transform stored column-major, the memory layout
// WGSL expects for a mat4x4<f32> uniform. Element (row r, col c) lives at
// index c*4+r; the translation therefore occupies indices 12 and 13.
//
// Converters use the matrix to map output normalized coordinates to input
// normalized coordinates while sampling, so a scale factor above 1 shrinks
// the visible portion of the destination, not the source.
type Matrix [16]float32

// Identity returns the identity transform.
func Identity() Matrix {
	var m Matrix
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// Translation returns a transform moving coordinates by (x, y).
func Translation(x, y float32) Matrix {
	m := Identity()
	m[12] = x
	m[13] = y
	return m
}

// Scale returns a transform scaling coordinates by (sx, sy) about the origin.
func Scale(sx, sy float32) Matrix {
	m := Identity()
	m[0] = sx
	m[5] = sy
	return m
}

// Mul returns m * n, the transform applying n first and m second.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Apply transforms the 2D point (x, y) treating it as (x, y, 0, 1).
func (m Matrix) Apply(x, y float32) (float32, float32) {
	return m[0]*x + m[4]*y + m[12], m[1]*x + m[5]*y + m[13]
}
