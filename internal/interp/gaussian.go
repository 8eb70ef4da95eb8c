package interp

import "math"

// truncate is the kernel half-width in standard deviations.
const truncate = 4.0

// gaussianKernel returns a normalised 1-D Gaussian of radius round(truncate*sigma).
func gaussianKernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// reflect maps an out-of-range index back into [0, n) by mirroring about the
// array edges, with the edge sample repeated (d c b a | a b c d | d c b a).
func reflect(i, n int) int {
	period := 2 * n
	m := i % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - 1 - m
	}
	return m
}

// gaussianSmooth returns z convolved with a separable Gaussian of the given sigma.
// A sigma of zero returns a copy of z.
func gaussianSmooth(z [][]float64, sigma float64) [][]float64 {
	rows := len(z)
	out := make([][]float64, rows)
	for r := range z {
		out[r] = append([]float64(nil), z[r]...)
	}
	if sigma <= 0 || rows == 0 {
		return out
	}
	cols := len(z[0])
	k := gaussianKernel(sigma)
	radius := len(k) / 2

	// Along columns (latitude).
	tmp := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		tmp[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			var acc float64
			for o := -radius; o <= radius; o++ {
				acc += k[o+radius] * z[reflect(r+o, rows)][c]
			}
			tmp[r][c] = acc
		}
	}
	// Along rows (longitude).
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var acc float64
			for o := -radius; o <= radius; o++ {
				acc += k[o+radius] * tmp[r][reflect(c+o, cols)]
			}
			out[r][c] = acc
		}
	}
	return out
}
