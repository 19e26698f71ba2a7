package fbank

import "math"

// WindowType selects the analysis window.
type WindowType string

const (
	// Povey is the Kaldi default window: a Hann window raised to 0.85.
	Povey WindowType = "povey"

	Hamming WindowType = "hamming"
	Hann    WindowType = "hann"
)

// window returns an analysis window of length n.
func window(kind WindowType, n int) []float64 {
	w := make([]float64, n)
	a := 2 * math.Pi / float64(n-1)
	for i := range w {
		switch kind {
		case Hamming:
			w[i] = 0.54 - 0.46*math.Cos(a*float64(i))
		case Hann:
			w[i] = 0.5 - 0.5*math.Cos(a*float64(i))
		default:
			w[i] = math.Pow(0.5-0.5*math.Cos(a*float64(i)), 0.85)
		}
	}
	return w
}

func hzToMel(hz float64) float64 { return 1127 * math.Log(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Exp(mel/1127) - 1) }

// melBank holds triangular filters over power spectrum bins. Each filter
// only stores the bins where it is non-zero.
type melBank struct {
	offset  []int
	weights [][]float64
}

// newMelBank builds numMels filters equally spaced on the mel scale between
// low and high Hz. A high value <= 0 is taken relative to the Nyquist
// frequency.
func newMelBank(numMels, fftSize, sampleRate int, low, high float64) melBank {
	nyquist := float64(sampleRate) / 2
	if high <= 0 {
		high += nyquist
	}
	lowMel, highMel := hzToMel(low), hzToMel(high)
	delta := (highMel - lowMel) / float64(numMels+1)
	binHz := float64(sampleRate) / float64(fftSize)
	numBins := fftSize / 2

	b := melBank{offset: make([]int, numMels), weights: make([][]float64, numMels)}
	for m := range numMels {
		left := lowMel + float64(m)*delta
		center := left + delta
		right := center + delta
		first := -1
		var ws []float64
		for k := range numBins {
			mel := hzToMel(binHz * float64(k))
			if mel <= left || mel >= right {
				if first >= 0 {
					break
				}
				continue
			}
			if first < 0 {
				first = k
			}
			if mel <= center {
				ws = append(ws, (mel-left)/(center-left))
			} else {
				ws = append(ws, (right-mel)/(right-center))
			}
		}
		b.offset[m] = max(first, 0)
		b.weights[m] = ws
	}
	return b
}

// apply returns the filter energies of a power spectrum.
func (b melBank) apply(power []float64, out []float64) {
	for m, ws := range b.weights {
		var sum float64
		for i, w := range ws {
			sum += w * power[b.offset[m]+i]
		}
		out[m] = sum
	}
}

// fft is an in-place radix-2 FFT; len(re) must be a power of two.
func fft(re, im []float64) {
	n := len(re)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := range half {
				wr, wi := math.Cos(step*float64(k)), math.Sin(step*float64(k))
				u, v := start+k, start+k+half
				tr := wr*re[v] - wi*im[v]
				ti := wr*im[v] + wi*re[v]
				re[v], im[v] = re[u]-tr, im[u]-ti
				re[u] += tr
				im[u] += ti
			}
		}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
