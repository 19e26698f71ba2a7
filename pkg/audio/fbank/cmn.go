package fbank

// SlidingWindowCMN returns a copy of features with a running mean removed
// from every frame. The mean is taken over window frames around the frame
// when center is true, or over the window frames ending at it otherwise.
// Near the edges the window is shifted to stay inside the utterance; an
// utterance shorter than the window uses all of its frames.
func SlidingWindowCMN(features [][]float32, window int, center bool) [][]float32 {
	n := len(features)
	if n == 0 {
		return nil
	}
	dim := len(features[0])

	// Prefix sums make every window mean O(dim).
	prefix := make([][]float64, n+1)
	prefix[0] = make([]float64, dim)
	for t, f := range features {
		row := make([]float64, dim)
		for d := range dim {
			row[d] = prefix[t][d] + float64(f[d])
		}
		prefix[t+1] = row
	}

	out := make([][]float32, n)
	for t := range n {
		var start, end int
		if center {
			start = t - window/2
			end = start + window
		} else {
			start = t - window + 1
			end = t + 1
		}
		if start < 0 {
			end -= start
			start = 0
		}
		if end > n {
			start = max(start-(end-n), 0)
			end = n
		}
		count := float64(end - start)
		row := make([]float32, dim)
		for d := range dim {
			mean := (prefix[end][d] - prefix[start][d]) / count
			row[d] = float32(float64(features[t][d]) - mean)
		}
		out[t] = row
	}
	return out
}
