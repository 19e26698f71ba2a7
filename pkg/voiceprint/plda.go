package voiceprint

import (
	"fmt"
	"math"
)

// PLDAConfig controls how vectors are length normalized before scoring.
type PLDAConfig struct {
	// NormalizeLength scales transformed vectors to their expected length.
	NormalizeLength bool

	// SimpleLengthNorm normalizes to sqrt(dim) instead of using the
	// between-class variances.
	SimpleLengthNorm bool
}

// DefaultPLDAConfig returns length normalization on, simple norm off.
func DefaultPLDAConfig() PLDAConfig {
	return PLDAConfig{NormalizeLength: true}
}

// PLDA is a two-covariance probabilistic LDA model stored in the space
// where the within-class covariance is the identity and the between-class
// covariance is diagonal (Psi).
type PLDA struct {
	Mean      []float32 // vectors are centered on Mean before Transform
	Transform Matrix    // dim x dim
	Psi       []float32 // between-class variances, dim
}

// Dim returns the model dimension.
func (p *PLDA) Dim() int { return len(p.Psi) }

// Validate checks that the parts of the model agree on the dimension.
func (p *PLDA) Validate() error {
	d := p.Dim()
	if len(p.Mean) != d || p.Transform.Rows() != d || p.Transform.Cols() != d {
		return fmt.Errorf("%w: plda mean %d, transform %dx%d, psi %d",
			ErrDimensionMismatch, len(p.Mean), p.Transform.Rows(), p.Transform.Cols(), d)
	}
	return nil
}

// TransformVector maps v into the PLDA space. numExamples is the number of
// utterances averaged into v; it affects the length normalization.
func (p *PLDA) TransformVector(cfg PLDAConfig, v []float32, numExamples int) ([]float64, error) {
	d := p.Dim()
	if len(v) != d {
		return nil, fmt.Errorf("%w: plda has dimension %d, vector %d", ErrDimensionMismatch, d, len(v))
	}
	out := make([]float64, d)
	for r, row := range p.Transform {
		var sum float64
		for c, x := range v {
			sum += float64(row[c]) * (float64(x) - float64(p.Mean[c]))
		}
		out[r] = sum
	}
	if !cfg.NormalizeLength {
		return out, nil
	}

	var factor float64
	if cfg.SimpleLengthNorm {
		var sq float64
		for _, x := range out {
			sq += x * x
		}
		factor = math.Sqrt(float64(d) / sq)
	} else {
		inv := 1 / float64(max(numExamples, 1))
		var dot float64
		for i, x := range out {
			dot += x * x / (float64(p.Psi[i]) + inv)
		}
		factor = math.Sqrt(float64(d) / dot)
	}
	if math.IsInf(factor, 0) || math.IsNaN(factor) {
		return out, nil
	}
	for i := range out {
		out[i] *= factor
	}
	return out, nil
}

// LogLikelihoodRatio returns log p(test | same speaker as train) minus
// log p(test | different speaker). train is the mean of numTrain
// transformed enrollment vectors; both vectors are in PLDA space.
func (p *PLDA) LogLikelihoodRatio(train []float64, numTrain int, test []float64) float64 {
	n := float64(numTrain)
	var same, diff float64
	for i, psi64 := range p.Psi {
		psi := float64(psi64)
		mean := n * psi / (n*psi + 1) * train[i]
		v := 1 + psi/(n*psi+1)
		d := test[i] - mean
		same += math.Log(v) + d*d/v

		v = 1 + psi
		diff += math.Log(v) + test[i]*test[i]/v
	}
	// The dim*log(2*pi) terms cancel.
	return -0.5*same + 0.5*diff
}
