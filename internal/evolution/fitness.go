package evolution

import (
	"fmt"
	"math"
)

// Metrics maps a metric name to a measured value in [0,1].
type Metrics map[string]float64

const (
	MetricEfficiency   = "efficiency"
	MetricSecurity     = "security"
	MetricYield        = "yield"
	MetricDiversity    = "diversity"
	MetricTruthfulness = "truthfulness"

	neutralMetric   = 0.5
	weightTolerance = 1e-6
)

// MetricNames lists the metrics in evaluation order.
var MetricNames = []string{MetricEfficiency, MetricSecurity, MetricYield, MetricDiversity, MetricTruthfulness}

// DefaultWeights sum to 1.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		MetricEfficiency:   0.25,
		MetricSecurity:     0.20,
		MetricYield:        0.25,
		MetricDiversity:    0.15,
		MetricTruthfulness: 0.15,
	}
}

// FitnessEvaluator scores a gene as a weighted sum of its metrics.
type FitnessEvaluator struct {
	weights map[string]float64
}

// NewFitnessEvaluator uses the default weights for any metric missing from weights.
func NewFitnessEvaluator(weights map[string]float64) *FitnessEvaluator {
	w := DefaultWeights()
	for k, v := range weights {
		if _, ok := w[k]; ok {
			w[k] = v
		}
	}
	return &FitnessEvaluator{weights: w}
}

// Evaluate never fails. Missing metrics count as 0.5 and values are clamped to [0,1].
func (f *FitnessEvaluator) Evaluate(_ *Gene, metrics Metrics) float64 {
	var total float64
	for _, name := range MetricNames {
		v, ok := metrics[name]
		if !ok || math.IsNaN(v) {
			v = neutralMetric
		}
		total += clampUnit(v) * f.weights[name]
	}
	return total
}

// ValidateWeights checks the weights NewFitnessEvaluator would end up with. Every
// name must be a known metric, no weight may be negative and the total must be 1,
// which keeps fitness in [0,1].
func ValidateWeights(weights map[string]float64) error {
	w := DefaultWeights()
	for k, v := range weights {
		if _, ok := w[k]; !ok {
			return fmt.Errorf("unknown metric %q", k)
		}
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight of %s must be >= 0, got %v", k, v)
		}
		w[k] = v
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights must sum to 1, got %.4f", sum)
	}
	return nil
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
