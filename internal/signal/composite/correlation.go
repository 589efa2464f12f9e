// Package composite fuses the outputs of multiple signal generators into a
// single judgment per instrument.
package composite

import (
	"math"

	"github.com/rxtech-lab/argo-signals/internal/types"
)

// CorrelationMatrix holds pairwise correlations between named signals, used
// for multicollinearity detection: highly correlated signals should not be
// double counted during fusion.
type CorrelationMatrix struct {
	SignalNames []string
	Matrix      [][]float64
}

// NewCorrelationMatrix creates a matrix for the given signal names with zero
// off-diagonal correlations and unit self-correlation.
func NewCorrelationMatrix(signalNames []string) *CorrelationMatrix {
	n := len(signalNames)

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}

	return &CorrelationMatrix{
		SignalNames: signalNames,
		Matrix:      matrix,
	}
}

// Set records the correlation between signals i and j, clamped to [-1, 1].
// The symmetric entry is set as well.
func (m *CorrelationMatrix) Set(i, j int, correlation float64) {
	if i >= len(m.Matrix) || j >= len(m.Matrix) {
		return
	}

	clamped := math.Max(-1, math.Min(1, correlation))
	m.Matrix[i][j] = clamped
	m.Matrix[j][i] = clamped
}

// Get returns the correlation between signals i and j, or 0 out of range.
func (m *CorrelationMatrix) Get(i, j int) float64 {
	if i >= len(m.Matrix) || j >= len(m.Matrix) {
		return 0
	}

	return m.Matrix[i][j]
}

// GetByName returns the correlation between two named signals.
func (m *CorrelationMatrix) GetByName(name1, name2 string) (float64, bool) {
	i := m.indexOf(name1)
	j := m.indexOf(name2)

	if i < 0 || j < 0 {
		return 0, false
	}

	return m.Get(i, j), true
}

// Size returns the number of signals in the matrix.
func (m *CorrelationMatrix) Size() int {
	return len(m.SignalNames)
}

func (m *CorrelationMatrix) indexOf(name string) int {
	for i, n := range m.SignalNames {
		if n == name {
			return i
		}
	}

	return -1
}

// PearsonCorrelation returns the Pearson correlation coefficient between two
// equal-length series, or 0 when the series are too short, mismatched or
// degenerate.
func PearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	n := float64(len(x))

	meanX, meanY := 0.0, 0.0
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}

	meanX /= n
	meanY /= n

	covariance, varX, varY := 0.0, 0.0, 0.0

	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		covariance += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denominator := math.Sqrt(varX * varY)
	if denominator < 1e-15 {
		return 0
	}

	return covariance / denominator
}

// CalculateCorrelationMatrix builds a correlation matrix from historical
// signal snapshots. Each signal is represented as its signed strength series
// (direction sign times strength).
func CalculateCorrelationMatrix(historicalSignals []map[string]types.SignalValue, signalNames []string) *CorrelationMatrix {
	matrix := NewCorrelationMatrix(signalNames)

	if len(historicalSignals) == 0 || len(signalNames) == 0 {
		return matrix
	}

	series := make([][]float64, len(signalNames))

	for i, name := range signalNames {
		for _, snapshot := range historicalSignals {
			value, ok := snapshot[name]
			if !ok {
				continue
			}

			series[i] = append(series[i], value.Direction.Sign()*value.Strength)
		}
	}

	for i := range signalNames {
		for j := i + 1; j < len(signalNames); j++ {
			matrix.Set(i, j, PearsonCorrelation(series[i], series[j]))
		}
	}

	return matrix
}

// AdjustWeightsForMulticollinearity divides each signal's weight by one plus
// the number of other signals it correlates with beyond the threshold.
func AdjustWeightsForMulticollinearity(weights map[string]float64, matrix *CorrelationMatrix, threshold float64) {
	for i, name := range matrix.SignalNames {
		count := 0

		for j := range matrix.SignalNames {
			if i != j && math.Abs(matrix.Get(i, j)) > threshold {
				count++
			}
		}

		if count == 0 {
			continue
		}

		if weight, ok := weights[name]; ok {
			weights[name] = weight / float64(1+count)
		}
	}
}
