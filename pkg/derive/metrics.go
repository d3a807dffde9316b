// Package derive computes summary statistics from raw per-run test
// results. Derivation is a pure function of the result array: no mock or
// synthetic values are ever substituted, and an empty input yields nil
// rather than an error ("no real data" is a normal state, not a failure).
package derive

import (
	"github.com/vlsilab/chipdash/pkg/models"
)

// Reference points for the analog-vs-digital comparison. The digital
// baseline decoder is pinned at 60 pJ/bit and 1 ms per frame.
const (
	digitalBaselineEnergyPJ = 60.0
	digitalBaselineTimeMS   = 1.0
)

// Metrics derives the full statistics set from a job's result array.
// algorithmType selects the variant-specific comparison ratios; only the
// analog variant is compared against the digital baseline. Returns nil
// when results is empty or nil. Sums accumulate left to right over the
// input so repeated derivations are bit-identical.
func Metrics(results []models.RunResult, params models.CodeParams, algorithmType string) *models.DerivedMetrics {
	if len(results) == 0 {
		return nil
	}

	total := float64(len(results))

	var (
		successes     int
		sumExecTime   float64
		minExecTime   float64
		maxExecTime   float64
		sumIterations int
		maxIterations int
		sumBitErrors  int
		sumPower      float64
		powerSamples  int
	)

	for _, r := range results {
		if r.Success {
			successes++
		}
		sumExecTime += r.ExecutionTime
		// Min/max only consider real (positive) timings; zero means the
		// run never reported one.
		if r.ExecutionTime > 0 {
			if minExecTime == 0 || r.ExecutionTime < minExecTime {
				minExecTime = r.ExecutionTime
			}
			if r.ExecutionTime > maxExecTime {
				maxExecTime = r.ExecutionTime
			}
		}
		sumIterations += r.Iterations
		if r.Iterations > maxIterations {
			maxIterations = r.Iterations
		}
		sumBitErrors += r.BitErrors
		// Zero/absent power readings are excluded from the mean, not
		// counted as 0 mW.
		if r.PowerConsumption > 0 {
			sumPower += r.PowerConsumption
			powerSamples++
		}
	}

	m := &models.DerivedMetrics{
		CodeLength:      params.CodeLength,
		InformationBits: params.InformationBits,
		RedundancyBits:  params.CodeLength - params.InformationBits,
	}

	m.SuccessRate = float64(successes) / total
	m.FrameErrorRate = float64(len(results)-successes) / total
	m.BitErrorRate = float64(sumBitErrors) / (total * float64(params.CodeLength))

	m.AvgExecutionTime = sumExecTime / total
	m.MinExecutionTime = minExecTime
	m.MaxExecutionTime = maxExecTime

	// Latency is the same measurement in microseconds.
	m.AvgLatency = m.AvgExecutionTime * 1000
	m.MinLatency = minExecTime * 1000
	m.MaxLatency = maxExecTime * 1000

	if params.CodeLength > 0 {
		m.CodeRate = float64(params.InformationBits) / float64(params.CodeLength)
	}

	if m.AvgExecutionTime > 0 {
		m.AvgThroughput = float64(params.InformationBits) / (m.AvgExecutionTime / 1000) / 1e6
	}
	if minExecTime > 0 {
		m.PeakThroughput = float64(params.InformationBits) / (minExecTime / 1000) / 1e6
	}

	if powerSamples > 0 {
		m.AvgPowerConsumption = sumPower / float64(powerSamples)
	}
	if m.AvgPowerConsumption > 0 && m.AvgExecutionTime > 0 {
		// mW * s * 1e-3 = J per frame; / bits = J/bit; * 1e12 = pJ/bit.
		m.EnergyPerBit = m.AvgPowerConsumption * (m.AvgExecutionTime / 1000) * 1e-3 /
			float64(params.InformationBits) * 1e12
	}

	m.AvgIterations = float64(sumIterations) / total
	m.MaxIterations = maxIterations
	m.TotalIterations = sumIterations

	m.TotalBitErrors = sumBitErrors
	m.AvgBitErrors = float64(sumBitErrors) / total

	m.EnergyEfficiencyRatio = 1.0
	m.SpeedupFactor = 1.0
	if algorithmType == models.AlgorithmAnalog {
		if m.EnergyPerBit > 0 {
			if ratio := digitalBaselineEnergyPJ / m.EnergyPerBit; ratio > 1.0 {
				m.EnergyEfficiencyRatio = ratio
			}
		}
		if m.AvgExecutionTime > 0 {
			if speedup := digitalBaselineTimeMS / m.AvgExecutionTime; speedup > 1.0 {
				m.SpeedupFactor = speedup
			}
		}
	}

	return m
}
