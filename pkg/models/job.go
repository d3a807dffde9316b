package models

import (
	"strings"
	"time"
)

// Status is the normalized lifecycle state of a job. The upstream APIs emit
// a wider set of raw strings; everything is folded onto this closed set.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// NormalizeStatus maps a raw upstream status string onto the closed Status
// set. "error" and "stopped" are terminal failures; anything unrecognized
// is treated as queued.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued":
		return StatusQueued
	case "running":
		return StatusRunning
	case "completed":
		return StatusCompleted
	case "failed", "error", "stopped":
		return StatusFailed
	default:
		return StatusQueued
	}
}

// Terminal reports whether a job in this state will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source identifies which upstream collection a job came from. It routes
// detail, delete and rerun calls to the right endpoint family.
type Source string

const (
	SourceTests Source = "tests"
	SourceLDPC  Source = "ldpc"
)

// Hardware algorithm variants reported by the LDPC API.
const (
	AlgorithmAnalog      = "analog_hardware"
	AlgorithmDigital     = "digital_hardware"
	AlgorithmMixedSignal = "mixedsignal_hardware"
)

// JobRecord is the normalized job shape shared by both sources. IDs are
// unique across the merged list because the two collections are disjoint.
type JobRecord struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Category       string                 `json:"category"`
	SubsystemLabel string                 `json:"subsystem_label"`
	Status         Status                 `json:"status"`
	Source         Source                 `json:"source"`
	CreatedAt      time.Time              `json:"created_at"`
	AlgorithmType  string                 `json:"algorithm_type,omitempty"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Results        []RunResult            `json:"results,omitempty"`
}

// RawGeneric is the wire shape of one entry from GET /tests. Field-name
// fallbacks (createdAt/created_at/created, chip_type/chipType) mirror the
// inconsistencies of the upstream API and are resolved during
// normalization with a fixed precedence.
type RawGeneric struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name,omitempty"`
	ChipType      string                 `json:"chip_type,omitempty"`
	ChipTypeAlt   string                 `json:"chipType,omitempty"`
	Status        string                 `json:"status,omitempty"`
	AlgorithmType string                 `json:"algorithm_type,omitempty"`
	CreatedAt     string                 `json:"createdAt,omitempty"`
	CreatedSnake  string                 `json:"created_at,omitempty"`
	Created       string                 `json:"created,omitempty"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
	Results       []RunResult            `json:"results,omitempty"`
}

// RawLDPC is the wire shape of one entry from GET /ldpc/jobs.
type RawLDPC struct {
	ID            string      `json:"id"`
	Name          string      `json:"name,omitempty"`
	Status        string      `json:"status,omitempty"`
	AlgorithmType string      `json:"algorithm_type,omitempty"`
	NoiseLevel    float64     `json:"noise_level,omitempty"`
	Message       string      `json:"message,omitempty"`
	CreatedAt     string      `json:"created_at,omitempty"`
	Results       []RunResult `json:"results,omitempty"`
}

// RunResult is one trial within a job's result array.
type RunResult struct {
	Success          bool    `json:"success"`
	ExecutionTime    float64 `json:"execution_time"` // ms
	BitErrors        int     `json:"bit_errors"`
	Iterations       int     `json:"iterations"`
	PowerConsumption float64 `json:"power_consumption,omitempty"` // mW, 0 = not measured
}

// CodeParams describes the LDPC code under test.
type CodeParams struct {
	CodeLength      int `json:"code_length"`
	InformationBits int `json:"information_bits"`
}

// DefaultCodeParams returns the fixed (96,48) code used by the testbed.
func DefaultCodeParams() CodeParams {
	return CodeParams{CodeLength: 96, InformationBits: 48}
}

// DerivedMetrics is the full set of statistics computed from a job's
// result array. Every field is recomputed on each derivation; nothing here
// is ever persisted independently of the source results.
type DerivedMetrics struct {
	SuccessRate           float64 `json:"success_rate"`
	FrameErrorRate        float64 `json:"frame_error_rate"`
	BitErrorRate          float64 `json:"bit_error_rate"`
	AvgExecutionTime      float64 `json:"avg_execution_time_ms"`
	MinExecutionTime      float64 `json:"min_execution_time_ms"`
	MaxExecutionTime      float64 `json:"max_execution_time_ms"`
	AvgLatency            float64 `json:"avg_latency_us"`
	MinLatency            float64 `json:"min_latency_us"`
	MaxLatency            float64 `json:"max_latency_us"`
	AvgThroughput         float64 `json:"avg_throughput_mbps"`
	PeakThroughput        float64 `json:"peak_throughput_mbps"`
	CodeRate              float64 `json:"code_rate"`
	AvgPowerConsumption   float64 `json:"avg_power_consumption_mw"`
	EnergyPerBit          float64 `json:"energy_per_bit_pj"`
	AvgIterations         float64 `json:"avg_iterations"`
	MaxIterations         int     `json:"max_iterations"`
	TotalIterations       int     `json:"total_iterations"`
	CodeLength            int     `json:"code_length"`
	InformationBits       int     `json:"information_bits"`
	RedundancyBits        int     `json:"redundancy_bits"`
	TotalBitErrors        int     `json:"total_bit_errors"`
	AvgBitErrors          float64 `json:"avg_bit_errors"`
	EnergyEfficiencyRatio float64 `json:"energy_efficiency_ratio"`
	SpeedupFactor         float64 `json:"speedup_factor"`
}

// LDPCSubsystemLabel derives the human label for an LDPC job from its
// hardware algorithm variant.
func LDPCSubsystemLabel(algorithmType string) string {
	switch algorithmType {
	case AlgorithmAnalog:
		return "ldpc (analog)"
	case AlgorithmDigital:
		return "ldpc (digital)"
	case AlgorithmMixedSignal:
		return "ldpc (mixedsignal)"
	default:
		return "ldpc (unknown)"
	}
}

// SubsystemLabel derives a display label for a generic job. The label is
// always recomputed from category plus variant, never stored upstream.
func SubsystemLabel(category, algorithmType string) string {
	label := strings.ToLower(category)
	if label == "" {
		label = "unknown"
	}
	if algorithmType != "" {
		variant := strings.TrimSuffix(algorithmType, "_hardware")
		return label + " (" + variant + ")"
	}
	return label
}
