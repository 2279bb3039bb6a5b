// Package metrics holds the bounded per-entity time series that the stream
// ingestor writes and the dashboard reads.
package metrics

import "time"

// SystemID is the reserved series id for host-wide aggregate samples.
const SystemID = "_system"

// Sample is one normalized reading for an entity. Rates are bytes per second.
type Sample struct {
	Time          time.Time
	CPUPercent    float64
	MemUsedBytes  uint64
	MemLimitBytes uint64
	RxRate        float64
	TxRate        float64
	BlkReadRate   float64
	BlkWriteRate  float64
}

// MemPercent is memory use as a percentage of the limit, or 0 without a limit.
func (s Sample) MemPercent() float64 {
	if s.MemLimitBytes == 0 {
		return 0
	}
	return float64(s.MemUsedBytes) / float64(s.MemLimitBytes) * 100
}

// Field selects one scalar out of a Sample.
type Field int

const (
	FieldCPU Field = iota
	FieldMemPercent
	FieldMemUsed
	FieldRx
	FieldTx
	FieldBlkRead
	FieldBlkWrite
)

// IsPercent reports whether the field is bounded by 100.
func (f Field) IsPercent() bool {
	return f == FieldCPU || f == FieldMemPercent
}

// Value extracts f from s.
func (s Sample) Value(f Field) float64 {
	switch f {
	case FieldCPU:
		return s.CPUPercent
	case FieldMemPercent:
		return s.MemPercent()
	case FieldMemUsed:
		return float64(s.MemUsedBytes)
	case FieldRx:
		return s.RxRate
	case FieldTx:
		return s.TxRate
	case FieldBlkRead:
		return s.BlkReadRate
	case FieldBlkWrite:
		return s.BlkWriteRate
	default:
		return 0
	}
}

// Values projects a series of samples onto one field.
func Values(samples []Sample, f Field) []float64 {
	if len(samples) == 0 {
		return nil
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value(f)
	}
	return out
}
