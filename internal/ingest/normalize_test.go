package ingest

import (
	"testing"
	"time"

	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id string, sec int, rx uint64) engine.StatsRecord {
	return engine.StatsRecord{ID: id, Read: base.Add(time.Duration(sec) * time.Second), RxBytes: rx}
}

func TestNormalize_ByteRatesFromCounters(t *testing.T) {
	n := NewNormalizer()

	first := n.Normalize(rec("x", 0, 100), base)
	second := n.Normalize(rec("x", 1, 140), base)
	third := n.Normalize(rec("x", 2, 130), base)

	assert.False(t, first.OK, "first record only seeds the baseline")

	require.True(t, second.OK)
	assert.Equal(t, 40.0, second.Sample.RxRate)
	assert.False(t, second.Clamped)

	require.True(t, third.OK, "a clamped sample is still recorded")
	assert.Equal(t, 0.0, third.Sample.RxRate)
	assert.True(t, third.Clamped)
}

func TestNormalize_PerEntityBaselines(t *testing.T) {
	n := NewNormalizer()
	assert.False(t, n.Normalize(rec("a", 0, 10), base).OK)
	assert.False(t, n.Normalize(rec("b", 0, 10), base).OK)
	assert.True(t, n.Normalize(rec("a", 1, 20), base).OK)

	n.Forget("a")
	assert.False(t, n.Normalize(rec("a", 2, 30), base).OK)
}

func TestNormalize_ZeroReadUsesArrival(t *testing.T) {
	n := NewNormalizer()
	n.Normalize(engine.StatsRecord{ID: "a", RxBytes: 0}, base)
	res := n.Normalize(engine.StatsRecord{ID: "a", RxBytes: 1000}, base.Add(2*time.Second))

	require.True(t, res.OK)
	assert.Equal(t, 500.0, res.Sample.RxRate)
	assert.Equal(t, base.Add(2*time.Second), res.Sample.Time)
}

func TestNormalize_CarriesGauges(t *testing.T) {
	n := NewNormalizer()
	n.Normalize(engine.StatsRecord{ID: "a", Read: base, CPUTotal: 0, SystemCPU: 0}, base)
	res := n.Normalize(engine.StatsRecord{
		ID: "a", Read: base.Add(time.Second),
		CPUTotal: 250, SystemCPU: 1000, OnlineCPUs: 2,
		MemUsed: 512, MemLimit: 2048,
	}, base)

	require.True(t, res.OK)
	assert.Equal(t, 50.0, res.Sample.CPUPercent)
	assert.Equal(t, uint64(512), res.Sample.MemUsedBytes)
	assert.Equal(t, 25.0, res.Sample.MemPercent())
}

func TestRate(t *testing.T) {
	tests := []struct {
		name        string
		before      uint64
		after       uint64
		elapsed     time.Duration
		wantRate    float64
		wantClamped bool
	}{
		{"per second", 100, 140, time.Second, 40, false},
		{"two seconds", 0, 1000, 2 * time.Second, 500, false},
		{"no elapsed time", 5, 9, 0, 4, false},
		{"wraparound", 140, 130, time.Second, 0, true},
		{"unchanged", 7, 7, time.Second, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := Rate(tt.before, tt.after, tt.elapsed)
			assert.Equal(t, tt.wantRate, got)
			assert.Equal(t, tt.wantClamped, clamped)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name                 string
		cpu0, cpu1, sy0, sy1 uint64
		cpus                 uint32
		want                 float64
	}{
		{"quarter of one cpu", 0, 25, 0, 100, 1, 25},
		{"scaled by cpus", 0, 25, 0, 100, 4, 100},
		{"zero cpus treated as one", 0, 50, 0, 100, 0, 50},
		{"counter reset", 100, 50, 0, 100, 1, 0},
		{"no system progress", 0, 50, 100, 100, 1, 0},
		{"capped at cpus*100", 0, 300, 0, 100, 2, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CPUPercent(tt.cpu0, tt.cpu1, tt.sy0, tt.sy1, tt.cpus), 1e-9)
		})
	}
}
