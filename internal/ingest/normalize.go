package ingest

import (
	"time"

	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/metrics"
)

// counters is the cumulative part of a raw record kept between records.
type counters struct {
	at       time.Time
	cpu      uint64
	sys      uint64
	rx, tx   uint64
	blkRead  uint64
	blkWrite uint64
}

// Normalizer turns raw cumulative records into samples. It keeps the
// previous record per entity; the first record for an entity only seeds
// that baseline and produces no sample.
type Normalizer struct {
	prev map[string]counters
}

// NewNormalizer returns an empty normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{prev: make(map[string]counters)}
}

// Result is the outcome of normalizing one record.
type Result struct {
	Sample  metrics.Sample
	OK      bool // false for a baseline-only record
	Clamped bool // some counter went backwards and was clamped
}

// Normalize converts rec. arrived stands in for the record time when the
// engine left it empty.
func (n *Normalizer) Normalize(rec engine.StatsRecord, arrived time.Time) Result {
	at := rec.Read
	if at.IsZero() {
		at = arrived
	}
	cur := counters{
		at:       at,
		cpu:      rec.CPUTotal,
		sys:      rec.SystemCPU,
		rx:       rec.RxBytes,
		tx:       rec.TxBytes,
		blkRead:  rec.BlkRead,
		blkWrite: rec.BlkWrite,
	}

	prev, seen := n.prev[rec.ID]
	n.prev[rec.ID] = cur
	if !seen {
		return Result{}
	}

	elapsed := cur.at.Sub(prev.at)
	var clamped bool
	rate := func(before, after uint64) float64 {
		v, c := Rate(before, after, elapsed)
		clamped = clamped || c
		return v
	}

	s := metrics.Sample{
		Time:          at,
		CPUPercent:    CPUPercent(prev.cpu, cur.cpu, prev.sys, cur.sys, rec.OnlineCPUs),
		MemUsedBytes:  rec.MemUsed,
		MemLimitBytes: rec.MemLimit,
		RxRate:        rate(prev.rx, cur.rx),
		TxRate:        rate(prev.tx, cur.tx),
		BlkReadRate:   rate(prev.blkRead, cur.blkRead),
		BlkWriteRate:  rate(prev.blkWrite, cur.blkWrite),
	}
	if cur.cpu < prev.cpu {
		clamped = true
	}
	return Result{Sample: s, OK: true, Clamped: clamped}
}

// Forget drops the baseline for id so a restarted entity starts fresh.
func (n *Normalizer) Forget(id string) {
	delete(n.prev, id)
}

// Rate is the per-second change between two cumulative counter readings.
// A counter that went backwards (wraparound or reset) yields 0 and
// clamped=true. Without a positive elapsed time the raw delta is returned.
func Rate(before, after uint64, elapsed time.Duration) (rate float64, clamped bool) {
	if after < before {
		return 0, true
	}
	delta := float64(after - before)
	if elapsed <= 0 {
		return delta, false
	}
	return delta / elapsed.Seconds(), false
}

// CPUPercent follows the engine's own formula: the container's share of
// total CPU time over the interval, scaled by the number of CPUs. The
// result is kept within [0, cpus*100].
func CPUPercent(cpuBefore, cpuAfter, sysBefore, sysAfter uint64, cpus uint32) float64 {
	if cpus == 0 {
		cpus = 1
	}
	if cpuAfter <= cpuBefore || sysAfter <= sysBefore {
		return 0
	}
	pct := float64(cpuAfter-cpuBefore) / float64(sysAfter-sysBefore) * float64(cpus) * 100
	if ceiling := float64(cpus) * 100; pct > ceiling {
		return ceiling
	}
	return pct
}
