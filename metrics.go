package lame

import "fmt"

// Counters is a point-in-time snapshot of a Bundle's aggregate
// accounting fields, for external reporting (the lamelog analyzer derives
// comparable figures from the sched log lines; this type is the
// in-process equivalent for callers that embed a Runtime directly).
type Counters struct {
	WorkerID        int
	Capacity        uint32
	Used            uint32
	TotalCycles     uint64
	TotalLames      uint64
	TotalXsaveLames uint64
}

// Counters reads this Bundle's aggregate counters.
func (b *Bundle) Counters() Counters {
	return Counters{
		WorkerID:        b.workerID,
		Capacity:        b.capacity,
		Used:            b.used,
		TotalCycles:     b.totalCycles,
		TotalLames:      b.totalLames,
		TotalXsaveLames: b.totalXsaveLames,
	}
}

// PrintTSCCounters renders the per-worker LAME/XSAVE counters across a
// Runtime: a diagnostic summary used when the pretend/nop measurement
// variants are in play.
func PrintTSCCounters(rt *Runtime) string {
	s := ""
	for _, w := range rt.Workers {
		c := w.Bundle.Counters()
		xsaveRate := 0.0
		if c.TotalLames > 0 {
			xsaveRate = float64(c.TotalXsaveLames) / float64(c.TotalLames)
		}
		s += fmt.Sprintf("kthread:%d lames:%d xsave_lames:%d xsave_rate:%.4f\n",
			c.WorkerID, c.TotalLames, c.TotalXsaveLames, xsaveRate)
	}
	return s
}

// BenchSummary renders a single Worker's counters in the PrintTSCCounters
// format with an added variant field, for callers (such as cmd/lamebench) driving a lone
// Worker outside of a Runtime.
func BenchSummary(w *Worker) string {
	c := w.Bundle.Counters()
	xsaveRate := 0.0
	if c.TotalLames > 0 {
		xsaveRate = float64(c.TotalXsaveLames) / float64(c.TotalLames)
	}
	return fmt.Sprintf("kthread:%d variant:%s lames:%d xsave_lames:%d xsave_rate:%.4f\n",
		c.WorkerID, w.variant, c.TotalLames, c.TotalXsaveLames, xsaveRate)
}
