// Package stats implements the status/checkpoint/benchmark reporter (spec
// component C10): a monotonic-clock-driven ticker the coordinator polls
// between inner-loop iterations, per spec.md §4.5 "Status / checkpoint /
// benchmark".
package stats

import (
	"log"
	"time"
)

// Reporter tracks the three independently configured cadences. A zero
// interval disables that cadence.
type Reporter struct {
	start time.Time

	updateInterval     time.Duration
	checkpointInterval time.Duration
	benchmarkBudget    time.Duration

	lastUpdate     time.Time
	lastCheckpoint time.Time
}

// New constructs a Reporter. Intervals are in seconds, 0 disables.
func New(updateSec, checkpointSec, benchmarkSec int) *Reporter {
	now := time.Now()
	return &Reporter{
		start:              now,
		updateInterval:     time.Duration(updateSec) * time.Second,
		checkpointInterval: time.Duration(checkpointSec) * time.Second,
		benchmarkBudget:    time.Duration(benchmarkSec) * time.Second,
		lastUpdate:         now,
		lastCheckpoint:     now,
	}
}

// Tick is called from inside drive_expansion, once per emitted intersection
// point.
// It logs a status line or checkpoint marker when their cadence has elapsed,
// and reports whether the benchmark budget has now been exhausted.
func (r *Reporter) Tick(iteration uint8, taskPointID int64, pointsFoundThisTask, cacheLen int) (benchmarkExpired bool) {
	now := time.Now()

	if r.updateInterval > 0 && now.Sub(r.lastUpdate) >= r.updateInterval {
		log.Printf("status: iter=%d pivot=%d found=%d cache=%d elapsed=%s",
			iteration, taskPointID, pointsFoundThisTask, cacheLen, now.Sub(r.start).Round(time.Second))
		r.lastUpdate = now
	}

	if r.checkpointInterval > 0 && now.Sub(r.lastCheckpoint) >= r.checkpointInterval {
		log.Printf("checkpoint: iter=%d pivot=%d elapsed=%s", iteration, taskPointID, now.Sub(r.start).Round(time.Second))
		r.lastCheckpoint = now
	}

	if r.benchmarkBudget > 0 && now.Sub(r.start) >= r.benchmarkBudget {
		return true
	}
	return false
}
