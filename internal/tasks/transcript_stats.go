package tasks

import (
	"context"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/metrics"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const transcriptStatsComponent = "tasks.transcript-stats"

// NewTranscriptStatsReportTask logs the transcript stream's rolling
// delivery counters, giving an operator a periodic signal if parse errors
// or duplicate rates start climbing (spec.md §4.2 Delivery stats).
func NewTranscriptStatsReportTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "transcript-stats-report",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			stats := d.Stream.Stats()
			logger.InfoCF(transcriptStatsComponent, "transcript delivery stats", map[string]interface{}{
				"emitted":           stats.Emitted,
				"dropped_duplicate": stats.DroppedDuplicate,
				"parse_errors":      stats.ParseErrors,
			})
			d.Metrics.Record(metrics.Event{
				Kind: "transcript_stats",
				Name: "transcript-stats-report",
				OK:   true,
				Fields: map[string]interface{}{
					"emitted":           stats.Emitted,
					"dropped_duplicate": stats.DroppedDuplicate,
					"parse_errors":      stats.ParseErrors,
				},
			})
			return nil
		},
	}
}

