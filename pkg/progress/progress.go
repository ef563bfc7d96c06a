// Package progress projects a job's coarse-grained progress percentage and
// phase from its status and tasks (SPEC_FULL.md §4.10). It is a pure
// function over already-loaded state — no I/O, no storage dependency —
// mirroring the way pkg/database.Health reports a point-in-time snapshot
// rather than owning the state it describes.
package progress

import (
	"github.com/deepresearch/engine/pkg/config"
	"github.com/deepresearch/engine/pkg/models"
)

// Snapshot is the projected progress of a job at the moment of projection.
type Snapshot struct {
	Percent int
	Phase   config.CurrentPhase
}

// Project computes (progress_percent, current_phase) for a job from its
// status and tasks, per the table in spec.md §4.10.
func Project(status config.JobStatus, tasks []*models.Task) Snapshot {
	switch status {
	case config.JobStatusCompleted:
		return Snapshot{Percent: 100, Phase: config.PhaseReporting}
	case config.JobStatusFailed:
		return Snapshot{Percent: 0, Phase: config.PhaseFailed}
	case config.JobStatusPending:
		return Snapshot{Percent: 0, Phase: config.PhaseEnriching}
	case config.JobStatusGenerating:
		return Snapshot{Percent: 90, Phase: config.PhaseReporting}
	case config.JobStatusProcessing:
		return projectProcessing(tasks)
	default:
		return Snapshot{Percent: 0, Phase: config.PhaseQueued}
	}
}

func projectProcessing(tasks []*models.Task) Snapshot {
	if len(tasks) == 0 {
		return Snapshot{Percent: 10, Phase: config.PhasePlanning}
	}

	total := len(tasks)
	done := 0
	for _, t := range tasks {
		if t.Status == config.TaskStatusApproved || t.Status == config.TaskStatusApprovedDegraded || t.Status == config.TaskStatusRejected {
			done++
		}
	}

	percent := 20 + (done*70)/total
	phase := config.PhaseResearching
	if done == total {
		phase = config.PhaseReporting
		if percent > 90 {
			percent = 90
		}
	}
	if percent > 99 {
		percent = 99
	}
	return Snapshot{Percent: percent, Phase: phase}
}
