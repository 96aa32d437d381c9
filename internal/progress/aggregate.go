// Package progress rolls task completion up to milestone and booking percentages.
package progress

import (
	"math"

	"booking-workers/internal/models"
)

// normalizeWeight treats a non-positive weight as the default of 1.
func normalizeWeight(w float64) float64 {
	if w <= 0 || math.IsNaN(w) {
		return 1
	}
	return w
}

// TaskContribution is the task's weight when completed and 0 otherwise.
// Partial credit from Task.ProgressPercentage is not counted.
func TaskContribution(t models.Task) float64 {
	if t.Status == models.TaskStatusCompleted {
		return normalizeWeight(t.Weight)
	}
	return 0
}

// MilestoneProgress returns round(100 * completed weight / total weight), 0 for no tasks.
func MilestoneProgress(tasks []models.Task) int {
	var done, total float64
	for _, t := range tasks {
		done += TaskContribution(t)
		total += normalizeWeight(t.Weight)
	}
	if total == 0 {
		return 0
	}
	return percent(100 * done / total)
}

// BookingProgress returns the weight-averaged milestone percentage, 0 for no milestones.
func BookingProgress(milestones []models.Milestone) int {
	var sum, total float64
	for _, m := range milestones {
		w := normalizeWeight(m.Weight)
		sum += float64(m.ProgressPercentage) * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return percent(sum / total)
}

// percent rounds half up and clamps to [0,100]. The epsilon absorbs float error
// such as 87.49999999 for an exact 87.5.
func percent(x float64) int {
	p := int(math.Floor(x + 0.5 + 1e-9))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
