package updatetaskstatus

import "time"

type Input struct {
	TaskID             string `json:"taskId"`
	Status             string `json:"status"`
	ProgressPercentage *int   `json:"progressPercentage,omitempty"`
}

type Output struct {
	TaskID      string     `json:"taskId"`
	MilestoneID string     `json:"milestoneId"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
