package recalculateprogress

import "time"

type Input struct {
	BookingID   string `json:"bookingId"`
	MilestoneID string `json:"milestoneId,omitempty"`
}

type Output struct {
	BookingID         string         `json:"bookingId,omitempty"`
	MilestoneID       string         `json:"milestoneId,omitempty"`
	MilestoneProgress *int           `json:"milestoneProgress,omitempty"`
	ProjectProgress   *int           `json:"projectProgress,omitempty"`
	Milestones        map[string]int `json:"milestones,omitempty"`
	RecalculatedAt    time.Time      `json:"recalculatedAt"`
}
