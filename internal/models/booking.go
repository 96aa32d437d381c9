// internal/models/booking.go
package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
	TaskStatusOnHold     TaskStatus = "on_hold"
)

// Valid reports whether s is one of the five task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled, TaskStatusOnHold:
		return true
	}
	return false
}

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusApproved   MilestoneStatus = "approved"
	MilestoneStatusRejected   MilestoneStatus = "rejected"
)

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusInProgress, MilestoneStatusCompleted,
		MilestoneStatusApproved, MilestoneStatusRejected:
		return true
	}
	return false
}

// Task is a unit of work under a milestone. ProgressPercentage is stored for display only.
type Task struct {
	ID                 string     `json:"id"`
	MilestoneID        string     `json:"milestoneId"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Status             TaskStatus `json:"status"`
	Weight             float64    `json:"weight"`
	EstimatedHours     float64    `json:"estimatedHours"`
	ActualHours        float64    `json:"actualHours"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	AssigneeID         string     `json:"assigneeId,omitempty"`
	ProgressPercentage int        `json:"progressPercentage"`
	SortOrder          int        `json:"sortOrder"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Milestone groups tasks within a booking. ProgressPercentage is derived.
type Milestone struct {
	ID                 string          `json:"id"`
	BookingID          string          `json:"bookingId"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Status             MilestoneStatus `json:"status"`
	Weight             float64         `json:"weight"`
	ProgressPercentage int             `json:"progressPercentage"`
	DueDate            *time.Time      `json:"dueDate,omitempty"`
	SortOrder          int             `json:"sortOrder"`
	Tasks              []Task          `json:"tasks,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Booking is the root of the progress tree. ProjectProgress is derived.
type Booking struct {
	ID              string      `json:"id"`
	ClientID        string      `json:"clientId"`
	ProviderID      string      `json:"providerId"`
	Title           string      `json:"title"`
	Status          string      `json:"status"`
	ProjectProgress int         `json:"projectProgress"`
	Milestones      []Milestone `json:"milestones,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// TimeEntry is append-only; entries are summed into Task.ActualHours.
type TimeEntry struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"taskId"`
	UserID        string    `json:"userId,omitempty"`
	DurationHours float64   `json:"durationHours"`
	Note          string    `json:"note,omitempty"`
	LoggedAt      time.Time `json:"loggedAt"`
}

// ProgressAnalytics summarises one booking's task tree.
type ProgressAnalytics struct {
	BookingID           string         `json:"bookingId"`
	ProjectProgress     int            `json:"projectProgress"`
	TotalTasks          int            `json:"totalTasks"`
	TasksByStatus       map[string]int `json:"tasksByStatus"`
	CompletedWeight     float64        `json:"completedWeight"`
	TotalWeight         float64        `json:"totalWeight"`
	EstimatedHours      float64        `json:"estimatedHours"`
	ActualHours         float64        `json:"actualHours"`
	OverdueTasks        int            `json:"overdueTasks"`
	MilestoneProgress   map[string]int `json:"milestoneProgress"`
	CompletedMilestones int            `json:"completedMilestones"`
	TotalMilestones     int            `json:"totalMilestones"`
	GeneratedAt         time.Time      `json:"generatedAt"`
}
