// internal/repository/progress_repo.go
package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"booking-workers/internal/common/database"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/models"
)

const taskColumns = `id, milestone_id, title, COALESCE(description, ''), status, weight,
	estimated_hours, actual_hours, due_date, COALESCE(assignee_id::text, ''),
	progress_percentage, sort_order, completed_at, created_at, updated_at`

const milestoneColumns = `id, booking_id, title, COALESCE(description, ''), status, weight,
	progress_percentage, due_date, sort_order, created_at, updated_at`

// ProgressRepository reads and writes the booking → milestone → task tree.
type ProgressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status string
	var due, completed sql.NullTime
	if err := row.Scan(&t.ID, &t.MilestoneID, &t.Title, &t.Description, &status, &t.Weight,
		&t.EstimatedHours, &t.ActualHours, &due, &t.AssigneeID,
		&t.ProgressPercentage, &t.SortOrder, &completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.DueDate = nullTimePtr(due)
	t.CompletedAt = nullTimePtr(completed)
	return &t, nil
}

func scanMilestone(row rowScanner) (*models.Milestone, error) {
	var m models.Milestone
	var status string
	var due sql.NullTime
	if err := row.Scan(&m.ID, &m.BookingID, &m.Title, &m.Description, &status, &m.Weight,
		&m.ProgressPercentage, &due, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Status = models.MilestoneStatus(status)
	m.DueDate = nullTimePtr(due)
	return &m, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func (r *ProgressRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, provider_id, title, status, project_progress, created_at, updated_at
		FROM bookings WHERE id = $1`, id).
		Scan(&b.ID, &b.ClientID, &b.ProviderID, &b.Title, &b.Status, &b.ProjectProgress, &b.CreatedAt, &b.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("booking", id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get booking", err)
	}
	return &b, nil
}

func (r *ProgressRepository) GetMilestone(ctx context.Context, id string) (*models.Milestone, error) {
	m, err := scanMilestone(r.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("milestone", id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get milestone", err)
	}
	return m, nil
}

func (r *ProgressRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("task", id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get task", err)
	}
	return t, nil
}

// ListMilestones returns a booking's milestones in display order.
func (r *ProgressRepository) ListMilestones(ctx context.Context, bookingID string) ([]models.Milestone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE booking_id = $1 ORDER BY sort_order, created_at`, bookingID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list milestones", err)
	}
	defer rows.Close()

	milestones := []models.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan milestone", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list milestones", err)
	}
	return milestones, nil
}

// ListTasksByMilestone returns a milestone's tasks in display order.
func (r *ProgressRepository) ListTasksByMilestone(ctx context.Context, milestoneID string) ([]models.Task, error) {
	return r.listTasks(ctx, "list milestone tasks",
		`SELECT `+taskColumns+` FROM tasks WHERE milestone_id = $1 ORDER BY sort_order, created_at`, milestoneID)
}

// ListTasksByBooking joins through milestones since tasks carry no booking id.
func (r *ProgressRepository) ListTasksByBooking(ctx context.Context, bookingID string) ([]models.Task, error) {
	return r.listTasks(ctx, "list booking tasks", `
		SELECT t.id, t.milestone_id, t.title, COALESCE(t.description, ''), t.status, t.weight,
			t.estimated_hours, t.actual_hours, t.due_date, COALESCE(t.assignee_id::text, ''),
			t.progress_percentage, t.sort_order, t.completed_at, t.created_at, t.updated_at
		FROM tasks t
		JOIN milestones m ON m.id = t.milestone_id
		WHERE m.booking_id = $1
		ORDER BY m.sort_order, t.sort_order`, bookingID)
}

func (r *ProgressRepository) listTasks(ctx context.Context, op, query string, arg string) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError(op, err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError(op, err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError(op, err)
	}
	return tasks, nil
}

// BookingIDForMilestone resolves a milestone's parent booking.
func (r *ProgressRepository) BookingIDForMilestone(ctx context.Context, milestoneID string) (string, error) {
	var bookingID string
	err := r.db.QueryRowContext(ctx, `SELECT booking_id FROM milestones WHERE id = $1`, milestoneID).Scan(&bookingID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("milestone", milestoneID)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("resolve milestone booking", err)
	}
	return bookingID, nil
}

func (r *ProgressRepository) UpdateMilestoneProgress(ctx context.Context, milestoneID string, pct int) error {
	return r.execOne(ctx, "update milestone progress", "milestone", milestoneID,
		`UPDATE milestones SET progress_percentage = $2, updated_at = NOW() WHERE id = $1`, milestoneID, pct)
}

func (r *ProgressRepository) UpdateBookingProgress(ctx context.Context, bookingID string, pct int) error {
	return r.execOne(ctx, "update booking progress", "booking", bookingID,
		`UPDATE bookings SET project_progress = $2, updated_at = NOW() WHERE id = $1`, bookingID, pct)
}

func (r *ProgressRepository) InsertTask(ctx context.Context, t *models.Task) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (milestone_id, title, description, status, weight, estimated_hours,
			due_date, assignee_id, sort_order)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, '')::uuid, $9)
		RETURNING id, created_at, updated_at`,
		t.MilestoneID, t.Title, t.Description, string(t.Status), t.Weight, t.EstimatedHours,
		t.DueDate, t.AssigneeID, t.SortOrder,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// UpdateTask writes the mutable task fields. completed_at follows the status.
func (r *ProgressRepository) UpdateTask(ctx context.Context, t *models.Task) error {
	return r.execOne(ctx, "update task", "task", t.ID, `
		UPDATE tasks SET title = $2, description = NULLIF($3, ''), status = $4, weight = $5,
			estimated_hours = $6, due_date = $7, assignee_id = NULLIF($8, '')::uuid,
			progress_percentage = $9,
			completed_at = CASE WHEN $4 = 'completed' THEN COALESCE(completed_at, NOW()) ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Title, t.Description, string(t.Status), t.Weight,
		t.EstimatedHours, t.DueDate, t.AssigneeID, t.ProgressPercentage)
}

// DeleteTask removes a task and returns the milestone it belonged to.
func (r *ProgressRepository) DeleteTask(ctx context.Context, taskID string) (string, error) {
	var milestoneID string
	err := r.db.QueryRowContext(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING milestone_id`, taskID).Scan(&milestoneID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("task", taskID)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("delete task", err)
	}
	return milestoneID, nil
}

// InsertTimeEntry appends an entry and recomputes the task's actual hours from all entries.
func (r *ProgressRepository) InsertTimeEntry(ctx context.Context, e *models.TimeEntry) (float64, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO time_entries (task_id, user_id, duration_hours, note, logged_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, NULLIF($4, ''), $5)
		RETURNING id`,
		e.TaskID, e.UserID, e.DurationHours, e.Note, e.LoggedAt,
	).Scan(&e.ID)
	if err != nil {
		return 0, errors.NewDatabaseInsertFailedError(err)
	}

	var actual float64
	err = r.db.QueryRowContext(ctx, `
		UPDATE tasks SET actual_hours = (
			SELECT COALESCE(SUM(duration_hours), 0) FROM time_entries WHERE task_id = $1
		), updated_at = NOW()
		WHERE id = $1
		RETURNING actual_hours`, e.TaskID).Scan(&actual)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("sum time entries", err)
	}
	return actual, nil
}

func (r *ProgressRepository) InsertMilestone(ctx context.Context, m *models.Milestone) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO milestones (booking_id, title, description, status, weight, due_date, sort_order)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		RETURNING id, progress_percentage, created_at, updated_at`,
		m.BookingID, m.Title, m.Description, string(m.Status), m.Weight, m.DueDate, m.SortOrder,
	).Scan(&m.ID, &m.ProgressPercentage, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (r *ProgressRepository) UpdateMilestone(ctx context.Context, m *models.Milestone) error {
	return r.execOne(ctx, "update milestone", "milestone", m.ID, `
		UPDATE milestones SET title = $2, description = NULLIF($3, ''), status = $4, weight = $5,
			due_date = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.Title, m.Description, string(m.Status), m.Weight, m.DueDate, m.SortOrder)
}

// DeleteMilestone removes a milestone (tasks cascade) and returns its booking id.
func (r *ProgressRepository) DeleteMilestone(ctx context.Context, milestoneID string) (string, error) {
	var bookingID string
	err := r.db.QueryRowContext(ctx, `DELETE FROM milestones WHERE id = $1 RETURNING booking_id`, milestoneID).Scan(&bookingID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("milestone", milestoneID)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("delete milestone", err)
	}
	return bookingID, nil
}

// execError maps a failed write. Unmigrated tables and denied grants are not retried.
func execError(op string, err error) error {
	switch {
	case database.IsUndefinedTable(err):
		return errors.NewFeatureUnavailableError(op, err)
	case database.IsPermissionDenied(err):
		return errors.NewPermissionDeniedError(op, err)
	}
	return errors.NewQueryExecutionFailedError(op, err)
}

func (r *ProgressRepository) execOne(ctx context.Context, op, entity, id, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return execError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError(op, err)
	}
	if n == 0 {
		return errors.NewNotFoundError(entity, id)
	}
	return nil
}
