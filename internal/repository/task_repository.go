package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/role-approval-api/internal/models"
)

// ErrPendingTaskExists is returned when uq_tasks_one_pending rejects a second pending task for a user.
var ErrPendingTaskExists = errors.New("pending task exists")

const onePendingIndex = "uq_tasks_one_pending"

const taskColumns = `id, user_id, type, status, state, requested_role_id, action_by_id, comment, action_at, created_at`

// TaskRepository persists approval tasks.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateWithTx inserts a task inside an existing transaction.
func (r *TaskRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Type == "" {
		task.Type = models.TaskTypeRoleUpgrade
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.State == "" {
		task.State = models.TaskStateOpen
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO tasks (` + taskColumns + `)
	VALUES (:id, :user_id, :type, :status, :state, :requested_role_id, :action_by_id, :comment, :action_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, task); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == onePendingIndex {
			return ErrPendingTaskExists
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindLatestByUser returns the most recently created task of the given type.
func (r *TaskRepository) FindLatestByUser(ctx context.Context, userID string, taskType models.TaskType) (*models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks
	WHERE user_id = $1 AND type = $2 ORDER BY created_at DESC LIMIT 1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, userID, taskType); err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByUserAndStatus returns the newest task in the given status.
func (r *TaskRepository) FindByUserAndStatus(ctx context.Context, userID string, taskType models.TaskType, status models.TaskStatus) (*models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks
	WHERE user_id = $1 AND type = $2 AND status = $3 ORDER BY created_at DESC LIMIT 1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, userID, taskType, status); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByUserAndStatus returns every task of the user in the given status.
func (r *TaskRepository) ListByUserAndStatus(ctx context.Context, userID string, taskType models.TaskType, status models.TaskStatus) ([]models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks
	WHERE user_id = $1 AND type = $2 AND status = $3 ORDER BY created_at ASC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, userID, taskType, status); err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	return tasks, nil
}

const taskDetailSelect = `SELECT t.id, t.user_id, t.type, t.status, t.state, t.requested_role_id, t.action_by_id,
       t.comment, t.action_at, t.created_at,
       u.name AS user_name, u.email AS user_email,
       r.name AS requested_role_name, a.name AS action_by_name
	FROM tasks t
	JOIN users u ON u.id = t.user_id
	LEFT JOIN roles r ON r.id = t.requested_role_id
	LEFT JOIN users a ON a.id = t.action_by_id`

// ListDetailsByStatus returns tasks in a status joined with owner and role names, oldest first.
func (r *TaskRepository) ListDetailsByStatus(ctx context.Context, taskType models.TaskType, status models.TaskStatus) ([]models.TaskDetail, error) {
	query := taskDetailSelect + ` WHERE t.type = $1 AND t.status = $2 ORDER BY t.created_at ASC`
	var details []models.TaskDetail
	if err := r.db.SelectContext(ctx, &details, query, taskType, status); err != nil {
		return nil, fmt.Errorf("list task details: %w", err)
	}
	return details, nil
}

// FindLatestDetailByUser returns the newest task of the user with display joins.
func (r *TaskRepository) FindLatestDetailByUser(ctx context.Context, userID string, taskType models.TaskType) (*models.TaskDetail, error) {
	query := taskDetailSelect + ` WHERE t.user_id = $1 AND t.type = $2 ORDER BY t.created_at DESC LIMIT 1`
	var detail models.TaskDetail
	if err := r.db.GetContext(ctx, &detail, query, userID, taskType); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateDecision records a reviewer decision outside a transaction.
func (r *TaskRepository) UpdateDecision(ctx context.Context, decision models.TaskDecision) (*models.Task, error) {
	return r.updateDecision(ctx, r.db, decision)
}

// UpdateDecisionWithTx records a reviewer decision inside an existing transaction.
func (r *TaskRepository) UpdateDecisionWithTx(ctx context.Context, tx *sqlx.Tx, decision models.TaskDecision) (*models.Task, error) {
	return r.updateDecision(ctx, tx, decision)
}

// updateDecision only touches pending rows; zero matches yields sql.ErrNoRows.
func (r *TaskRepository) updateDecision(ctx context.Context, q sqlx.QueryerContext, decision models.TaskDecision) (*models.Task, error) {
	const query = `UPDATE tasks SET status = $1, state = $2, action_by_id = $3, comment = $4, action_at = $5
	WHERE id = $6 AND status = $7
	RETURNING ` + taskColumns
	var task models.Task
	err := sqlx.GetContext(ctx, q, &task, query,
		decision.Status,
		models.TaskStateClosed,
		decision.ReviewerID,
		decision.Comment,
		decision.ActionAt,
		decision.TaskID,
		models.TaskStatusPending,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update task decision: %w", err)
	}
	return &task, nil
}

// Delete removes a task row. Documents must be removed first.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check task delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
