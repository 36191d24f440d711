package models

import "time"

// TaskType tags the kind of workflow a task belongs to.
type TaskType string

// TaskStatus is the decision state of a task.
type TaskStatus string

// TaskState is the secondary lifecycle tag of a task.
type TaskState string

const (
	TaskTypeRoleUpgrade TaskType = "ROLE_UPGRADE"

	TaskStatusPending  TaskStatus = "pending"
	TaskStatusApproved TaskStatus = "approved"
	TaskStatusRejected TaskStatus = "rejected"

	TaskStateOpen   TaskState = "open"
	TaskStateClosed TaskState = "closed"
)

// IsDecision reports whether the status is a terminal reviewer outcome.
func (s TaskStatus) IsDecision() bool {
	return s == TaskStatusApproved || s == TaskStatusRejected
}

// Task is one role-upgrade request.
type Task struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Type            TaskType   `db:"type" json:"type"`
	Status          TaskStatus `db:"status" json:"status"`
	State           TaskState  `db:"state" json:"state"`
	RequestedRoleID *string    `db:"requested_role_id" json:"requested_role_id"`
	ActionByID      *string    `db:"action_by_id" json:"action_by_id"`
	Comment         *string    `db:"comment" json:"comment"`
	ActionAt        *time.Time `db:"action_at" json:"action_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	Documents       []Document `db:"-" json:"documents,omitempty"`
}

// TaskDetail is a task joined with display data for reviewers and owners.
type TaskDetail struct {
	Task
	UserName          string       `db:"user_name" json:"-"`
	UserEmail         string       `db:"user_email" json:"-"`
	RequestedRoleName *string      `db:"requested_role_name" json:"requested_role"`
	ActionByName      *string      `db:"action_by_name" json:"action_by"`
	User              *UserSummary `db:"-" json:"user,omitempty"`
}

// TaskDecision carries the columns written when a reviewer decides a task.
type TaskDecision struct {
	TaskID     string
	Status     TaskStatus
	ReviewerID string
	Comment    *string
	ActionAt   time.Time
}
