package dto

import "github.com/noah-isme/role-approval-api/internal/models"

// UpgradeRequestForm carries the requested role of a submission or resubmission.
type UpgradeRequestForm struct {
	Role string `form:"role" json:"role" validate:"required"`
}

// DecisionRequest is the reviewer payload for approve and reject.
type DecisionRequest struct {
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// SubmitTaskResponse acknowledges a new upgrade request.
type SubmitTaskResponse struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

// TaskActionResponse wraps a task touched by a decision or resubmission.
type TaskActionResponse struct {
	Message string       `json:"message"`
	Task    *models.Task `json:"task"`
}

// DecisionStatusResponse reports the newest task status, null when absent.
type DecisionStatusResponse struct {
	Status *models.TaskStatus `json:"status"`
}

// DocumentURLResponse returns a signed download link.
type DocumentURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

// UpdateSettingRequest updates a single runtime setting.
type UpdateSettingRequest struct {
	Value string `json:"value" validate:"required"`
}
