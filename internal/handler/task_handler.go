package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/role-approval-api/internal/dto"
	"github.com/noah-isme/role-approval-api/internal/models"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/response"
)

type taskService interface {
	SubmitUpgradeRequest(ctx context.Context, userID, roleName string, evidence []models.EvidenceFile) (*models.Task, error)
	Resubmit(ctx context.Context, userID, roleName string, evidence []models.EvidenceFile) (*models.Task, error)
	GetMyStatus(ctx context.Context, userID string) (*models.TaskDetail, error)
	GetDecisionStatus(ctx context.Context, userID string) (*models.TaskStatus, error)
	ListPending(ctx context.Context) ([]models.TaskDetail, error)
	Decide(ctx context.Context, userID string, outcome models.TaskStatus, reviewerID string, comment *string) (*models.Task, error)
}

// TaskHandler exposes the role upgrade workflow.
type TaskHandler struct {
	service  taskService
	evidence evidenceStore
}

// NewTaskHandler constructs a TaskHandler.
func NewTaskHandler(service taskService, evidence evidenceStore) *TaskHandler {
	return &TaskHandler{service: service, evidence: evidence}
}

// Submit godoc
// @Summary Request a role upgrade
// @Tags Tasks
// @Accept multipart/form-data
// @Produce json
// @Param role formData string true "Requested role"
// @Param documents formData file false "Supporting documents"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	h.withUpgradeForm(c, func(ctx context.Context, userID, role string, files []models.EvidenceFile) error {
		task, err := h.service.SubmitUpgradeRequest(ctx, userID, role, files)
		if err != nil {
			return err
		}
		response.Created(c, dto.SubmitTaskResponse{
			TaskID:  task.ID,
			Message: "Your upgrade request has been submitted for review.",
		})
		return nil
	})
}

// Resubmit godoc
// @Summary Resubmit after a rejection
// @Description Removes every rejected application of the caller and opens a new pending one.
// @Tags Tasks
// @Accept multipart/form-data
// @Produce json
// @Param role formData string true "Requested role"
// @Param documents formData file false "Supporting documents"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tasks/resubmit [post]
func (h *TaskHandler) Resubmit(c *gin.Context) {
	h.withUpgradeForm(c, func(ctx context.Context, userID, role string, files []models.EvidenceFile) error {
		task, err := h.service.Resubmit(ctx, userID, role, files)
		if err != nil {
			return err
		}
		response.Created(c, dto.TaskActionResponse{
			Message: "Application resubmitted successfully!",
			Task:    task,
		})
		return nil
	})
}

func (h *TaskHandler) withUpgradeForm(c *gin.Context, run func(ctx context.Context, userID, role string, files []models.EvidenceFile) error) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "task service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var form dto.UpgradeRequestForm
	if err := c.ShouldBind(&form); err != nil || strings.TrimSpace(form.Role) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "role is required"))
		return
	}
	files, err := storeEvidence(c, h.evidence)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := run(c.Request.Context(), claims.UserID, strings.TrimSpace(form.Role), files); err != nil {
		discardEvidence(h.evidence, files)
		response.Error(c, err)
	}
}

// MyStatus godoc
// @Summary Latest application of the caller
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/my-status [get]
func (h *TaskHandler) MyStatus(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "task service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	task, err := h.service.GetMyStatus(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if task == nil {
		response.JSON(c, http.StatusOK, nil)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// DecisionStatus godoc
// @Summary Status of the caller's latest application
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/my-status/decision [get]
func (h *TaskHandler) DecisionStatus(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "task service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	status, err := h.service.GetDecisionStatus(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DecisionStatusResponse{Status: status})
}

// ListPending godoc
// @Summary Pending applications awaiting review
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/pending [get]
func (h *TaskHandler) ListPending(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "task service not configured"))
		return
	}
	tasks, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, map[string]interface{}{"total": len(tasks)})
}

// Approve godoc
// @Summary Approve the pending application of a user
// @Tags Tasks
// @Accept json
// @Produce json
// @Param userId path string true "Applicant ID"
// @Param payload body dto.DecisionRequest false "Reviewer comment"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{userId}/approve [post]
func (h *TaskHandler) Approve(c *gin.Context) {
	h.decide(c, models.TaskStatusApproved, "User ID %s approved. Role permission granted.")
}

// Reject godoc
// @Summary Reject the pending application of a user
// @Tags Tasks
// @Accept json
// @Produce json
// @Param userId path string true "Applicant ID"
// @Param payload body dto.DecisionRequest false "Reviewer comment"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{userId}/reject [post]
func (h *TaskHandler) Reject(c *gin.Context) {
	h.decide(c, models.TaskStatusRejected, "User ID %s rejected. Role permission denied.")
}

func (h *TaskHandler) decide(c *gin.Context, outcome models.TaskStatus, message string) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "task service not configured"))
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	raw := strings.TrimSpace(c.Param("userId"))
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "userId is required"))
		return
	}
	// Canonical form so the subject lock key matches the one taken from token claims.
	parsed, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("No pending approval task found for user %s.", raw)))
		return
	}
	userID := parsed.String()
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	task, err := h.service.Decide(c.Request.Context(), userID, outcome, claims.UserID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TaskActionResponse{
		Message: fmt.Sprintf(message, userID),
		Task:    task,
	})
}
