package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/internal/repository"
	appErrors "github.com/noah-isme/role-approval-api/pkg/errors"
	"github.com/noah-isme/role-approval-api/pkg/keylock"
)

type taskStore interface {
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, task *models.Task) error
	FindLatestByUser(ctx context.Context, userID string, taskType models.TaskType) (*models.Task, error)
	FindByUserAndStatus(ctx context.Context, userID string, taskType models.TaskType, status models.TaskStatus) (*models.Task, error)
	ListByUserAndStatus(ctx context.Context, userID string, taskType models.TaskType, status models.TaskStatus) ([]models.Task, error)
	ListDetailsByStatus(ctx context.Context, taskType models.TaskType, status models.TaskStatus) ([]models.TaskDetail, error)
	FindLatestDetailByUser(ctx context.Context, userID string, taskType models.TaskType) (*models.TaskDetail, error)
	UpdateDecision(ctx context.Context, decision models.TaskDecision) (*models.Task, error)
	UpdateDecisionWithTx(ctx context.Context, tx *sqlx.Tx, decision models.TaskDecision) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

type taskDocumentStore interface {
	CreateBatchWithTx(ctx context.Context, tx *sqlx.Tx, docs []models.Document) error
	ListByTaskIDs(ctx context.Context, taskIDs []string) ([]models.Document, error)
	DeleteByTask(ctx context.Context, taskID string) (int64, error)
}

type taskUserStore interface {
	FindByID(ctx context.Context, id string) (*models.UserWithRole, error)
	UpdateRoleWithTx(ctx context.Context, tx *sqlx.Tx, userID, roleID string) error
}

type taskRoleResolver interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
}

type evidenceRemover interface {
	Delete(filename string) error
}

type unitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type subjectLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Task workflow messages returned to callers.
const (
	msgPendingExists   = "You already have a pending application. Please wait for a response."
	msgAlreadyVerified = "You are already verified. Role promotion is only available to General Public users."
	msgAlreadyApproved = "Your application has already been approved and cannot be resubmitted."
	msgMissingRoleID   = "Task is incomplete and has no requested role ID."
)

// TaskServiceOption configures the service.
type TaskServiceOption func(*TaskService)

// WithTaskLocker overrides the per-user lock registry.
func WithTaskLocker(locker subjectLocker) TaskServiceOption {
	return func(s *TaskService) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithTaskNotifier sets the side-channel notifier.
func WithTaskNotifier(notifier Notifier) TaskServiceOption {
	return func(s *TaskService) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithTaskMetrics attaches Prometheus instrumentation.
func WithTaskMetrics(metrics *MetricsService) TaskServiceOption {
	return func(s *TaskService) {
		s.metrics = metrics
	}
}

// WithTaskClock overrides the time source used for decision timestamps.
func WithTaskClock(now func() time.Time) TaskServiceOption {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

// TaskService owns the role-upgrade task lifecycle.
type TaskService struct {
	tasks     taskStore
	documents taskDocumentStore
	users     taskUserStore
	roles     taskRoleResolver
	files     evidenceRemover
	uow       unitOfWork
	locker    subjectLocker
	notifier  Notifier
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewTaskService constructs the service with defaults.
func NewTaskService(tasks taskStore, documents taskDocumentStore, users taskUserStore, roles taskRoleResolver, files evidenceRemover, uow unitOfWork, logger *zap.Logger, opts ...TaskServiceOption) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &TaskService{
		tasks:     tasks,
		documents: documents,
		users:     users,
		roles:     roles,
		files:     files,
		uow:       uow,
		locker:    keylock.New(),
		notifier:  NopNotifier{},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CheckEvidencePolicy validates the requested role and the amount of supplied evidence.
func CheckEvidencePolicy(role *models.Role, evidenceCount int) error {
	if role == nil {
		return appErrors.Clone(appErrors.ErrValidation, "requested role is required")
	}
	if role.IsBaseline() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Role '%s' does not require approval.", role.Name))
	}
	if role.RequiresEvidence() && evidenceCount == 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Supporting documents are required for role '%s'.", role.Name))
	}
	return nil
}

// CreatePendingRequest opens a pending task with its documents in one transaction.
// Callers are responsible for checking that no other pending task exists.
func (s *TaskService) CreatePendingRequest(ctx context.Context, userID string, role *models.Role, evidence []models.EvidenceFile) (*models.Task, error) {
	if err := CheckEvidencePolicy(role, len(evidence)); err != nil {
		return nil, err
	}
	roleID := role.ID
	task := &models.Task{
		UserID:          userID,
		Type:            models.TaskTypeRoleUpgrade,
		Status:          models.TaskStatusPending,
		State:           models.TaskStateOpen,
		RequestedRoleID: &roleID,
		CreatedAt:       s.now(),
	}
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.tasks.CreateWithTx(ctx, tx, task); err != nil {
			return err
		}
		if len(evidence) == 0 {
			return nil
		}
		docs := make([]models.Document, 0, len(evidence))
		for _, file := range evidence {
			docs = append(docs, models.Document{
				TaskID:    task.ID,
				Filename:  file.OriginalFilename,
				Path:      file.StoredPath,
				MimeType:  file.MimeType,
				SizeBytes: file.SizeBytes,
				CreatedAt: task.CreatedAt,
			})
		}
		if err := s.documents.CreateBatchWithTx(ctx, tx, docs); err != nil {
			return err
		}
		task.Documents = docs
		return nil
	})
	if errors.Is(err, repository.ErrPendingTaskExists) {
		return nil, appErrors.Clone(appErrors.ErrConflict, msgPendingExists)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create approval task")
	}

	s.logger.Info("approval task created",
		zap.String("user_id", userID),
		zap.String("task_id", task.ID),
		zap.String("role", role.Name),
		zap.Int("documents", len(evidence)),
	)
	s.notifier.Notify(ctx, models.Notification{
		Event:      models.NotificationTaskSubmitted,
		UserID:     userID,
		TaskID:     task.ID,
		Status:     task.Status,
		OccurredAt: task.CreatedAt,
	})
	return task, nil
}

// GetDecisionStatus returns the status of the newest task of the user, or nil when none exists.
func (s *TaskService) GetDecisionStatus(ctx context.Context, userID string) (*models.TaskStatus, error) {
	task, err := s.tasks.FindLatestByUser(ctx, userID, models.TaskTypeRoleUpgrade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load task status")
	}
	status := task.Status
	return &status, nil
}

// GetMyStatus returns the newest task of the user with its documents, or nil when none exists.
func (s *TaskService) GetMyStatus(ctx context.Context, userID string) (*models.TaskDetail, error) {
	detail, err := s.tasks.FindLatestDetailByUser(ctx, userID, models.TaskTypeRoleUpgrade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	details := []models.TaskDetail{*detail}
	if err := s.attachDocuments(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListPending returns every pending role-upgrade task, oldest first.
func (s *TaskService) ListPending(ctx context.Context) ([]models.TaskDetail, error) {
	details, err := s.tasks.ListDetailsByStatus(ctx, models.TaskTypeRoleUpgrade, models.TaskStatusPending)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending tasks")
	}
	if details == nil {
		details = []models.TaskDetail{}
	}
	for i := range details {
		details[i].User = &models.UserSummary{
			ID:    details[i].UserID,
			Name:  details[i].UserName,
			Email: details[i].UserEmail,
		}
	}
	if err := s.attachDocuments(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

// SubmitUpgradeRequest opens a new request for a user who has none in flight.
func (s *TaskService) SubmitUpgradeRequest(ctx context.Context, userID, roleName string, evidence []models.EvidenceFile) (*models.Task, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if user.RoleTier != models.RoleTierBaseline {
		return nil, appErrors.Clone(appErrors.ErrConflict, msgAlreadyVerified)
	}
	if err := s.ensureNoStatus(ctx, userID, models.TaskStatusPending, appErrors.Clone(appErrors.ErrConflict, msgPendingExists)); err != nil {
		return nil, err
	}
	if err := s.ensureNoStatus(ctx, userID, models.TaskStatusApproved, appErrors.Clone(appErrors.ErrConflict, msgAlreadyVerified)); err != nil {
		return nil, err
	}
	role, err := s.resolveRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	return s.CreatePendingRequest(ctx, userID, role, evidence)
}

// Decide applies a reviewer outcome to the pending task of userID.
// Concurrent calls for the same user are serialized; all but the first observe NotFound.
func (s *TaskService) Decide(ctx context.Context, userID string, outcome models.TaskStatus, reviewerID string, comment *string) (*models.Task, error) {
	if !outcome.IsDecision() {
		s.metrics.RecordDecision(string(outcome), MetricResultInvalid)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported decision %q", outcome))
	}
	release, err := s.lock(ctx, userID)
	if err != nil {
		s.metrics.RecordDecision(string(outcome), MetricResultError)
		return nil, err
	}
	defer release()

	task, err := s.decideLocked(ctx, userID, outcome, reviewerID, comment)
	if err != nil {
		s.metrics.RecordDecision(string(outcome), decisionResult(err))
		return nil, err
	}
	s.metrics.RecordDecision(string(outcome), MetricResultSuccess)

	s.logger.Info("approval task decided",
		zap.String("user_id", userID),
		zap.String("task_id", task.ID),
		zap.String("reviewer_id", reviewerID),
		zap.String("status", string(task.Status)),
	)
	s.notifier.Notify(ctx, models.Notification{
		Event:      models.NotificationTaskDecided,
		UserID:     userID,
		TaskID:     task.ID,
		Status:     task.Status,
		Comment:    task.Comment,
		OccurredAt: s.now(),
	})
	return task, nil
}

func (s *TaskService) decideLocked(ctx context.Context, userID string, outcome models.TaskStatus, reviewerID string, comment *string) (*models.Task, error) {
	notPending := appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("No pending approval task found for user %s.", userID))

	task, err := s.tasks.FindByUserAndStatus(ctx, userID, models.TaskTypeRoleUpgrade, models.TaskStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notPending
		}
		return nil, appErrors.Internal(err, "failed to load pending task")
	}

	decision := models.TaskDecision{
		TaskID:     task.ID,
		Status:     outcome,
		ReviewerID: reviewerID,
		Comment:    comment,
		ActionAt:   s.now(),
	}

	if outcome == models.TaskStatusRejected {
		updated, err := s.tasks.UpdateDecision(ctx, decision)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notPending
			}
			return nil, appErrors.Internal(err, "failed to reject task")
		}
		return updated, nil
	}

	if task.RequestedRoleID == nil || *task.RequestedRoleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgMissingRoleID)
	}
	var updated *models.Task
	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		updated, txErr = s.tasks.UpdateDecisionWithTx(ctx, tx, decision)
		if txErr != nil {
			return txErr
		}
		return s.users.UpdateRoleWithTx(ctx, tx, userID, *task.RequestedRoleID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) && updated == nil {
			return nil, notPending
		}
		return nil, appErrors.Internal(err, "failed to approve task")
	}
	return updated, nil
}

// Resubmit purges rejected history and opens a fresh pending request.
func (s *TaskService) Resubmit(ctx context.Context, userID, roleName string, evidence []models.EvidenceFile) (*models.Task, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ensureNoStatus(ctx, userID, models.TaskStatusApproved, appErrors.Clone(appErrors.ErrForbidden, msgAlreadyApproved)); err != nil {
		return nil, err
	}
	if err := s.ensureNoStatus(ctx, userID, models.TaskStatusPending, appErrors.Clone(appErrors.ErrConflict, msgPendingExists)); err != nil {
		return nil, err
	}
	if err := s.cleanupRejected(ctx, userID); err != nil {
		return nil, err
	}
	role, err := s.resolveRole(ctx, roleName)
	if err != nil {
		return nil, err
	}
	return s.CreatePendingRequest(ctx, userID, role, evidence)
}

// cleanupRejected deletes files, then document rows, then the task row of every rejected task.
// File removal is best-effort; row removal failures abort the resubmission.
func (s *TaskService) cleanupRejected(ctx context.Context, userID string) error {
	rejected, err := s.tasks.ListByUserAndStatus(ctx, userID, models.TaskTypeRoleUpgrade, models.TaskStatusRejected)
	if err != nil {
		return appErrors.Internal(err, "failed to list rejected tasks")
	}
	if len(rejected) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rejected))
	for _, task := range rejected {
		ids = append(ids, task.ID)
	}
	docs, err := s.documents.ListByTaskIDs(ctx, ids)
	if err != nil {
		return appErrors.Internal(err, "failed to list rejected task documents")
	}
	byTask := make(map[string][]models.Document, len(rejected))
	for _, doc := range docs {
		byTask[doc.TaskID] = append(byTask[doc.TaskID], doc)
	}

	for _, task := range rejected {
		for _, doc := range byTask[task.ID] {
			s.removeEvidence(task.ID, doc)
		}
		if _, err := s.documents.DeleteByTask(ctx, task.ID); err != nil {
			return appErrors.Internal(err, "failed to delete rejected task documents")
		}
		if err := s.tasks.Delete(ctx, task.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to delete rejected task")
		}
		s.logger.Info("rejected task purged",
			zap.String("user_id", userID),
			zap.String("task_id", task.ID),
			zap.Int("documents", len(byTask[task.ID])),
		)
	}
	return nil
}

func (s *TaskService) removeEvidence(taskID string, doc models.Document) {
	if s.files == nil {
		return
	}
	err := s.files.Delete(doc.Path)
	switch {
	case err == nil:
		s.metrics.RecordCleanupFile(CleanupFileDeleted)
	case errors.Is(err, fs.ErrNotExist):
		s.metrics.RecordCleanupFile(CleanupFileMissing)
		s.logger.Warn("evidence file already missing",
			zap.String("task_id", taskID),
			zap.String("document_id", doc.ID),
			zap.String("path", doc.Path),
		)
	default:
		s.metrics.RecordCleanupFile(CleanupFileFailed)
		s.logger.Error("failed to delete evidence file",
			zap.String("task_id", taskID),
			zap.String("document_id", doc.ID),
			zap.String("path", doc.Path),
			zap.Error(err),
		)
	}
}

func (s *TaskService) lock(ctx context.Context, userID string) (func(), error) {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, userID)
	s.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to acquire task lock")
	}
	return release, nil
}

func (s *TaskService) ensureNoStatus(ctx context.Context, userID string, status models.TaskStatus, conflict *appErrors.Error) error {
	_, err := s.tasks.FindByUserAndStatus(ctx, userID, models.TaskTypeRoleUpgrade, status)
	switch {
	case err == nil:
		return conflict
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Internal(err, "failed to check existing tasks")
	}
}

func (s *TaskService) resolveRole(ctx context.Context, roleName string) (*models.Role, error) {
	role, err := s.roles.FindByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Role '%s' does not exist.", roleName))
		}
		return nil, appErrors.Internal(err, "failed to resolve role")
	}
	return role, nil
}

func (s *TaskService) attachDocuments(ctx context.Context, details []models.TaskDetail) error {
	if len(details) == 0 {
		return nil
	}
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
	}
	docs, err := s.documents.ListByTaskIDs(ctx, ids)
	if err != nil {
		return appErrors.Internal(err, "failed to load task documents")
	}
	byTask := make(map[string][]models.Document, len(details))
	for _, doc := range docs {
		byTask[doc.TaskID] = append(byTask[doc.TaskID], doc)
	}
	for i := range details {
		details[i].Documents = byTask[details[i].ID]
	}
	return nil
}

func decisionResult(err error) string {
	switch {
	case appErrors.HasCode(err, appErrors.ErrNotFound):
		return MetricResultNotFound
	case appErrors.HasCode(err, appErrors.ErrValidation):
		return MetricResultInvalid
	default:
		return MetricResultError
	}
}
