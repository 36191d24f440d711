package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/pkg/jobs"
)

// Notifier is a fire-and-forget side channel. Implementations must not block or fail the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, models.Notification) {}

type notificationQueue interface {
	TryEnqueue(job jobs.Job) error
}

// QueueNotifier hands notifications to the background job queue.
type QueueNotifier struct {
	queue   notificationQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewQueueNotifier constructs a queue-backed notifier.
func NewQueueNotifier(queue notificationQueue, metrics *MetricsService, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: queue, metrics: metrics, logger: logger}
}

// Notify enqueues without blocking. Failures are logged and dropped.
func (n *QueueNotifier) Notify(ctx context.Context, notification models.Notification) {
	if n == nil || n.queue == nil {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(notification.Event),
		Payload: notification,
	}
	if err := n.queue.TryEnqueue(job); err != nil {
		n.metrics.RecordNotification(string(notification.Event), MetricResultError)
		n.logger.Warn("notification dropped",
			zap.String("event", string(notification.Event)),
			zap.String("task_id", notification.TaskID),
			zap.Error(err),
		)
		return
	}
	n.metrics.RecordNotification(string(notification.Event), MetricResultSuccess)
}

type notificationRecipients interface {
	FindByID(ctx context.Context, id string) (*models.UserWithRole, error)
}

// NotificationDispatcherConfig configures the mock e-mail dispatcher.
type NotificationDispatcherConfig struct {
	BaseURL     string
	SenderEmail string
}

// NotificationDispatcher renders queued notifications into mock e-mails.
type NotificationDispatcher struct {
	users  notificationRecipients
	cfg    NotificationDispatcherConfig
	logger *zap.Logger
}

// NewNotificationDispatcher constructs the dispatcher.
func NewNotificationDispatcher(users notificationRecipients, cfg NotificationDispatcherConfig, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SenderEmail == "" {
		cfg.SenderEmail = "no-reply@localhost"
	}
	return &NotificationDispatcher{users: users, cfg: cfg, logger: logger}
}

// Handle implements jobs.Handler.
func (d *NotificationDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	recipient := notification.UserID
	if d.users != nil {
		user, err := d.users.FindByID(ctx, notification.UserID)
		if err != nil {
			return fmt.Errorf("resolve notification recipient: %w", err)
		}
		recipient = user.Email
	}
	subject, err := notificationSubject(notification)
	if err != nil {
		d.logger.Error("cannot render notification", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	d.logger.Info("mock email sent",
		zap.String("from", d.cfg.SenderEmail),
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.String("link", d.DeepLink(notification.TaskID)),
		zap.String("task_id", notification.TaskID),
	)
	return nil
}

// DeepLink points the recipient at their task status page.
func (d *NotificationDispatcher) DeepLink(taskID string) string {
	base := strings.TrimRight(d.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/tasks/my-status?task=%s", base, taskID)
}

var errUnknownNotificationEvent = errors.New("unknown notification event")

func notificationSubject(n models.Notification) (string, error) {
	switch n.Event {
	case models.NotificationTaskSubmitted:
		return "Your role application has been received", nil
	case models.NotificationTaskDecided:
		return fmt.Sprintf("Your role application was %s", n.Status), nil
	default:
		return "", fmt.Errorf("%w: %s", errUnknownNotificationEvent, n.Event)
	}
}
