package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/role-approval-api/internal/models"
	"github.com/noah-isme/role-approval-api/pkg/jobs"
)

type fullQueue struct{}

func (fullQueue) TryEnqueue(job jobs.Job) error { return jobs.ErrQueueFull }

type capturingQueue struct{ jobs []jobs.Job }

func (q *capturingQueue) TryEnqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func TestQueueNotifierEnqueues(t *testing.T) {
	queue := &capturingQueue{}
	notifier := NewQueueNotifier(queue, NewMetricsService(), nil)

	notifier.Notify(context.Background(), models.Notification{Event: models.NotificationTaskSubmitted, UserID: "u1", TaskID: "t1"})

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, string(models.NotificationTaskSubmitted), queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(models.Notification)
	require.True(t, ok)
	assert.Equal(t, "t1", payload.TaskID)
}

func TestQueueNotifierLogsDroppedEvents(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	notifier := NewQueueNotifier(fullQueue{}, nil, zap.New(core))

	notifier.Notify(context.Background(), models.Notification{Event: models.NotificationTaskDecided, TaskID: "t1"})

	require.Equal(t, 1, logs.FilterMessage("notification dropped").Len())
}

type recipientStub struct {
	users map[string]*models.UserWithRole
}

func (r recipientStub) FindByID(ctx context.Context, id string) (*models.UserWithRole, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func TestNotificationDispatcherRendersMockEmail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	users := recipientStub{users: map[string]*models.UserWithRole{
		"u1": {User: models.User{ID: "u1", Email: "u1@example.com"}},
	}}
	dispatcher := NewNotificationDispatcher(users, NotificationDispatcherConfig{BaseURL: "https://app.example.com/"}, zap.New(core))

	err := dispatcher.Handle(context.Background(), jobs.Job{
		ID:   "job-1",
		Type: string(models.NotificationTaskDecided),
		Payload: models.Notification{
			Event:      models.NotificationTaskDecided,
			UserID:     "u1",
			TaskID:     "t1",
			Status:     models.TaskStatusApproved,
			OccurredAt: time.Now(),
		},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("mock email sent").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1@example.com", fields["to"])
	assert.Equal(t, "https://app.example.com/tasks/my-status?task=t1", fields["link"])
	assert.Equal(t, "Your role application was approved", fields["subject"])
}

func TestNotificationDispatcherRetriesUnknownRecipient(t *testing.T) {
	dispatcher := NewNotificationDispatcher(recipientStub{}, NotificationDispatcherConfig{}, nil)
	err := dispatcher.Handle(context.Background(), jobs.Job{Payload: models.Notification{Event: models.NotificationTaskSubmitted, UserID: "ghost"}})
	require.ErrorIs(t, err, sql.ErrNoRows)

	err = dispatcher.Handle(context.Background(), jobs.Job{Payload: "garbage"})
	require.NoError(t, err)
}
