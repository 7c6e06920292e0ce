package resolution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

type fakeErrorStore struct {
	mu       sync.Mutex
	records  map[string]*model.ErrorRecord
	resolved []string
	failMark bool
}

func newFakeErrorStore(recs ...*model.ErrorRecord) *fakeErrorStore {
	s := &fakeErrorStore{records: make(map[string]*model.ErrorRecord)}
	for _, r := range recs {
		s.records[r.ErrorID] = r
	}
	return s
}

func (s *fakeErrorStore) FindByErrorID(_ context.Context, id string) (*model.ErrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (s *fakeErrorStore) MarkResolved(_ context.Context, id string, _ model.ErrorResolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, id)
	if s.failMark {
		return errors.New("error store unavailable")
	}
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (n *fakeNotifier) Notify(_ context.Context, alert *model.Alert, channelID string) (model.DeliveryResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return model.DeliveryResult{ChannelID: channelID, Success: true}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func brokerError() *model.ErrorRecord {
	return &model.ErrorRecord{
		ErrorID:     "err-1",
		Component:   "BROKER_CONTROLLER",
		ErrorType:   "TIMEOUT",
		Level:       "ERROR",
		Message:     "broker timeout",
		TraceID:     "trace-1",
		Environment: "production",
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeErrorStore, *clock) {
	t.Helper()

	store := newFakeErrorStore(
		brokerError(),
		&model.ErrorRecord{ErrorID: "err-auth", Component: "AUTH_SERVICE", Level: "WARN"},
		&model.ErrorRecord{ErrorID: "err-ui", Component: "DASHBOARD", Level: "INFO"},
		&model.ErrorRecord{ErrorID: "err-order", Component: "ORDER_SERVICE", Level: "WARN"},
	)
	c := &clock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(c.Now)}, opts...)
	return NewService(store, zaptest.NewLogger(t), opts...), store, c
}

func TestService_CreateTask_BrokerScenario(t *testing.T) {
	svc, _, _ := newTestService(t)

	task, err := svc.CreateTask(context.Background(), "err-1", CreateTaskRequest{
		Title:       "T",
		Description: "D",
		CreatedBy:   "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.TaskPriorityHigh, task.Priority)
	assert.Equal(t, model.TaskStatusOpen, task.Status)
	assert.Equal(t, "senior-dev-team", task.AssignedTo)
	assert.Equal(t, model.SystemActor, task.AssignedBy)
	require.NotNil(t, task.AssignedAt)
	assert.Equal(t, "trace-1", task.TraceID)

	assert.Equal(t, "BROKER_CONTROLLER", task.Metadata.Component)
	assert.Equal(t, "ERROR", task.Metadata.Severity)
	assert.Equal(t, model.TaskPriorityHigh, task.Metadata.BusinessImpact)

	require.Len(t, task.Comments, 2)
	assert.Equal(t, model.CommentTypeComment, task.Comments[0].Type)
	assert.Equal(t, model.CommentTypeAssignment, task.Comments[1].Type)
}

func TestService_CreateTask_Defaults(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Test case 1: non-ERROR level defaults to MEDIUM, auth component rule
	task, err := svc.CreateTask(ctx, "err-auth", CreateTaskRequest{Title: "login", CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPriorityMedium, task.Priority)
	assert.Equal(t, "security-team", task.AssignedTo)
	assert.Equal(t, model.TaskPriorityMedium, task.Metadata.BusinessImpact)

	// Test case 2: explicit priority wins, trading path raises impact
	task, err = svc.CreateTask(ctx, "err-order", CreateTaskRequest{
		Title: "order", CreatedBy: "u1", Priority: model.TaskPriorityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPriorityLow, task.Priority)
	assert.Equal(t, model.TaskPriorityHigh, task.Metadata.BusinessImpact)
	assert.Equal(t, "trading-team", task.AssignedTo)

	// Test case 3: no rule matches, impact mirrors priority
	task, err = svc.CreateTask(ctx, "err-ui", CreateTaskRequest{Title: "ui", CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Empty(t, task.AssignedTo)
	assert.Nil(t, task.AssignedAt)
	assert.Equal(t, model.TaskPriorityMedium, task.Metadata.BusinessImpact)
	assert.Len(t, task.Comments, 1)

	// Test case 4: manual assignee skips the rules
	task, err = svc.CreateTask(ctx, "err-1", CreateTaskRequest{Title: "m", CreatedBy: "u1", AssignedTo: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", task.AssignedTo)
	assert.Equal(t, "u1", task.AssignedBy)
	assert.Len(t, task.Comments, 1)
}

func TestService_CreateTask_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, "missing", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.CreateTask(ctx, "err-1", CreateTaskRequest{CreatedBy: "u1"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateTask(ctx, "err-1", CreateTaskRequest{Title: "T"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateTask(ctx, "err-1", CreateTaskRequest{Title: "T", CreatedBy: "u1", Priority: "URGENT"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	assert.Equal(t, 0, svc.Search(SearchFilter{}).Total)
}

func TestService_CreateTask_NotifiesAssignee(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, _, _ := newTestService(t, WithAssigneeNotifier(notifier, "console"))

	_, err := svc.CreateTask(context.Background(), "err-1", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, AlertTypeTaskAssigned, notifier.alerts[0].Type)
	assert.Equal(t, model.AlertSeverityHigh, notifier.alerts[0].Severity)

	// trading-errors does not notify
	_, err = svc.CreateTask(context.Background(), "err-order", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Len(t, notifier.alerts, 1)
}

func TestService_UpdateStatus(t *testing.T) {
	svc, store, c := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "err-1", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)

	// OPEN -> IN_PROGRESS
	c.Advance(time.Hour)
	task, err = svc.UpdateStatus(ctx, task.ID, StatusUpdate{Status: model.TaskStatusInProgress, Actor: "dev"})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, task.Status)
	assert.Nil(t, task.ResolvedAt)
	assert.Empty(t, store.resolved)

	// IN_PROGRESS -> RESOLVED/FIXED writes back once
	c.Advance(time.Hour)
	task, err = svc.UpdateStatus(ctx, task.ID, StatusUpdate{
		Status:         model.TaskStatusResolved,
		Actor:          "dev",
		Resolution:     "raised timeout",
		ResolutionType: model.ResolutionFixed,
		ActualHours:    1.5,
	})
	require.NoError(t, err)
	require.NotNil(t, task.ResolvedAt)
	assert.Equal(t, "dev", task.ResolvedBy)
	assert.Equal(t, 1.5, task.ActualHours)
	assert.Equal(t, []string{"err-1"}, store.resolved)

	last := task.Comments[len(task.Comments)-1]
	assert.Equal(t, model.CommentTypeStatusChange, last.Type)
	assert.Equal(t, "Status changed from IN_PROGRESS to RESOLVED: raised timeout", last.Content)

	// Reopen clears the resolution
	task, err = svc.UpdateStatus(ctx, task.ID, StatusUpdate{Status: model.TaskStatusOpen, Actor: "qa"})
	require.NoError(t, err)
	assert.Nil(t, task.ResolvedAt)
	assert.Empty(t, task.ResolvedBy)
	assert.Empty(t, task.ResolutionType)
	assert.Len(t, store.resolved, 1)
}

func TestService_UpdateStatus_WriteBackFailureIsSwallowed(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.failMark = true
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "err-1", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)

	task, err = svc.UpdateStatus(ctx, task.ID, StatusUpdate{
		Status: model.TaskStatusClosed, Actor: "dev", ResolutionType: model.ResolutionFixed,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusClosed, task.Status)
	assert.Len(t, store.resolved, 1)
}

func TestService_UpdateStatus_NonFixedDoesNotWriteBack(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "err-1", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, task.ID, StatusUpdate{
		Status: model.TaskStatusResolved, Actor: "dev", ResolutionType: model.ResolutionDuplicate,
	})
	require.NoError(t, err)
	assert.Empty(t, store.resolved)

	_, err = svc.UpdateStatus(ctx, "missing", StatusUpdate{Status: model.TaskStatusOpen, Actor: "dev"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.UpdateStatus(ctx, task.ID, StatusUpdate{Status: "DONE", Actor: "dev"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestService_Assign(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "err-ui", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)

	task, err = svc.Assign(ctx, task.ID, "alice", "lead")
	require.NoError(t, err)
	assert.Equal(t, "alice", task.AssignedTo)
	assert.Equal(t, "lead", task.AssignedBy)
	assert.Equal(t, "Task assigned to alice", task.Comments[len(task.Comments)-1].Content)

	task, err = svc.Assign(ctx, task.ID, "bob", "lead")
	require.NoError(t, err)
	assert.Equal(t, "Task reassigned from alice to bob", task.Comments[len(task.Comments)-1].Content)

	_, err = svc.Assign(ctx, "missing", "bob", "lead")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_CommentsAndAttachments(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "err-ui", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)

	c.Advance(time.Minute)
	comment, err := svc.AddComment(ctx, task.ID, "dev", "looking into it", "")
	require.NoError(t, err)
	assert.Equal(t, model.CommentTypeComment, comment.Type)

	att, err := svc.AddAttachment(ctx, task.ID, model.TaskAttachment{
		Filename: "trace.log", ContentType: "text/plain", Size: 1024, UploadedBy: "dev",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, att.ID)

	got, ok := svc.GetTask(task.ID)
	require.True(t, ok)
	assert.Len(t, got.Comments, 2)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "trace.log", got.Attachments[0].Filename)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	_, err = svc.AddComment(ctx, "missing", "dev", "x", "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.AddAttachment(ctx, "missing", model.TaskAttachment{Filename: "a", UploadedBy: "dev"})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, ok = svc.GetTask("missing")
	assert.False(t, ok)
}

func TestService_ConcurrentCommentsAndStatusUpdates(t *testing.T) {
	// Setup
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	task, err := svc.CreateTask(ctx, "err-ui", CreateTaskRequest{Title: "T", CreatedBy: "u1"})
	require.NoError(t, err)
	require.Len(t, task.Comments, 1)

	const commenters, updates = 20, 10
	var wg sync.WaitGroup
	for i := 0; i < commenters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddComment(ctx, task.ID, "dev", "still investigating", "")
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < updates; i++ {
			_, err := svc.UpdateStatus(ctx, task.ID, StatusUpdate{Status: model.TaskStatusInProgress, Actor: "dev"})
			assert.NoError(t, err)
			svc.GetTask(task.ID)
		}
	}()
	wg.Wait()

	got, ok := svc.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusInProgress, got.Status)
	assert.Len(t, got.Comments, 1+commenters+updates)

	var statusChanges int
	for _, c := range got.Comments {
		if c.Type == model.CommentTypeStatusChange {
			statusChanges++
		}
	}
	assert.Equal(t, updates, statusChanges)
}
