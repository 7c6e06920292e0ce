// Package resolution tracks human remediation work for stored errors.
package resolution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// ErrorStore is the external error record collaborator
type ErrorStore interface {
	FindByErrorID(ctx context.Context, errorID string) (*model.ErrorRecord, error)
	MarkResolved(ctx context.Context, errorID string, res model.ErrorResolution) error
}

// AlertNotifier sends one alert to one channel
type AlertNotifier interface {
	Notify(ctx context.Context, alert *model.Alert, channelID string) (model.DeliveryResult, error)
}

// TaskMetrics observes task creation
type TaskMetrics interface {
	IncTaskCreated(priority string)
}

// AlertTypeTaskAssigned is the alert type used to notify assignees
const AlertTypeTaskAssigned = "task-assigned"

// CreateTaskRequest holds the caller supplied fields of a new task
type CreateTaskRequest struct {
	Title          string
	Description    string
	Priority       model.TaskPriority
	AssignedTo     string
	CreatedBy      string
	Tags           []string
	RelatedErrors  []string
	EstimatedHours float64
}

// StatusUpdate describes a status transition
type StatusUpdate struct {
	Status         model.TaskStatus
	Actor          string
	Resolution     string
	ResolutionType model.ResolutionType
	ActualHours    float64
}

// Option customizes a Service
type Option func(*Service)

// WithAssigneeNotifier notifies auto-assigned owners through channelID
func WithAssigneeNotifier(n AlertNotifier, channelID string) Option {
	return func(s *Service) {
		s.notifier = n
		s.notifyChannel = channelID
	}
}

// WithTaskMetrics sets the task metrics recorder
func WithTaskMetrics(m TaskMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAssignmentRules replaces the default assignment rules
func WithAssignmentRules(rules ...*model.TaskAssignmentRule) Option {
	return func(s *Service) { s.assignment = NewAssignmentEngine(rules...) }
}

// Service owns resolution tasks. All task mutations are serialized by one lock.
type Service struct {
	logger        *zap.Logger
	errors        ErrorStore
	notifier      AlertNotifier
	notifyChannel string
	metrics       TaskMetrics
	now           func() time.Time
	assignment    *AssignmentEngine

	mu    sync.RWMutex
	tasks map[string]*model.ResolutionTask
}

// NewService creates a new task service
func NewService(errors ErrorStore, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		logger:     logger.Named("resolution"),
		errors:     errors,
		now:        time.Now,
		assignment: NewAssignmentEngine(DefaultAssignmentRules()...),
		tasks:      make(map[string]*model.ResolutionTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask opens a task for a stored error
func (s *Service) CreateTask(ctx context.Context, errorID string, req CreateTaskRequest) (*model.ResolutionTask, error) {
	if strings.TrimSpace(errorID) == "" {
		return nil, apperrors.Validation("error id is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.Validation("task title is required")
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return nil, apperrors.Validation("task creator is required")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, apperrors.Validation("unknown task priority %q", req.Priority)
	}

	rec, err := s.errors.FindByErrorID(ctx, errorID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up error %s: %w", errorID, err)
	}
	if rec == nil {
		return nil, apperrors.NotFound("error", errorID)
	}

	now := s.now()
	priority := req.Priority
	if priority == "" {
		priority = defaultPriority(rec.Level)
	}

	task := &model.ResolutionTask{
		ID:             uuid.New().String(),
		ErrorID:        errorID,
		TraceID:        rec.TraceID,
		Title:          req.Title,
		Description:    req.Description,
		Tags:           append([]string(nil), req.Tags...),
		RelatedErrors:  append([]string(nil), req.RelatedErrors...),
		Status:         model.TaskStatusOpen,
		Priority:       priority,
		CreatedBy:      req.CreatedBy,
		EstimatedHours: req.EstimatedHours,
		Metadata: model.TaskMetadata{
			Component:      rec.Component,
			ErrorType:      rec.ErrorType,
			Severity:       rec.Level,
			Environment:    rec.Environment,
			Reproducible:   rec.Reproducible,
			BusinessImpact: businessImpact(priority, rec.Component),
		},
		Comments:    []*model.TaskComment{},
		Attachments: []*model.TaskAttachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	task.Comments = append(task.Comments, s.comment(req.CreatedBy,
		fmt.Sprintf("Task created for error %s", errorID), model.CommentTypeComment))

	var autoRule *model.TaskAssignmentRule
	if req.AssignedTo != "" {
		task.AssignedTo = req.AssignedTo
		task.AssignedBy = req.CreatedBy
		task.AssignedAt = &now
	} else if rule := s.assignment.Resolve(rec, priority, req.Tags); rule != nil {
		autoRule = rule
		task.AssignedTo = rule.AssignTo
		task.AssignedBy = model.SystemActor
		task.AssignedAt = &now
		task.Comments = append(task.Comments, s.comment(model.SystemActor,
			fmt.Sprintf("Automatically assigned to %s by rule %q", rule.AssignTo, rule.Name),
			model.CommentTypeAssignment))
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("error_id", errorID),
		zap.String("priority", string(priority)),
		zap.String("assigned_to", task.AssignedTo))

	if s.metrics != nil {
		s.metrics.IncTaskCreated(string(priority))
	}
	if autoRule != nil && autoRule.NotifyAssignee {
		s.notifyAssignee(ctx, snapshot)
	}

	return snapshot, nil
}

// GetTask returns a copy of the task
func (s *Service) GetTask(id string) (*model.ResolutionTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return task.Clone(), true
}

// UpdateStatus moves a task to a new status. Entering RESOLVED or CLOSED stamps the
// resolution; a FIXED resolution is written back to the error store on a best-effort basis.
func (s *Service) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*model.ResolutionTask, error) {
	if !upd.Status.Valid() {
		return nil, apperrors.Validation("unknown task status %q", upd.Status)
	}
	if strings.TrimSpace(upd.Actor) == "" {
		return nil, apperrors.Validation("actor is required")
	}

	now := s.now()

	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.NotFound("task", id)
	}

	prev := task.Status
	task.Status = upd.Status
	task.UpdatedAt = now

	switch {
	case upd.Status.Terminal():
		task.ResolvedAt = &now
		task.ResolvedBy = upd.Actor
		task.Resolution = upd.Resolution
		task.ResolutionType = upd.ResolutionType
		if upd.ActualHours > 0 {
			task.ActualHours = upd.ActualHours
		}
	case prev.Terminal() && upd.Status != model.TaskStatusCancelled:
		// reopened
		task.ResolvedAt = nil
		task.ResolvedBy = ""
		task.Resolution = ""
		task.ResolutionType = ""
	}

	content := fmt.Sprintf("Status changed from %s to %s", prev, upd.Status)
	if upd.Resolution != "" {
		content += ": " + upd.Resolution
	}
	task.Comments = append(task.Comments, s.comment(upd.Actor, content, model.CommentTypeStatusChange))

	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Info("Task status updated",
		zap.String("task_id", id),
		zap.String("from", string(prev)),
		zap.String("to", string(upd.Status)),
		zap.String("actor", upd.Actor))

	if upd.Status.Terminal() && upd.ResolutionType == model.ResolutionFixed {
		apperrors.BestEffort(s.logger, "mark error resolved", func() error {
			return s.errors.MarkResolved(ctx, snapshot.ErrorID, model.ErrorResolution{
				ResolvedAt: now,
				ResolvedBy: upd.Actor,
				Resolution: upd.Resolution,
			})
		})
	}

	return snapshot, nil
}

// Assign sets the task owner
func (s *Service) Assign(ctx context.Context, id, assignee, actor string) (*model.ResolutionTask, error) {
	if strings.TrimSpace(assignee) == "" {
		return nil, apperrors.Validation("assignee is required")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, apperrors.Validation("actor is required")
	}

	now := s.now()

	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, apperrors.NotFound("task", id)
	}

	prev := task.AssignedTo
	task.AssignedTo = assignee
	task.AssignedBy = actor
	task.AssignedAt = &now
	task.UpdatedAt = now

	content := fmt.Sprintf("Task assigned to %s", assignee)
	if prev != "" {
		content = fmt.Sprintf("Task reassigned from %s to %s", prev, assignee)
	}
	task.Comments = append(task.Comments, s.comment(actor, content, model.CommentTypeAssignment))

	snapshot := task.Clone()
	s.mu.Unlock()

	s.logger.Info("Task assigned",
		zap.String("task_id", id),
		zap.String("previous", prev),
		zap.String("assigned_to", assignee),
		zap.String("actor", actor))

	return snapshot, nil
}

// AddComment appends a comment. An empty type means COMMENT.
func (s *Service) AddComment(ctx context.Context, id, author, content string, typ model.CommentType) (*model.TaskComment, error) {
	if strings.TrimSpace(author) == "" {
		return nil, apperrors.Validation("comment author is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.Validation("comment content is required")
	}
	if typ == "" {
		typ = model.CommentTypeComment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.NotFound("task", id)
	}

	c := s.comment(author, content, typ)
	task.Comments = append(task.Comments, c)
	task.UpdatedAt = c.CreatedAt

	out := *c
	return &out, nil
}

// AddAttachment records a file attached to the task
func (s *Service) AddAttachment(ctx context.Context, id string, att model.TaskAttachment) (*model.TaskAttachment, error) {
	if strings.TrimSpace(att.Filename) == "" {
		return nil, apperrors.Validation("attachment filename is required")
	}
	if strings.TrimSpace(att.UploadedBy) == "" {
		return nil, apperrors.Validation("attachment uploader is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.NotFound("task", id)
	}

	att.ID = uuid.New().String()
	att.UploadedAt = s.now()
	stored := att
	task.Attachments = append(task.Attachments, &stored)
	task.UpdatedAt = att.UploadedAt

	return &att, nil
}

// SetAssignmentRule validates and upserts an assignment rule
func (s *Service) SetAssignmentRule(rule *model.TaskAssignmentRule) error {
	if err := s.assignment.Set(rule); err != nil {
		return err
	}
	s.logger.Info("Assignment rule configured",
		zap.String("rule_id", rule.ID),
		zap.Int("order", rule.Order),
		zap.String("assign_to", rule.AssignTo))
	return nil
}

// RemoveAssignmentRule deletes an assignment rule and reports whether it existed
func (s *Service) RemoveAssignmentRule(id string) bool {
	return s.assignment.Remove(id)
}

// ListAssignmentRules returns the assignment rules sorted by order
func (s *Service) ListAssignmentRules() []*model.TaskAssignmentRule {
	return s.assignment.List()
}

func (s *Service) comment(author, content string, typ model.CommentType) *model.TaskComment {
	return &model.TaskComment{
		ID:        uuid.New().String(),
		Author:    author,
		Content:   content,
		Type:      typ,
		CreatedAt: s.now(),
	}
}

func (s *Service) notifyAssignee(ctx context.Context, task *model.ResolutionTask) {
	if s.notifier == nil || s.notifyChannel == "" {
		return
	}

	alert := &model.Alert{
		Type:        AlertTypeTaskAssigned,
		Severity:    model.AlertSeverity(task.Priority),
		Title:       fmt.Sprintf("Task assigned to %s: %s", task.AssignedTo, task.Title),
		Description: fmt.Sprintf("Resolution task %s for error %s was assigned automatically.", task.ID, task.ErrorID),
		Components:  []string{task.Metadata.Component},
	}

	apperrors.BestEffort(s.logger, "notify assignee", func() error {
		result, err := s.notifier.Notify(ctx, alert, s.notifyChannel)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("notification to %s failed: %s", s.notifyChannel, result.Error)
		}
		return nil
	})
}

// defaultPriority maps an error level to a task priority
func defaultPriority(level string) model.TaskPriority {
	if strings.EqualFold(level, "ERROR") {
		return model.TaskPriorityHigh
	}
	return model.TaskPriorityMedium
}

// businessImpact rates a task by priority, raised for trading paths
func businessImpact(priority model.TaskPriority, component string) model.TaskPriority {
	if priority == model.TaskPriorityCritical || priority == model.TaskPriorityHigh {
		return priority
	}

	c := strings.ToLower(component)
	switch {
	case strings.Contains(c, "broker"), strings.Contains(c, "trading"), strings.Contains(c, "order"):
		return model.TaskPriorityHigh
	case strings.Contains(c, "auth"):
		return model.TaskPriorityMedium
	}
	return priority
}
