package model

import (
	"time"
)

// TaskStatus represents the workflow state of a resolution task
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "OPEN"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusResolved   TaskStatus = "RESOLVED"
	TaskStatusClosed     TaskStatus = "CLOSED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusResolved, TaskStatusClosed, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status ends the normal workflow
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusResolved || s == TaskStatusClosed
}

// TaskPriority represents the priority level of a task
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "LOW"
	TaskPriorityMedium   TaskPriority = "MEDIUM"
	TaskPriorityHigh     TaskPriority = "HIGH"
	TaskPriorityCritical TaskPriority = "CRITICAL"
)

// Valid reports whether p is a known priority
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical:
		return true
	}
	return false
}

// ResolutionType classifies how a task was resolved
type ResolutionType string

const (
	ResolutionFixed           ResolutionType = "FIXED"
	ResolutionWorkaround      ResolutionType = "WORKAROUND"
	ResolutionDuplicate       ResolutionType = "DUPLICATE"
	ResolutionNotReproducible ResolutionType = "NOT_REPRODUCIBLE"
	ResolutionWontFix         ResolutionType = "WONT_FIX"
)

// CommentType classifies a task comment
type CommentType string

const (
	CommentTypeComment      CommentType = "COMMENT"
	CommentTypeStatusChange CommentType = "STATUS_CHANGE"
	CommentTypeAssignment   CommentType = "ASSIGNMENT"
	CommentTypeResolution   CommentType = "RESOLUTION"
)

// SystemActor is the actor recorded for automatic actions
const SystemActor = "SYSTEM"

// TaskComment is an entry in a task's activity log
type TaskComment struct {
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Content   string      `json:"content"`
	Type      CommentType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// TaskAttachment is a file attached to a task
type TaskAttachment struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// TaskMetadata is the error snapshot taken when the task is created
type TaskMetadata struct {
	Component      string       `json:"component"`
	ErrorType      string       `json:"error_type"`
	Severity       string       `json:"severity"`
	Environment    string       `json:"environment"`
	Reproducible   bool         `json:"reproducible"`
	BusinessImpact TaskPriority `json:"business_impact"`
}

// ResolutionTask is a unit of human remediation work tied to one error
type ResolutionTask struct {
	ID            string   `json:"id"`
	ErrorID       string   `json:"error_id"`
	TraceID       string   `json:"trace_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags,omitempty"`
	RelatedErrors []string `json:"related_errors,omitempty"`

	Status   TaskStatus   `json:"status"`
	Priority TaskPriority `json:"priority"`

	CreatedBy  string     `json:"created_by"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	AssignedBy string     `json:"assigned_by,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`

	Resolution     string         `json:"resolution,omitempty"`
	ResolutionType ResolutionType `json:"resolution_type,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	EstimatedHours float64        `json:"estimated_effort,omitempty"`
	ActualHours    float64        `json:"actual_effort,omitempty"`

	Metadata    TaskMetadata      `json:"metadata"`
	Comments    []*TaskComment    `json:"comments"`
	Attachments []*TaskAttachment `json:"attachments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to callers
func (t *ResolutionTask) Clone() *ResolutionTask {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.RelatedErrors = append([]string(nil), t.RelatedErrors...)
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		c.AssignedAt = &at
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		c.ResolvedAt = &at
	}
	c.Comments = make([]*TaskComment, len(t.Comments))
	for i, cm := range t.Comments {
		cp := *cm
		c.Comments[i] = &cp
	}
	c.Attachments = make([]*TaskAttachment, len(t.Attachments))
	for i, a := range t.Attachments {
		cp := *a
		c.Attachments[i] = &cp
	}
	return &c
}

// TaskAssignmentRule picks a default owner for newly created tasks
type TaskAssignmentRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Order       int    `json:"order"`

	Components []string       `json:"components,omitempty"`
	ErrorTypes []string       `json:"error_types,omitempty"`
	Priorities []TaskPriority `json:"priorities,omitempty"`
	Severities []string       `json:"severities,omitempty"`
	Tags       []string       `json:"tags,omitempty"`

	AssignTo       string `json:"assign_to"`
	AutoAssign     bool   `json:"auto_assign"`
	NotifyAssignee bool   `json:"notify_assignee"`
}

// ErrorRecord is the stored error a resolution task refers to
type ErrorRecord struct {
	ErrorID      string     `json:"error_id"`
	Component    string     `json:"component"`
	ErrorType    string     `json:"error_type"`
	Level        string     `json:"level"`
	Message      string     `json:"message"`
	TraceID      string     `json:"trace_id,omitempty"`
	Environment  string     `json:"environment,omitempty"`
	Reproducible bool       `json:"reproducible"`
	Resolved     bool       `json:"resolved"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	Resolution   string     `json:"resolution,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ErrorResolution is written back to the error store when a task is fixed
type ErrorResolution struct {
	ResolvedAt time.Time `json:"resolved_at"`
	ResolvedBy string    `json:"resolved_by"`
	Resolution string    `json:"resolution"`
}
