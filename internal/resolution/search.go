package resolution

import (
	"sort"
	"time"

	"github.com/t77yq/alertcore/internal/model"
)

// DefaultSearchLimit is used when a search does not set a limit
const DefaultSearchLimit = 50

// SearchFilter selects tasks. Empty fields impose no restriction.
type SearchFilter struct {
	Statuses    []model.TaskStatus
	Priorities  []model.TaskPriority
	AssignedTo  string
	CreatedBy   string
	Components  []string
	ErrorTypes  []string
	Tags        []string
	CreatedFrom time.Time
	CreatedTo   time.Time

	Limit  int
	Offset int
}

// SearchResult is one page of matching tasks
type SearchResult struct {
	Tasks   []*model.ResolutionTask `json:"tasks"`
	Total   int                     `json:"total"`
	HasMore bool                    `json:"has_more"`
}

// Search returns the tasks matching f, newest created first
func (s *Service) Search(f SearchFilter) SearchResult {
	s.mu.RLock()
	var matched []*model.ResolutionTask
	for _, t := range s.tasks {
		if f.matches(t) {
			matched = append(matched, t.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(matched)
	page := []*model.ResolutionTask{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = matched[offset:end]
	}

	return SearchResult{
		Tasks:   page,
		Total:   total,
		HasMore: offset+len(page) < total,
	}
}

func (f SearchFilter) matches(t *model.ResolutionTask) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if len(f.Components) > 0 && !contains(f.Components, t.Metadata.Component) {
		return false
	}
	if len(f.ErrorTypes) > 0 && !contains(f.ErrorTypes, t.Metadata.ErrorType) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, t.Tags) {
		return false
	}
	if !f.CreatedFrom.IsZero() && t.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && t.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

func containsStatus(set []model.TaskStatus, v model.TaskStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
