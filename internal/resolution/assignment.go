package resolution

import (
	"sort"
	"strings"
	"sync"

	"github.com/t77yq/alertcore/internal/apperrors"
	"github.com/t77yq/alertcore/internal/model"
)

// AssignmentEngine picks a default assignee from ordered rules.
// The first enabled auto-assign rule whose conditions hold wins.
type AssignmentEngine struct {
	mu    sync.RWMutex
	rules map[string]*model.TaskAssignmentRule
}

// NewAssignmentEngine creates an engine holding the given rules
func NewAssignmentEngine(rules ...*model.TaskAssignmentRule) *AssignmentEngine {
	e := &AssignmentEngine{rules: make(map[string]*model.TaskAssignmentRule)}
	for _, r := range rules {
		e.rules[r.ID] = cloneAssignmentRule(r)
	}
	return e
}

// ValidateAssignmentRule checks the required fields of a rule
func ValidateAssignmentRule(rule *model.TaskAssignmentRule) error {
	if rule == nil {
		return apperrors.Validation("assignment rule is required")
	}
	if strings.TrimSpace(rule.ID) == "" {
		return apperrors.Validation("assignment rule id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		return apperrors.Validation("assignment rule name is required")
	}
	if strings.TrimSpace(rule.AssignTo) == "" {
		return apperrors.Validation("assignment rule %s has no assignee", rule.ID)
	}
	for _, p := range rule.Priorities {
		if !p.Valid() {
			return apperrors.Validation("assignment rule %s has unknown priority %q", rule.ID, p)
		}
	}
	return nil
}

// Set validates and upserts a rule
func (e *AssignmentEngine) Set(rule *model.TaskAssignmentRule) error {
	if err := ValidateAssignmentRule(rule); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.ID] = cloneAssignmentRule(rule)
	return nil
}

// Remove deletes a rule and reports whether it existed
func (e *AssignmentEngine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	return true
}

// List returns all rules sorted by order, then id
func (e *AssignmentEngine) List() []*model.TaskAssignmentRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*model.TaskAssignmentRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, cloneAssignmentRule(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Resolve returns the first matching rule for the error, or nil
func (e *AssignmentEngine) Resolve(rec *model.ErrorRecord, priority model.TaskPriority, tags []string) *model.TaskAssignmentRule {
	for _, rule := range e.List() {
		if !rule.Enabled || !rule.AutoAssign {
			continue
		}
		if ruleMatches(rule, rec, priority, tags) {
			return rule
		}
	}
	return nil
}

func ruleMatches(rule *model.TaskAssignmentRule, rec *model.ErrorRecord, priority model.TaskPriority, tags []string) bool {
	if len(rule.Components) > 0 && !matchPattern(rule.Components, rec.Component) {
		return false
	}
	if len(rule.ErrorTypes) > 0 && !containsFold(rule.ErrorTypes, rec.ErrorType) {
		return false
	}
	if len(rule.Priorities) > 0 && !containsPriority(rule.Priorities, priority) {
		return false
	}
	if len(rule.Severities) > 0 && !containsFold(rule.Severities, rec.Level) {
		return false
	}
	if len(rule.Tags) > 0 && !intersects(rule.Tags, tags) {
		return false
	}
	return true
}

// matchPattern matches v against names; a trailing * matches any suffix
func matchPattern(patterns []string, v string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(v, prefix) {
				return true
			}
			continue
		}
		if p == v {
			return true
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func containsPriority(set []model.TaskPriority, v model.TaskPriority) bool {
	for _, p := range set {
		if p == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func cloneAssignmentRule(r *model.TaskAssignmentRule) *model.TaskAssignmentRule {
	c := *r
	c.Components = append([]string(nil), r.Components...)
	c.ErrorTypes = append([]string(nil), r.ErrorTypes...)
	c.Priorities = append([]model.TaskPriority(nil), r.Priorities...)
	c.Severities = append([]string(nil), r.Severities...)
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}
