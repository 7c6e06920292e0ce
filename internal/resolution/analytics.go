package resolution

import (
	"sort"
	"time"

	"github.com/t77yq/alertcore/internal/model"
)

const (
	trendDays        = 30
	topComponentsMax = 10
	unassignedKey    = "unassigned"
)

// TimeRange bounds analytics by task creation time. Zero ends are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// ComponentStats summarizes the tasks of one component
type ComponentStats struct {
	Component          string  `json:"component"`
	Count              int     `json:"count"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
}

// DailyCount is one point of a trend series
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Trends holds daily series over the last 30 days
type Trends struct {
	Created  []DailyCount `json:"created"`
	Resolved []DailyCount `json:"resolved"`
	Backlog  []DailyCount `json:"backlog"`
}

// Analytics summarizes resolution performance
type Analytics struct {
	TotalTasks              int                            `json:"total_tasks"`
	ByStatus                map[model.TaskStatus]int       `json:"by_status"`
	ByPriority              map[model.TaskPriority]int     `json:"by_priority"`
	ByAssignee              map[string]int                 `json:"by_assignee"`
	AvgResolutionHours      float64                        `json:"avg_resolution_hours"`
	AvgResolutionByPriority map[model.TaskPriority]float64 `json:"avg_resolution_by_priority"`
	FixRate                 float64                        `json:"fix_rate"`
	DuplicateRate           float64                        `json:"duplicate_rate"`
	TopComponents           []ComponentStats               `json:"top_components"`
	Trends                  Trends                         `json:"trends"`
}

// Analytics computes statistics over tasks created inside tr, or over all tasks when tr is nil.
// Rates are percentages of resolved tasks.
func (s *Service) Analytics(tr *TimeRange) Analytics {
	s.mu.RLock()
	tasks := make([]*model.ResolutionTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if tr.contains(t.CreatedAt) {
			tasks = append(tasks, t.Clone())
		}
	}
	s.mu.RUnlock()

	a := Analytics{
		TotalTasks:              len(tasks),
		ByStatus:                make(map[model.TaskStatus]int),
		ByPriority:              make(map[model.TaskPriority]int),
		ByAssignee:              make(map[string]int),
		AvgResolutionByPriority: make(map[model.TaskPriority]float64),
		TopComponents:           []ComponentStats{},
	}

	var (
		resolvedCount int
		totalHours    float64
		fixed, dupes  int
	)
	priorityHours := make(map[model.TaskPriority]float64)
	priorityCounts := make(map[model.TaskPriority]int)
	components := make(map[string]*componentAcc)

	for _, t := range tasks {
		a.ByStatus[t.Status]++
		a.ByPriority[t.Priority]++
		assignee := t.AssignedTo
		if assignee == "" {
			assignee = unassignedKey
		}
		a.ByAssignee[assignee]++

		acc, ok := components[t.Metadata.Component]
		if !ok {
			acc = &componentAcc{}
			components[t.Metadata.Component] = acc
		}
		acc.count++

		hours, resolved := resolutionHours(t)
		if !resolved {
			continue
		}
		resolvedCount++
		totalHours += hours
		priorityHours[t.Priority] += hours
		priorityCounts[t.Priority]++
		acc.hours += hours
		acc.resolved++

		switch t.ResolutionType {
		case model.ResolutionFixed:
			fixed++
		case model.ResolutionDuplicate:
			dupes++
		}
	}

	if resolvedCount > 0 {
		a.AvgResolutionHours = totalHours / float64(resolvedCount)
		a.FixRate = float64(fixed) / float64(resolvedCount) * 100
		a.DuplicateRate = float64(dupes) / float64(resolvedCount) * 100
	}
	for p, n := range priorityCounts {
		a.AvgResolutionByPriority[p] = priorityHours[p] / float64(n)
	}

	for name, acc := range components {
		stats := ComponentStats{Component: name, Count: acc.count}
		if acc.resolved > 0 {
			stats.AvgResolutionHours = acc.hours / float64(acc.resolved)
		}
		a.TopComponents = append(a.TopComponents, stats)
	}
	sort.Slice(a.TopComponents, func(i, j int) bool {
		if a.TopComponents[i].Count != a.TopComponents[j].Count {
			return a.TopComponents[i].Count > a.TopComponents[j].Count
		}
		return a.TopComponents[i].Component < a.TopComponents[j].Component
	})
	if len(a.TopComponents) > topComponentsMax {
		a.TopComponents = a.TopComponents[:topComponentsMax]
	}

	a.Trends = buildTrends(tasks, s.now())
	return a
}

type componentAcc struct {
	count    int
	resolved int
	hours    float64
}

func (tr *TimeRange) contains(t time.Time) bool {
	if tr == nil {
		return true
	}
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}

// resolutionHours returns the hours from creation to resolution of a resolved task
func resolutionHours(t *model.ResolutionTask) (float64, bool) {
	if t.ResolvedAt == nil || !t.Status.Terminal() {
		return 0, false
	}
	return t.ResolvedAt.Sub(t.CreatedAt).Hours(), true
}

// buildTrends computes daily series for the 30 UTC days ending on now's day.
// Backlog on day D counts tasks created by the end of D, not resolved by then
// and not cancelled.
func buildTrends(tasks []*model.ResolutionTask, now time.Time) Trends {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(trendDays - 1))

	tr := Trends{
		Created:  make([]DailyCount, trendDays),
		Resolved: make([]DailyCount, trendDays),
		Backlog:  make([]DailyCount, trendDays),
	}

	for i := 0; i < trendDays; i++ {
		day := first.AddDate(0, 0, i)
		next := day.AddDate(0, 0, 1)

		created, resolved, backlog := 0, 0, 0
		for _, t := range tasks {
			if inDay(t.CreatedAt, day, next) {
				created++
			}
			if t.Status.Terminal() && t.ResolvedAt != nil && inDay(*t.ResolvedAt, day, next) {
				resolved++
			}
			if t.Status == model.TaskStatusCancelled || !t.CreatedAt.Before(next) {
				continue
			}
			if t.ResolvedAt == nil || !t.ResolvedAt.Before(next) {
				backlog++
			}
		}

		tr.Created[i] = DailyCount{Date: day, Count: created}
		tr.Resolved[i] = DailyCount{Date: day, Count: resolved}
		tr.Backlog[i] = DailyCount{Date: day, Count: backlog}
	}
	return tr
}

func inDay(t, day, next time.Time) bool {
	return !t.Before(day) && t.Before(next)
}
