package alerting

import (
	"github.com/t77yq/alertcore/internal/model"
)

// MatchesConditions reports whether an alert satisfies every declared rule condition.
// Absent constraints are vacuously true; the component constraint holds when any
// affected component is in the set.
func MatchesConditions(cond model.AlertConditions, alert *model.Alert) bool {
	return matchSeverity(cond.Severities, alert.Severity) &&
		matchString(cond.Types, alert.Type) &&
		matchAny(cond.Components, alert.Components)
}

// MatchesFilters reports whether a channel's own filters accept the alert
func MatchesFilters(filters *model.AlertFilters, alert *model.Alert) bool {
	if filters == nil {
		return true
	}
	return matchSeverity(filters.Severities, alert.Severity) &&
		matchString(filters.Types, alert.Type) &&
		matchAny(filters.Components, alert.Components)
}

func matchSeverity(set []model.AlertSeverity, v model.AlertSeverity) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func matchString(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func matchAny(set, values []string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range values {
		if matchString(set, v) {
			return true
		}
	}
	return false
}
