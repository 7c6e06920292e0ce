package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/t77yq/alertcore/internal/model"
)

func TestMatchesConditions(t *testing.T) {
	highX := model.AlertConditions{
		Severities: []model.AlertSeverity{model.AlertSeverityHigh},
		Components: []string{"X"},
	}

	tests := []struct {
		name  string
		cond  model.AlertConditions
		alert model.Alert
		want  bool
	}{
		{
			name:  "empty conditions match everything",
			cond:  model.AlertConditions{},
			alert: model.Alert{Severity: model.AlertSeverityLow, Type: "anything"},
			want:  true,
		},
		{
			name:  "severity matches but component does not",
			cond:  highX,
			alert: model.Alert{Severity: model.AlertSeverityHigh, Components: []string{"Y"}},
			want:  false,
		},
		{
			name:  "any affected component is enough",
			cond:  highX,
			alert: model.Alert{Severity: model.AlertSeverityHigh, Components: []string{"X", "Z"}},
			want:  true,
		},
		{
			name:  "component matches but severity does not",
			cond:  highX,
			alert: model.Alert{Severity: model.AlertSeverityLow, Components: []string{"X"}},
			want:  false,
		},
		{
			name:  "alert without components fails a component constraint",
			cond:  highX,
			alert: model.Alert{Severity: model.AlertSeverityHigh},
			want:  false,
		},
		{
			name:  "type constraint",
			cond:  model.AlertConditions{Types: []string{model.AlertTypeErrorSpike}},
			alert: model.Alert{Type: model.AlertTypeThresholdExceeded},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesConditions(tt.cond, &tt.alert))
		})
	}
}

func TestMatchesFilters(t *testing.T) {
	alert := &model.Alert{Severity: model.AlertSeverityMedium, Type: "t", Components: []string{"api"}}

	assert.True(t, MatchesFilters(nil, alert))
	assert.True(t, MatchesFilters(&model.AlertFilters{}, alert))
	assert.True(t, MatchesFilters(&model.AlertFilters{Types: []string{"t"}}, alert))
	assert.False(t, MatchesFilters(&model.AlertFilters{
		Severities: []model.AlertSeverity{model.AlertSeverityCritical},
	}, alert))
	assert.False(t, MatchesFilters(&model.AlertFilters{Components: []string{"db"}}, alert))
}
