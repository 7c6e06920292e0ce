package resolution

import "github.com/t77yq/alertcore/internal/model"

// DefaultAssignmentRules returns the assignment rules registered at startup
func DefaultAssignmentRules() []*model.TaskAssignmentRule {
	return []*model.TaskAssignmentRule{
		{
			ID:             "critical-broker-errors",
			Name:           "Critical broker errors",
			Description:    "High priority broker failures go to senior developers",
			Enabled:        true,
			Order:          1,
			Components:     []string{"BROKER_CONTROLLER", "BROKER_SERVICE"},
			Priorities:     []model.TaskPriority{model.TaskPriorityHigh, model.TaskPriorityCritical},
			AssignTo:       "senior-dev-team",
			AutoAssign:     true,
			NotifyAssignee: true,
		},
		{
			ID:             "auth-errors",
			Name:           "Authentication errors",
			Description:    "Authentication failures go to the security team",
			Enabled:        true,
			Order:          2,
			Components:     []string{"AUTH_*"},
			AssignTo:       "security-team",
			AutoAssign:     true,
			NotifyAssignee: true,
		},
		{
			ID:          "trading-errors",
			Name:        "Trading errors",
			Description: "Order and trading engine failures go to the trading team",
			Enabled:     true,
			Order:       3,
			Components:  []string{"ORDER_SERVICE", "TRADING_ENGINE"},
			AssignTo:    "trading-team",
			AutoAssign:  true,
		},
	}
}
