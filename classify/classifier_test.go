package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonomos/orchestrator/domain"
)

func TestRuleClassifierSeverityMapping(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.Event
		impact  domain.Impact
		urgency domain.Urgency
	}{
		{
			name:    "critical inventory is immediate",
			event:   domain.Event{Kind: domain.EventInventoryLow, Severity: domain.SeverityHigh},
			impact:  domain.ImpactHigh,
			urgency: domain.UrgencyImmediate,
		},
		{
			name:    "high severity sales spike gets a day",
			event:   domain.Event{Kind: domain.EventSalesSpike, Severity: domain.SeverityHigh},
			impact:  domain.ImpactHigh,
			urgency: domain.Urgency24h,
		},
		{
			name:    "medium severity",
			event:   domain.Event{Kind: domain.EventVendorDelay, Severity: domain.SeverityMedium},
			impact:  domain.ImpactMedium,
			urgency: domain.Urgency48h,
		},
		{
			name:    "low severity",
			event:   domain.Event{Kind: domain.EventSeasonalTrend, Severity: domain.SeverityLow},
			impact:  domain.ImpactLow,
			urgency: domain.UrgencyWeek,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := RuleClassifier{}.Classify(context.Background(), tt.event, &domain.BusinessSnapshot{})
			require.NoError(t, err)
			assert.Equal(t, tt.impact, c.BusinessImpact)
			assert.Equal(t, tt.urgency, c.Urgency)
			assert.NotEmpty(t, c.RecommendedActions)
		})
	}
}

func TestRuleClassifierPrimaryAction(t *testing.T) {
	c, err := RuleClassifier{}.Classify(context.Background(),
		domain.Event{Kind: domain.EventInventoryLow, Severity: domain.SeverityHigh},
		&domain.BusinessSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, ActionReorder, c.RecommendedActions[0])
}

func TestDefaultClassification(t *testing.T) {
	c := Default()
	assert.Equal(t, domain.ImpactLow, c.BusinessImpact)
	assert.Equal(t, domain.UrgencyWeek, c.Urgency)
	assert.NotEmpty(t, c.RecommendedActions)
}
