package alerting

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/alertcore/internal/model"
)

func TestHistoryLedger_Cap(t *testing.T) {
	ledger := NewHistoryLedger(DefaultHistoryLimit, nil)

	for i := 0; i < 150; i++ {
		ledger.Record("alert-1", model.HistoryActionSent, fmt.Sprintf("ch-%d", i), "")
	}

	entries := ledger.Get("alert-1")
	require.Len(t, entries, 100)
	assert.Equal(t, "ch-50", entries[0].ChannelID)
	assert.Equal(t, "ch-149", entries[99].ChannelID)
}

func TestHistoryLedger_GetReturnsCopy(t *testing.T) {
	ledger := NewHistoryLedger(10, nil)
	ledger.Record("a", model.HistoryActionSent, "console", "")

	entries := ledger.Get("a")
	entries[0].ChannelID = "mutated"

	assert.Equal(t, "console", ledger.Get("a")[0].ChannelID)
	assert.NotNil(t, ledger.Get("unknown"))
	assert.Empty(t, ledger.Get("unknown"))
}

func TestHistoryLedger_Count(t *testing.T) {
	ledger := NewHistoryLedger(10, nil)
	ledger.Record("a", model.HistoryActionSent, "console", "")
	ledger.Record("a", model.HistoryActionSent, "database", "")
	ledger.Record("a", model.HistoryActionAcknowledged, "", "ops")

	assert.Equal(t, 2, ledger.Count("a", model.HistoryActionSent))
	assert.Equal(t, 1, ledger.Count("a", model.HistoryActionAcknowledged))
	assert.Equal(t, 0, ledger.Count("a", model.HistoryActionEscalated))
}
