package utils

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftyGreeksBot/internal/domain"
)

func sampleTrade() domain.TradeRecord {
	entry := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.TradeRecord{
		PositionID:  3,
		Symbol:      "NIFTY",
		Side:        domain.Short,
		Quantity:    50,
		EntryPrice:  22000.1,
		ExitPrice:   21990.05,
		EntryTime:   entry,
		ExitTime:    entry.Add(25 * time.Minute),
		CloseReason: domain.CloseReasonTakeProfit,
		PNL:         502.5,
		Costs:       40,
		NetPNL:      462.5,
		Holding:     25 * time.Minute,
	}
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, []domain.TradeRecord{sampleTrade()}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "position_id", rows[0][0])
	assert.Equal(t, []string{
		"3", "NIFTY", "SHORT", "50", "2024-03-01T10:00:00Z", "2024-03-01T10:25:00Z",
		"22000.10", "21990.05", "TAKE_PROFIT", "502.50", "40.00", "462.50", "25m0s",
	}, rows[1])
}

func TestWriteEquityCSV(t *testing.T) {
	var buf bytes.Buffer
	points := []domain.EquityPoint{
		{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Equity: 100000, Drawdown: 0},
		{Time: time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC), Equity: 99500.456, Drawdown: 0.0049954},
	}
	require.NoError(t, WriteEquityCSV(&buf, points))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-03-01T10:05:00Z", "99500.46", "0.004995"}, rows[2])
}

func TestWriteSummaryJSON(t *testing.T) {
	tests := []struct {
		name string
		pf   float64
		want interface{}
	}{
		{"finite profit factor", 1.5, 1.5},
		{"no losing trades", math.Inf(1), "inf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			summary := domain.PerformanceSummary{
				TotalTrades:            2,
				NetPNL:                 120,
				ProfitFactor:           tt.pf,
				AverageHoldingDuration: 90 * time.Minute,
				ExitReasons:            map[domain.CloseReason]int{domain.CloseReasonStopLoss: 2},
			}
			require.NoError(t, WriteSummaryJSON(&buf, summary))

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
			assert.Equal(t, tt.want, decoded["profit_factor"])
			assert.Equal(t, "1h30m0s", decoded["average_holding"])
			assert.Equal(t, float64(2), decoded["total_trades"])
			assert.Equal(t, map[string]interface{}{"STOP_LOSS": float64(2)}, decoded["exit_reasons"])
		})
	}
}

func TestSaveResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, SaveResults(dir, []domain.TradeRecord{sampleTrade()}, nil, domain.PerformanceSummary{TotalTrades: 1}))

	for _, name := range []string{TradesFile, EquityFile, SummaryFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}
