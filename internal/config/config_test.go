package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_auto_trader/internal/domain"
	"github.com/vitos/crypto_auto_trader/internal/usecase"
)

const validYAML = `
symbols: [BTCUSDT, ETHUSDT]
timeframe: 5m
signals_only: true
loop:
  interval_sec: 30
risk:
  risk_percent: 10
  leverage: 3
  stop_loss_percent: 3
  take_profit_percent: 6
  max_drawdown_percent: 15
entry:
  mode: limit
  limit_deviation_percent: -0.05
  limit_interval_sec: 10
  limit_max_attempts: 5
  limit_fallback_market: true
trailing:
  enabled: true
  mode: percent
  activation_percent: 1.0
  step_percent: 0.5
  offset_percent: 0.8
averaging:
  enabled: true
  steps:
    - step_percent: -2
      multiplier: 1
    - step_percent: -5
      multiplier: 2
portfolio:
  max_positions: 3
  capital_mode: pool
pair_overrides:
  ETHUSDT:
    risk_percent: 5
logging:
  level: debug
server:
  port: 8080
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	settings := cfg.Settings()
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, settings.Symbols)
	require.Equal(t, 30*time.Second, settings.Interval)
	require.True(t, settings.SignalsOnly)
	require.Equal(t, usecase.EntryLimit, settings.Entry.Mode)
	require.Equal(t, 5, settings.Entry.LimitMaxAttempts)
	require.Equal(t, usecase.CapitalPool, settings.Portfolio.CapitalMode)
	require.Equal(t, 3, settings.Portfolio.MaxPositions)
	require.Len(t, settings.Averaging.Steps, 2)

	// override narrows risk for one pair only
	require.InDelta(t, 10.0, settings.ParamsFor("BTCUSDT").RiskPercent, 1e-9)
	require.InDelta(t, 5.0, settings.ParamsFor("ETHUSDT").RiskPercent, 1e-9)
	require.InDelta(t, 3.0, settings.ParamsFor("ETHUSDT").Leverage, 1e-9)
}

func TestLoadFillsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
symbols: [BTCUSDT]
timeframe: 1h
loop:
  interval_sec: 60
risk:
  risk_percent: 10
`))
	require.NoError(t, err)

	settings := cfg.Settings()
	require.Equal(t, usecase.EntryMarket, settings.Entry.Mode)
	require.Equal(t, usecase.CapitalFixed, settings.Portfolio.CapitalMode)
	require.Equal(t, usecase.TrailingPercent, settings.Trailing.Mode)
	require.Equal(t, 1, settings.Portfolio.MaxPositions)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no symbols", "timeframe: 5m\nloop:\n  interval_sec: 30\nrisk:\n  risk_percent: 10"},
		{"no timeframe", "symbols: [BTCUSDT]\nloop:\n  interval_sec: 30\nrisk:\n  risk_percent: 10"},
		{"zero interval", "symbols: [BTCUSDT]\ntimeframe: 5m\nrisk:\n  risk_percent: 10"},
		{"risk over 100", "symbols: [BTCUSDT]\ntimeframe: 5m\nloop:\n  interval_sec: 30\nrisk:\n  risk_percent: 150"},
		{"bad entry mode", "symbols: [BTCUSDT]\ntimeframe: 5m\nloop:\n  interval_sec: 30\nrisk:\n  risk_percent: 10\nentry:\n  mode: teleport"},
		{"bad capital mode", "symbols: [BTCUSDT]\ntimeframe: 5m\nloop:\n  interval_sec: 30\nrisk:\n  risk_percent: 10\nportfolio:\n  capital_mode: infinite"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestLimitMaxAttemptsZeroMeansUnbounded(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
symbols: [BTCUSDT]
timeframe: 5m
loop:
  interval_sec: 30
risk:
  risk_percent: 10
entry:
  mode: limit
  limit_max_attempts: 0
`))
	require.NoError(t, err)
	// explicit 0 is the unbounded retry mode and must survive loading
	require.Equal(t, 0, cfg.Settings().Entry.LimitMaxAttempts)

	// absent field still gets the default
	cfg, err = Load(writeConfig(t, `
symbols: [BTCUSDT]
timeframe: 5m
loop:
  interval_sec: 30
risk:
  risk_percent: 10
entry:
  mode: limit
`))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Settings().Entry.LimitMaxAttempts)

	_, err = Load(writeConfig(t, `
symbols: [BTCUSDT]
timeframe: 5m
loop:
  interval_sec: 30
risk:
  risk_percent: 10
entry:
  limit_max_attempts: -1
`))
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestLoadRejectsInvalidLadder(t *testing.T) {
	_, err := Load(writeConfig(t, `
symbols: [BTCUSDT]
timeframe: 5m
loop:
  interval_sec: 30
risk:
  risk_percent: 10
averaging:
  enabled: true
  steps:
    - step_percent: -5
    - step_percent: -2
`))
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestIndicatorSettingsMerge(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
symbols: [BTCUSDT]
timeframe: 5m
loop:
  interval_sec: 30
risk:
  risk_percent: 10
indicators:
  rsi_period: 7
  rsi_oversold: 25
`))
	require.NoError(t, err)

	s := cfg.IndicatorSettings()
	require.Equal(t, 7, s.RSIPeriod)
	require.InDelta(t, 25.0, s.RSIOversold, 1e-9)
	// untouched fields keep the defaults
	require.Equal(t, 20, s.BollingerPeriod)
	require.InDelta(t, 70.0, s.RSIOverbought, 1e-9)
}
