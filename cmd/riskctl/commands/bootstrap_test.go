package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockrisk/internal/api/handlers"
	"github.com/wonny/stockrisk/pkg/config"
)

func TestDefaultProfile_AppliesEnvDefaults(t *testing.T) {
	cfg := &config.Config{
		Risk: config.RiskConfig{
			ConfidenceLevel: 0.99,
			LotSize:         10,
			GateMode:        "shadow",
			Simulations:     500,
			Seed:            7,
		},
	}

	profile := defaultProfile(cfg)
	assert.Equal(t, 0.99, profile.VaR.Confidence)
	assert.Equal(t, 10, profile.Sizing.LotSize)
	assert.Equal(t, "shadow", profile.Gate.Mode)
	assert.Equal(t, 500, profile.VaR.MonteCarlo.NumSimulations)
	assert.Equal(t, int64(7), profile.VaR.MonteCarlo.Seed)

	_, err := profile.Build(nil)
	require.NoError(t, err)
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.json")
	body := `{"portfolio": {"cash": 1000, "positions": [{"symbol": "A", "quantity": 1, "current_price": 100}]}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	var req handlers.MetricsRequest
	require.NoError(t, readJSON(path, &req))
	require.NotNil(t, req.Portfolio)
	assert.Equal(t, 1000.0, req.Portfolio.Cash)
	assert.Len(t, req.Portfolio.Positions, 1)
}

func TestReadJSON_Errors(t *testing.T) {
	var req handlers.MetricsRequest
	assert.Error(t, readJSON("", &req))
	assert.Error(t, readJSON(filepath.Join(t.TempDir(), "missing.json"), &req))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"portfolo": {}}`), 0o644))
	assert.Error(t, readJSON(path, &req))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
	assert.Equal(t, "abc", shortID("abc"))
}
