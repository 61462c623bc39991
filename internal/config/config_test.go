package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/conciliacao")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultMatcherConfig(), cfg.Matcher)
	assert.True(t, cfg.ConsistencyTolerance.IsZero())
	assert.True(t, cfg.ReconcileTolerance.IsZero())
	assert.Equal(t, 95.0, cfg.AutoReconcileThreshold)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ReadsMatcherOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/conciliacao")
	t.Setenv("MATCH_WINDOW_DAYS", "7")
	t.Setenv("MATCH_WEIGHT_DESCRIPTION", "0")
	t.Setenv("CONSISTENCY_TOLERANCE", "0.01")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Matcher.WindowDays)
	assert.Equal(t, 0.0, cfg.Matcher.WeightDescription)
	assert.Equal(t, "0.01", cfg.ConsistencyTolerance.String())
}

func TestMatcherConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *MatcherConfig)
		wantErr bool
	}{
		{"defaults", func(m *MatcherConfig) {}, false},
		{"zero window", func(m *MatcherConfig) { m.WindowDays = 0 }, true},
		{"negative weight", func(m *MatcherConfig) { m.WeightDate = -1 }, true},
		{"near above exact", func(m *MatcherConfig) { m.WeightNear = 60 }, true},
		{"near equal exact", func(m *MatcherConfig) { m.WeightNear = 50 }, false},
		{"tolerance out of range", func(m *MatcherConfig) { m.NearTolerancePercent = 1 }, true},
		{"no suggestions", func(m *MatcherConfig) { m.MaxSuggestions = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultMatcherConfig()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
