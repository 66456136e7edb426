package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/core-nexus/ltm-service/pkg/core"
)

func TestValidateRejectsNoProviders(t *testing.T) {
	cfg := &core.Config{
		ADM: core.ADMConfig{Enabled: true, WeightQuality: 0.3, WeightRelevance: 0.4, WeightIntel: 0.3},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := &core.Config{
		Local: core.ProviderConfig{Enabled: true},
		ADM:   core.ADMConfig{Enabled: true, WeightQuality: 0.1, WeightRelevance: 0.1, WeightIntel: 0.1},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := &core.Config{
		Local: core.ProviderConfig{Enabled: true},
		ADM:   core.ADMConfig{Enabled: true, WeightQuality: 0.3, WeightRelevance: 0.4, WeightIntel: 0.3},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidateIgnoresWeightsWhenADMDisabled(t *testing.T) {
	cfg := &core.Config{
		Local: core.ProviderConfig{Enabled: true},
		ADM:   core.ADMConfig{Enabled: false, WeightQuality: 1, WeightRelevance: 1, WeightIntel: 1},
	}
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	cfg, err := core.LoadConfigFromEnv()
	assert.NoError(t, err)
	assert.Equal(t, "ltm", cfg.Postgres.Config["db_name"])
	assert.True(t, cfg.Postgres.Primary)
	assert.True(t, cfg.Local.Enabled)
	assert.InDelta(t, 1.0, cfg.ADM.WeightQuality+cfg.ADM.WeightRelevance+cfg.ADM.WeightIntel, 0.001)
}
