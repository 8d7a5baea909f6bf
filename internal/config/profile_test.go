package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultProfileIsValid(t *testing.T) {
	profile := DefaultProfile()
	require.NoError(t, profile.Validate())

	total := 0.0
	for _, w := range profile.PlanMix {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, 99.0, profile.PlanPriceUSD["PRO"])
}

func TestValidateRejectsBrokenProfiles(t *testing.T) {
	profile := DefaultProfile()
	profile.MaxAttempts = 0
	assert.Error(t, profile.Validate())

	profile = DefaultProfile()
	profile.PlanPriceUSD = nil
	assert.Error(t, profile.Validate())

	profile = DefaultProfile()
	profile.RetryReasons = nil
	assert.Error(t, profile.Validate())
}

func TestValidateRejectsEmptyVocabularies(t *testing.T) {
	cases := map[string]func(*Profile){
		"industries":         func(p *Profile) { p.Industries = nil },
		"device_preferences": func(p *Profile) { p.DevicePreferences = []string{} },
		"user_roles":         func(p *Profile) { p.UserRoles = nil },
		"features":           func(p *Profile) { p.Features = []string{} },
		"feature_actions":    func(p *Profile) { p.FeatureActions = nil },
	}
	for name, empty := range cases {
		t.Run(name, func(t *testing.T) {
			profile := DefaultProfile()
			empty(&profile)
			assert.Error(t, profile.Validate())
		})
	}
}

func TestProfileHolderFallsBackToDefaults(t *testing.T) {
	cfg := Config{ProfilePath: t.TempDir()}

	holder, err := NewProfileHolder(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, DefaultProfile().MaxAttempts, holder.Current().MaxAttempts)
}

func TestProfileHolderReadsFileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := []byte("generation:\n  maxAttempts: 6\n  terminalFailProb: 0.5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datasmith.yml"), content, 0o644))

	holder, err := NewProfileHolder(Config{ProfilePath: dir}, zap.NewNop())
	require.NoError(t, err)

	profile := holder.Current()
	assert.Equal(t, 6, profile.MaxAttempts)
	assert.Equal(t, 0.5, profile.TerminalFailProb)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultProfile().PlanMix, profile.PlanMix)
}
