package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixel-revival/revive/internal/degrade"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions(false, false, false, false, false, "")
	require.NoError(t, err)
	assert.False(t, opts.AnyStage())
	assert.NoError(t, opts.Validate())
}

func TestParseOptionsFaceEnhanceRequiresDeblur(t *testing.T) {
	_, err := ParseOptions(false, false, true, true, false, "")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	opts, err := ParseOptions(false, true, false, true, false, "")
	require.NoError(t, err)
	assert.True(t, opts.FaceEnhance)
}

func TestParseOptionsEvaluationDefaultsToLight(t *testing.T) {
	opts, err := ParseOptions(true, true, true, false, true, "")
	require.NoError(t, err)
	assert.Equal(t, degrade.SeverityLight, opts.Severity)
}

func TestParseOptionsEvaluationSeverity(t *testing.T) {
	opts, err := ParseOptions(true, true, true, false, true, "heavy")
	require.NoError(t, err)
	assert.Equal(t, degrade.SeverityHeavy, opts.Severity)
}

func TestParseOptionsRejectsUnknownSeverity(t *testing.T) {
	_, err := ParseOptions(true, true, true, false, true, "brutal")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	// A typoed severity fails fast even with evaluation off.
	_, err = ParseOptions(true, true, true, false, false, "brutal")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidateDirectConstruction(t *testing.T) {
	opts := Options{FaceEnhance: true}
	err := opts.Validate()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
