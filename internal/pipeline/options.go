package pipeline

import (
	"github.com/pixel-revival/revive/internal/degrade"
)

// Stage names in their fixed execution order. Flags enable or disable
// stages; they never reorder them.
const (
	StagePreprocessed = "preprocessed"
	StageDeblurred    = "deblurred"
	StageEDSR         = "edsr"
)

// DegradedKey is the metrics key for the raw degraded input in evaluation
// mode.
const DegradedKey = "degraded"

// Options is a validated per-request stage configuration. Construct it with
// ParseOptions so cross-flag constraints hold; a zero Options (all stages
// off) is valid and yields a passthrough pipeline.
type Options struct {
	Preprocess  bool
	Deblur      bool
	EDSR        bool
	FaceEnhance bool
	Evaluation  bool
	Severity    degrade.Severity
}

// ParseOptions builds a validated Options value from raw request flags.
// Face enhancement is only meaningful on top of the deblur stage, so
// requesting it with deblur disabled is rejected with a ConfigError rather
// than silently forced off. An empty degradation type in evaluation mode
// defaults to light; unknown types are rejected.
func ParseOptions(preprocessOn, deblurOn, edsrOn, faceEnhanceOn, evaluationOn bool, degradationType string) (Options, error) {
	o := Options{
		Preprocess:  preprocessOn,
		Deblur:      deblurOn,
		EDSR:        edsrOn,
		FaceEnhance: faceEnhanceOn,
		Evaluation:  evaluationOn,
	}
	if o.FaceEnhance && !o.Deblur {
		return Options{}, &ConfigError{Reason: "face enhancement requires the deblur stage"}
	}
	if o.Evaluation {
		if degradationType == "" {
			degradationType = string(degrade.SeverityLight)
		}
		sev, err := degrade.ParseSeverity(degradationType)
		if err != nil {
			return Options{}, &ConfigError{Reason: err.Error()}
		}
		o.Severity = sev
	} else if degradationType != "" {
		// Still validated outside evaluation mode, so a typo does not go
		// unnoticed until the user flips evaluation on.
		if _, err := degrade.ParseSeverity(degradationType); err != nil {
			return Options{}, &ConfigError{Reason: err.Error()}
		}
	}
	return o, nil
}

// Validate re-checks an Options value that was constructed directly.
func (o Options) Validate() error {
	if o.FaceEnhance && !o.Deblur {
		return &ConfigError{Reason: "face enhancement requires the deblur stage"}
	}
	if o.Evaluation {
		if _, err := degrade.ParseSeverity(string(o.Severity)); err != nil {
			return &ConfigError{Reason: err.Error()}
		}
	}
	return nil
}

// AnyStage reports whether at least one stage is enabled.
func (o Options) AnyStage() bool {
	return o.Preprocess || o.Deblur || o.EDSR
}
