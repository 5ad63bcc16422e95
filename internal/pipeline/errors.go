package pipeline

import (
	"errors"
	"fmt"
)

// ConfigError indicates an inconsistent or unrecognized request
// configuration, such as face enhancement without the deblur stage or an
// unknown degradation type.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid pipeline configuration: " + e.Reason }

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StageError reports which stage's model adapter failed. The orchestrator
// aborts on the first stage failure and discards partial outputs; a stage
// never substitutes a default image.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsStageError reports whether err is (or wraps) a StageError.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}
