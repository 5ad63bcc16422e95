package model

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// EnvONNXLibrary overrides the ONNX Runtime shared library location.
const EnvONNXLibrary = "REVIVE_ONNX_LIB"

var ortInitOnce sync.Once

// initEnvironment initializes the shared ONNX Runtime environment. All
// sessions share one environment; it is never torn down while the process
// runs.
func initEnvironment() error {
	var initErr error
	ortInitOnce.Do(func() {
		if lib := os.Getenv(EnvONNXLibrary); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if !ort.IsInitialized() {
			initErr = ort.InitializeEnvironment()
		}
	})
	if initErr != nil {
		return fmt.Errorf("initialize onnx runtime: %w", initErr)
	}
	if !ort.IsInitialized() {
		return fmt.Errorf("onnx runtime environment not initialized")
	}
	return nil
}

// createSession opens a dynamic session for a single-input single-output
// image-to-image model.
func createSession(cfg Config) (*ort.DynamicAdvancedSession, ort.InputOutputInfo, ort.InputOutputInfo, error) {
	var zero ort.InputOutputInfo

	if cfg.ModelPath == "" {
		return nil, zero, zero, fmt.Errorf("model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, zero, zero, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if err := initEnvironment(); err != nil {
		return nil, zero, zero, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("inspect model %s: %w", cfg.ModelPath, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, zero, zero, fmt.Errorf("model %s: expected 1 input and 1 output, got %d/%d",
			cfg.ModelPath, len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return nil, zero, zero, fmt.Errorf("model %s: expected 4D NCHW input, got %dD",
			cfg.ModelPath, len(inputs[0].Dimensions))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, zero, zero, fmt.Errorf("create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying session options: %v\n", err)
		}
	}()

	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, zero, zero, fmt.Errorf("set thread count: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("create session for %s: %w", cfg.ModelPath, err)
	}
	return session, inputs[0], outputs[0], nil
}
