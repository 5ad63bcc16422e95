package model

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/pixel-revival/revive/internal/mempool"
)

// superResolver runs a single-input single-output image-to-image ONNX model.
// The session is read-only after construction and shared across concurrent
// requests; ONNX Runtime sessions support concurrent Run calls.
type superResolver struct {
	name       string
	cfg        Config
	session    *ort.DynamicAdvancedSession
	inputInfo  ort.InputOutputInfo
	outputInfo ort.InputOutputInfo

	mu sync.RWMutex // guards session against Close
}

func newSuperResolver(name string, cfg Config) (*superResolver, error) {
	session, inputInfo, outputInfo, err := createSession(cfg)
	if err != nil {
		return nil, err
	}
	return &superResolver{
		name:       name,
		cfg:        cfg,
		session:    session,
		inputInfo:  inputInfo,
		outputInfo: outputInfo,
	}, nil
}

func (s *superResolver) Name() string { return s.name }

// Enhance runs one forward pass. The output resolution is taken from the
// output tensor shape rather than assumed, so networks with other scale
// factors work unchanged.
func (s *superResolver) Enhance(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%s: nil input image", s.name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("%s: session closed", s.name)
	}

	data, w, h := imageToTensor(img)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		mempool.PutFloat32(data)
		return nil, fmt.Errorf("%s: create input tensor: %w", s.name, err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying input tensor: %v\n", err)
		}
		mempool.PutFloat32(data)
	}()

	// ONNX Runtime allocates the output tensor.
	outputs := []ort.Value{nil}
	if err := session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("%s: inference failed: %w", s.name, err)
	}
	outputTensor := outputs[0]
	defer func() {
		if err := outputTensor.Destroy(); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying output tensor: %v\n", err)
		}
	}()

	floatTensor, ok := outputTensor.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%s: expected float32 output tensor, got %T", s.name, outputTensor)
	}
	shape := outputTensor.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%s: expected 4D output tensor, got %dD", s.name, len(shape))
	}
	outH, outW := int(shape[2]), int(shape[3])

	result, err := tensorToImage(floatTensor.GetData(), outW, outH)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	return result, nil
}

// Warmup runs n forward passes on a small synthetic image to amortize
// first-run latency.
func (s *superResolver) Warmup(n int) error {
	if n <= 0 {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 251)
	}
	for range n {
		if _, err := s.Enhance(context.Background(), img); err != nil {
			return fmt.Errorf("%s: warmup: %w", s.name, err)
		}
	}
	return nil
}

// Close destroys the session. In-flight Enhance calls hold the read lock,
// so Close waits for them.
func (s *superResolver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return fmt.Errorf("%s: destroy session: %w", s.name, err)
	}
	return nil
}
