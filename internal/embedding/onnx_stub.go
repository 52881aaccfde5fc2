//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"

	"github.com/notedrop/seiri/internal/config"
)

var errONNXRequiresCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder stub for builds without CGO (see onnx.go for the real
// implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder fails when built without CGO.
func NewONNXEmbedder(_ config.EmbeddingConfig) (*ONNXEmbedder, error) {
	return nil, errONNXRequiresCGO
}

// Embed fails when built without CGO.
func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errONNXRequiresCGO
}

// EmbedBatch fails when built without CGO.
func (e *ONNXEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errONNXRequiresCGO
}

// Dimensions reports zero when built without CGO.
func (e *ONNXEmbedder) Dimensions() int {
	return 0
}

// Close is a no-op when built without CGO.
func (e *ONNXEmbedder) Close() error {
	return nil
}
