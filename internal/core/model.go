package core

import (
	"pneumo-backend/internal/imaging"
)

// ModelType represents the backend of a segmentation model
type ModelType string

// Available model types
const (
	OnnxSeg ModelType = "onnx"
)

// Segmenter maps an image batch to one probability mask per image. Given
// fixed weights a Segmenter is deterministic; implementations own no mutable
// state across calls.
type Segmenter interface {
	Predict(images []imaging.Image, batchSize int) ([]imaging.Grid, error)

	Release()
}

type SegmenterLoader func(string) (Segmenter, error)

func NewSegmenterLoaders() map[ModelType]SegmenterLoader {
	return map[ModelType]SegmenterLoader{
		OnnxSeg: func(modelPath string) (Segmenter, error) {
			return LoadOnnxSegmenter(modelPath)
		},
	}
}
