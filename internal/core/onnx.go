package core

import (
	"fmt"

	"pneumo-backend/internal/imaging"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	onnxInputName  = "input"
	onnxOutputName = "sigmoid"
)

// OnnxSegmenter runs a trained segmentation network through ONNX Runtime.
// The network takes NHWC float32 batches and emits per-pixel sigmoid
// probabilities with a single trailing class channel, which is squeezed off.
type OnnxSegmenter struct {
	session *ort.DynamicAdvancedSession
}

func LoadOnnxSegmenter(modelPath string) (Segmenter, error) {
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{onnxInputName},
		[]string{onnxOutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session for %s: %w", modelPath, err)
	}
	return &OnnxSegmenter{session: session}, nil
}

func (m *OnnxSegmenter) Predict(images []imaging.Image, batchSize int) ([]imaging.Grid, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	preds := make([]imaging.Grid, 0, len(images))
	for start := 0; start < len(images); start += batchSize {
		end := min(start+batchSize, len(images))
		batch, err := m.predictBatch(images[start:end])
		if err != nil {
			return nil, err
		}
		preds = append(preds, batch...)
	}
	return preds, nil
}

func (m *OnnxSegmenter) predictBatch(images []imaging.Image) ([]imaging.Grid, error) {
	n := len(images)
	h, w, c := images[0].Height, images[0].Width, images[0].Channels
	for i, img := range images {
		if img.Height != h || img.Width != w || img.Channels != c {
			return nil, fmt.Errorf("%w: image %d is %dx%dx%d, batch is %dx%dx%d",
				ErrShapeMismatch, i, img.Height, img.Width, img.Channels, h, w, c)
		}
	}

	data := make([]float32, n*h*w*c)
	for i, img := range images {
		copy(data[i*h*w*c:], img.Pix)
	}

	inT, err := ort.NewTensor(ort.NewShape(int64(n), int64(h), int64(w), int64(c)), data)
	if err != nil {
		return nil, err
	}
	defer inT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), int64(h), int64(w), 1))
	if err != nil {
		return nil, err
	}
	defer outT.Destroy()

	if err := m.session.Run([]ort.Value{inT}, []ort.Value{outT}); err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	flat := outT.GetData()
	preds := make([]imaging.Grid, n)
	for i := 0; i < n; i++ {
		g := imaging.NewGrid(h, w)
		copy(g.Pix, flat[i*h*w:(i+1)*h*w])
		preds[i] = g
	}
	return preds, nil
}

func (m *OnnxSegmenter) Release() {
	m.session.Destroy()
}
