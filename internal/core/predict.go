package core

import (
	"fmt"
	"log/slog"

	"pneumo-backend/internal/imaging"

	"github.com/schollz/progressbar/v3"
)

// RunPrediction invokes every model over the image batch and returns the
// averaged probability masks. With useTTA enabled each model also predicts a
// horizontally mirrored copy of the batch; those predictions are mirrored
// back and averaged with the straight pass before ensembling. Models are
// processed in slice order; the mean is order-independent.
func RunPrediction(images []imaging.Image, models []Segmenter, batchSize int, useTTA bool) ([]imaging.Grid, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images to predict", ErrEmptyInput)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: no models supplied", ErrEmptyInput)
	}

	var bar *progressbar.ProgressBar
	if len(models) > 1 {
		slog.Info("ensembling segmentation models", "models", len(models), "tta", useTTA)
		bar = progressbar.Default(int64(len(models)))
	}

	avg := make([]imaging.Grid, len(images))
	for i, img := range images {
		avg[i] = imaging.NewGrid(img.Height, img.Width)
	}

	scale := float32(1) / float32(len(models))
	for _, model := range models {
		preds, err := predictOne(model, images, batchSize, useTTA)
		if err != nil {
			return nil, err
		}
		for i := range preds {
			for j, v := range preds[i].Pix {
				avg[i].Pix[j] += v * scale
			}
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return avg, nil
}

// predictOne runs a single model, applying flip TTA when requested. The
// horizontal flip is its own inverse, so mirroring the flipped predictions
// restores spatial alignment with the un-flipped batch.
func predictOne(model Segmenter, images []imaging.Image, batchSize int, useTTA bool) ([]imaging.Grid, error) {
	preds, err := model.Predict(images, batchSize)
	if err != nil {
		return nil, err
	}
	if err := validateShapes(preds, images); err != nil {
		return nil, err
	}
	if !useTTA {
		return preds, nil
	}

	flipped := make([]imaging.Image, len(images))
	for i, img := range images {
		flipped[i] = img.FlipLR()
	}
	predsTTA, err := model.Predict(flipped, batchSize)
	if err != nil {
		return nil, err
	}
	if err := validateShapes(predsTTA, images); err != nil {
		return nil, err
	}

	for i := range preds {
		back := predsTTA[i].FlipLR()
		for j := range preds[i].Pix {
			preds[i].Pix[j] = (preds[i].Pix[j] + back.Pix[j]) / 2
		}
	}
	return preds, nil
}

func validateShapes(preds []imaging.Grid, images []imaging.Image) error {
	if len(preds) != len(images) {
		return fmt.Errorf("%w: %d predictions for %d images", ErrShapeMismatch, len(preds), len(images))
	}
	for i, p := range preds {
		if p.Height != images[i].Height || p.Width != images[i].Width {
			return fmt.Errorf("%w: prediction %d is %dx%d, input is %dx%d",
				ErrShapeMismatch, i, p.Height, p.Width, images[i].Height, images[i].Width)
		}
	}
	return nil
}
