package main

import (
	"log"
	"log/slog"

	"pneumo-backend/cmd"
	"pneumo-backend/internal/core"
	"pneumo-backend/internal/submission"

	"github.com/caarlos0/env/v11"
)

// One-shot runner for the second stage of the classification/segmentation
// cascade: reads the stage-1 table, segments the predicted positives, and
// writes the merged submission.
type Config struct {
	ClassificationCSV string `env:"CLASSIFICATION_CSV,required"`
	ImageDir          string `env:"IMAGE_DIR,required"`
	ModelManifest     string `env:"MODEL_MANIFEST" envDefault:"./models.yaml"`
	OnnxRuntimeDylib  string `env:"ONNX_RUNTIME_DYLIB"`

	Threshold    float64 `env:"THRESHOLD" envDefault:"0.5"`
	MinArea      int     `env:"MIN_AREA" envDefault:"3500"`
	BatchSize    int     `env:"BATCH_SIZE" envDefault:"32"`
	UseTTA       bool    `env:"TTA" envDefault:"true"`
	SaveProbMaps bool    `env:"SAVE_PROB_MAPS" envDefault:"true"`

	SubmissionPath string `env:"SUBMISSION_PATH" envDefault:"submission_final.csv"`
	ProbMapPath    string `env:"PROB_MAP_PATH" envDefault:"predicted_probability_masks.npy"`
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	destroyOrt := cmd.InitOnnxRuntime(cfg.OnnxRuntimeDylib)
	defer destroyOrt()

	manifest, models := cmd.LoadEnsemble(cfg.ModelManifest)
	defer func() {
		for _, model := range models {
			model.Release()
		}
	}()

	table, err := submission.Load(cfg.ClassificationCSV)
	if err != nil {
		log.Fatalf("error loading classification table: %v", err)
	}

	imagePaths, err := core.ListImageFiles(cfg.ImageDir)
	if err != nil {
		log.Fatalf("error listing image files: %v", err)
	}

	stageCfg := core.StageTwoConfig{
		ImageSize:      manifest.ImageSize,
		Channels:       manifest.Channels,
		BatchSize:      cfg.BatchSize,
		UseTTA:         cfg.UseTTA,
		Threshold:      float32(cfg.Threshold),
		MinArea:        cfg.MinArea,
		SubmissionPath: cfg.SubmissionPath,
	}
	if cfg.SaveProbMaps {
		stageCfg.ProbMapPath = cfg.ProbMapPath
	}

	stage := core.NewStageTwo(models, nil, nil, stageCfg)
	if err := stage.Run(table, imagePaths); err != nil {
		log.Fatalf("stage 2 failed: %v", err)
	}
	slog.Info("wrote final submission", "path", cfg.SubmissionPath)
}
