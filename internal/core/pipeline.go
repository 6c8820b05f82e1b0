package core

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"pneumo-backend/internal/imaging"
	"pneumo-backend/internal/npy"
	"pneumo-backend/internal/submission"

	"github.com/schollz/progressbar/v3"
)

// StageTwoConfig carries the segmentation-stage parameters. All output paths
// are explicit; nothing is resolved against the working directory.
type StageTwoConfig struct {
	ImageSize int
	Channels  int
	BatchSize int
	UseTTA    bool

	Threshold float32
	MinArea   int

	SubmissionPath string
	// ProbMapPath, when non-empty, receives the raw probability masks as a
	// .npy artifact before thresholding.
	ProbMapPath string
}

// StageTwo segments the patients a classification stage marked positive and
// merges the resulting run-length encodings back into the classification
// table. It owns the table for the duration of Run and is its sole writer.
type StageTwo struct {
	models     []Segmenter
	load       imaging.LoadFunc
	preprocess imaging.PreprocessFunc
	cfg        StageTwoConfig
}

// NewStageTwo assembles the orchestrator. load and preprocess may be nil, in
// which case file decoding falls back to imaging.LoadImage and preprocessing
// to the identity cast.
func NewStageTwo(models []Segmenter, load imaging.LoadFunc, preprocess imaging.PreprocessFunc, cfg StageTwoConfig) *StageTwo {
	if load == nil {
		load = imaging.LoadImage
	}
	return &StageTwo{models: models, load: load, preprocess: preprocess, cfg: cfg}
}

// Run executes the selection and inference+merge phases over the table. On
// success the merged table is written to cfg.SubmissionPath; on any fatal
// error the previous contents of that path are left untouched.
func (s *StageTwo) Run(table *submission.Table, imagePaths []string) error {
	slog.Info("commencing stage 2: segmentation of predicted positive patients")

	ids := table.PendingIds()
	if len(ids) == 0 {
		slog.Info("no positive patients selected, skipping inference")
		table.FillBlankEncodings()
		if err := table.Write(s.cfg.SubmissionPath); err != nil {
			return fmt.Errorf("writing submission: %w", err)
		}
		return nil
	}
	if len(s.models) == 0 {
		return fmt.Errorf("%w: no models supplied", ErrEmptyInput)
	}

	paths, err := resolveImagePaths(ids, imagePaths)
	if err != nil {
		return err
	}

	images, err := s.loadImages(paths)
	if err != nil {
		return err
	}
	if s.preprocess != nil {
		images = s.preprocess(images)
	}

	preds, err := RunPrediction(images, s.models, s.cfg.BatchSize, s.cfg.UseTTA)
	if err != nil {
		return fmt.Errorf("running segmentation: %w", err)
	}

	if s.cfg.ProbMapPath != "" {
		if err := saveProbMaps(s.cfg.ProbMapPath, preds); err != nil {
			return fmt.Errorf("saving probability maps: %w", err)
		}
		slog.Info("saved the probability maps", "path", s.cfg.ProbMapPath)
	}

	masks := imaging.PostProcessAll(preds, s.cfg.Threshold, s.cfg.MinArea)

	slog.Info("updating the table with the predicted rle's")
	for i, id := range ids {
		if err := table.SetEncoding(id, imaging.MaskToRLE(masks[i])); err != nil {
			return fmt.Errorf("merging prediction for %s: %w", id, err)
		}
	}
	table.FillBlankEncodings()

	if err := table.Write(s.cfg.SubmissionPath); err != nil {
		return fmt.Errorf("writing submission: %w", err)
	}
	slog.Info("stage 2 completed", "positives", len(ids), "submission", s.cfg.SubmissionPath)
	return nil
}

// resolveImagePaths matches candidate files to the selected ids by filename
// stem. The returned paths are sorted by stem, so their order matches the
// lexicographically sorted id order; downstream merging zips by position.
func resolveImagePaths(ids []string, imagePaths []string) ([]string, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	byStem := make(map[string]string, len(ids))
	for _, path := range imagePaths {
		stem := pathStem(path)
		if _, ok := wanted[stem]; !ok {
			continue
		}
		if prev, dup := byStem[stem]; dup {
			return nil, fmt.Errorf("%w: id %s matches both %s and %s", ErrSelectionMismatch, stem, prev, path)
		}
		byStem[stem] = path
	}

	paths := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		path, ok := byStem[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		paths = append(paths, path)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: no image file for ids %v", ErrSelectionMismatch, missing)
	}
	return paths, nil
}

func pathStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *StageTwo) loadImages(paths []string) ([]imaging.Image, error) {
	slog.Info("loading test images", "count", len(paths))
	bar := progressbar.Default(int64(len(paths)))

	images := make([]imaging.Image, len(paths))
	for i, path := range paths {
		img, err := s.load(path, s.cfg.ImageSize, s.cfg.Channels)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		images[i] = img
		_ = bar.Add(1)
	}
	return images, nil
}

func saveProbMaps(path string, preds []imaging.Grid) error {
	h, w := preds[0].Height, preds[0].Width
	flat := make([]float32, 0, len(preds)*h*w)
	for _, p := range preds {
		flat = append(flat, p.Pix...)
	}
	return npy.WriteFile(path, []int{len(preds), h, w}, flat)
}
