package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ModelSpec identifies one trained model file in an ensemble manifest.
type ModelSpec struct {
	Path string    `yaml:"path"`
	Type ModelType `yaml:"type"`
}

// Manifest declares the segmentation ensemble and the input geometry its
// models were trained on. Manifest order fixes the (logging) order in which
// models are ensembled.
type Manifest struct {
	Models    []ModelSpec `yaml:"models"`
	ImageSize int         `yaml:"image_size"`
	Channels  int         `yaml:"channels"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model manifest: %w", err)
	}

	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, fmt.Errorf("parsing model manifest %s: %w", path, err)
	}

	if len(m.Models) == 0 {
		return nil, fmt.Errorf("model manifest %s declares no models", path)
	}
	if m.ImageSize == 0 {
		m.ImageSize = 256
	}
	if m.Channels == 0 {
		m.Channels = 3
	}
	for i := range m.Models {
		if m.Models[i].Path == "" {
			return nil, fmt.Errorf("model %d in manifest %s has no path", i, path)
		}
		if m.Models[i].Type == "" {
			m.Models[i].Type = OnnxSeg
		}
	}
	return &m, nil
}

// LoadSegmenters resolves every manifest entry through the loader registry,
// releasing already-loaded models if a later one fails.
func (m *Manifest) LoadSegmenters(loaders map[ModelType]SegmenterLoader) ([]Segmenter, error) {
	var models []Segmenter
	for _, spec := range m.Models {
		loader, ok := loaders[spec.Type]
		if !ok {
			releaseAll(models)
			return nil, fmt.Errorf("unknown model type %q for %s", spec.Type, spec.Path)
		}
		model, err := loader(spec.Path)
		if err != nil {
			releaseAll(models)
			return nil, fmt.Errorf("loading model %s: %w", spec.Path, err)
		}
		models = append(models, model)
	}
	return models, nil
}

func releaseAll(models []Segmenter) {
	for _, m := range models {
		m.Release()
	}
}
