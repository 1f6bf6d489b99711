package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelSpec pins one provider model and its fixed input parameters.
type ModelSpec struct {
	// Version is either a version hash or an owner/name reference; the latter
	// runs the model's latest version.
	Version string         `yaml:"version"`
	Params  map[string]any `yaml:"params"`
}

// ModelCatalog maps operation kinds onto provider models.
type ModelCatalog struct {
	Upscale ModelSpec `yaml:"upscale"`
	Fill    ModelSpec `yaml:"fill"`
	Expand  ModelSpec `yaml:"expand"`
}

// DefaultModelCatalog returns the models the editor ships with.
func DefaultModelCatalog() ModelCatalog {
	return ModelCatalog{
		Upscale: ModelSpec{
			Version: "660d922d33153019e8c263a3bba265de882e7f4f70396546b6c9c8f9d47a021a",
			Params: map[string]any{
				"jpeg":      40,
				"noise":     15,
				"task_type": "Real-World Image Super-Resolution-Large",
			},
		},
		Fill: ModelSpec{
			Version: "e5a34f913de0adc560d20e002c45ad43a80031b62caacc3d84010c6b6a64870c",
			Params: map[string]any{
				"num_outputs":         1,
				"guidance_scale":      7.5,
				"prompt_strength":     0.8,
				"num_inference_steps": 25,
			},
		},
		Expand: ModelSpec{
			Version: "luma/reframe-image",
			Params: map[string]any{
				"prompt": "high quality, professional, detailed",
			},
		},
	}
}

// LoadModelCatalog overlays the YAML file at path onto the defaults. An empty
// path returns the defaults unchanged.
func LoadModelCatalog(path string) (ModelCatalog, error) {
	catalog := DefaultModelCatalog()
	path = strings.TrimSpace(path)
	if path == "" {
		return catalog, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return catalog, fmt.Errorf("read model catalog: %w", err)
	}
	var override ModelCatalog
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return catalog, fmt.Errorf("parse model catalog: %w", err)
	}
	catalog.Upscale = mergeSpec(catalog.Upscale, override.Upscale)
	catalog.Fill = mergeSpec(catalog.Fill, override.Fill)
	catalog.Expand = mergeSpec(catalog.Expand, override.Expand)
	return catalog, nil
}

func mergeSpec(base, override ModelSpec) ModelSpec {
	if v := strings.TrimSpace(override.Version); v != "" {
		base.Version = v
	}
	if len(override.Params) > 0 {
		merged := make(map[string]any, len(base.Params)+len(override.Params))
		for k, v := range base.Params {
			merged[k] = v
		}
		for k, v := range override.Params {
			merged[k] = v
		}
		base.Params = merged
	}
	return base
}
