package jobs

import (
	"context"
	"fmt"
	"strings"

	"aieditor/internal/canvas"
	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/providers/replicate"
)

// Predictor is the inference provider surface the job protocol depends on.
type Predictor interface {
	CreatePrediction(ctx context.Context, version string, input map[string]any) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*replicate.Prediction, error)
}

type credentialed interface {
	HasCredentials() bool
}

type builder func(spec infra.ModelSpec, req domain.OperationRequest) (map[string]any, error)

// Adapter translates operation requests into provider predictions. Each kind
// has its own request builder; polling and materialization are shared.
type Adapter struct {
	predictor Predictor
	catalog   infra.ModelCatalog
	builders  map[domain.OperationKind]builder
}

// NewAdapter wires the per-kind builders against the model catalog.
func NewAdapter(predictor Predictor, catalog infra.ModelCatalog) *Adapter {
	return &Adapter{
		predictor: predictor,
		catalog:   catalog,
		builders: map[domain.OperationKind]builder{
			domain.OperationUpscale: buildUpscale,
			domain.OperationFill:    buildFill,
			domain.OperationExpand:  buildExpand,
		},
	}
}

// Configured reports whether the provider credential is present.
func (a *Adapter) Configured() bool {
	if a == nil || a.predictor == nil {
		return false
	}
	if c, ok := a.predictor.(credentialed); ok {
		return c.HasCredentials()
	}
	return true
}

// Validate checks that every field the kind requires is present. Upscale and
// expand need a public URL; callers holding inline bytes upload them first.
func Validate(req domain.OperationRequest) error {
	switch req.Kind {
	case domain.OperationUpscale:
		if strings.TrimSpace(req.ImageURL) == "" {
			return domain.Missing("image_url")
		}
	case domain.OperationFill:
		if strings.TrimSpace(req.ImageData) == "" {
			return domain.Missing("image")
		}
		if strings.TrimSpace(req.Mask) == "" {
			if req.Strokes == nil || len(req.Strokes.Strokes) == 0 {
				return domain.Missing("mask")
			}
			w, h := req.Strokes.Width, req.Strokes.Height
			if w < 0 || h < 0 || w > canvas.MaxSide || h > canvas.MaxSide {
				return &domain.ValidationError{Field: "mask", Reason: fmt.Sprintf("canvas size %dx%d out of range", w, h)}
			}
		}
		if strings.TrimSpace(req.Prompt) == "" {
			return domain.Missing("prompt")
		}
	case domain.OperationExpand:
		if strings.TrimSpace(req.ImageURL) == "" {
			return domain.Missing("image_url")
		}
		if req.Aspect == "" && req.Bounds == nil {
			return domain.Missing("aspect_ratio")
		}
		if req.Aspect != "" && req.Bounds != nil {
			return &domain.ValidationError{Field: "aspect_ratio", Reason: "preset and custom bounds are mutually exclusive"}
		}
		if req.Aspect != "" {
			if _, ok := domain.ParseAspectPreset(string(req.Aspect)); !ok {
				return &domain.ValidationError{Field: "aspect_ratio", Reason: fmt.Sprintf("unsupported preset %q", req.Aspect)}
			}
		}
		if req.Bounds != nil && (req.Bounds.Width <= 0 || req.Bounds.Height <= 0) {
			return &domain.ValidationError{Field: "custom_bounds", Reason: "width and height must be positive"}
		}
	default:
		return &domain.ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", req.Kind)}
	}
	return nil
}

// Submit creates the provider prediction and returns a Job in state created.
// Provider rejections are returned as-is; nothing is retried here.
func (a *Adapter) Submit(ctx context.Context, req domain.OperationRequest) (*domain.Job, error) {
	if !a.Configured() {
		return nil, domain.ErrNotConfigured
	}
	if err := Validate(req); err != nil {
		return nil, err
	}
	spec := a.spec(req.Kind)
	input, err := a.builders[req.Kind](spec, req)
	if err != nil {
		return nil, err
	}
	pred, err := a.predictor.CreatePrediction(ctx, spec.Version, input)
	if err != nil {
		return nil, err
	}
	return &domain.Job{
		Handle:    pred.ID,
		Kind:      req.Kind,
		State:     domain.JobStateCreated,
		Inline:    req.Inline,
		Bounds:    req.Bounds,
		SourceURL: req.ImageURL,
	}, nil
}

func (a *Adapter) spec(kind domain.OperationKind) infra.ModelSpec {
	switch kind {
	case domain.OperationUpscale:
		return a.catalog.Upscale
	case domain.OperationFill:
		return a.catalog.Fill
	default:
		return a.catalog.Expand
	}
}

func withParams(spec infra.ModelSpec, extra map[string]any) map[string]any {
	input := make(map[string]any, len(spec.Params)+len(extra))
	for k, v := range spec.Params {
		input[k] = v
	}
	for k, v := range extra {
		input[k] = v
	}
	return input
}

func buildUpscale(spec infra.ModelSpec, req domain.OperationRequest) (map[string]any, error) {
	input := withParams(spec, map[string]any{"image": req.ImageURL})
	if p := req.Upscale; p != nil {
		if p.JPEG > 0 {
			input["jpeg"] = p.JPEG
		}
		if p.Noise > 0 {
			input["noise"] = p.Noise
		}
		if p.TaskType != "" {
			input["task_type"] = p.TaskType
		}
	}
	return input, nil
}

func buildFill(spec infra.ModelSpec, req domain.OperationRequest) (map[string]any, error) {
	iw, ih, err := canvas.Dimensions(req.ImageData)
	if err != nil {
		return nil, &domain.ValidationError{Field: "image", Reason: err.Error()}
	}
	if iw > canvas.MaxSide || ih > canvas.MaxSide {
		return nil, &domain.ValidationError{Field: "image", Reason: fmt.Sprintf("image %dx%d exceeds %d pixels per side", iw, ih, canvas.MaxSide)}
	}
	raw, err := fillMask(req, iw, ih)
	if err != nil {
		return nil, err
	}
	mask, err := canvas.FlattenDataURL(raw)
	if err != nil {
		return nil, &domain.ValidationError{Field: "mask", Reason: err.Error()}
	}
	image := strings.TrimSpace(req.ImageData)
	if !strings.HasPrefix(image, "data:") {
		image = "data:image/png;base64," + image
	}
	return withParams(spec, map[string]any{
		"image":  image,
		"mask":   mask,
		"prompt": strings.TrimSpace(req.Prompt),
	}), nil
}

// fillMask returns the caller's mask, rasterizing strokes when none was
// sent. The mask must match the source image pixel for pixel.
func fillMask(req domain.OperationRequest, iw, ih int) (string, error) {
	if strings.TrimSpace(req.Mask) == "" {
		w, h := req.Strokes.Width, req.Strokes.Height
		if w == 0 && h == 0 {
			w, h = iw, ih
		}
		if w != iw || h != ih {
			return "", &domain.ValidationError{Field: "mask", Reason: fmt.Sprintf("canvas %dx%d does not match image %dx%d", w, h, iw, ih)}
		}
		mask, err := canvas.MaskFromStrokes(w, h, req.Strokes.Strokes)
		if err != nil {
			return "", &domain.ValidationError{Field: "mask", Reason: err.Error()}
		}
		return mask, nil
	}
	mw, mh, err := canvas.Dimensions(req.Mask)
	if err != nil {
		return "", &domain.ValidationError{Field: "mask", Reason: err.Error()}
	}
	if mw != iw || mh != ih {
		return "", &domain.ValidationError{Field: "mask", Reason: fmt.Sprintf("mask %dx%d does not match image %dx%d", mw, mh, iw, ih)}
	}
	return req.Mask, nil
}

func buildExpand(spec infra.ModelSpec, req domain.OperationRequest) (map[string]any, error) {
	aspect := req.Aspect
	if req.Bounds != nil {
		aspect = NearestPreset(*req.Bounds)
	}
	input := withParams(spec, map[string]any{
		"image_url":    req.ImageURL,
		"aspect_ratio": string(aspect),
	})
	if p := strings.TrimSpace(req.Prompt); p != "" {
		input["prompt"] = p
	}
	return input, nil
}
