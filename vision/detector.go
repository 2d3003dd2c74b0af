// Package vision detects salient objects with the Cloud Vision API so text
// placement can avoid them.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"

	"github.com/ByLCY/blessing/layout"
)

const (
	featureObjectLocalization = "OBJECT_LOCALIZATION"
	defaultMaxResults         = 10
)

// Config configures the detector. Credentials fall back to application default credentials.
type Config struct {
	APIKey          string
	CredentialsFile string
	Endpoint        string
	MaxResults      int64
}

// Detector calls images:annotate with OBJECT_LOCALIZATION.
type Detector struct {
	svc        *visionapi.Service
	maxResults int64
	logger     *zap.Logger
}

// New builds a detector. extra options are appended after the ones derived from cfg.
func New(ctx context.Context, cfg Config, logger *zap.Logger, extra ...option.ClientOption) (*Detector, error) {
	var opts []option.ClientOption
	switch {
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init vision service: %w", err)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{svc: svc, maxResults: cfg.MaxResults, logger: logger}, nil
}

// Detect returns normalized object boxes for the encoded image. An image with no objects yields an empty slice.
func (d *Detector) Detect(ctx context.Context, img []byte) ([]layout.ObjectAnnotation, error) {
	if len(img) == 0 {
		return nil, errors.New("vision: image content is empty")
	}
	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(img)},
			Features: []*visionapi.Feature{{Type: featureObjectLocalization, MaxResults: d.maxResults}},
		}},
	}
	resp, err := d.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 || resp.Responses[0] == nil {
		d.logger.Warn("vision returned no result")
		return nil, nil
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, fmt.Errorf("vision annotate: code %d: %s", r.Error.Code, r.Error.Message)
	}
	anns := annotationsFromResponse(r)
	for _, a := range anns {
		d.logger.Debug("vision object", zap.String("name", a.Name), zap.Float64("score", a.Score))
	}
	return anns, nil
}

// annotationsFromResponse 把多边形顶点收敛为外接矩形，并裁剪到 [0,1]。
func annotationsFromResponse(r *visionapi.AnnotateImageResponse) []layout.ObjectAnnotation {
	out := make([]layout.ObjectAnnotation, 0, len(r.LocalizedObjectAnnotations))
	for _, obj := range r.LocalizedObjectAnnotations {
		if obj == nil || obj.BoundingPoly == nil || len(obj.BoundingPoly.NormalizedVertices) == 0 {
			continue
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, v := range obj.BoundingPoly.NormalizedVertices {
			if v == nil {
				continue
			}
			minX, maxX = math.Min(minX, v.X), math.Max(maxX, v.X)
			minY, maxY = math.Min(minY, v.Y), math.Max(maxY, v.Y)
		}
		if math.IsInf(minX, 0) {
			continue
		}
		minX, minY = clamp01(minX), clamp01(minY)
		maxX, maxY = clamp01(maxX), clamp01(maxY)
		out = append(out, layout.ObjectAnnotation{
			Name:  obj.Name,
			Score: obj.Score,
			Box:   layout.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY},
		})
	}
	return out
}

func clamp01(v float64) float64 { return math.Min(math.Max(v, 0), 1) }
