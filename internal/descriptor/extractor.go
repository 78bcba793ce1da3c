package descriptor

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
)

// FaceDetector locates at most one face in an image. Implementations return
// ErrNoFaceDetected when the image contains no face.
type FaceDetector interface {
	DetectFace(ctx context.Context, img image.Image) (Rect, error)
}

// Model computes a raw descriptor from a normalized input buffer. It may be
// unavailable; any error triggers the extractor's fallback path.
type Model interface {
	Infer(ctx context.Context, normalized []float32) ([]float32, error)
}

// Extractor turns images into fixed-length, L2-normalized descriptors.
// It is a pure pipeline over its collaborators and holds no mutable state,
// so a single instance serves concurrent requests.
type Extractor struct {
	detector FaceDetector
	model    Model
	length   int
	log      *zap.Logger
}

// NewExtractor creates an extractor producing descriptors of the given
// length (Length if zero).
func NewExtractor(detector FaceDetector, model Model, length int, log *zap.Logger) *Extractor {
	if length <= 0 {
		length = Length
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		detector: detector,
		model:    model,
		length:   length,
		log:      log,
	}
}

// Length returns the descriptor dimension this extractor produces.
func (e *Extractor) Length() int {
	return e.length
}

// Extract locates a face, normalizes the crop and runs model inference.
// If the model fails, the result is a deterministic pseudo-descriptor tagged
// OriginFallback with a degraded confidence marker; extraction itself only
// fails when no face is found.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*Result, error) {
	start := time.Now()

	face, err := e.detector.DetectFace(ctx, img)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	face = face.Clamp(bounds.Dx(), bounds.Dy())
	if face.Empty() {
		return nil, ErrNoFaceDetected
	}

	normalized := Normalize(img, face)

	raw, err := e.model.Infer(ctx, normalized)
	if err == nil && len(raw) != e.length {
		err = fmt.Errorf("model returned %d values, want %d", len(raw), e.length)
	}
	if err != nil {
		e.log.Warn("descriptor model unavailable, using fallback descriptor",
			zap.Error(err),
		)
		return &Result{
			Descriptor:     fallbackDescriptor(normalized, e.length),
			Origin:         OriginFallback,
			Confidence:     FallbackConfidence,
			Face:           face,
			Elapsed:        time.Since(start),
			FallbackReason: err.Error(),
		}, nil
	}

	return &Result{
		Descriptor: L2Normalize(raw),
		Origin:     OriginGenuine,
		Confidence: GenuineConfidence,
		Face:       face,
		Elapsed:    time.Since(start),
	}, nil
}
