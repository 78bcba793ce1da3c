package descriptor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

type stubDetector struct {
	rect Rect
	err  error
}

func (s *stubDetector) DetectFace(ctx context.Context, img image.Image) (Rect, error) {
	return s.rect, s.err
}

type stubModel struct {
	output []float32
	err    error
	calls  int
}

func (s *stubModel) Infer(ctx context.Context, normalized []float32) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func TestExtractGenuine(t *testing.T) {
	raw := make([]float32, 8)
	for i := range raw {
		raw[i] = float32(i + 1)
	}
	detector := &stubDetector{rect: Rect{X: 10, Y: 10, Width: 100, Height: 100}}
	model := &stubModel{output: raw}

	ex := NewExtractor(detector, model, 8, nil)
	result, err := ex.Extract(context.Background(), testImage(200, 200))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if result.Origin != OriginGenuine {
		t.Errorf("expected genuine origin, got %s", result.Origin)
	}
	if result.Confidence != GenuineConfidence {
		t.Errorf("expected confidence %v, got %v", GenuineConfidence, result.Confidence)
	}
	if len(result.Descriptor) != 8 {
		t.Fatalf("expected 8 values, got %d", len(result.Descriptor))
	}

	// The output must be L2-normalized.
	var sum float64
	for _, v := range result.Descriptor {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("descriptor is not unit length: squared norm = %v", sum)
	}
}

func TestExtractFallbackOnModelError(t *testing.T) {
	detector := &stubDetector{rect: Rect{X: 0, Y: 0, Width: 50, Height: 50}}
	model := &stubModel{err: errors.New("connection refused")}

	ex := NewExtractor(detector, model, 64, nil)
	img := testImage(100, 100)

	result, err := ex.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("model failure must not fail extraction, got: %v", err)
	}

	if result.Origin != OriginFallback {
		t.Errorf("expected fallback origin, got %s", result.Origin)
	}
	if result.Confidence != FallbackConfidence {
		t.Errorf("expected confidence %v, got %v", FallbackConfidence, result.Confidence)
	}
	if result.FallbackReason == "" {
		t.Error("expected a fallback reason")
	}
	if len(result.Descriptor) != 64 {
		t.Fatalf("expected 64 values, got %d", len(result.Descriptor))
	}
	if !WellFormed(result.Descriptor) {
		t.Error("fallback descriptor is not well-formed")
	}

	// Fallback output is deterministic for the same input.
	again, err := ex.Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("second extraction failed: %v", err)
	}
	for i := range result.Descriptor {
		if result.Descriptor[i] != again.Descriptor[i] {
			t.Fatalf("fallback descriptor not deterministic at index %d", i)
		}
	}
}

func TestExtractFallbackOnWrongLength(t *testing.T) {
	detector := &stubDetector{rect: Rect{X: 0, Y: 0, Width: 50, Height: 50}}
	model := &stubModel{output: make([]float32, 16)} // wrong dimension

	ex := NewExtractor(detector, model, 32, nil)
	result, err := ex.Extract(context.Background(), testImage(100, 100))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Origin != OriginFallback {
		t.Errorf("wrong-length model output must fall back, got %s", result.Origin)
	}
	if len(result.Descriptor) != 32 {
		t.Errorf("expected 32 values, got %d", len(result.Descriptor))
	}
}

func TestExtractNoFace(t *testing.T) {
	detector := &stubDetector{err: ErrNoFaceDetected}
	model := &stubModel{output: make([]float32, 8)}

	ex := NewExtractor(detector, model, 8, nil)
	_, err := ex.Extract(context.Background(), testImage(100, 100))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected, got %v", err)
	}
	if model.calls != 0 {
		t.Error("model must not be called when no face is detected")
	}
}

func TestExtractEmptyRectAfterClamp(t *testing.T) {
	// Detector returns a box entirely outside the image.
	detector := &stubDetector{rect: Rect{X: 500, Y: 500, Width: 50, Height: 50}}
	model := &stubModel{output: make([]float32, 8)}

	ex := NewExtractor(detector, model, 8, nil)
	_, err := ex.Extract(context.Background(), testImage(100, 100))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Fatalf("expected ErrNoFaceDetected for out-of-bounds box, got %v", err)
	}
}

func TestRectClamp(t *testing.T) {
	tests := []struct {
		name     string
		rect     Rect
		w, h     int
		expected Rect
	}{
		{
			name:     "inside",
			rect:     Rect{X: 10, Y: 10, Width: 20, Height: 20},
			w:        100, h: 100,
			expected: Rect{X: 10, Y: 10, Width: 20, Height: 20},
		},
		{
			name:     "negative origin",
			rect:     Rect{X: -5, Y: -5, Width: 20, Height: 20},
			w:        100, h: 100,
			expected: Rect{X: 0, Y: 0, Width: 15, Height: 15},
		},
		{
			name:     "overflows right and bottom",
			rect:     Rect{X: 90, Y: 95, Width: 20, Height: 20},
			w:        100, h: 100,
			expected: Rect{X: 90, Y: 95, Width: 10, Height: 5},
		},
		{
			name:     "fully outside",
			rect:     Rect{X: 200, Y: 200, Width: 20, Height: 20},
			w:        100, h: 100,
			expected: Rect{X: 100, Y: 100, Width: 0, Height: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rect.Clamp(tt.w, tt.h)
			if got != tt.expected {
				t.Errorf("Clamp() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestWellFormed(t *testing.T) {
	tests := []struct {
		name string
		d    []float32
		want bool
	}{
		{"empty", nil, false},
		{"all zero", make([]float32, 4), false},
		{"normal", []float32{0.1, -0.2, 0.3}, true},
		{"contains NaN", []float32{0.1, float32(math.NaN())}, false},
		{"contains Inf", []float32{0.1, float32(math.Inf(1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WellFormed(tt.d); got != tt.want {
				t.Errorf("WellFormed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestL2NormalizeZeroVector(t *testing.T) {
	zero := make([]float32, 4)
	out := L2Normalize(zero)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("zero vector changed at index %d: %v", i, v)
		}
	}
}
