package descriptor

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Length is the default dimension of face descriptors produced by the
// extractor. Everything stored and compared must agree on one width.
const Length = 512

// NormalizedSize is the square edge length the face crop is resized to
// before inference.
const NormalizedSize = 112

// Confidence markers reported with extraction results.
const (
	GenuineConfidence  = 0.95
	FallbackConfidence = 0.5
)

// ErrNoFaceDetected is returned when the detector finds no face in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// Origin tags how a descriptor was produced. Callers must be able to tell a
// genuine model output from the degraded fallback path; a fallback descriptor
// compared as if it were genuine is meaningless.
type Origin int

const (
	// OriginGenuine marks a descriptor computed by the model.
	OriginGenuine Origin = iota
	// OriginFallback marks a deterministic pseudo-descriptor derived from
	// the input because the model was unavailable or failed.
	OriginFallback
)

func (o Origin) String() string {
	switch o {
	case OriginGenuine:
		return "genuine"
	case OriginFallback:
		return "fallback"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// Rect is a face bounding box in absolute pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clamp constrains the rectangle to an image of the given dimensions.
func (r Rect) Clamp(imgWidth, imgHeight int) Rect {
	x1 := max(r.X, 0)
	y1 := max(r.Y, 0)
	x2 := min(r.X+r.Width, imgWidth)
	y2 := min(r.Y+r.Height, imgHeight)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Result is the outcome of a descriptor extraction.
type Result struct {
	Descriptor []float32     `json:"descriptor"`
	Origin     Origin        `json:"-"`
	Confidence float64       `json:"confidence"`
	Face       Rect          `json:"face"`
	Elapsed    time.Duration `json:"-"`
	// FallbackReason is set when Origin is OriginFallback.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Genuine reports whether the descriptor came from the model.
func (r *Result) Genuine() bool {
	return r.Origin == OriginGenuine
}

// WellFormed reports whether a descriptor contains only finite values and is
// not entirely zero.
func WellFormed(d []float32) bool {
	if len(d) == 0 {
		return false
	}
	allZero := true
	for _, v := range d {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		if v != 0 {
			allZero = false
		}
	}
	return !allZero
}

// L2Normalize scales the vector to unit Euclidean length in place and
// returns it. A zero vector is returned unchanged rather than divided by
// zero.
func L2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
