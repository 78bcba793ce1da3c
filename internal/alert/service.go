package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/match"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/metrics"
)

// CaseSource supplies the matching candidates.
type CaseSource interface {
	ListActiveCases(ctx context.Context) ([]cases.Case, error)
}

// Prefilter is optionally implemented by case sources that maintain an
// approximate nearest-neighbor index over active case descriptors. It narrows
// the candidate set before the exact cosine pass; the engine still scores
// every returned candidate itself.
type Prefilter interface {
	NearestActiveCases(ctx context.Context, query []float32, k int) ([]cases.Case, error)
}

// prefilterK bounds the candidate set handed to the exact pass when a
// Prefilter is available. Large enough that the true best match is not
// pruned at realistic index recall.
const prefilterK = 100

// Store is the slice of alert persistence the service needs.
type Store interface {
	CreateAlert(ctx context.Context, a Alert) error
	GetAlert(ctx context.Context, id string) (Alert, error)
	UpdateAlertStatus(ctx context.Context, id string, expected Status, changes Changes) error
}

// Service runs the match-to-alert flow and applies lifecycle transitions.
type Service struct {
	caseSource CaseSource
	alerts     Store
	threshold  float64
	log        *zap.Logger
	now        func() time.Time
}

// NewService creates an alert service with the given matching threshold
// (match.DefaultThreshold if zero).
func NewService(caseSource CaseSource, alerts Store, threshold float64, log *zap.Logger) *Service {
	if threshold <= 0 {
		threshold = match.DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		caseSource: caseSource,
		alerts:     alerts,
		threshold:  threshold,
		log:        log,
		now:        time.Now,
	}
}

// MatchInput carries everything known about a sighting at creation time.
// Geolocation and photo capture race independently upstream; they are merged
// here with no ordering dependency.
type MatchInput struct {
	Extraction *descriptor.Result
	SourceRole Role
	PersonName string
	Location   string
	Latitude   *float64
	Longitude  *float64
	PhotoRef   string
}

// MatchOutcome reports what the pipeline did for one sighting.
type MatchOutcome struct {
	// Alert is non-nil when the best match cleared the threshold; exactly
	// one alert is created per accepted match event.
	Alert *Alert `json:"alert,omitempty"`
	// ClosestSimilarity is the best similarity seen when no alert was
	// created. Diagnostic display only, never persisted.
	ClosestSimilarity float64 `json:"closest_similarity"`
	Considered        int     `json:"considered"`
	Threshold         float64 `json:"threshold"`
	DescriptorOrigin  string  `json:"descriptor_origin"`
}

// ProcessMatch compares the extracted descriptor against all active case
// descriptors and creates a single pending alert when the best match clears
// the threshold.
func (s *Service) ProcessMatch(ctx context.Context, input MatchInput) (*MatchOutcome, error) {
	var active []cases.Case
	var err error
	if pf, ok := s.caseSource.(Prefilter); ok {
		active, err = pf.NearestActiveCases(ctx, input.Extraction.Descriptor, prefilterK)
	} else {
		active, err = s.caseSource.ListActiveCases(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("listing active cases: %w", err)
	}

	candidates := make([]match.Candidate, 0, len(active))
	for _, c := range active {
		candidates = append(candidates, match.Candidate{ID: c.ID, Descriptor: c.Descriptor})
	}

	result, err := match.Compare(input.Extraction.Descriptor, candidates, s.threshold)
	if err != nil {
		return nil, err
	}

	outcome := &MatchOutcome{
		ClosestSimilarity: result.Closest,
		Considered:        result.Considered,
		Threshold:         result.Threshold,
		DescriptorOrigin:  input.Extraction.Origin.String(),
	}

	best := result.Best()
	if best == nil {
		s.log.Info("no match above threshold",
			zap.Float64("closest", result.Closest),
			zap.Int("considered", result.Considered),
			zap.Float64("threshold", result.Threshold),
		)
		metrics.MatchesTotal.WithLabelValues("miss").Inc()
		return outcome, nil
	}

	a := Alert{
		ID:         uuid.NewString(),
		CaseID:     best.CaseID,
		Similarity: best.Similarity,
		Confidence: best.Confidence,
		SourceRole: input.SourceRole,
		Status:     StatusPending,
		Location:   input.Location,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		PhotoRef:   input.PhotoRef,
		Metadata:   map[string]string{"descriptor_origin": input.Extraction.Origin.String()},
		CreatedAt:  s.now().UTC(),
	}
	if input.PersonName != "" {
		a.Metadata["person_name"] = input.PersonName
	}

	if err := s.alerts.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	s.log.Info("alert created from match",
		zap.String("alert_id", a.ID),
		zap.String("case_id", a.CaseID),
		zap.Float64("similarity", a.Similarity),
		zap.Float64("confidence", a.Confidence),
		zap.String("source_role", string(a.SourceRole)),
		zap.String("descriptor_origin", input.Extraction.Origin.String()),
	)
	metrics.MatchesTotal.WithLabelValues("hit").Inc()

	outcome.Alert = &a
	return outcome, nil
}

// Transition applies one lifecycle step to a stored alert. The state machine
// decision is pure; the conditional store update keyed on the current status
// keeps concurrent transitions from both succeeding.
func (s *Service) Transition(ctx context.Context, id string, action Transition, role Role, assignee string) (*Alert, error) {
	current, err := s.alerts.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	changes, err := Apply(current.Status, action, role, assignee, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.alerts.UpdateAlertStatus(ctx, id, current.Status, *changes); err != nil {
		return nil, err
	}

	updated, err := s.alerts.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("alert transition applied",
		zap.String("alert_id", id),
		zap.String("from", string(changes.From)),
		zap.String("to", string(changes.To)),
		zap.String("role", string(role)),
	)
	metrics.AlertTransitionsTotal.WithLabelValues(string(changes.From), string(changes.To)).Inc()

	return &updated, nil
}
