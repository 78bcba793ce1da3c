package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/constants"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/geo"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/metrics"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/middleware"
)

// MatchesHandler runs the sighting pipeline: extract a descriptor from the
// uploaded photo, compare against active cases and create at most one
// pending alert.
type MatchesHandler struct {
	alerts    *alert.Service
	extractor *descriptor.Extractor
	media     *MediaStore
	position  geo.Provider
	log       *zap.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(svc *alert.Service, e *descriptor.Extractor, m *MediaStore, p geo.Provider, log *zap.Logger) *MatchesHandler {
	if p == nil {
		p = geo.NoProvider{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MatchesHandler{alerts: svc, extractor: e, media: m, position: p, log: log}
}

// parseCoordinates reads optional latitude/longitude form fields. Both must
// be present together.
func parseCoordinates(r *http.Request) (*float64, *float64, error) {
	rawLat, rawLon := r.FormValue("latitude"), r.FormValue("longitude")
	if rawLat == "" && rawLon == "" {
		return nil, nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, nil, errors.New("latitude and longitude must be supplied together")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil, nil, errors.New("latitude must be a number")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return nil, nil, errors.New("longitude must be a number")
	}
	if !(geo.Position{Latitude: lat, Longitude: lon}).Valid() {
		return nil, nil, errors.New("coordinates out of range")
	}
	return &lat, &lon, nil
}

// Create processes one sighting photo.
func (h *MatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	img, data, err := readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lat, lon, err := parseCoordinates(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Explicit coordinates win; the device position fills the gap when the
	// capture point is known. The photo and the position arrive
	// independently, so the merge happens here, at creation time.
	if lat == nil {
		if pos, err := h.position.CurrentPosition(r.Context()); err == nil {
			lat, lon = &pos.Latitude, &pos.Longitude
		}
	}

	result, err := h.extractor.Extract(r.Context(), img)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	metrics.ExtractionDuration.WithLabelValues(result.Origin.String()).Observe(result.Elapsed.Seconds())

	// Tag the stored copy with the sighting position when one is known.
	// Failure to tag never fails the sighting; the original bytes are kept.
	if lat != nil {
		if tagged, err := geo.WriteGPS(data, *lat, *lon, false); err == nil {
			data = tagged
		} else if !errors.Is(err, geo.ErrNotJPEG) && !errors.Is(err, geo.ErrGPSExists) {
			h.log.Warn("failed to tag sighting photo with GPS", zap.Error(err))
		}
	}

	photoRef, err := h.media.SaveJPEG(data)
	if err != nil {
		h.log.Error("failed to store sighting photo", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	outcome, err := h.alerts.ProcessMatch(r.Context(), alert.MatchInput{
		Extraction: result,
		SourceRole: middleware.RoleFromContext(r.Context()),
		PersonName: r.FormValue("person_name"),
		Location:   r.FormValue("location"),
		Latitude:   lat,
		Longitude:  lon,
		PhotoRef:   photoRef,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Alert != nil {
		status = http.StatusCreated
	}
	respondJSON(w, status, outcome)
}
