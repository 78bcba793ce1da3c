package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/constants"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/metrics"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/middleware"
)

// CasesHandler handles missing-person case endpoints.
type CasesHandler struct {
	store     store.CaseStore
	extractor *descriptor.Extractor
	media     *MediaStore
	log       *zap.Logger
}

// NewCasesHandler creates a new cases handler.
func NewCasesHandler(s store.CaseStore, e *descriptor.Extractor, m *MediaStore, log *zap.Logger) *CasesHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CasesHandler{store: s, extractor: e, media: m, log: log}
}

// canManageCases reports whether the role may register cases or change
// their status.
func canManageCases(role alert.Role) bool {
	return role == alert.RoleAdmin || role == alert.RoleCaseManager
}

// readUploadedImage pulls the photo field out of the multipart form and
// decodes it. The raw bytes are returned alongside so the original upload
// can be stored unmodified.
func readUploadedImage(r *http.Request) (image.Image, []byte, error) {
	file, _, err := r.FormFile("photo")
	if err != nil {
		return nil, nil, errors.New("photo file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return nil, nil, errors.New("failed to read photo")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.New("photo is not a decodable image")
	}
	return img, data, nil
}

// Create registers a new case from a reference photo.
func (h *CasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())
	if !canManageCases(role) {
		respondError(w, http.StatusForbidden, "role may not register cases")
		return
	}

	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	age := 0
	if raw := r.FormValue("age"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "age must be a non-negative integer")
			return
		}
		age = parsed
	}

	img, data, err := readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.extractor.Extract(r.Context(), img)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	metrics.ExtractionDuration.WithLabelValues(result.Origin.String()).Observe(result.Elapsed.Seconds())

	photoRef, err := h.media.SaveJPEG(data)
	if err != nil {
		h.log.Error("failed to store case photo", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	c := cases.Case{
		ID:               uuid.NewString(),
		Name:             name,
		Age:              age,
		Status:           cases.StatusActive,
		LastSeenLocation: r.FormValue("last_seen"),
		ReportedAt:       time.Now().UTC(),
		PhotoRef:         photoRef,
		Descriptor:       result.Descriptor,
		DescriptorOrigin: result.Origin.String(),
	}
	if err := h.store.CreateCase(r.Context(), c); err != nil {
		respondDomainError(w, err)
		return
	}

	h.log.Info("case registered",
		zap.String("case_id", c.ID),
		zap.String("name", sanitizeForLog(name)),
		zap.String("descriptor_origin", c.DescriptorOrigin),
	)
	respondJSON(w, http.StatusCreated, c)
}

// List returns all cases, newest first.
func (h *CasesHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListCases(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cases": all, "count": len(all)})
}

// Get returns one case by id.
func (h *CasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// UpdateStatus changes a case's status.
func (h *CasesHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())
	if !canManageCases(role) {
		respondError(w, http.StatusForbidden, "role may not change case status")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	status, err := cases.ParseStatus(body.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.UpdateCaseStatus(r.Context(), id, status); err != nil {
		respondDomainError(w, err)
		return
	}

	c, err := h.store.GetCase(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
