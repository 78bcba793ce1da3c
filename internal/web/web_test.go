package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/config"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store/memory"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/handlers"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/middleware"
)

// stubDetector reports one face covering the whole image.
type stubDetector struct{}

func (stubDetector) DetectFace(ctx context.Context, img image.Image) (descriptor.Rect, error) {
	b := img.Bounds()
	return descriptor.Rect{X: 0, Y: 0, Width: b.Dx(), Height: b.Dy()}, nil
}

// stubModel returns a fixed descriptor for every input.
type stubModel struct {
	out []float32
}

func (m stubModel) Infer(ctx context.Context, normalized []float32) ([]float32, error) {
	return append([]float32(nil), m.out...), nil
}

type testEnv struct {
	server *Server
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := memory.New()
	extractor := descriptor.NewExtractor(stubDetector{}, stubModel{out: []float32{1, 0, 0}}, 3, nil)
	alerts := alert.NewService(mem, mem, 0.70, nil)
	media, err := handlers.NewMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating media store: %v", err)
	}

	var cfg config.Config
	cfg.ApplyDefaults()

	srv := NewServer(&cfg, Deps{
		Store:     mem,
		Extractor: extractor,
		Alerts:    alerts,
		Media:     media,
	})
	return &testEnv{server: srv, store: mem}
}

func encodeTestJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test JPEG: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a multipart form with a photo plus extra fields.
func multipartBody(t *testing.T, photo []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(photo); err != nil {
		t.Fatalf("writing photo: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path, role string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if role != "" {
		req.Header.Set(middleware.RoleHeader, role)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d, want 200", rec.Code)
	}
}

func TestCaseRegistrationRequiresManagerRole(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, encodeTestJPEG(t), map[string]string{"name": "Jordan Doe"})

	rec := env.do(t, http.MethodPost, "/api/v1/cases", "citizen", body, ct)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("citizen case create = %d, want 403", rec.Code)
	}
}

func TestCaseRegistration(t *testing.T) {
	env := newTestEnv(t)
	body, ct := multipartBody(t, encodeTestJPEG(t), map[string]string{
		"name":      "Jordan Doe",
		"age":       "34",
		"last_seen": "Riverside Park",
	})

	rec := env.do(t, http.MethodPost, "/api/v1/cases", "case_manager", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("case create = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[cases.Case](t, rec)
	if created.ID == "" || created.Status != cases.StatusActive {
		t.Errorf("unexpected created case: %+v", created)
	}
	if created.DescriptorOrigin != "genuine" {
		t.Errorf("descriptor origin = %q, want genuine", created.DescriptorOrigin)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/cases", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("case list = %d", rec.Code)
	}
	listed := decodeBody[map[string]json.RawMessage](t, rec)
	var count int
	if err := json.Unmarshal(listed["count"], &count); err != nil || count != 1 {
		t.Errorf("case count = %d (%v), want 1", count, err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/cases/"+created.ID, "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("case get = %d", rec.Code)
	}
}

func TestCaseRegistrationValidation(t *testing.T) {
	env := newTestEnv(t)

	// Missing name.
	body, ct := multipartBody(t, encodeTestJPEG(t), nil)
	rec := env.do(t, http.MethodPost, "/api/v1/cases", "admin", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d, want 400", rec.Code)
	}

	// Non-image payload.
	body, ct = multipartBody(t, []byte("not an image"), map[string]string{"name": "X"})
	rec = env.do(t, http.MethodPost, "/api/v1/cases", "admin", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad photo = %d, want 400", rec.Code)
	}
}

func TestCaseStatusUpdate(t *testing.T) {
	env := newTestEnv(t)
	seedCase(t, env, "case-1", []float32{1, 0, 0})

	payload := bytes.NewBufferString(`{"status":"found"}`)
	rec := env.do(t, http.MethodPut, "/api/v1/cases/case-1/status", "admin", payload, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[cases.Case](t, rec)
	if updated.Status != cases.StatusFound {
		t.Errorf("status = %s, want found", updated.Status)
	}

	payload = bytes.NewBufferString(`{"status":"closed"}`)
	rec = env.do(t, http.MethodPut, "/api/v1/cases/case-1/status", "investigator", payload, "application/json")
	if rec.Code != http.StatusForbidden {
		t.Errorf("investigator status update = %d, want 403", rec.Code)
	}

	payload = bytes.NewBufferString(`{"status":"resolved"}`)
	rec = env.do(t, http.MethodPut, "/api/v1/cases/case-1/status", "admin", payload, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", rec.Code)
	}
}

func seedCase(t *testing.T, env *testEnv, id string, d []float32) {
	t.Helper()
	err := env.store.CreateCase(context.Background(), cases.Case{
		ID:               id,
		Name:             "Person " + id,
		Status:           cases.StatusActive,
		ReportedAt:       time.Now().UTC(),
		Descriptor:       d,
		DescriptorOrigin: "genuine",
	})
	if err != nil {
		t.Fatalf("seeding case %s: %v", id, err)
	}
}

func TestMatchCreatesAlertAndLifecycle(t *testing.T) {
	env := newTestEnv(t)
	// The stub model always produces {1,0,0}, so this case is an exact match.
	seedCase(t, env, "case-1", []float32{1, 0, 0})

	body, ct := multipartBody(t, encodeTestJPEG(t), map[string]string{
		"location":    "Central Station",
		"latitude":    "9.574639",
		"longitude":   "77.679861",
		"person_name": "Unknown",
	})
	rec := env.do(t, http.MethodPost, "/api/v1/matches", "investigator", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("match = %d, body %s", rec.Code, rec.Body.String())
	}
	outcome := decodeBody[alert.MatchOutcome](t, rec)
	if outcome.Alert == nil {
		t.Fatal("expected an alert")
	}
	if outcome.Alert.CaseID != "case-1" || outcome.Alert.Status != alert.StatusPending {
		t.Errorf("unexpected alert: %+v", outcome.Alert)
	}
	if outcome.Alert.Latitude == nil || *outcome.Alert.Latitude != 9.574639 {
		t.Errorf("latitude not carried: %+v", outcome.Alert.Latitude)
	}
	id := outcome.Alert.ID

	// Citizen may not assign.
	payload := bytes.NewBufferString(`{"assignee":"officer-7"}`)
	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+id+"/assign", "citizen", payload, "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("citizen assign = %d, want 422", rec.Code)
	}

	// Admin assigns.
	payload = bytes.NewBufferString(`{"assignee":"officer-7"}`)
	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+id+"/assign", "admin", payload, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("assign = %d, body %s", rec.Code, rec.Body.String())
	}
	assigned := decodeBody[alert.Alert](t, rec)
	if assigned.Status != alert.StatusAssigned || assigned.Assignee != "officer-7" {
		t.Errorf("assign not applied: %+v", assigned)
	}

	// Investigator completes.
	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+id+"/complete", "investigator", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete = %d, body %s", rec.Code, rec.Body.String())
	}
	completed := decodeBody[alert.Alert](t, rec)
	if completed.Status != alert.StatusCompleted || completed.CompletedAt == nil {
		t.Errorf("complete not applied: %+v", completed)
	}

	// Terminal alerts accept nothing further.
	rec = env.do(t, http.MethodPost, "/api/v1/alerts/"+id+"/reject", "admin", nil, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("reject after complete = %d, want 422", rec.Code)
	}
}

func TestMatchBelowThresholdCreatesNoAlert(t *testing.T) {
	env := newTestEnv(t)
	// Orthogonal to the stub model's output.
	seedCase(t, env, "case-1", []float32{0, 1, 0})

	body, ct := multipartBody(t, encodeTestJPEG(t), nil)
	rec := env.do(t, http.MethodPost, "/api/v1/matches", "citizen", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("match = %d, body %s", rec.Code, rec.Body.String())
	}
	outcome := decodeBody[alert.MatchOutcome](t, rec)
	if outcome.Alert != nil {
		t.Fatalf("no alert expected, got %+v", outcome.Alert)
	}
	if outcome.Considered != 1 {
		t.Errorf("considered = %d, want 1", outcome.Considered)
	}
}

func TestMatchCoordinateValidation(t *testing.T) {
	env := newTestEnv(t)
	seedCase(t, env, "case-1", []float32{1, 0, 0})

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"latitude only", map[string]string{"latitude": "10"}},
		{"non-numeric", map[string]string{"latitude": "x", "longitude": "y"}},
		{"out of range", map[string]string{"latitude": "95", "longitude": "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, encodeTestJPEG(t), tt.fields)
			rec := env.do(t, http.MethodPost, "/api/v1/matches", "citizen", body, ct)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAlertsListAndValidation(t *testing.T) {
	env := newTestEnv(t)
	seedCase(t, env, "case-1", []float32{1, 0, 0})

	for i := range 3 {
		body, ct := multipartBody(t, encodeTestJPEG(t), map[string]string{
			"location": fmt.Sprintf("spot %d", i),
		})
		rec := env.do(t, http.MethodPost, "/api/v1/matches", "system", body, ct)
		if rec.Code != http.StatusCreated {
			t.Fatalf("match %d = %d", i, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/alerts?limit=2", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts list = %d", rec.Code)
	}
	listed := decodeBody[map[string]json.RawMessage](t, rec)
	var count int
	if err := json.Unmarshal(listed["count"], &count); err != nil || count != 2 {
		t.Errorf("alert count = %d (%v), want 2", count, err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/alerts?limit=abc", "", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/alerts/unknown", "", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown alert = %d, want 404", rec.Code)
	}
}

func TestAssignRequiresAssignee(t *testing.T) {
	env := newTestEnv(t)
	payload := bytes.NewBufferString(`{}`)
	rec := env.do(t, http.MethodPost, "/api/v1/alerts/some-id/assign", "admin", payload, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty assignee = %d, want 400", rec.Code)
	}
}
