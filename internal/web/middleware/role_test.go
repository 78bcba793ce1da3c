package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
)

func TestWithRole(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   alert.Role
	}{
		{"admin header", "admin", alert.RoleAdmin},
		{"case manager header", "case_manager", alert.RoleCaseManager},
		{"investigator header", "investigator", alert.RoleInvestigator},
		{"missing header defaults to citizen", "", alert.RoleCitizen},
		{"unknown role defaults to citizen", "superuser", alert.RoleCitizen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got alert.Role
			handler := WithRole(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = RoleFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RoleHeader, tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("role = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRoleFromContextWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RoleFromContext(req.Context()); got != alert.RoleCitizen {
		t.Errorf("role = %s, want citizen", got)
	}
}
