package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
		reason string
	}{
		{name: "no keys disables auth", path: "/v1/route", want: http.StatusOK},
		{name: "blank keys are ignored", keys: []string{"", ""}, path: "/v1/route", want: http.StatusOK},
		{name: "missing header", keys: []string{"secret"}, path: "/v1/route",
			want: http.StatusUnauthorized, reason: "missing authorization header"},
		{name: "basic scheme", keys: []string{"secret"}, path: "/v1/stats", header: "Basic dXNlcjpwYXNz",
			want: http.StatusUnauthorized, reason: "authorization header must use Bearer scheme"},
		{name: "unknown key", keys: []string{"secret"}, path: "/v1/stats", header: "Bearer secre",
			want: http.StatusUnauthorized, reason: "invalid api key"},
		{name: "valid key", keys: []string{"secret"}, path: "/v1/route", header: "Bearer secret", want: http.StatusOK},
		{name: "second of several keys", keys: []string{"alpha", "beta"}, path: "/v1/stats", header: "Bearer beta",
			want: http.StatusOK},
		{name: "health is public", keys: []string{"secret"}, path: "/health", want: http.StatusOK},
		{name: "metrics is public", keys: []string{"secret"}, path: "/metrics", want: http.StatusOK},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			BearerAuthMiddleware(tc.keys)(next).ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			if tc.reason == "" {
				return
			}
			var e ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if e.Code != ErrorCodeUnauthorized || e.Message != tc.reason {
				t.Errorf("got %+v, want %s %q", e, ErrorCodeUnauthorized, tc.reason)
			}
		})
	}
}
