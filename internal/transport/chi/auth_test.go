package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{"no keys passes through", nil, "/v1/coverage", "", http.StatusOK},
		{"empty string keys pass through", []string{"", ""}, "/v1/coverage", "", http.StatusOK},
		{"missing header", []string{"secret"}, "/v1/coverage", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "/v1/stop", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong token", []string{"secret"}, "/v1/stop", "Bearer wrong-key", http.StatusUnauthorized},
		{"prefix of token", []string{"secret"}, "/v1/stop", "Bearer secre", http.StatusUnauthorized},
		{"valid token", []string{"secret"}, "/v1/stop", "Bearer secret", http.StatusOK},
		{"second key", []string{"key1", "key2"}, "/v1/coverage", "Bearer key2", http.StatusOK},
		{"healthz exempt", []string{"secret"}, "/healthz", "", http.StatusOK},
		{"metrics exempt", []string{"secret"}, "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Code != CodeUnauthorized {
				t.Errorf("error code: got %s, want %s", errResp.Code, CodeUnauthorized)
			}
		})
	}
}
