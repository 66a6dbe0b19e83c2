package mock

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// RecordedRequest is one request seen by the ResourceServer.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Header        http.Header
	Body          string
}

// ResourceServer is a mock storefront gateway that accepts only bearer
// tokens the OAuthServer considers valid and records every request.
type ResourceServer struct {
	auth *OAuthServer

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewResourceServer creates a gateway protected by auth.
func NewResourceServer(auth *OAuthServer) *ResourceServer {
	return &ResourceServer{auth: auth}
}

// Handler returns the gateway routes. Every path under /api answers with a
// JSON echo of the request when authorized and 401 otherwise.
func (s *ResourceServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.PathPrefix("/api/").HandlerFunc(s.handleAPI)
	return r
}

// Requests returns every recorded request.
func (s *ResourceServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// CallsTo counts recorded requests to path.
func (s *ResourceServer) CallsTo(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *ResourceServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Header:        r.Header.Clone(),
		Body:          string(body),
	})
	s.mu.Unlock()

	token := ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" || !s.auth.ValidateToken(token) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"method": r.Method,
		"path":   r.URL.Path,
		"body":   string(body),
	})
}

// ExtractBearerToken extracts the token from a "Bearer <token>" header value.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return authHeader[7:]
	}
	return ""
}
