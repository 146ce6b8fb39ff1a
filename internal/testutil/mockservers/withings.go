package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// WithingsMockServer provides a mock Withings API server for testing.
// Measurement groups are served through the offset-paginated getmeas
// action; the Withings status envelope wraps every response.
type WithingsMockServer struct {
	Server *httptest.Server
	t      *testing.T

	// Groups are served in order, PageSize per page.
	Groups   []map[string]any
	PageSize int

	// EnvelopeStatus overrides the envelope status on measure
	// responses. Withings signals auth failure inside an HTTP 200.
	EnvelopeStatus int

	// TokenRequests counts hits on the token endpoint.
	TokenRequests int
}

// NewWithingsMockServer creates a new mock Withings API server.
func NewWithingsMockServer(t *testing.T) *WithingsMockServer {
	t.Helper()

	mock := &WithingsMockServer{
		t:        t,
		PageSize: 100,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(r.URL.Path, "/v2/oauth2"):
			mock.handleToken(w, r)
		case strings.Contains(r.URL.Path, "/measure"):
			mock.handleMeasure(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

func (m *WithingsMockServer) handleToken(w http.ResponseWriter, r *http.Request) {
	m.TokenRequests++
	json.NewEncoder(w).Encode(map[string]any{
		"status": 0,
		"body": map[string]any{
			"access_token":  "fresh-access-token",
			"refresh_token": "fresh-refresh-token",
			"expires_in":    10800,
		},
	})
}

func (m *WithingsMockServer) handleMeasure(w http.ResponseWriter, r *http.Request) {
	if m.EnvelopeStatus != 0 {
		json.NewEncoder(w).Encode(map[string]any{
			"status": m.EnvelopeStatus,
			"error":  "mock failure",
		})
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}

	end := offset + m.PageSize
	if end > len(m.Groups) {
		end = len(m.Groups)
	}

	more := 0
	if end < len(m.Groups) {
		more = 1
	}

	json.NewEncoder(w).Encode(map[string]any{
		"status": 0,
		"body": map[string]any{
			"measuregrps": m.Groups[offset:end],
			"more":        more,
			"offset":      end,
		},
	})
}
