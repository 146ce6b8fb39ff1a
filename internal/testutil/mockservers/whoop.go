// Package mockservers provides httptest mock servers for external APIs.
package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// WhoopMockServer provides a mock Whoop API server for testing.
// Workout records are served through the cursor-paginated collection
// endpoint; the token endpoint hands out fresh tokens and counts how
// often it is hit.
type WhoopMockServer struct {
	Server *httptest.Server
	t      *testing.T

	// Workouts are served in order, PageSize per page.
	Workouts []map[string]any
	PageSize int

	// FailAuthOnce makes the next workout request return 401, then
	// clears itself. Exercises the refresh-and-retry path.
	FailAuthOnce bool

	// TokenRequests counts hits on the token endpoint.
	TokenRequests int
}

// NewWhoopMockServer creates a new mock Whoop API server.
func NewWhoopMockServer(t *testing.T) *WhoopMockServer {
	t.Helper()

	mock := &WhoopMockServer{
		t:        t,
		PageSize: 25,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case strings.Contains(r.URL.Path, "/oauth/oauth2/token"):
			mock.handleToken(w, r)
		case strings.Contains(r.URL.Path, "/developer/v2/activity/workout"):
			mock.handleWorkouts(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

func (m *WhoopMockServer) handleToken(w http.ResponseWriter, r *http.Request) {
	m.TokenRequests++
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "fresh-access-token",
		"refresh_token": "fresh-refresh-token",
		"expires_in":    3600,
		"token_type":    "bearer",
	})
}

func (m *WhoopMockServer) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	if m.FailAuthOnce {
		m.FailAuthOnce = false
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
		return
	}

	offset := 0
	if cursor := r.URL.Query().Get("nextToken"); cursor != "" {
		offset, _ = strconv.Atoi(cursor)
	}

	end := offset + m.PageSize
	if end > len(m.Workouts) {
		end = len(m.Workouts)
	}

	page := m.Workouts[offset:end]
	nextToken := ""
	if end < len(m.Workouts) {
		nextToken = strconv.Itoa(end)
	}

	json.NewEncoder(w).Encode(map[string]any{
		"records":    page,
		"next_token": nextToken,
	})
}
