package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TogglMockServer provides a mock Toggl Track server for testing. One
// server stands in for both the Track API and the Reports API; the
// client points both base URLs at it.
type TogglMockServer struct {
	Server *httptest.Server
	t      *testing.T

	// ReportGroups is the grouped Reports API search response.
	ReportGroups []map[string]any
	// Tags and Projects are the workspace listings.
	Tags     []map[string]any
	Projects []map[string]any
	// Running is the current time entry; nil means no running timer.
	Running map[string]any

	// RejectAuth makes every request return 401, as Toggl does for a
	// revoked API token.
	RejectAuth bool
}

// NewTogglMockServer creates a new mock Toggl server.
func NewTogglMockServer(t *testing.T) *TogglMockServer {
	t.Helper()

	mock := &TogglMockServer{t: t}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if mock.RejectAuth {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api token"})
			return
		}

		switch {
		case strings.Contains(r.URL.Path, "/search/time_entries"):
			json.NewEncoder(w).Encode(mock.ReportGroups)
		case strings.HasSuffix(r.URL.Path, "/tags"):
			json.NewEncoder(w).Encode(mock.Tags)
		case strings.HasSuffix(r.URL.Path, "/projects"):
			json.NewEncoder(w).Encode(mock.Projects)
		case strings.Contains(r.URL.Path, "/me/time_entries/current"):
			json.NewEncoder(w).Encode(mock.Running)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}
