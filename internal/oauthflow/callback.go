// Package oauthflow runs the local half of the browser OAuth dance:
// a short-lived HTTP server that receives the provider's redirect and
// hands the authorization code back to the CLI.
package oauthflow

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// CallbackServer listens for the OAuth redirect on localhost.
type CallbackServer struct {
	server   *http.Server
	state    string
	codeChan chan string
	errChan  chan error
}

// NewCallbackServer creates a server for the given port and expected
// state parameter. Callbacks carrying a different state are rejected.
func NewCallbackServer(port int, state string) *CallbackServer {
	s := &CallbackServer{
		state:    state,
		codeChan: make(chan string, 1),
		errChan:  make(chan error, 1),
	}

	r := chi.NewRouter()
	r.Get("/callback", s.handleCallback)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start begins serving in the background.
func (s *CallbackServer) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.errChan <- err
		}
	}()
}

// WaitForCode blocks until the redirect arrives, the server fails, or
// the timeout elapses.
func (s *CallbackServer) WaitForCode(timeout time.Duration) (string, error) {
	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-time.After(timeout):
		return "", fmt.Errorf("no authorization callback received within %v", timeout)
	}
}

// Shutdown stops the server.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errMsg := q.Get("error"); errMsg != "" {
		s.errChan <- fmt.Errorf("authorization denied: %s", errMsg)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if s.state != "" && q.Get("state") != s.state {
		s.errChan <- fmt.Errorf("state mismatch in authorization callback")
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		s.errChan <- fmt.Errorf("authorization callback carried no code")
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}

	s.codeChan <- code

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>LifeSync - Connected</title></head>
<body style="font-family: system-ui; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0;">
	<div style="text-align: center;">
		<h1>Connected</h1>
		<p>Authorization complete. You can close this window and return to the terminal.</p>
	</div>
</body>
</html>
`)
}
