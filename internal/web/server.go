// Package web serves the turn-signal status page and its JSON form.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/turn-signal/internal/status"
)

// Server serves the status of one controller over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	routes     map[string]http.HandlerFunc
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}
	s.routes = map[string]http.HandlerFunc{
		"/":           s.signalPage,
		"/index.html": s.signalPage,
		"/index.json": s.signalJSON,
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s
}

// ServeHTTP routes read-only requests. The page is a live view, so nothing
// is cached.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := s.routes[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	h(w, r)
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) signalPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) signalJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}
