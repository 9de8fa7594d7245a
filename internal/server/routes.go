package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Brief generation and archive
	mux.HandleFunc("/api/brief", s.handleBriefRoute)              // POST - run pipeline, GET - archived brief by date
	mux.HandleFunc("/api/briefs", s.app.BriefHandler.ListHandler) // GET - list archived briefs

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleBriefRoute dispatches /api/brief by method
func (s *Server) handleBriefRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"POST": s.app.BriefHandler.GenerateHandler,
		"GET":  s.app.BriefHandler.GetHandler,
	})
}
