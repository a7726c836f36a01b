// Package server exposes the dashboard-facing JSON API: trigger an
// execution, browse/prune history, and edit the budget/selling rule lists.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"SignalDesk/internal/executor"
	"SignalDesk/internal/ledger"
	"SignalDesk/internal/metrics"
	"SignalDesk/internal/rules"
)

// Server wires the executor, ledger, and rule manager to HTTP handlers.
type Server struct {
	Executor *executor.Executor
	Ledger   ledger.Ledger
	Rules    *rules.Manager

	httpServer *http.Server
}

func New(addr string, exec *executor.Executor, l ledger.Ledger, r *rules.Manager) *Server {
	s := &Server{Executor: exec, Ledger: l, Rules: r}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/execute", s.handleExecute)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteExecution)
	mux.HandleFunc("GET /api/budget-filters", s.handleGetBudgetFilters)
	mux.HandleFunc("POST /api/budget-filters", s.handleSetBudgetFilters)
	mux.HandleFunc("GET /api/selling-filters", s.handleGetSellingFilters)
	mux.HandleFunc("POST /api/selling-filters", s.handleSetSellingFilters)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Printf("[INFO] http server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
