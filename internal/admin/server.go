// Package admin exposes a read-only status endpoint for operators: node
// health, connected peers, and known documents.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/peerdoc-labs/peerdoc/internal/iface"
	"github.com/peerdoc-labs/peerdoc/internal/storage"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Server serves the status API.
type Server struct {
	localID  wire.PeerID
	registry iface.Registry
	store    storage.Storage
	http     *http.Server
}

// New creates a status server listening on addr.
func New(addr string, localID wire.PeerID, registry iface.Registry, store storage.Storage) *Server {
	s := &Server{
		localID:  localID,
		registry: registry,
		store:    store,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/v1/peers", s.handlePeers).Methods(http.MethodGet)
	router.HandleFunc("/v1/documents", s.handleDocuments).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the handler, for tests.
func (s *Server) Router() http.Handler { return s.http.Handler }

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.http.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: [ADMIN] Status endpoint listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"repoId": string(s.localID),
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, _ *http.Request) {
	peers := s.registry.Peers()
	ids := make([]string, 0, len(peers))
	for _, id := range peers {
		ids = append(ids, string(id))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"peers": ids})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListAll(r.Context())
	if err != nil {
		log.Printf("ERROR: [ADMIN] Listing documents failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}

	ids := make([]string, 0, len(docs))
	for _, id := range docs {
		ids = append(ids, string(id))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": ids})
}
