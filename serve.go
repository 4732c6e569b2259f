package slidemine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// HTTPServer is the read-only HTTP surface over a Service: pipeline state,
// scores, and drafts for review tooling. No mutating endpoints; drafts are
// generated and exported through the CLI or MCP.
type HTTPServer struct {
	svc    *Service
	srv    *http.Server
	router chi.Router

	// passwordHash is the bcrypt hash of the basic-auth password; nil
	// disables auth.
	passwordHash []byte
}

// NewHTTPServer builds the server. A non-empty password enables basic auth
// (any username, constant-time password compare against a bcrypt hash).
func NewHTTPServer(svc *Service, addr, password string) (*HTTPServer, error) {
	s := &HTTPServer{svc: svc}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("slidemine: hash auth password: %w", err)
		}
		s.passwordHash = hash
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	if s.passwordHash != nil {
		r.Use(s.basicAuth)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/report", s.handleReport)
		r.Get("/posts", s.handlePosts)
		r.Get("/matches", s.handleMatches)
		r.Get("/scores", s.handleScores)
		r.Get("/drafts", s.handleDrafts)
		r.Get("/drafts/{draftID}", s.handleDraft)
	})
	s.router = r
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Start serves until Stop or a listener error.
func (s *HTTPServer) Start() error {
	s.svc.logger.Info("http: listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop drains in-flight requests.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pass, ok := r.BasicAuth()
		// Username is ignored; only the password is checked.
		if !ok || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="slidemine"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Report(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *HTTPServer) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.Store().ListCrawlPosts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *HTTPServer) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.svc.Store().ListMatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *HTTPServer) handleScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.svc.Store().ListScores(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *HTTPServer) handleDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.svc.Store().ListDrafts(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (s *HTTPServer) handleDraft(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")
	d, err := s.svc.Store().GetDraft(r.Context(), draftID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	slides, err := s.svc.Store().ListDraftSlides(r.Context(), draftID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"draft": d, "slides": slides})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
