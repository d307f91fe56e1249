// Package api serves the internal REST API: commit projections, flag reports
// and owner plan/trial management.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/covhub/covhub/core"
	"github.com/covhub/covhub/internal/contract"
	"github.com/covhub/covhub/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Server holds the dependencies of the HTTP layer.
type Server struct {
	store   contract.Store
	commits *core.CommitSerializer
	pulls   *core.PullCommands
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewServer creates the REST server.
func NewServer(store contract.Store, commits *core.CommitSerializer, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		store:   store,
		commits: commits,
		pulls:   core.NewPullCommands(store),
		log:     logging.WithComponent(log, "api"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source of the plan endpoints.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Mount attaches another handler, such as the GraphQL endpoint, under the authenticated routes.
type Mount struct {
	Pattern string
	Handler http.Handler
}

// Handler builds the router.
func (s *Server) Handler(mounts ...Mount) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(logging.RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		for _, m := range mounts {
			r.Handle(m.Pattern, m.Handler)
		}

		r.Route("/internal/{service}/{owner}", func(r chi.Router) {
			r.Get("/plan", s.GetPlan)
			r.Post("/plan/trial/start", s.StartTrial)
			r.Post("/plan/trial/expire", s.ExpireTrial)

			r.Get("/{repo}/commits/{commitid}", s.GetCommit)
			r.Get("/{repo}/commits/{commitid}/flags/{flag}", s.GetCommitFlag)
			r.Get("/{repo}/pulls", s.ListPulls)
			r.Get("/{repo}/pulls/{pullid}", s.GetPull)
		})
	})
	return r
}

// requestContext copies the chi request id into the core context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code, msg string, status int) {
	var resp ErrorResponse
	resp.Error.Code, resp.Error.Message = code, msg
	writeJSON(w, status, resp)
}

// writeError maps err to a status code and error code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField(logging.StandardFields.RequestID, core.RequestID(r.Context())).Error("request failed")
		msg = "internal error"
	}
	writeErr(w, code, msg, status)
}

func errorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, contract.ErrUnauthenticated), errors.Is(err, contract.ErrProviderAuth):
		return "UNAUTHENTICATED", http.StatusUnauthorized
	case errors.Is(err, contract.ErrUnauthorized):
		return "UNAUTHORIZED", http.StatusForbidden
	case errors.Is(err, contract.ErrCommitNotFound), errors.Is(err, contract.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, contract.ErrValidation):
		return "VALIDATION", http.StatusBadRequest
	case errors.Is(err, contract.ErrProviderUnreachable):
		return "PROVIDER_UNREACHABLE", http.StatusBadGateway
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

// Healthz reports liveness.
func (s *Server) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
