package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/ir"
)

// DefaultActivationLimit bounds activation listings without ?limit.
const DefaultActivationLimit = 30

// Server holds the components the handlers call into.
type Server struct {
	manager     *entity.Manager
	invoker     *invoke.Invoker
	activations entity.ActivationStore
	namespace   string
	metrics     http.Handler
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithNamespace sets the namespace "_" resolves to.
func WithNamespace(ns string) Option {
	return func(s *Server) {
		s.namespace = ns
	}
}

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(m *entity.Manager, inv *invoke.Invoker, activations entity.ActivationStore, opts ...Option) http.Handler {
	s := &Server{
		manager:     m,
		invoker:     inv,
		activations: activations,
		namespace:   "guest",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": ir.PlatformVersion})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1/namespaces/{ns}", func(api chi.Router) {
		api.Get("/packages", s.listPackages)
		api.Get("/packages/{name}", s.getPackage)
		api.Put("/packages/{name}", s.putPackage)
		api.Delete("/packages/{name}", s.deletePackage)

		api.Get("/actions", s.listActions)
		api.Get("/actions/{name}", s.getAction)
		api.Put("/actions/{name}", s.putAction)
		api.Delete("/actions/{name}", s.deleteAction)
		api.Post("/actions/{name}", s.invokeAction)
		api.Get("/actions/{pkg}/{name}", s.getAction)
		api.Put("/actions/{pkg}/{name}", s.putAction)
		api.Delete("/actions/{pkg}/{name}", s.deleteAction)
		api.Post("/actions/{pkg}/{name}", s.invokeAction)

		api.Get("/activations", s.listActivations)
		api.Get("/activations/{id}", s.getActivation)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
		)
	})
}

// ns returns the {ns} URL parameter with "_" replaced by the
// server's default.
func (s *Server) ns(r *http.Request) string {
	ns := chi.URLParam(r, "ns")
	if ns == ir.DefaultNamespace {
		return s.namespace
	}
	return ns
}

// actionName returns "pkg/name" or "name" from the URL.
func actionName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if pkg := chi.URLParam(r, "pkg"); pkg != "" {
		return pkg + "/" + name
	}
	return name
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func overwrite(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))
	return v
}

type packageListing struct {
	Packages []ir.Package `json:"packages"`
	Bindings []ir.Binding `json:"bindings"`
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	ns := s.ns(r)
	pkgs, err := s.manager.ListPackages(r.Context(), ns)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bindings, err := s.manager.ListBindings(r.Context(), ns)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if pkgs == nil {
		pkgs = []ir.Package{}
	}
	if bindings == nil {
		bindings = []ir.Binding{}
	}
	writeJSON(w, http.StatusOK, packageListing{Packages: pkgs, Bindings: bindings})
}

func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	desc, err := s.manager.DescribePackage(r.Context(), s.ns(r), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// packageRequest is the PUT body for packages. A non-nil Binding creates
// a binding to that package instead.
type packageRequest struct {
	Binding     *ir.EntityRef   `json:"binding,omitempty"`
	Parameters  ir.ParameterSet `json:"parameters"`
	Annotations ir.ParameterSet `json:"annotations"`
}

func (s *Server) putPackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	ns, name := s.ns(r), chi.URLParam(r, "name")

	if req.Binding != nil {
		target := *req.Binding
		if target.Namespace == ir.DefaultNamespace {
			target.Namespace = s.namespace
		}
		b, err := s.manager.CreateBinding(r.Context(), ns, name, target, req.Parameters, req.Annotations, overwrite(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}

	p, err := s.manager.CreatePackage(r.Context(), ns, name, req.Parameters, req.Annotations, overwrite(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePackage(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeletePackage(r.Context(), s.ns(r), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.manager.ListActions(r.Context(), s.ns(r), r.URL.Query().Get("package"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if actions == nil {
		actions = []ir.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) getAction(w http.ResponseWriter, r *http.Request) {
	desc, err := s.manager.DescribeAction(r.Context(), s.ns(r), actionName(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

type actionRequest struct {
	Exec        ir.Exec         `json:"exec"`
	Parameters  ir.ParameterSet `json:"parameters"`
	Annotations ir.ParameterSet `json:"annotations"`
}

func (s *Server) putAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	a, err := s.manager.CreateAction(r.Context(), s.ns(r), actionName(r), req.Exec, req.Parameters, req.Annotations, overwrite(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) deleteAction(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteAction(r.Context(), s.ns(r), actionName(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// invokeAction runs the action with the body as arguments. With
// ?blocking=false the invocation is queued and only its ID is returned.
func (s *Server) invokeAction(w http.ResponseWriter, r *http.Request) {
	var args ir.ParameterSet
	if err := decodeBody(r, &args); err != nil {
		s.badRequest(w, err)
		return
	}
	ns, target := s.ns(r), actionName(r)

	if blocking, err := strconv.ParseBool(r.URL.Query().Get("blocking")); err == nil && !blocking {
		id, err := s.invoker.Enqueue(r.Context(), ns, target, args)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"activationId": id})
		return
	}

	act, err := s.invoker.Invoke(r.Context(), ns, target, args)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (s *Server) listActivations(w http.ResponseWriter, r *http.Request) {
	limit := DefaultActivationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	acts, err := s.activations.ListActivations(r.Context(), s.ns(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if acts == nil {
		acts = []ir.Activation{}
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) getActivation(w http.ResponseWriter, r *http.Request) {
	act, err := s.activations.GetActivation(r.Context(), s.ns(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}
