package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/tariffs/internal/logger"
	"github.com/liamcoop/tariffs/internal/metrics"
	"github.com/liamcoop/tariffs/multitenantengine"
	"github.com/liamcoop/tariffs/tariff"
)

// tenantManager is the part of MultiTenantEngineManager the API uses
type tenantManager interface {
	CreateTenant(name string) (*multitenantengine.Tenant, error)
	GetEngine(tenantID string) (*tariff.Engine, error)
	ReloadTenant(tenantID string) error
	ListTenants() []multitenantengine.Tenant
}

type Server struct {
	db             *sql.DB
	engineManager  tenantManager
	metrics        *metrics.Manager
	requestTimeout time.Duration
	router         *chi.Mux
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithMetrics records HTTP metrics and exposes them on /metrics
func WithMetrics(m *metrics.Manager) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRequestTimeout bounds handler execution time
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer wires the API around a tenant manager. db is only used by the
// health check and may be nil.
func NewServer(db *sql.DB, engineManager tenantManager, opts ...ServerOption) *Server {
	s := &Server{
		db:             db,
		engineManager:  engineManager,
		requestTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// NewServerWithDB builds a manager over db, loads every tenant and returns the server
func NewServerWithDB(db *sql.DB, managerOpts []multitenantengine.Option, opts ...ServerOption) (*Server, error) {
	engineManager := multitenantengine.NewMultiTenantEngineManager(db, managerOpts...)

	logger.Info("loading tenants from database")
	if err := engineManager.LoadAllTenants(); err != nil {
		return nil, err
	}

	return NewServer(db, engineManager, opts...), nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	// Health check
	r.Get("/api/v1/health", s.handleHealth)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	// Tenant management
	r.Route("/api/v1/tenants", func(r chi.Router) {
		r.Get("/", s.handleListTenants)
		r.Post("/", s.handleCreateTenant)

		r.Route("/{tenantId}", func(r chi.Router) {
			r.Post("/reload", s.handleReloadTenant)

			// Tariff management
			r.Post("/tariffs", s.handleCreateTariff)
			r.Get("/tariffs", s.handleListTariffs)
			r.Get("/tariffs/{tariffId}", s.handleGetTariff)
			r.Put("/tariffs/{tariffId}", s.handleUpdateTariff)
			r.Delete("/tariffs/{tariffId}", s.handleDeleteTariff)

			// Evaluation
			r.Post("/tariffs/{tariffId}/applicability", s.handleApplicability)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		TenantsLoaded: len(s.engineManager.ListTenants()),
		Warnings:      logger.TotalWarnings.Load(),
		Errors:        logger.TotalErrors.Load(),
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// List tenants handler
func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, TenantsListResponse{
		Tenants: s.engineManager.ListTenants(),
	})
}

// Create tenant handler
func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	tenant, err := s.engineManager.CreateTenant(req.Name)
	if err != nil {
		if errors.Is(err, multitenantengine.ErrInvalidTenantName) {
			respondError(w, http.StatusBadRequest, "invalid tenant name", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}

	respondJSON(w, http.StatusCreated, tenant)
}

// Reload tenant handler
func (s *Server) handleReloadTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	if err := s.engineManager.ReloadTenant(tenantID); err != nil {
		respondFailure(w, "failed to reload tenant", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// engineFor resolves the tenant engine or writes a 404
func (s *Server) engineFor(w http.ResponseWriter, r *http.Request) (*tariff.Engine, bool) {
	engine, err := s.engineManager.GetEngine(chi.URLParam(r, "tenantId"))
	if err != nil {
		respondFailure(w, "tenant not found", err)
		return nil, false
	}
	return engine, true
}

// Create tariff handler
func (s *Server) handleCreateTariff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		TariffRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	engine, ok := s.engineFor(w, r)
	if !ok {
		return
	}

	// An empty ID gets a generated UUID; validation and compilation happen in AddTariff
	t := req.toTariff(req.ID)
	if err := engine.AddTariff(t); err != nil {
		respondFailure(w, "failed to add tariff", err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// List tariffs handler
func (s *Server) handleListTariffs(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engineFor(w, r)
	if !ok {
		return
	}

	tariffs, err := engine.ActiveTariffs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tariffs", err)
		return
	}
	if tariffs == nil {
		tariffs = []*tariff.Tariff{}
	}

	respondJSON(w, http.StatusOK, TariffsListResponse{Tariffs: tariffs})
}

// Get tariff handler
func (s *Server) handleGetTariff(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engineFor(w, r)
	if !ok {
		return
	}

	t, err := engine.GetTariff(chi.URLParam(r, "tariffId"))
	if err != nil {
		respondFailure(w, "tariff not found", err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// Update tariff handler
func (s *Server) handleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	var req TariffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	engine, ok := s.engineFor(w, r)
	if !ok {
		return
	}

	t := req.toTariff(chi.URLParam(r, "tariffId"))
	if err := engine.UpdateTariff(t); err != nil {
		respondFailure(w, "failed to update tariff", err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// Delete tariff handler
func (s *Server) handleDeleteTariff(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engineFor(w, r)
	if !ok {
		return
	}

	if err := engine.DeleteTariff(chi.URLParam(r, "tariffId")); err != nil {
		respondFailure(w, "failed to delete tariff", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Applicability handler runs the pipeline for one tariff against a basket
func (s *Server) handleApplicability(w http.ResponseWriter, r *http.Request) {
	var req ApplicabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	patient, err := req.Patient.toPerson()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid patient", err)
		return
	}
	basket, err := req.toBasket()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid basket", err)
		return
	}

	engine, ok := s.engineFor(w, r)
	if !ok {
		return
	}

	tariffID := chi.URLParam(r, "tariffId")
	startTime := time.Now()

	ev, err := engine.Evaluate(tariffID, patient, basket)
	if err != nil {
		respondFailure(w, "evaluation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, ApplicabilityResponse{
		TariffID:        tariffID,
		At:              ev.At,
		Active:          ev.Active,
		PatientEligible: ev.PatientEligible,
		AppliedCount:    ev.AppliedCount(),
		Basket:          ev.Basket,
		EvaluationTime:  time.Since(startTime).String(),
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondFailure maps engine and manager errors to a status code
func respondFailure(w http.ResponseWriter, message string, err error) {
	respondError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, multitenantengine.ErrTenantNotFound),
		errors.Is(err, tariff.ErrTariffNotFound):
		return http.StatusNotFound
	case errors.Is(err, tariff.ErrTariffExists),
		errors.Is(err, tariff.ErrTariffDisabled):
		return http.StatusConflict
	case errors.Is(err, tariff.ErrInvalidTariff),
		errors.Is(err, tariff.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
