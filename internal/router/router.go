package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BerylCAtieno/unitydesk-api/internal/config"
	"github.com/BerylCAtieno/unitydesk-api/internal/handlers"
	"github.com/BerylCAtieno/unitydesk-api/internal/middleware"
	"github.com/BerylCAtieno/unitydesk-api/internal/ratelimit"
	"github.com/BerylCAtieno/unitydesk-api/internal/services"
	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
)

func NewRouter(
	cfg *config.Config,
	complaintService services.ComplaintService,
	sessions *services.SessionStore,
	limiter *ratelimit.Limiter,
	logger *utils.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	complaintHandler := handlers.NewComplaintHandler(complaintService, cfg.MaxUploadSize, cfg.MaxImages, logger)
	officerHandler := handlers.NewOfficerHandler(complaintService, logger)
	submissionHandler := handlers.NewSubmissionHandler(sessions, cfg.MaxUploadSize, cfg.MaxImages, logger)
	limited := middleware.RateLimit(limiter, cfg.TrustProxyHeaders, logger)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", complaintHandler.Health).Methods(http.MethodGet)

	// AI endpoints
	api.HandleFunc("/analyze-complaint", complaintHandler.AnalyzeComplaint).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/validate-image", limited(http.HandlerFunc(complaintHandler.ValidateImage))).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/analyze-text", limited(http.HandlerFunc(complaintHandler.AnalyzeText))).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/generate-report", complaintHandler.GenerateReport).Methods(http.MethodPost, http.MethodOptions)

	// Citizen endpoints
	api.HandleFunc("/complaints", complaintHandler.SubmitComplaint).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/complaints/status", complaintHandler.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/reverse-geocode", complaintHandler.ReverseGeocode).Methods(http.MethodGet)

	// Submission wizard
	api.HandleFunc("/submissions", submissionHandler.Create).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/submissions/{id}", submissionHandler.Get).Methods(http.MethodGet)
	steps := map[string]http.HandlerFunc{
		"capture":       submissionHandler.Capture,
		"edge-validate": submissionHandler.EdgeValidate,
		"analyze":       submissionHandler.Analyze,
		"location":      submissionHandler.Location,
		"edit":          submissionHandler.Edit,
		"preview":       submissionHandler.Preview,
		"back":          submissionHandler.Back,
		"submit":        submissionHandler.Submit,
	}
	for name, handler := range steps {
		api.HandleFunc("/submissions/{id}/"+name, handler).Methods(http.MethodPost, http.MethodOptions)
	}

	// Officer endpoints
	officer := api.PathPrefix("/officer").Subrouter()
	officer.Use(middleware.OfficerAuth(cfg.OfficerJWTSecret))
	officer.HandleFunc("/complaints", officerHandler.ListComplaints).Methods(http.MethodGet, http.MethodOptions)
	officer.HandleFunc("/complaints/{id}", officerHandler.GetComplaint).Methods(http.MethodGet, http.MethodOptions)
	officer.HandleFunc("/complaints/{id}/status", officerHandler.UpdateStatus).Methods(http.MethodPatch, http.MethodOptions)
	officer.HandleFunc("/stats", officerHandler.Stats).Methods(http.MethodGet, http.MethodOptions)

	return r
}
