package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surajya/handler"
	"surajya/middleware"
	"surajya/repository"
	"surajya/service"
	"surajya/worker"
)

// Options carries the settings SetupRoutes needs beyond the services.
type Options struct {
	JWTSecret  string
	AdminToken string
	OTPDebug   bool
	Gatherer   prometheus.Gatherer // nil disables /metrics
}

// SetupRoutes configures all API routes
func SetupRoutes(
	grievanceService *service.GrievanceService,
	ruleRepo *repository.PriorityRuleRepository,
	workers []*worker.EscalationWorker,
	opts Options,
) *mux.Router {
	router := mux.NewRouter()

	// Initialize handlers
	grievanceHandler := handler.NewGrievanceHandler(grievanceService, opts.OTPDebug)
	escalationHandler := handler.NewEscalationHandler(grievanceService, workers...)
	adminHandler := handler.NewAdminHandler(grievanceService, ruleRepo)

	authMiddleware := middleware.NewAuthMiddleware(opts.JWTSecret)
	requireAdmin := middleware.RequireAdminToken(opts.AdminToken)

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	grievances := apiV1.PathPrefix("/grievances").Subrouter()

	// POST /api/v1/grievances - File a grievance (citizen)
	grievances.Handle("", authMiddleware.RequireCitizen(http.HandlerFunc(grievanceHandler.CreateGrievance))).Methods("POST")

	// GET /api/v1/grievances/mine - Citizen's own grievances
	grievances.Handle("/mine", authMiddleware.RequireCitizen(http.HandlerFunc(grievanceHandler.GetMyGrievances))).Methods("GET")

	// GET /api/v1/grievances?status=&level= - Officials' queue
	grievances.Handle("", authMiddleware.RequireOfficial(http.HandlerFunc(grievanceHandler.ListGrievances))).Methods("GET")

	// GET /api/v1/grievances/{id} - Grievance detail (official)
	grievances.Handle("/{id}", authMiddleware.RequireOfficial(http.HandlerFunc(grievanceHandler.GetGrievance))).Methods("GET")

	// GET /api/v1/grievances/{id}/history - Audit trail (official)
	grievances.Handle("/{id}/history", authMiddleware.RequireOfficial(http.HandlerFunc(grievanceHandler.GetHistory))).Methods("GET")

	// POST /api/v1/grievances/{id}/resolution - Issue resolution OTP to the citizen
	grievances.Handle("/{id}/resolution", authMiddleware.RequireOfficial(http.HandlerFunc(grievanceHandler.BeginResolution))).Methods("POST")

	// POST /api/v1/grievances/{id}/resolution/confirm - Confirm with the citizen's OTP
	grievances.Handle("/{id}/resolution/confirm", authMiddleware.RequireOfficial(http.HandlerFunc(grievanceHandler.ConfirmResolution))).Methods("POST")

	// Escalation routes (admin only; timers run internally)
	escalations := apiV1.PathPrefix("/escalations").Subrouter()
	escalations.Use(requireAdmin)
	escalations.HandleFunc("/process", escalationHandler.ProcessEscalations).Methods("POST")
	escalations.HandleFunc("/status", escalationHandler.GetStatus).Methods("GET")

	// Admin routes (env-based token; separate from citizen/official auth)
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdmin)
	admin.HandleFunc("/reconciliation", adminHandler.ListReconciliation).Methods("GET")
	admin.HandleFunc("/reconciliation/replay", adminHandler.ReplayReconciliation).Methods("POST")
	admin.HandleFunc("/rules", adminHandler.ListRules).Methods("GET")
	admin.HandleFunc("/rules/{category}", adminHandler.PutRule).Methods("PUT")

	// Prometheus metrics
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

// WithCORS wraps h with permissive CORS headers and answers preflight requests.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
