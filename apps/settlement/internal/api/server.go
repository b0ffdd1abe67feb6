package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/payment"
)

// Server represents the API server
type Server struct {
	policyHandler  *PolicyHandler
	walletHandler  *WalletHandler
	payoutHandler  *PayoutHandler
	escrowHandler  *EscrowHandler
	disputeHandler *DisputeHandler
	webhookHandler *WebhookHandler
	mcpHandler     http.Handler
	mcpPath        string
	logger         *zap.Logger
	server         *http.Server
}

// ServerOption customizes a Server
type ServerOption func(*Server)

// WithMCPHandler mounts an MCP transport on path next to the REST API.
func WithMCPHandler(path string, handler http.Handler) ServerOption {
	return func(s *Server) {
		s.mcpPath = path
		s.mcpHandler = handler
	}
}

// NewServer creates a new API server
func NewServer(port int, service *payment.Service, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		policyHandler:  NewPolicyHandler(service, logger),
		walletHandler:  NewWalletHandler(service, logger),
		payoutHandler:  NewPayoutHandler(service, logger),
		escrowHandler:  NewEscrowHandler(service, logger),
		disputeHandler: NewDisputeHandler(service, logger),
		webhookHandler: NewWebhookHandler(service, logger),
		logger:         logger,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the API server
func (s *Server) Start() error {
	s.server.Handler = s.setupRoutes()

	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.loggingMiddleware)
	router.Use(s.corsMiddleware)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if s.mcpHandler != nil {
		router.PathPrefix(s.mcpPath).Handler(s.mcpHandler)
	}

	api := router.PathPrefix("/api").Subrouter()

	// Policy, fees and networks
	api.HandleFunc("/policy", s.policyHandler.GetPolicy).Methods("GET")
	api.HandleFunc("/policy", s.policyHandler.UpdatePolicy).Methods("PUT")
	api.HandleFunc("/fees/estimate", s.policyHandler.EstimateFees).Methods("GET")
	api.HandleFunc("/networks", s.policyHandler.ListNetworks).Methods("GET")

	// Wallets
	api.HandleFunc("/wallets", s.walletHandler.UpsertWallet).Methods("PUT")
	api.HandleFunc("/wallets", s.walletHandler.ListWallets).Methods("GET")
	api.HandleFunc("/wallets/{wallet_id}/challenges", s.walletHandler.CreateChallenge).Methods("POST")
	api.HandleFunc("/wallets/{wallet_id}/challenges", s.walletHandler.ListChallenges).Methods("GET")
	api.HandleFunc("/challenges/{challenge_id}/verify", s.walletHandler.VerifyChallenge).Methods("POST")

	// Payouts
	api.HandleFunc("/payouts", s.payoutHandler.CreatePayout).Methods("POST")
	api.HandleFunc("/payouts", s.payoutHandler.ListPayouts).Methods("GET")
	api.HandleFunc("/payouts/{payout_id}", s.payoutHandler.GetPayout).Methods("GET")
	api.HandleFunc("/payouts/{payout_id}/approve", s.payoutHandler.ApprovePayout).Methods("POST")
	api.HandleFunc("/payouts/{payout_id}/execute", s.payoutHandler.ExecutePayout).Methods("POST")
	api.HandleFunc("/payouts/{payout_id}/fail", s.payoutHandler.FailPayout).Methods("POST")
	api.HandleFunc("/payouts/{payout_id}/events", s.payoutHandler.ListPayoutEvents).Methods("GET")

	// Escrow and milestones
	api.HandleFunc("/escrows", s.escrowHandler.CreateHold).Methods("POST")
	api.HandleFunc("/escrows", s.escrowHandler.ListEscrows).Methods("GET")
	api.HandleFunc("/escrows/{escrow_id}", s.escrowHandler.GetEscrow).Methods("GET")
	api.HandleFunc("/escrows/{escrow_id}/release", s.escrowHandler.ReleaseEscrow).Methods("POST")
	api.HandleFunc("/escrows/{escrow_id}/events", s.escrowHandler.ListEscrowEvents).Methods("GET")
	api.HandleFunc("/milestones", s.escrowHandler.CreateMilestone).Methods("POST")
	api.HandleFunc("/milestones", s.escrowHandler.ListMilestones).Methods("GET")
	api.HandleFunc("/milestones/{milestone_id}/complete", s.escrowHandler.CompleteMilestone).Methods("POST")

	// Disputes
	api.HandleFunc("/disputes", s.disputeHandler.OpenDispute).Methods("POST")
	api.HandleFunc("/disputes", s.disputeHandler.ListDisputes).Methods("GET")
	api.HandleFunc("/disputes/{dispute_id}", s.disputeHandler.GetDispute).Methods("GET")
	api.HandleFunc("/disputes/{dispute_id}/resolve", s.disputeHandler.ResolveDispute).Methods("POST")
	api.HandleFunc("/disputes/{dispute_id}/events", s.disputeHandler.ListDisputeEvents).Methods("GET")

	// Webhooks
	api.HandleFunc("/webhooks", s.webhookHandler.CreateSubscription).Methods("POST")
	api.HandleFunc("/webhooks", s.webhookHandler.ListSubscriptions).Methods("GET")
	api.HandleFunc("/webhooks/deliveries", s.webhookHandler.ListDeliveries).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", s.healthCheck).Methods("GET")

	return router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("user_id", r.Header.Get(userHeader)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming transports working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Agent-ID, Mcp-Session-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	responder{logger: s.logger}.writeJSONResponse(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
