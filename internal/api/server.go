package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veridian/aigov/internal/auth"
	"github.com/veridian/aigov/internal/config"
	"github.com/veridian/aigov/internal/governance"
	"github.com/veridian/aigov/internal/notifications"
	"github.com/veridian/aigov/internal/queue"
	"github.com/veridian/aigov/internal/reports"
	"github.com/veridian/aigov/internal/scheduler"
	"github.com/veridian/aigov/internal/scoring"
	"github.com/veridian/aigov/internal/store"
)

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	store  *store.Store
	http   *http.Server
	logger *slog.Logger

	authService *auth.Service
	userStore   auth.UserStore

	scheduler      *scheduler.Scheduler
	schedulerStore *scheduler.PostgresStore

	scorer    *scoring.Scorer
	taskStore *governance.PostgresStore
	evaluator *governance.Evaluator

	// queue is nil when Redis is unreachable; evaluation falls back to
	// running synchronously in that case.
	queue   *queue.Queue
	workers []*queue.Worker

	reportGenerator *reports.Generator

	notificationService *notifications.Service
	notificationConfig  notifications.Config
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		store:  st,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.userStore = auth.NewPostgresUserStore(st.DB())
	s.authService = auth.NewService(auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: cfg.Auth.TokenExpiry,
		Issuer:      cfg.Auth.Issuer,
	}, s.userStore)

	s.schedulerStore = scheduler.NewPostgresStore(st.DB())
	s.scheduler = scheduler.NewScheduler(s.schedulerStore, s.logger)

	s.scorer = scoring.NewWithWeights(cfg.Scoring.Weights)
	s.taskStore = governance.NewPostgresStore(st.DB())
	s.evaluator = governance.NewEvaluator(st, s.taskStore, s.logger)

	s.notificationConfig = notifications.Config{
		Slack: notifications.SlackConfig{
			WebhookURL:  cfg.Notifications.Slack.WebhookURL,
			Channel:     cfg.Notifications.Slack.Channel,
			Username:    "Governance Bot",
			IconEmoji:   ":scales:",
			Enabled:     cfg.Notifications.Slack.Enabled,
			MinSeverity: notifications.Severity(cfg.Notifications.MinSeverity),
		},
		Email: notifications.EmailConfig{
			SMTPHost:    cfg.Notifications.Email.SMTPHost,
			SMTPPort:    cfg.Notifications.Email.SMTPPort,
			Username:    cfg.Notifications.Email.Username,
			Password:    cfg.Notifications.Email.Password,
			From:        cfg.Notifications.Email.From,
			To:          cfg.Notifications.Email.To,
			Enabled:     cfg.Notifications.Email.Enabled,
			MinSeverity: notifications.Severity(cfg.Notifications.MinSeverity),
		},
	}
	s.notificationService = notifications.NewService(s.notificationConfig, s.logger)

	s.reportGenerator = reports.NewGenerator(
		reports.NewStoreProvider(st, s.taskStore, s.scorer))

	q, err := queue.New(queue.Config{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		s.logger.Warn("redis unavailable, evaluation jobs will run synchronously", "error", err)
	} else {
		s.queue = q
		for i := 0; i < cfg.Evaluation.Workers; i++ {
			s.workers = append(s.workers, queue.NewWorker(queue.WorkerConfig{
				Queue:     q,
				Store:     st,
				Evaluator: s.evaluator,
				Scorer:    s.scorer,
				Notifier:  s.notificationService,
			}))
		}
	}

	s.registerJobHandlers()
	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// registerJobHandlers binds scheduled job types to the engine. The sweep
// enqueues one evaluation job per registered system; without Redis it
// evaluates inline.
func (s *Server) registerJobHandlers() {
	handlers := &scheduler.DefaultHandlers{
		EvaluateFunc: func(ctx context.Context, systemID string) error {
			id, err := parseUUID(systemID)
			if err != nil {
				return fmt.Errorf("invalid system_id: %w", err)
			}
			return s.evaluateSystemJob(ctx, id, queue.TriggerSweep)
		},
		SweepFunc: func(ctx context.Context) error {
			systems, err := s.store.ListSystems(ctx, nil)
			if err != nil {
				return fmt.Errorf("listing systems: %w", err)
			}
			for i := range systems {
				if err := s.evaluateSystemJob(ctx, systems[i].ID, queue.TriggerSweep); err != nil {
					s.logger.Error("sweep evaluation failed",
						"system_id", systems[i].ID, "error", err)
				}
			}
			s.logger.Info("governance sweep finished", "systems", len(systems))
			return nil
		},
		ReportFunc: func(ctx context.Context, jobConfig map[string]string) error {
			_, err := s.reportGenerator.Generate(ctx, &reports.ReportRequest{
				Type:   reports.ReportTypeExecutive,
				Format: reports.FormatPDF,
			})
			return err
		},
	}
	if s.queue != nil {
		handlers.CleanupFunc = func(ctx context.Context, olderThan time.Duration) error {
			cleaned, err := s.queue.CleanupStaleJobs(ctx, olderThan)
			if err != nil {
				return err
			}
			if cleaned > 0 {
				s.logger.Info("requeued stale evaluation jobs", "count", cleaned)
			}
			return nil
		}
	}
	handlers.Register(s.scheduler)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(s.corsMiddleware())
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowOrigin := s.cfg.Server.CORSAllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
		s.logger.Warn("CORS Allow-Origin set to '*' - configure server.cors_allow_origin in production")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)

			r.Get("/auth/me", s.getCurrentUser)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/users", s.listUsers)
				r.Post("/users", s.createUser)
			})

			r.Route("/systems", func(r chi.Router) {
				r.Get("/", s.listSystems)
				r.Post("/", s.createSystem)
				r.Get("/{systemID}", s.getSystem)
				r.Post("/{systemID}/transition", s.transitionSystem)
				r.Get("/{systemID}/constraints", s.getStageConstraints)

				r.Get("/{systemID}/risk-score", s.getRiskScore)
				r.Get("/{systemID}/snapshot", s.getSnapshot)
				r.Post("/{systemID}/evaluate", s.evaluateSystem)

				r.Get("/{systemID}/compliance", s.getComplianceRecords)
				r.Put("/{systemID}/compliance/eu", s.upsertEURecord)
				r.Put("/{systemID}/compliance/uk", s.upsertUKRecord)
				r.Put("/{systemID}/compliance/mas", s.upsertMASRecord)

				r.Get("/{systemID}/assessments", s.listAssessments)
				r.Post("/{systemID}/assessments", s.createAssessment)

				r.Get("/{systemID}/tasks", s.listTasks)
				r.Post("/{systemID}/tasks/complete", s.completeTask)

				r.Post("/{systemID}/documents", s.createDocument)
			})

			r.Route("/assessments", func(r chi.Router) {
				r.Get("/{assessmentID}", s.getAssessment)
				r.Put("/{assessmentID}", s.updateAssessment)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/summary", s.getDashboardSummary)
				r.Get("/queue", s.getQueueStats)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.listScheduledJobs)
				r.Post("/", s.createScheduledJob)
				r.Get("/{jobID}", s.getScheduledJob)
				r.Put("/{jobID}", s.updateScheduledJob)
				r.Delete("/{jobID}", s.deleteScheduledJob)
				r.Post("/{jobID}/run", s.runScheduledJobNow)
				r.Get("/{jobID}/executions", s.getJobExecutions)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/types", s.getReportTypes)
				r.Post("/generate", s.generateReport)
				r.Get("/stream", s.streamCSVReport)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/settings", s.getNotificationSettings)
				r.Put("/settings", s.updateNotificationSettings)
				r.Post("/test", s.testNotification)
			})
		})
	})
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.schedulerStore.EnsureSweepJob(ctx, s.cfg.Evaluation.SweepSchedule); err != nil {
		s.logger.Error("failed to seed sweep job", "error", err)
	}

	if err := s.scheduler.Start(ctx); err != nil {
		s.logger.Error("failed to start scheduler", "error", err)
	}

	for _, w := range s.workers {
		if err := w.Start(ctx); err != nil {
			s.logger.Error("failed to start worker", "worker_id", w.ID(), "error", err)
		}
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.scheduler.Stop()
		for _, w := range s.workers {
			w.Stop()
		}
		if s.queue != nil {
			_ = s.queue.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *apiMeta    `json:"meta,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiMeta struct {
	Total  int `json:"total,omitempty"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db_unavailable", "Database not available")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
