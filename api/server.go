package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/OldStager01/heartrisk/api/handlers"
	"github.com/OldStager01/heartrisk/api/middleware"
	"github.com/OldStager01/heartrisk/api/websocket"
	_ "github.com/OldStager01/heartrisk/docs"
	"github.com/OldStager01/heartrisk/internal/auth"
	"github.com/OldStager01/heartrisk/internal/logger"
	"github.com/OldStager01/heartrisk/internal/metrics"
	"github.com/OldStager01/heartrisk/pkg/config"
	"github.com/OldStager01/heartrisk/pkg/database"
	"github.com/OldStager01/heartrisk/pkg/database/queries"
	"github.com/OldStager01/heartrisk/pkg/models"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Heart Risk API
// @version 1.0
// @description Heart-disease risk prediction for physicians: model selection, prediction, and record history.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.

// Predictor is the orchestrator surface the HTTP layer needs, including the
// event stream for the live feed.
type Predictor interface {
	handlers.PredictionService
	SubscribeAllEvents() <-chan *models.Event
}

const androidPrefix = "/api/android"

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.APIConfig
	db          *database.DB
	predictor   Predictor
	metrics     *metrics.Metrics
	authService *auth.Service
	wsHub       *websocket.Hub
	wsBridge    *websocket.EventBridge
}

func NewServer(cfg config.APIConfig, wsCfg config.WebSocketConfig, db *database.DB, predictor Predictor, m *metrics.Metrics) *Server {
	if cfg.JWTSecret == "" || cfg.JWTSecret == config.DefaultJWTSecret {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ttl := cfg.JWTDuration
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	authService := auth.NewService(cfg.JWTSecret, ttl)
	if cfg.JWTIssuer != "" {
		authService = authService.WithIssuer(cfg.JWTIssuer)
	}

	s := &Server{
		router:      gin.New(),
		config:      cfg,
		db:          db,
		predictor:   predictor,
		metrics:     m,
		authService: authService,
		wsHub:       websocket.NewHub(&wsCfg),
	}

	s.setupMiddleware()
	s.setupRoutes()

	go s.wsHub.Run()

	s.wsBridge = websocket.NewEventBridge(s.wsHub, predictor.SubscribeAllEvents())
	s.wsBridge.Start()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CORS(s.config.CORS, androidPrefix))
	s.router.Use(middleware.TraceID())
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.RequestSizeLimit(s.config.MaxBodyBytes))
	s.router.Use(middleware.Timeout(s.config.RequestTimeout))

	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit.Global, time.Minute)
	s.router.Use(middleware.RateLimit(rateLimiter))
}

func (s *Server) setupRoutes() {
	userRepo := queries.NewUserRepository(s.db.DB)

	healthHandler := handlers.NewHealthHandler(s.db)
	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.wsHub)
	authHandler := handlers.NewAuthHandler(userRepo, s.authService, s.predictor, s.metrics, handlers.CookieSettings{
		Name:     s.config.CookieName,
		Path:     s.config.CookiePath,
		Secure:   s.config.CookieSecure,
		HTTPOnly: s.config.CookieHTTPOnly,
	})
	predictionHandler := handlers.NewPredictionHandler(s.predictor)
	recordHandler := handlers.NewRecordHandler(s.predictor)
	androidHandler := handlers.NewAndroidHandler(authHandler, s.predictor)

	authLimit := middleware.AuthRateLimit(s.config.RateLimit.Auth)

	// Public routes
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/health/ready", healthHandler.Ready)
	s.router.GET("/health/live", healthHandler.Live)
	s.router.GET("/metrics", metricsHandler.Expose)
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router.POST("/auth/register", authLimit, authHandler.Register)
	s.router.POST("/auth/login", authLimit, authHandler.Login)
	s.router.POST("/auth/logout", authHandler.Logout)

	// Protected routes
	protected := s.router.Group("/")
	protected.Use(middleware.JWTAuth(s.authService, s.config.CookieName))
	{
		protected.GET("/ws", websocket.ServeWebSocket(s.wsHub))

		protected.GET("/prediction/models", predictionHandler.Models)
		protected.POST("/prediction/submit", predictionHandler.Submit)

		protected.GET("/records", recordHandler.List)
		protected.DELETE("/records/:id", recordHandler.Delete)
	}

	// Mobile API: form bodies, string ids, no JWT.
	android := s.router.Group(androidPrefix)
	{
		android.GET("/", androidHandler.Index)
		android.POST("/register", authLimit, androidHandler.Register)
		android.POST("/login", authLimit, androidHandler.Login)
		android.POST("/predict", androidHandler.Predict)
		android.GET("/records/all", androidHandler.AllRecords)
		android.GET("/records/:user_id", androidHandler.Records)
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	idle := s.config.IdleTimeout
	if idle <= 0 {
		idle = 60 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  idle,
	}

	logger.Infof("API server listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then tears down the live feed.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsBridge.Stop()
	s.wsHub.Stop()
	return err
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
