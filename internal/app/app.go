package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/config"
	"nextsteps-go/internal/flow"
	"nextsteps-go/internal/handlers"
	"nextsteps-go/internal/logging"
	"nextsteps-go/internal/payment"
	"nextsteps-go/internal/repository"
	"nextsteps-go/internal/service"
	"nextsteps-go/internal/session"
)

const netlifyFunctionPath = "/.netlify/functions/add-mailerlite-subscriber"

type Config struct {
	Settings       *config.Config
	Logger         *logging.ContextLogger
	TracerProvider trace.TracerProvider
	Repository     repository.SubscriberRepository // Allow injecting any repository implementation
	Clock          clock.Clock
	Sessions       session.Store
	FlowSubmitter  flow.Submitter
}

type Application struct {
	server   *http.Server
	config   *Config
	router   *gin.Engine
	handler  http.Handler
	repo     repository.SubscriberRepository
	sessions session.Store
	service  *service.ReminderService
}

func Build(cfg *Config) (*Application, error) {
	settings := cfg.Settings
	if settings.GinMode != "" {
		gin.SetMode(settings.GinMode)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	// Use injected repository or fall back to in-memory
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewInMemorySubscriberRepository()
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewInMemoryStore(settings.FlowSessionTTL, session.DefaultSweepInterval, clk)
	}

	reminderService := service.NewReminderService(repo, service.Settings{
		APIKey:  settings.MailerLiteAPIKey,
		GroupID: settings.MailerLiteGroupID,
	}, clk, cfg.Logger)

	submitter := cfg.FlowSubmitter
	if submitter == nil {
		submitter = service.NewFlowSubmitter(reminderService)
	}

	reminderHandler, err := handlers.NewReminderHandler(reminderService, cfg.Logger)
	if err != nil {
		return nil, err
	}
	flowHandler := handlers.NewFlowHandler(sessions, submitter, clk, settings.FlowContinueDelay, cfg.Logger)
	catalogHandler := handlers.NewCatalogHandler(
		payment.NewCheckouts(settings.PaymentPublicKey, settings.PaymentCurrency, clk),
		settings.PaymentCurrency,
		cfg.Logger,
	)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(handlers.MethodNotAllowed)
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(settings.ServiceName, otelgin.WithTracerProvider(cfg.TracerProvider)))
	router.Use(requestLogger(cfg.Logger))

	for _, path := range []string{"/api/v1/reminders", netlifyFunctionPath} {
		router.POST(path, reminderHandler.Upsert)
		router.OPTIONS(path, reminderHandler.Preflight)
	}

	api := router.Group("/api/v1")
	{
		flows := api.Group("/flows")
		{
			flows.POST("", flowHandler.Create)
			flows.GET("/:id", flowHandler.Get)
			flows.POST("/:id/events", flowHandler.FireEvent)
			flows.POST("/:id/messages", flowHandler.Message)
			flows.PUT("/:id/form", flowHandler.UpdateForm)
			flows.POST("/:id/reminder", flowHandler.Submit)
		}

		api.GET("/reminder-options", catalogHandler.ReminderOptions)
		api.GET("/services", catalogHandler.Services)
		api.POST("/checkout", catalogHandler.Checkout)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   settings.ServiceName,
		})
	})

	handler := cors.Handler(cors.Options{
		AllowedOrigins: settings.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})(router)

	server := &http.Server{
		Addr:              ":" + settings.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		server:   server,
		config:   cfg,
		router:   router,
		handler:  handler,
		repo:     repo,
		sessions: sessions,
		service:  reminderService,
	}, nil
}

func requestLogger(logger *logging.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.WithTracing(c.Request.Context()).WithFields(map[string]interface{}{
			"method":     method,
			"path":       path,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	}
}

func (app *Application) Run() error {
	app.config.Logger.Info("Starting server on :" + app.config.Settings.ServerPort)
	if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (app *Application) Shutdown(ctx context.Context) error {
	app.config.Logger.Info("Shutting down server...")
	err := app.server.Shutdown(ctx)
	if cerr := app.sessions.Close(); err == nil {
		err = cerr
	}
	return err
}

// Handler is the full HTTP stack, CORS included.
func (app *Application) Handler() http.Handler {
	return app.handler
}

func (app *Application) GetRepo() repository.SubscriberRepository {
	return app.repo
}

func (app *Application) GetService() *service.ReminderService {
	return app.service
}

func (app *Application) GetRouter() *gin.Engine {
	return app.router
}
