// Package server assembles the HTTP surface: the REST API, the WebSocket
// endpoints and the operations endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"todola/backend/internal/app"
	"todola/backend/internal/auth"
	"todola/backend/internal/config"
	"todola/backend/internal/handlers"
	"todola/backend/internal/middleware"
	"todola/backend/internal/monitoring"
	"todola/backend/internal/progress"
	"todola/backend/internal/store"
	"todola/backend/internal/ws"
)

type Deps struct {
	Config *config.Config
	Store  store.Store
	Auth   *auth.Service
	Health *monitoring.HealthChecker
	Logger *slog.Logger
}

type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	http    *http.Server
	hub     *ws.Hub
	tasks   *handlers.TaskHandler
	users   *handlers.UserHandler
	limiter *middleware.RateLimiter
	log     *slog.Logger
}

func New(d Deps) *Server {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Health == nil {
		d.Health = monitoring.NewHealthChecker()
	}

	s := &Server{
		cfg:   d.Config,
		hub:   ws.NewHub(),
		tasks: handlers.NewTaskHandler(d.Store, d.Logger),
		users: handlers.NewUserHandler(d.Store, d.Logger),
		log:   d.Logger.With("component", "server"),
	}
	if d.Config.RateLimit.Enabled {
		rl := d.Config.RateLimit
		s.limiter = middleware.NewRateLimiter(rl.RequestsPerMin, rl.BurstSize, rl.CleanupInterval)
	}

	s.engine = gin.New()
	s.engine.Use(middleware.RecoveryWithLog())
	s.engine.Use(middleware.RequestLogger())
	s.engine.Use(monitoring.MetricsMiddleware())
	s.engine.Use(cors.New(corsConfig(d.Config.Server.AllowedOrigins)))

	s.routes(d)

	s.http = &http.Server{
		Addr:         d.Config.GetServerAddr(),
		Handler:      s.engine,
		ReadTimeout:  d.Config.Server.ReadTimeout,
		WriteTimeout: d.Config.Server.WriteTimeout,
		IdleTimeout:  d.Config.Server.IdleTimeout,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = origins
	return c
}

func (s *Server) routes(d Deps) {
	r := s.engine

	r.GET("/metrics", monitoring.MetricsHandler())
	r.GET("/health", d.Health.HealthHandler())
	r.GET("/healthz", monitoring.LivenessHandler())
	r.GET("/readyz", d.Health.ReadinessHandler())

	wsHandler := ws.NewHandler(s.hub, app.Deps{
		Store:  d.Store,
		Auth:   d.Auth,
		Logger: d.Logger,
	}, app.Options{
		NavigationDelay: s.cfg.Client.NavigationDelay,
		Progress: progress.Timing{
			AnimationDuration:   s.cfg.Client.AnimationDuration,
			FrameInterval:       s.cfg.Client.FrameInterval,
			CelebrationDuration: s.cfg.Client.CelebrationDuration,
		},
	}, s.cfg.Server.AllowedOrigins, d.Logger)
	r.GET("/ws", wsHandler.ServeApp)
	r.GET("/ws/users", wsHandler.ServeUsers)

	authHandler := handlers.NewAuthHandler(d.Auth, d.Store, d.Logger)

	api := r.Group("/api/v1")

	public := api.Group("/auth")
	if s.limiter != nil {
		public.Use(s.limiter.Middleware())
	}
	public.POST("/signup", authHandler.SignUp)
	public.POST("/login", authHandler.Login)

	api.GET("/users", s.users.GetUsers)
	api.DELETE("/users/:uid", s.users.DeleteUser)

	protected := api.Group("")
	protected.Use(middleware.Authenticate(d.Auth))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/tasks", s.tasks.GetTasks)
	protected.POST("/tasks", s.tasks.CreateTask)
	protected.PUT("/tasks/:id", s.tasks.UpdateTask)
	protected.DELETE("/tasks/:id", s.tasks.DeleteTask)
	protected.PATCH("/tasks/:id/done", s.tasks.ToggleDone)
	protected.GET("/progress", s.tasks.GetProgress)
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server started", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, closes live connections and waits
// for accepted background writes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	err := s.http.Shutdown(ctx)
	s.close()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.log.Info("server exited")
	return nil
}

func (s *Server) close() {
	s.tasks.Close()
	s.users.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
