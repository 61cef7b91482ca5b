package ops

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/skillsenselab/meshkit/breaker"
	"github.com/skillsenselab/meshkit/component"
	"github.com/skillsenselab/meshkit/logger"
	"github.com/skillsenselab/meshkit/registry"
	"github.com/skillsenselab/meshkit/version"
)

// BreakerStater is the slice of the caller the ops surface reads.
// *caller.Caller satisfies it.
type BreakerStater interface {
	BreakerStates() map[string]breaker.State
}

// Server serves the operational endpoints. It implements
// component.Component so it can be managed alongside the rest of the
// service.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	cfg        Config
	log        *logger.Logger

	components *component.Registry
	reg        *registry.Registry
	breakers   BreakerStater
}

var _ component.Component = (*Server)(nil)

// NewServer creates an ops server over the given collaborators. Any of
// them may be nil; the corresponding endpoint then reports an empty
// result.
func NewServer(cfg Config, components *component.Registry, reg *registry.Registry, breakers BreakerStater, log *logger.Logger) *Server {
	cfg.ApplyDefaults()

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		cfg:        cfg,
		log:        log.WithComponent("ops"),
		components: components,
		reg:        reg,
		breakers:   breakers,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/registry", s.handleRegistry)
	s.engine.GET("/breakers", s.handleBreakers)
	s.engine.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})
}

// Name implements component.Component.
func (s *Server) Name() string { return "ops-server" }

// Start binds the port and begins serving. It returns once the listener
// is bound; serving continues in a goroutine.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("ops server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("ops server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("ops server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	return nil
}

// Health implements component.Component.
func (s *Server) Health(_ context.Context) component.Health {
	return component.Health{
		Name:    s.Name(),
		Status:  component.StatusHealthy,
		Message: s.httpServer.Addr,
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// handleHealth aggregates component health. The HTTP status is 503 as
// soon as any component reports unhealthy, so the endpoint doubles as a
// readiness probe.
func (s *Server) handleHealth(c *gin.Context) {
	var checks []component.Health
	if s.components != nil {
		checks = s.components.HealthAll(c.Request.Context())
	}

	status := component.StatusHealthy
	code := http.StatusOK
	for _, h := range checks {
		if h.Status == component.StatusUnhealthy {
			status = component.StatusUnhealthy
			code = http.StatusServiceUnavailable
			break
		}
		if h.Status == component.StatusDegraded {
			status = component.StatusDegraded
		}
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": checks,
	})
}

// handleRegistry returns a snapshot of every registered instance.
func (s *Server) handleRegistry(c *gin.Context) {
	snapshot := map[string][]registry.ServiceInstance{}
	if s.reg != nil {
		snapshot = s.reg.Snapshot()
	}
	c.JSON(http.StatusOK, gin.H{"services": snapshot})
}

// handleBreakers returns the state of every breaker created so far.
func (s *Server) handleBreakers(c *gin.Context) {
	states := map[string]string{}
	if s.breakers != nil {
		for name, st := range s.breakers.BreakerStates() {
			states[name] = st.String()
		}
	}
	c.JSON(http.StatusOK, gin.H{"breakers": states})
}
