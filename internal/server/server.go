package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/events/bus"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
)

// Server hosts one dodging environment per websocket connection.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	// Client management
	clients       sync.Map // map[string]*ClientSession
	clientCount   int64    // atomic
	totalSessions uint64   // atomic
	episodes      uint64   // atomic
	steps         uint64   // atomic

	// Environment template, replaced on reconfiguration
	envMu  sync.RWMutex
	envCfg env.Config

	bus    bus.EventBus
	subs   []bus.Subscription
	config Config
	logger log.Log

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// Config holds server configuration
type Config struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	MaxClients int    `json:"max_clients" yaml:"max_clients"`
	// MaxMessageSize bounds a single inbound websocket message in bytes.
	MaxMessageSize int64         `json:"max_message_size" yaml:"max_message_size"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// Health monitoring
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
	ClientTimeout       time.Duration `json:"client_timeout" yaml:"client_timeout"`
	ShutdownTimeout     time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// Token, when set, must be presented by every client.
	Token string `json:"token" yaml:"token"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		MaxClients:          256,
		MaxMessageSize:      64 * 1024,
		WriteTimeout:        5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		ClientTimeout:       5 * time.Minute,
		ShutdownTimeout:     10 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is required", ErrInvalidConfig)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("%w: max_clients must be > 0", ErrInvalidConfig)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max_message_size must be > 0", ErrInvalidConfig)
	}
	if c.HealthCheckInterval <= 0 || c.ClientTimeout <= 0 {
		return fmt.Errorf("%w: health_check_interval and client_timeout must be > 0", ErrInvalidConfig)
	}
	return nil
}

// NewServer creates a server that builds session environments from envCfg.
// A nil bus gets a private one.
func NewServer(config Config, envCfg env.Config, logger log.Log, b bus.EventBus) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	if b == nil {
		b = bus.New()
	}

	server := &Server{
		config:   config,
		envCfg:   envCfg,
		bus:      b,
		logger:   logger.With(log.String("component", "server")),
		stopChan: make(chan struct{}),
	}

	if sub, err := b.Subscribe(env.EventEpisodeEnd, server.onEpisodeEnd); err == nil {
		server.subs = append(server.subs, sub)
	}

	server.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))

	return server
}

// Handler exposes the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.authorize(s.handleWebSocket))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))

	s.stopChan = make(chan struct{})
	s.startWorkers()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", log.Error(err))
		}
	}()

	return nil
}

// Addr is the bound address; nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops accepting connections and closes every session.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	close(s.stopChan)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Hijacked websocket connections are not tracked by http.Server.
	s.clients.Range(func(_, value any) bool {
		if session, ok := value.(*ClientSession); ok {
			session.close("server shutting down")
		}
		return true
	})

	s.stopWorkers()

	s.logger.Info("Server stopped")

	return err
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	if atomic.LoadInt32(&s.running) == 1 {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		_ = s.Stop(ctx)
	}

	for _, sub := range s.subs {
		_ = s.bus.Unsubscribe(sub)
	}

	s.logger.Info("Server closed")

	return nil
}

// Reconfigure replaces the environment template. New sessions use it at once;
// open sessions pick it up at their next reset.
func (s *Server) Reconfigure(envCfg env.Config) error {
	if err := envCfg.Validate(); err != nil {
		return err
	}

	s.envMu.Lock()
	s.envCfg = envCfg
	s.envMu.Unlock()

	var failed int
	s.clients.Range(func(_, value any) bool {
		if session, ok := value.(*ClientSession); ok {
			if err := session.env.Reconfigure(envCfg); err != nil {
				failed++
			}
		}
		return true
	})

	s.logger.Info("Environment reconfigured",
		log.Int64("sessions", atomic.LoadInt64(&s.clientCount)),
		log.Int("failed", failed))
	return nil
}

func (s *Server) newEnvironment(sessionID string, n uint64) (*env.Environment, error) {
	s.envMu.RLock()
	cfg := s.envCfg
	s.envMu.RUnlock()

	return env.New(cfg,
		env.WithLogger(s.logger.With(log.String("client_id", sessionID))),
		env.WithBus(s.bus),
		env.WithSource(sessionID),
		env.WithSeed(cfg.Seed+n),
	)
}

func (s *Server) onEpisodeEnd(ev bus.Event) error {
	atomic.AddUint64(&s.episodes, 1)
	if st, ok := ev.Data().(env.EpisodeStats); ok {
		atomic.AddUint64(&s.steps, uint64(st.Steps))
	}
	return nil
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount:   atomic.LoadInt64(&s.clientCount),
		TotalSessions: atomic.LoadUint64(&s.totalSessions),
		Episodes:      atomic.LoadUint64(&s.episodes),
		Steps:         atomic.LoadUint64(&s.steps),
		Running:       atomic.LoadInt32(&s.running) == 1,
	}
}

// Stats contains server statistics
type Stats struct {
	ClientCount   int64  `json:"client_count"`
	TotalSessions uint64 `json:"total_sessions"`
	// Episodes and Steps count finished episodes only.
	Episodes uint64 `json:"episodes"`
	Steps    uint64 `json:"steps"`
	Running  bool   `json:"running"`
}

// startWorkers starts background worker goroutines
func (s *Server) startWorkers() {
	s.workerGroup.Add(1)

	// Health monitor
	go func() {
		defer s.workerGroup.Done()
		s.healthMonitor()
	}()
}

// stopWorkers stops background worker goroutines
func (s *Server) stopWorkers() {
	s.workerGroup.Wait()
}

// healthMonitor monitors server and client health
func (s *Server) healthMonitor() {
	s.logger.Debug("Health monitor started")

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks(time.Now())
		case <-s.stopChan:
			s.logger.Debug("Health monitor stopped")
			return
		}
	}
}

// performHealthChecks closes sessions idle for longer than ClientTimeout.
func (s *Server) performHealthChecks(now time.Time) int {
	var idle []*ClientSession

	s.clients.Range(func(_, value any) bool {
		session := value.(*ClientSession)
		lastSeen := time.Unix(0, atomic.LoadInt64(&session.LastSeen))
		if now.Sub(lastSeen) > s.config.ClientTimeout {
			idle = append(idle, session)
		}
		return true
	})

	for _, session := range idle {
		s.logger.Info("Disconnecting inactive client", log.String("client_id", session.ID))
		session.close("idle timeout")
	}

	if len(idle) > 0 {
		s.logger.Info("Health check completed",
			log.Int("disconnected_clients", len(idle)),
			log.Int64("active_clients", atomic.LoadInt64(&s.clientCount)))
	}
	return len(idle)
}
