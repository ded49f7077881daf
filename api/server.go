package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/moyoez/scangate/api/controllers"
	"github.com/moyoez/scangate/api/middlewares"
	"github.com/moyoez/scangate/api/notifyhub"
	"github.com/moyoez/scangate/notify"
	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

// Dependencies are the services the HTTP routes are wired to.
type Dependencies struct {
	Uploads controllers.UploadService
	Limiter middlewares.RateChecker
	Sweeper controllers.Sweeper
	Hub     *notifyhub.Hub // nil disables the notify websocket route
}

// Server represents the HTTP API server of the upload gateway
type Server struct {
	port          int
	protocol      string
	certFile      string
	keyFile       string
	maxChunkBytes int64
	deps          Dependencies
	engine        *gin.Engine
	server        *http.Server
	mu            sync.RWMutex
}

func NewServer(cfg types.AppConfig, deps Dependencies) *Server {
	return &Server{
		port:          cfg.Port,
		protocol:      cfg.Protocol,
		certFile:      cfg.CertFile,
		keyFile:       cfg.KeyFile,
		maxChunkBytes: cfg.Upload.MaxChunkBytes,
		deps:          deps,
	}
}

// Handler builds the route table without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	uploadCtrl := controllers.NewUploadController(s.deps.Uploads, s.maxChunkBytes)

	var gate []gin.HandlerFunc
	if s.deps.Limiter != nil {
		gate = append(gate, middlewares.RateLimit(s.deps.Limiter, time.Now))
	}
	v1 := engine.Group("/api/upload/v1", gate...)
	{
		v1.POST("/initiate", uploadCtrl.HandleInitiate)
		v1.POST("/chunk", uploadCtrl.HandleChunk)
		v1.GET("/status", uploadCtrl.HandleStatus)
		v1.POST("/complete", uploadCtrl.HandleComplete)
		v1.GET("/result-qr", uploadCtrl.HandleResultQR) // PNG QR of the scan result link
	}
	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.GET("/status", controllers.UserStatus)
		if s.deps.Sweeper != nil {
			self.POST("/sweep", controllers.HandleSweep(s.deps.Sweeper))
		}
		if hub := s.deps.Hub; notify.NotifyWSEnabled() && hub != nil {
			self.GET("/notify-ws", notifyhub.HandleNotifyWS(hub))
		}
	}
	return engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	engine := s.setupRoutes()

	s.mu.Lock()
	s.engine = engine
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	address := fmt.Sprintf("%s://0.0.0.0:%d", s.protocol, s.port)
	tool.DefaultLogger.Infof("Starting API server on %s", address)

	if s.protocol == "https" {
		cert, err := tool.LoadOrCreateTLSCertificate(s.certFile, s.keyFile)
		if err != nil {
			return fmt.Errorf("failed to get TLS certificate: %v", err)
		}
		s.mu.Lock()
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		s.mu.Unlock()

		tool.DefaultLogger.Infof("TLS certificate configured for HTTPS")
		return s.server.ListenAndServeTLS("", "")
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
