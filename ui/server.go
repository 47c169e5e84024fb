package ui

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"gradegrid/internal/gateway"

	"github.com/gin-gonic/gin"
)

// Pipeline turns an uploaded grade sheet into a download or a preview
type Pipeline interface {
	Process(ctx context.Context, up gateway.Upload) (*gateway.Artifact, error)
	Preview(ctx context.Context, up gateway.Upload) (*gateway.Preview, error)
}

// Heartbeat receives window open/close events from the landing page
type Heartbeat interface {
	Opened()
	Closed()
}

type noHeartbeat struct{}

func (noHeartbeat) Opened() {}
func (noHeartbeat) Closed() {}

// Config holds the HTTP settings
type Config struct {
	Addr           string
	MaxUploadBytes int64
	Title          string
}

// Server represents the web server for the grade sheet converter
type Server struct {
	router       *gin.Engine
	pipeline     Pipeline
	heartbeat    Heartbeat
	files        fs.FS
	templates    *template.Template
	instructions template.HTML
	config       Config
	httpServer   *http.Server
}

// NewServer creates the server. files must contain ui/templates and
// ui/static. A nil heartbeat ignores window events.
func NewServer(files fs.FS, pipeline Pipeline, heartbeat Heartbeat, config Config) (*Server, error) {
	if heartbeat == nil {
		heartbeat = noHeartbeat{}
	}
	if config.Title == "" {
		config.Title = "Grade Sheet Converter"
	}

	s := &Server{
		router:    gin.New(),
		pipeline:  pipeline,
		heartbeat: heartbeat,
		files:     files,
		config:    config,
	}
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.loadTemplates(); err != nil {
		return nil, err
	}
	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/healthz", s.handleHealth)
	s.router.POST("/upload", s.handleUpload)

	api := s.router.Group("/api")
	{
		api.POST("/preview", s.handlePreview)
		api.POST("/shell/opened", s.handleWindowOpened)
		api.POST("/shell/closed", s.handleWindowClosed)
	}
}

// ServeHTTP lets the server be used as a plain http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until Shutdown is called
func (s *Server) Run() error {
	log.Printf("[Server] Listening on %s", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[Server] Shutting down")
	return s.httpServer.Shutdown(ctx)
}
