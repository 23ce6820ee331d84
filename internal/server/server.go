package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/kartoza/antiox-predictor/internal/api"
	"github.com/kartoza/antiox-predictor/internal/config"
	"github.com/kartoza/antiox-predictor/internal/form"
	"github.com/kartoza/antiox-predictor/internal/history"
	"github.com/kartoza/antiox-predictor/internal/predict"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	client     *predict.Client
	store      *history.Store
	recorder   form.Recorder
	pages      *template.Template
	logger     *zap.Logger
}

// New creates a new Server with all components initialized
func New(cfg config.Config, client *predict.Client, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		client: client,
		pages:  pages,
		logger: logger,
	}

	recorders := form.Recorders{
		config.SettingsRecorder{DataDir: cfg.DataDir, Endpoint: client.Endpoint},
	}

	// History is optional; the form works without it
	if cfg.History {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logger.Warn("History store not available", zap.Error(err))
		} else {
			s.store = store
			recorders = append(recorders, store)
		}
	}
	s.recorder = recorders

	s.setupRoutes()

	return s, nil
}

// Router exposes the configured handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.client, s.store, s.recorder, s.cfg, s.logger)
	apiHandler.RegisterRoutes(apiRouter)

	// Form page
	s.router.HandleFunc("/", s.handleFormPage).Methods("GET")
	s.router.HandleFunc("/", s.handleFormSubmit).Methods("POST")

	// Static files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Warn("Could not load embedded static files", zap.Error(err))
		return
	}
	s.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	// Close stores once no handler can reach them
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			s.logger.Warn("Error closing history store", zap.Error(cerr))
		}
	}

	return err
}
