package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/camfeed/camfeed/internal/config"
	"github.com/camfeed/camfeed/internal/decode"
	"github.com/camfeed/camfeed/internal/logger"
	"github.com/camfeed/camfeed/internal/metrics"
	"github.com/camfeed/camfeed/internal/pipeline"
	"github.com/camfeed/camfeed/internal/preview"
	"github.com/camfeed/camfeed/internal/record"
	"github.com/camfeed/camfeed/internal/v4l2"
	"github.com/camfeed/camfeed/internal/webrtcsink"
)

const previewMaxWidth = 640

// Server wires the capture pipeline to its HTTP surfaces.
type Server struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	cfg        config.Config
	metrics    *metrics.Metrics
	source     *v4l2.Source
	scheduler  *pipeline.Scheduler
	webrtc     *webrtcsink.Server
	recorder   *record.Recorder
	preview    *preview.Broadcaster
	httpServer *http.Server
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, true)

	logger.Info("Main", "Camera feed service starting...")
	logger.Info("Main", "Log level: %s", level)

	if err := os.MkdirAll(cfg.RecordPath, 0755); err != nil {
		log.Fatalf("Failed to create recordings directory: %v", err)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	if err := srv.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// NewServer creates the service from resolved configuration.
func NewServer(cfg config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.New()

	source, err := v4l2.Open(cfg.Device, cfg.Width, cfg.Height, cfg.FPS, cfg.FourCC)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}

	webrtcSrv := webrtcsink.NewServer([]string{cfg.STUNServer}, cfg.MaxClients, m)
	rec := record.NewRecorder(cfg.RecordPath, source.Width(), source.Height(), cfg.FPS, m)
	prev := preview.NewBroadcaster(previewMaxWidth)

	scheduler := pipeline.New(pipeline.Options{
		Source:   source,
		Decoder:  decode.New(decode.JPEGDecoder{}),
		Sink:     pipeline.FanOut(webrtcSrv, rec, prev),
		Metrics:  m,
		FPS:      cfg.FPS,
		Position: cfg.OverlayPos,
		Scale:    cfg.OverlayScale,
	})

	mux := http.NewServeMux()
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	srv := &Server{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		metrics:    m,
		source:     source,
		scheduler:  scheduler,
		webrtc:     webrtcSrv,
		recorder:   rec,
		preview:    prev,
		httpServer: httpServer,
	}
	srv.setupRoutes(mux)

	return srv, nil
}

// Start launches the pipeline and the HTTP surfaces.
func (s *Server) Start() {
	log.Printf("Starting camera feed service...")
	log.Printf("  Device: %s (%dx%d@%d %s)", s.cfg.Device, s.source.Width(), s.source.Height(), s.cfg.FPS, s.cfg.FourCC)
	log.Printf("  HTTP server: %s", s.cfg.HTTPAddr)
	log.Printf("  Metrics server: %s", s.cfg.MetricsAddr)
	log.Printf("  Recording path: %s", s.cfg.RecordPath)

	go func() {
		log.Printf("Starting metrics server on %s", s.cfg.MetricsAddr)
		if err := s.metrics.StartServer(s.cfg.MetricsAddr); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	go func() {
		log.Printf("Starting HTTP server on %s", s.cfg.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduler.Run(s.ctx)
	}()

	log.Println("Server started successfully")
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next(w, r)
		}
	}

	// WebRTC signaling
	mux.HandleFunc("/offer", corsMiddleware(s.handleOffer))

	// Browser preview
	mux.HandleFunc("/preview", s.preview.Handler())

	// Recording control
	mux.HandleFunc("/record/start", corsMiddleware(s.handleStartRecording))
	mux.HandleFunc("/record/stop", corsMiddleware(s.handleStopRecording))
	mux.HandleFunc("/record/status", corsMiddleware(s.handleRecordStatus))

	// Health check
	mux.HandleFunc("/health", s.handleHealth)
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	offerJSON, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	answerJSON, err := s.webrtc.HandleOffer(offerJSON)
	if err != nil {
		logger.Warn("HTTP", "WebRTC offer error: %v", err)
		http.Error(w, fmt.Sprintf("Failed to handle offer: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(answerJSON)
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.recorder.Start(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start recording: %v", err), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"status":  s.recorder.GetStatus(),
	})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.recorder.Stop(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to stop recording: %v", err), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"status":  s.recorder.GetStatus(),
	})
}

func (s *Server) handleRecordStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.recorder.GetStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "ok",
		"webrtc_clients":  s.webrtc.ClientCount(),
		"preview_clients": s.preview.ClientCount(),
		"recording":       s.recorder.IsRecording(),
	})
}

// Shutdown stops the pipeline, then the servers, in that order.
func (s *Server) Shutdown() error {
	s.cancel()
	s.wg.Wait()

	if s.recorder.IsRecording() {
		s.recorder.Stop()
	}

	s.recorder.Close()
	s.webrtc.Close()
	s.source.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
