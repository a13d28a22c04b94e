package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediamod/analysis-server/internal/analysis"
	"github.com/mediamod/analysis-server/internal/api"
	"github.com/mediamod/analysis-server/internal/logger"
	"github.com/mediamod/analysis-server/internal/metrics"
)

var (
	// Command-line flags
	httpAddr         = flag.String("http", ":5002", "API server address")
	metricsAddr      = flag.String("metrics", ":9090", "Metrics server address")
	pprofAddr        = flag.String("pprof", ":6060", "pprof server address")
	detectorURL      = flag.String("detector-url", "", "Object detection sidecar base URL (empty = simulated)")
	recognizerURL    = flag.String("recognizer-url", "", "Speech recognition sidecar base URL (empty = simulated)")
	inferenceTimeout = flag.Duration("inference-timeout", 30*time.Second, "Per-item backend inference timeout")
	batchWorkers     = flag.Int("batch-workers", 4, "Concurrent items per batch request")
	simSeed          = flag.Int64("sim-seed", 0, "Seed for simulated-mode randomness (0 = time-based)")
	maxUploadMB      = flag.Int64("max-upload-mb", 32, "Maximum multipart upload size in MB")
	logLevel         = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor         = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "Moderation analysis server starting...")
	logger.Info("Main", "Log level: %s", level)

	m := metrics.New()

	svc := analysis.New(analysis.Config{
		DetectorURL:      *detectorURL,
		RecognizerURL:    *recognizerURL,
		InferenceTimeout: *inferenceTimeout,
		BatchWorkers:     *batchWorkers,
		SimulationSeed:   *simSeed,
	}, m, nil)

	apiSrv := api.NewServer(api.Config{
		Addr:           *httpAddr,
		MaxUploadBytes: *maxUploadMB << 20,
	}, svc)

	httpServer := &http.Server{
		Addr:    apiSrv.Addr(),
		Handler: apiSrv.Handler(),
	}

	// Start pprof server
	go func() {
		logger.Info("Main", "Starting pprof server on %s", *pprofAddr)
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			logger.Warn("Main", "pprof server error: %v", err)
		}
	}()

	// Start metrics server
	go func() {
		logger.Info("Main", "Starting metrics server on %s", *metricsAddr)
		if err := m.StartServer(*metricsAddr); err != nil {
			logger.Warn("Main", "Metrics server error: %v", err)
		}
	}()

	// Start API server
	go func() {
		logger.Info("Main", "Starting API server on %s", *httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// Resolve backend availability up front so the first request doesn't
	// pay for probing.
	caps := svc.Capabilities(context.Background())
	logger.Info("Main", "Capabilities: object_detector=%v speech_recognizer=%v",
		caps.ObjectDetector, caps.SpeechRecognizer)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Main", "Error during shutdown: %v", err)
	}

	logger.Info("Main", "Server stopped")
}
