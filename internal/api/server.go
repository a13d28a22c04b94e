// Package api exposes the analysis service over HTTP. Routes and payloads
// mirror the original moderation API: /analyze, /batch-analyze, /transcribe,
// plus health and capability probes.
package api

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediamod/analysis-server/internal/analysis"
	"github.com/mediamod/analysis-server/internal/logger"
)

const (
	serviceName    = "Content Moderation Analysis Service"
	serviceVersion = "1.0.0"
)

// Config defines the runtime configuration for the API server.
type Config struct {
	Addr           string
	MaxUploadBytes int64
}

// DefaultConfig returns a config aligned with the original service defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":5002",
		MaxUploadBytes: 32 << 20,
	}
}

// Server serves the moderation HTTP endpoints.
type Server struct {
	cfg Config
	svc *analysis.Service
}

// NewServer returns a configured API server.
func NewServer(cfg Config, svc *analysis.Service) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	return &Server{cfg: cfg, svc: svc}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/capabilities", s.handleCapabilities)
	r.POST("/analyze", s.handleAnalyze)
	r.POST("/batch-analyze", s.handleBatchAnalyze)
	r.POST("/transcribe", s.handleTranscribe)

	return r
}

func (s *Server) handleRoot(c *gin.Context) {
	caps := s.svc.Capabilities(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": serviceVersion,
		"models": gin.H{
			"object_detector":   caps.ObjectDetector,
			"speech_recognizer": caps.SpeechRecognizer,
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Capabilities(c.Request.Context()))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	data, ok := s.readUpload(c, "frame")
	if !ok {
		return
	}

	result, err := s.svc.AnalyzeFrame(c.Request.Context(), data)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleBatchAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}

	files := form.File["frames"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no frames provided"})
		return
	}

	frames := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readFileHeader(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read frame upload: " + err.Error()})
			return
		}
		frames = append(frames, data)
	}

	items := s.svc.BatchAnalyze(c.Request.Context(), frames)

	// One envelope per input, input order preserved; failed items report
	// their error inline and never fail the batch response.
	results := make([]gin.H, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			results = append(results, gin.H{
				"ok": false,
				"error": gin.H{
					"kind":    analysis.KindOf(item.Err).String(),
					"message": item.Err.Error(),
				},
			})
			continue
		}
		results = append(results, gin.H{"ok": true, "result": item.Result})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleTranscribe(c *gin.Context) {
	fh, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing audio upload: " + err.Error()})
		return
	}
	data, err := readFileHeader(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read audio upload: " + err.Error()})
		return
	}

	result, err := s.svc.Transcribe(c.Request.Context(), data, fh.Filename)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) readUpload(c *gin.Context, field string) ([]byte, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + field + " upload: " + err.Error()})
		return nil, false
	}
	data, err := readFileHeader(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read " + field + " upload: " + err.Error()})
		return nil, false
	}
	return data, true
}

func (s *Server) writeError(c *gin.Context, err error) {
	kind := analysis.KindOf(err)
	logger.Warn("API", "%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(statusFor(kind), gin.H{
		"error": gin.H{
			"kind":    kind.String(),
			"message": err.Error(),
		},
	})
}

// statusFor maps the error taxonomy to HTTP statuses.
func statusFor(kind analysis.Kind) int {
	switch kind {
	case analysis.KindInputDecode:
		return http.StatusBadRequest
	case analysis.KindBackendInference:
		return http.StatusBadGateway
	case analysis.KindInferenceTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
