// Package analysis hosts the per-input pipelines: frame analysis,
// transcription and batch coordination. It owns the typed error taxonomy and
// the one-shot backend availability guard.
package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediamod/analysis-server/internal/detect"
	"github.com/mediamod/analysis-server/internal/logger"
	"github.com/mediamod/analysis-server/internal/metrics"
	"github.com/mediamod/analysis-server/internal/score"
	"github.com/mediamod/analysis-server/pkg/types"
)

// Config defines the runtime configuration for the analysis service.
type Config struct {
	// DetectorURL and RecognizerURL point at the inference sidecars. An
	// empty URL means the backend is absent and its pipeline runs in
	// simulated mode.
	DetectorURL   string
	RecognizerURL string

	// InferenceTimeout bounds each backend call.
	InferenceTimeout time.Duration

	// BatchWorkers limits concurrent items within one batch.
	BatchWorkers int

	// SimulationSeed seeds simulated-mode randomness. 0 picks a time-based
	// seed; tests pass a fixed value.
	SimulationSeed int64
}

// DefaultConfig returns the configuration used when flags are not set.
func DefaultConfig() Config {
	return Config{
		InferenceTimeout: 30 * time.Second,
		BatchWorkers:     4,
	}
}

// Service runs the analysis pipelines against whatever backends are
// reachable. Backend availability is resolved exactly once, on first use,
// and is read-only afterwards; a backend that is absent selects the
// simulated path, while a backend that fails mid-request surfaces a typed
// error so operators can tell the two conditions apart.
type Service struct {
	cfg    Config
	engine *score.Engine
	m      *metrics.Metrics
	sim    *detect.Simulator

	initOnce   sync.Once
	detector   detect.ObjectDetector
	recognizer detect.SpeechRecognizer
	caps       types.Capabilities
}

// New creates a Service that resolves its backends from the configured URLs
// on first use. provider may be nil (no nudity backend integrated).
func New(cfg Config, m *metrics.Metrics, provider score.NudityProvider) *Service {
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = DefaultConfig().InferenceTimeout
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = DefaultConfig().BatchWorkers
	}
	return &Service{
		cfg:    cfg,
		engine: score.NewEngine(provider),
		m:      m,
		sim:    detect.NewSimulator(cfg.SimulationSeed),
	}
}

// NewWithBackends creates a Service with explicit backend implementations,
// bypassing URL probing. A nil backend is treated as absent. Used by tests
// and by embedders that construct their own clients.
func NewWithBackends(cfg Config, m *metrics.Metrics, provider score.NudityProvider, det detect.ObjectDetector, rec detect.SpeechRecognizer) *Service {
	s := New(cfg, m, provider)
	s.initOnce.Do(func() {
		s.detector = det
		s.recognizer = rec
		s.caps = types.Capabilities{
			ObjectDetector:   det != nil,
			SpeechRecognizer: rec != nil,
		}
	})
	return s
}

// initBackends resolves backend availability. Runs at most once even under
// concurrent first-time access; every pipeline and Capabilities goes through
// it before touching s.detector/s.recognizer.
func (s *Service) initBackends(ctx context.Context) {
	s.initOnce.Do(func() {
		if s.cfg.DetectorURL != "" {
			det := detect.NewRemoteDetector(s.cfg.DetectorURL)
			if err := det.Probe(ctx); err != nil {
				logger.Warn("Analysis", "object detector at %s unreachable, running simulated: %v", s.cfg.DetectorURL, err)
			} else {
				s.detector = det
				s.caps.ObjectDetector = true
				logger.Info("Analysis", "object detector available at %s", s.cfg.DetectorURL)
			}
		} else {
			logger.Warn("Analysis", "no object detector configured, frame analysis runs simulated")
		}

		if s.cfg.RecognizerURL != "" {
			rec := detect.NewRemoteRecognizer(s.cfg.RecognizerURL)
			if err := rec.Probe(ctx); err != nil {
				logger.Warn("Analysis", "speech recognizer at %s unreachable, running simulated: %v", s.cfg.RecognizerURL, err)
			} else {
				s.recognizer = rec
				s.caps.SpeechRecognizer = true
				logger.Info("Analysis", "speech recognizer available at %s", s.cfg.RecognizerURL)
			}
		} else {
			logger.Warn("Analysis", "no speech recognizer configured, transcription runs simulated")
		}
	})
}

// Capabilities reports which backends this process can reach.
func (s *Service) Capabilities(ctx context.Context) types.Capabilities {
	s.initBackends(ctx)
	return s.caps
}

// AnalyzeFrame runs the moderation pipeline for one frame.
//
// The frame is staged to a temp file for the duration of inference and
// removed on every exit path. When the object detector is absent the result
// is simulated and its RawDetections field is nil.
func (s *Service) AnalyzeFrame(ctx context.Context, frame []byte) (types.FrameAnalysisResult, error) {
	s.initBackends(ctx)

	input := uuid.NewString()
	start := time.Now()

	path, cleanup, err := stageFrame(frame)
	if err != nil {
		s.m.DecodeErrors.Add(1)
		return types.FrameAnalysisResult{}, newError(KindInputDecode, "stage_frame", input, err)
	}
	defer cleanup()

	if s.detector == nil {
		s.m.FramesSimulated.Add(1)
		logger.Debug("Analysis", "simulated frame result (input=%s)", input)
		return s.sim.FrameResult(), nil
	}

	inferCtx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	defer cancel()

	detections, err := s.detector.Detect(inferCtx, path)
	if err != nil {
		return types.FrameAnalysisResult{}, s.inferenceError(inferCtx, "object_detection", input, err)
	}
	if detections == nil {
		// Keep RawDetections non-nil in real mode; nil is the simulated marker.
		detections = []types.Detection{}
	}

	sc := s.engine.Score(detections)
	result := types.FrameAnalysisResult{
		Nudity:        sc.Nudity,
		Violence:      sc.Violence,
		Weapons:       sc.Weapons,
		SexualContent: sc.SexualContent,
		Objects:       sc.Objects,
		Faces:         sc.Faces,
		RawDetections: detections,
	}

	s.m.FramesAnalyzed.Add(1)
	s.m.UpdateAnalyzeLatency(time.Since(start))
	return result, nil
}

// Transcribe runs the transcription pipeline for one audio clip.
// filenameHint, when non-empty, supplies the staged file's suffix so the
// backend can sniff the container format.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filenameHint string) (types.TranscriptionResult, error) {
	s.initBackends(ctx)

	input := uuid.NewString()
	start := time.Now()

	path, cleanup, err := stageAudio(audio, filenameHint)
	if err != nil {
		s.m.DecodeErrors.Add(1)
		return types.TranscriptionResult{}, newError(KindInputDecode, "stage_audio", input, err)
	}
	defer cleanup()

	if s.recognizer == nil {
		s.m.TranscriptionsSimulated.Add(1)
		logger.Debug("Analysis", "simulated transcript (input=%s)", input)
		return s.sim.Transcript(), nil
	}

	inferCtx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	defer cancel()

	raw, err := s.recognizer.Transcribe(inferCtx, path)
	if err != nil {
		return types.TranscriptionResult{}, s.inferenceError(inferCtx, "transcription", input, err)
	}

	result := normalizeTranscript(raw, input)

	s.m.Transcriptions.Add(1)
	s.m.UpdateTranscribeLatency(time.Since(start))
	return result, nil
}

// normalizeTranscript trims segment text and clamps segment bounds. Order is
// kept exactly as the backend reported it; out-of-order segments are logged,
// not re-sorted.
func normalizeTranscript(raw detect.RawTranscript, input string) types.TranscriptionResult {
	segments := make([]types.TranscriptSegment, 0, len(raw.Segments))
	prevStart := 0.0
	for i, seg := range raw.Segments {
		start := seg.Start
		if start < 0 {
			start = 0
		}
		end := seg.End
		if end < start {
			end = start
		}
		if start < prevStart {
			logger.Warn("Analysis", "non-chronological segment %d (input=%s): start %.2f after %.2f", i, input, start, prevStart)
		}
		prevStart = start

		segments = append(segments, types.TranscriptSegment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	language := raw.Language
	if language == "" {
		language = "en"
	}

	return types.TranscriptionResult{
		Text:     strings.TrimSpace(raw.Text),
		Segments: segments,
		Language: language,
	}
}

// inferenceError converts a backend failure into the typed taxonomy,
// distinguishing per-item timeouts from other inference failures.
func (s *Service) inferenceError(ctx context.Context, stage, input string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.m.TimeoutErrors.Add(1)
		logger.Error("Analysis", "%s timed out (input=%s)", stage, input)
		return newError(KindInferenceTimeout, stage, input, cause)
	}
	s.m.InferenceErrors.Add(1)
	logger.Error("Analysis", "%s failed (input=%s): %v", stage, input, cause)
	return newError(KindBackendInference, stage, input, cause)
}
