package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/mediamod/analysis-server/internal/detect"
	"github.com/mediamod/analysis-server/internal/metrics"
	"github.com/mediamod/analysis-server/pkg/types"
)

// pngFrame encodes a tiny valid PNG so staging's decode check passes. The
// fill color makes frames byte-distinguishable for batch tests.
func pngFrame(t *testing.T, c uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: c, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type stubDetector struct {
	detections []types.Detection
	err        error
	delay      time.Duration
}

func (s *stubDetector) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.detections, s.err
}

type stubRecognizer struct {
	transcript detect.RawTranscript
	err        error
}

func (s *stubRecognizer) Transcribe(ctx context.Context, audioPath string) (detect.RawTranscript, error) {
	return s.transcript, s.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InferenceTimeout = 2 * time.Second
	cfg.SimulationSeed = 1
	return cfg
}

func TestAnalyzeFrameRealMode(t *testing.T) {
	det := &stubDetector{detections: []types.Detection{
		{Label: "knife", Confidence: 0.9},
		{Label: "person", Confidence: 0.95},
		{Label: "person", Confidence: 0.9},
	}}
	svc := NewWithBackends(testConfig(), metrics.New(), nil, det, nil)

	res, err := svc.AnalyzeFrame(context.Background(), pngFrame(t, 1))
	if err != nil {
		t.Fatalf("AnalyzeFrame: %v", err)
	}

	if res.RawDetections == nil {
		t.Fatalf("real-mode result has nil raw detections")
	}
	if len(res.RawDetections) != 3 {
		t.Fatalf("raw detections = %d, want passthrough of all 3", len(res.RawDetections))
	}
	if math.Abs(res.Weapons-0.72) > 1e-9 {
		t.Fatalf("weapons = %v, want 0.72", res.Weapons)
	}
	if len(res.Objects) != 2 {
		t.Fatalf("objects = %v, want [knife person]", res.Objects)
	}
	if len(res.Faces) != 2 {
		t.Fatalf("faces = %d, want 2", len(res.Faces))
	}
}

func TestAnalyzeFrameEmptyDetectionsStaysRealMode(t *testing.T) {
	svc := NewWithBackends(testConfig(), metrics.New(), nil, &stubDetector{}, nil)

	res, err := svc.AnalyzeFrame(context.Background(), pngFrame(t, 1))
	if err != nil {
		t.Fatalf("AnalyzeFrame: %v", err)
	}
	if res.RawDetections == nil {
		t.Fatalf("empty real result must keep non-nil raw detections")
	}
	if res.Simulated() {
		t.Fatalf("result reports simulated, want real")
	}
}

func TestAnalyzeFrameSimulatedMode(t *testing.T) {
	svc := NewWithBackends(testConfig(), metrics.New(), nil, nil, nil)

	res, err := svc.AnalyzeFrame(context.Background(), pngFrame(t, 1))
	if err != nil {
		t.Fatalf("AnalyzeFrame: %v", err)
	}
	if !res.Simulated() {
		t.Fatalf("detector absent but result not marked simulated: %+v", res)
	}
	if len(res.Objects) == 0 {
		t.Fatalf("simulated result has no objects")
	}
}

func TestAnalyzeFrameInputDecodeFailure(t *testing.T) {
	svc := NewWithBackends(testConfig(), metrics.New(), nil, &stubDetector{}, nil)

	_, err := svc.AnalyzeFrame(context.Background(), []byte("definitely not an image"))
	if err == nil {
		t.Fatalf("AnalyzeFrame accepted garbage input")
	}
	if !IsKind(err, KindInputDecode) {
		t.Fatalf("error kind = %v, want input decode", KindOf(err))
	}
}

func TestAnalyzeFrameBackendFailureIsTypedNotFallback(t *testing.T) {
	det := &stubDetector{err: errors.New("cuda out of memory")}
	svc := NewWithBackends(testConfig(), metrics.New(), nil, det, nil)

	_, err := svc.AnalyzeFrame(context.Background(), pngFrame(t, 1))
	if err == nil {
		t.Fatalf("backend failure produced a result, want typed error")
	}
	if !IsKind(err, KindBackendInference) {
		t.Fatalf("error kind = %v, want backend inference", KindOf(err))
	}

	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("error is not *Error: %T", err)
	}
	if ae.Input == "" || ae.Stage != "object_detection" {
		t.Fatalf("error missing context: %+v", ae)
	}
	if ae.Unwrap() == nil {
		t.Fatalf("original cause not attached")
	}
}

func TestAnalyzeFrameTimeoutIsDistinctKind(t *testing.T) {
	cfg := testConfig()
	cfg.InferenceTimeout = 20 * time.Millisecond
	det := &stubDetector{delay: 500 * time.Millisecond}
	svc := NewWithBackends(cfg, metrics.New(), nil, det, nil)

	_, err := svc.AnalyzeFrame(context.Background(), pngFrame(t, 1))
	if !IsKind(err, KindInferenceTimeout) {
		t.Fatalf("error kind = %v, want inference timeout", KindOf(err))
	}
}

func TestAnalyzeFrameIsIdempotentWithDeterministicBackend(t *testing.T) {
	det := &stubDetector{detections: []types.Detection{
		{Label: "knife", Confidence: 0.7},
		{Label: "person", Confidence: 0.8},
	}}
	svc := NewWithBackends(testConfig(), metrics.New(), nil, det, nil)

	frame := pngFrame(t, 3)
	first, err := svc.AnalyzeFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("first AnalyzeFrame: %v", err)
	}
	second, err := svc.AnalyzeFrame(context.Background(), frame)
	if err != nil {
		t.Fatalf("second AnalyzeFrame: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical input diverged:\n%+v\n%+v", first, second)
	}
}

func TestCapabilitiesReflectInjectedBackends(t *testing.T) {
	svc := NewWithBackends(testConfig(), metrics.New(), nil, &stubDetector{}, nil)

	caps := svc.Capabilities(context.Background())
	if !caps.ObjectDetector {
		t.Fatalf("object detector capability = false, want true")
	}
	if caps.SpeechRecognizer {
		t.Fatalf("speech recognizer capability = true, want false")
	}
}

func TestCapabilitiesResolveOnceWithoutConfiguredBackends(t *testing.T) {
	svc := New(testConfig(), metrics.New(), nil)

	first := svc.Capabilities(context.Background())
	second := svc.Capabilities(context.Background())
	if first != second {
		t.Fatalf("capabilities changed between reads: %+v vs %+v", first, second)
	}
	if first.ObjectDetector || first.SpeechRecognizer {
		t.Fatalf("no backends configured but capabilities = %+v", first)
	}
}

func ExampleService_AnalyzeFrame() {
	svc := NewWithBackends(DefaultConfig(), metrics.New(), nil,
		&stubDetector{detections: []types.Detection{{Label: "knife", Confidence: 0.9}}}, nil)

	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1)))

	res, _ := svc.AnalyzeFrame(context.Background(), buf.Bytes())
	fmt.Printf("weapons=%.2f simulated=%v\n", res.Weapons, res.Simulated())
	// Output: weapons=0.72 simulated=false
}
