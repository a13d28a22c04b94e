package analysis

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mediamod/analysis-server/internal/metrics"
	"github.com/mediamod/analysis-server/pkg/types"
)

// selectiveDetector fails inference for one specific frame and answers
// normally for every other input. The staged file carries the frame bytes
// verbatim, so matching on content works regardless of worker scheduling.
type selectiveDetector struct {
	bad        []byte
	detections []types.Detection
}

func (d *selectiveDetector) Detect(ctx context.Context, imagePath string) ([]types.Detection, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(data, d.bad) {
		return nil, errors.New("inference exploded")
	}
	return d.detections, nil
}

func TestBatchAnalyzeIsolatesItemFailures(t *testing.T) {
	frames := [][]byte{pngFrame(t, 1), pngFrame(t, 2), pngFrame(t, 3)}

	det := &selectiveDetector{
		bad:        frames[1],
		detections: []types.Detection{{Label: "person", Confidence: 0.9}},
	}
	svc := NewWithBackends(testConfig(), metrics.New(), nil, det, nil)

	items := svc.BatchAnalyze(context.Background(), frames)

	if len(items) != 3 {
		t.Fatalf("outcomes = %d, want 3 (batch must not short-circuit)", len(items))
	}
	for i, item := range items {
		if item.Index != i {
			t.Fatalf("outcome %d carries index %d, order not preserved", i, item.Index)
		}
	}

	if items[0].Err != nil {
		t.Fatalf("item 0 failed: %v", items[0].Err)
	}
	if items[2].Err != nil {
		t.Fatalf("item 2 failed: %v", items[2].Err)
	}
	if items[1].Err == nil {
		t.Fatalf("item 1 succeeded, want inference failure")
	}
	if !IsKind(items[1].Err, KindBackendInference) {
		t.Fatalf("item 1 error kind = %v, want backend inference", KindOf(items[1].Err))
	}

	if len(items[0].Result.RawDetections) != 1 {
		t.Fatalf("item 0 result = %+v, want one detection", items[0].Result)
	}
}

func TestBatchAnalyzeMixedDecodeFailure(t *testing.T) {
	frames := [][]byte{pngFrame(t, 1), []byte("not an image"), pngFrame(t, 2)}
	svc := NewWithBackends(testConfig(), metrics.New(), nil, &stubDetector{}, nil)

	items := svc.BatchAnalyze(context.Background(), frames)

	if len(items) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(items))
	}
	if !IsKind(items[1].Err, KindInputDecode) {
		t.Fatalf("item 1 error kind = %v, want input decode", KindOf(items[1].Err))
	}
	if items[0].Err != nil || items[2].Err != nil {
		t.Fatalf("valid items failed: %v, %v", items[0].Err, items[2].Err)
	}
}

func TestBatchAnalyzeEmptyBatch(t *testing.T) {
	svc := NewWithBackends(testConfig(), metrics.New(), nil, &stubDetector{}, nil)

	items := svc.BatchAnalyze(context.Background(), nil)
	if len(items) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(items))
	}
}

func TestBatchAnalyzeBoundedConcurrencyPreservesOrder(t *testing.T) {
	cfg := testConfig()
	cfg.BatchWorkers = 2

	const n = 16
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = pngFrame(t, uint8(i))
	}

	svc := NewWithBackends(cfg, metrics.New(), nil,
		&stubDetector{detections: []types.Detection{{Label: "chair", Confidence: 0.5}}}, nil)

	items := svc.BatchAnalyze(context.Background(), frames)
	if len(items) != n {
		t.Fatalf("outcomes = %d, want %d", len(items), n)
	}
	for i, item := range items {
		if item.Index != i || item.Err != nil {
			t.Fatalf("item %d: index=%d err=%v", i, item.Index, item.Err)
		}
	}
}
