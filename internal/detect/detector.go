// Package detect abstracts the optional inference backends. Model runtimes
// (object detection, speech-to-text) are opaque capability providers: each
// one either answers a single staged input or is absent, in which case the
// analysis layer falls back to simulated output.
package detect

import (
	"context"

	"github.com/mediamod/analysis-server/pkg/types"
)

// ObjectDetector runs object detection over one staged frame file.
type ObjectDetector interface {
	// Detect returns the detections for the image at imagePath, possibly
	// empty. Errors mean the backend was reachable but failed on this input.
	Detect(ctx context.Context, imagePath string) ([]types.Detection, error)
}

// RawSegment is one segment exactly as the speech backend reported it,
// before normalization.
type RawSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// RawTranscript is the speech backend's native output for one clip.
type RawTranscript struct {
	Text     string       `json:"text"`
	Segments []RawSegment `json:"segments"`
	Language string       `json:"language"`
}

// SpeechRecognizer transcribes one staged audio file.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audioPath string) (RawTranscript, error)
}

// Prober is implemented by backends that can report reachability up front.
// Availability is resolved once at startup from the probe result.
type Prober interface {
	Probe(ctx context.Context) error
}
