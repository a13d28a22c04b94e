package types

// Detection is one labeled, confidence-scored object localization reported by
// an object-detection backend for a single frame. Confidence is in [0,1].
// BBox, when present, is (x1, y1, x2, y2) in pixel coordinates and is passed
// through untouched.
type Detection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// FaceDetection is one face entry in a FrameAnalysisResult.
//
// The service has no dedicated face detector; entries are synthesized from
// "person" object detections with a placeholder confidence. Callers must not
// treat these as ground-truth face localization.
type FaceDetection struct {
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// FrameAnalysisResult is the moderation verdict for a single frame.
//
// Every score field is clamped to [0,1] and Objects carries no duplicate
// labels. RawDetections is nil exactly when the result was produced in
// simulated mode (object detector unavailable); consumers use that to decide
// whether the scores are trustworthy.
type FrameAnalysisResult struct {
	Nudity        float64         `json:"nudity"`
	Violence      float64         `json:"violence"`
	Weapons       float64         `json:"weapons"`
	SexualContent float64         `json:"sexual_content"`
	Objects       []string        `json:"objects"`
	Faces         []FaceDetection `json:"faces"`
	RawDetections []Detection     `json:"raw_detections,omitempty"`
}

// Simulated reports whether the result was produced without a real backend.
func (r *FrameAnalysisResult) Simulated() bool {
	return r.RawDetections == nil
}

// TranscriptSegment is one time-bounded piece of a transcript. Text is
// trimmed of leading/trailing whitespace; Start >= 0 and End >= Start.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the normalized transcript for one audio clip.
// Segments keep the backend-reported (chronological) order.
type TranscriptionResult struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language"`
}

// Capabilities reports which detection backends the process can reach. It is
// resolved once at first use and never changes afterwards.
type Capabilities struct {
	ObjectDetector   bool `json:"object_detector"`
	SpeechRecognizer bool `json:"speech_recognizer"`
}
