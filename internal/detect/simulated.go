package detect

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mediamod/analysis-server/pkg/types"
)

// simulatedVocabulary is the object pool simulated frame results sample from.
var simulatedVocabulary = []string{"person", "chair", "table", "laptop", "phone"}

// Simulated transcript placeholder, split into two fixed segments.
const (
	simulatedTranscriptA = "This is a simulated transcription."
	simulatedTranscriptB = "No speech backend is configured."
)

// Simulator produces placeholder results when a real backend is absent.
// Scores stay in a low range reflecting "no real signal", and frame results
// carry no raw detections so consumers can tell them apart from real output.
//
// Randomness comes from a single seeded source, guarded for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a Simulator. seed 0 selects a time-based seed; pass a
// fixed seed for reproducible output.
func NewSimulator(seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// FrameResult fabricates one simulated frame analysis.
func (s *Simulator) FrameResult() types.FrameAnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 1 + s.rng.Intn(3)
	perm := s.rng.Perm(len(simulatedVocabulary))
	objects := make([]string, 0, count)
	for _, idx := range perm[:count] {
		objects = append(objects, simulatedVocabulary[idx])
	}

	result := types.FrameAnalysisResult{
		Nudity:   s.rng.Float64() * 0.1,
		Violence: s.rng.Float64() * 0.1,
		Weapons:  s.rng.Float64() * 0.05,
		Objects:  objects,
		Faces:    []types.FaceDetection{},
	}
	if s.rng.Float64() > 0.5 {
		result.Faces = append(result.Faces, types.FaceDetection{Confidence: 0.85})
	}
	return result
}

// Transcript fabricates the fixed placeholder transcript.
func (s *Simulator) Transcript() types.TranscriptionResult {
	return types.TranscriptionResult{
		Text: simulatedTranscriptA + " " + simulatedTranscriptB,
		Segments: []types.TranscriptSegment{
			{Start: 0, End: 5, Text: simulatedTranscriptA},
			{Start: 5, End: 10, Text: simulatedTranscriptB},
		},
		Language: "en",
	}
}
