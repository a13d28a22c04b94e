// Package score turns raw object detections into bounded moderation scores.
package score

import (
	"strings"

	"github.com/mediamod/analysis-server/pkg/types"
)

// Score weights applied to a detection's confidence before it contributes to
// a category. Combination across detections is max, not sum, so several
// near-duplicate boxes of the same weapon cannot inflate the score.
const (
	weaponWeight   = 0.8
	violenceWeight = 0.5
)

// Proxy face synthesis. Without a dedicated face detector, "person"
// detections stand in for faces, capped so crowd shots don't dominate.
const (
	maxProxyFaces       = 5
	proxyFaceConfidence = 0.8
)

// weaponLabels and violenceLabels are compared against lower-cased detection
// labels. The tables overlap on purpose: a knife is both.
var (
	weaponLabels = map[string]struct{}{
		"knife":         {},
		"scissors":      {},
		"baseball bat":  {},
		"tennis racket": {},
	}

	violenceLabels = map[string]struct{}{
		"knife":        {},
		"baseball bat": {},
		"scissors":     {},
	}
)

// NudityProvider supplies nudity and sexual-content scores for a detection
// set. The object detector's label vocabulary cannot express these
// categories, so both default to zero unless a provider is wired in.
type NudityProvider interface {
	ScoreNudity(detections []types.Detection) (nudity, sexualContent float64)
}

// Result is the score vector plus object/face summaries derived from one
// detection sequence.
//
// Faces is a proxy synthesized from "person" detections, not real face
// localization; see FaceDetection.
type Result struct {
	Nudity        float64
	Violence      float64
	Weapons       float64
	SexualContent float64
	Objects       []string
	Faces         []types.FaceDetection
}

// Engine maps labeled, confidence-scored detections to moderation scores.
// It is pure and total: any detection sequence, including an empty one,
// yields a valid Result and no error.
type Engine struct {
	nudity NudityProvider
}

// NewEngine creates an Engine. provider may be nil, in which case nudity and
// sexual-content scores are always zero.
func NewEngine(provider NudityProvider) *Engine {
	return &Engine{nudity: provider}
}

// Score computes the moderation score vector for one frame's detections.
func (e *Engine) Score(detections []types.Detection) Result {
	var res Result

	seen := make(map[string]struct{}, len(detections))
	persons := 0

	for _, d := range detections {
		label := strings.ToLower(d.Label)

		if _, ok := weaponLabels[label]; ok {
			res.Weapons = maxScore(res.Weapons, d.Confidence*weaponWeight)
		}
		if _, ok := violenceLabels[label]; ok {
			res.Violence = maxScore(res.Violence, d.Confidence*violenceWeight)
		}

		if _, ok := seen[d.Label]; !ok {
			seen[d.Label] = struct{}{}
			res.Objects = append(res.Objects, d.Label)
		}

		if label == "person" {
			persons++
		}
	}

	if e.nudity != nil {
		res.Nudity, res.SexualContent = e.nudity.ScoreNudity(detections)
	}

	if persons > maxProxyFaces {
		persons = maxProxyFaces
	}
	for i := 0; i < persons; i++ {
		res.Faces = append(res.Faces, types.FaceDetection{Confidence: proxyFaceConfidence})
	}

	res.Nudity = clamp(res.Nudity)
	res.Violence = clamp(res.Violence)
	res.Weapons = clamp(res.Weapons)
	res.SexualContent = clamp(res.SexualContent)

	return res
}

func maxScore(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
