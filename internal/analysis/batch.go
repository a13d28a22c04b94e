package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mediamod/analysis-server/pkg/types"
)

// BatchItem is the outcome for one frame in a batch: either Result is valid
// or Err is non-nil, never both.
type BatchItem struct {
	Index  int
	Result types.FrameAnalysisResult
	Err    error
}

// BatchAnalyze runs AnalyzeFrame over every input frame and returns one
// outcome per input, in input order. Items run concurrently up to the
// configured worker limit. A failing item never aborts the rest of the
// batch: its error is reported inline in its slot.
func (s *Service) BatchAnalyze(ctx context.Context, frames [][]byte) []BatchItem {
	s.m.BatchRequests.Add(1)
	s.m.BatchItems.Add(uint64(len(frames)))

	items := make([]BatchItem, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchWorkers)

	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			result, err := s.AnalyzeFrame(gctx, frame)
			items[i] = BatchItem{Index: i, Result: result, Err: err}
			// Per-item isolation: errors stay in the item, never fail the group.
			return nil
		})
	}

	// No task returns an error, so Wait only synchronizes completion.
	_ = g.Wait()

	return items
}
