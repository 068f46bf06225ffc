package monitor

import "github.com/autonomos/orchestrator/domain"

// Aggregate merges per-source event batches into one ordered sequence.
// Batches must be indexed in the fixed source order from Sources; each
// batch keeps its emission order. No deduplication: identical events from
// two sources are retained as two entries.
func Aggregate(batches [][]domain.Event) []domain.Event {
	var total int
	for _, b := range batches {
		total += len(b)
	}
	out := make([]domain.Event, 0, total)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}
