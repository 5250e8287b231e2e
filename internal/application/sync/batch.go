package sync

import (
	"context"
	"fmt"
	"sync"
)

// maxBatchErrors caps how many per-item failures a result carries so a
// fully broken remote cannot balloon the report.
const maxBatchErrors = 25

// Outcome classifies what a worker did with one item.
type Outcome int

const (
	// OutcomeCreated means a new record was created on the target.
	OutcomeCreated Outcome = iota
	// OutcomeSkipped means the item needed no work, usually because
	// the target already has it.
	OutcomeSkipped
)

// BatchError is one failed item, identified by a human-readable label.
type BatchError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// WorkBatchResult accumulates counters across all batches of a run.
type WorkBatchResult struct {
	Total     int          `json:"total"`
	Processed int          `json:"processed"`
	Created   int          `json:"created"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors,omitempty"`
}

func (r *WorkBatchResult) recordError(label string, err error) {
	r.Failed++
	if len(r.Errors) < maxBatchErrors {
		r.Errors = append(r.Errors, BatchError{Label: label, Message: err.Error()})
	}
}

// RunBatches processes items in chunks of batchSize. Items within a
// chunk run concurrently; a failed item never aborts its siblings or
// later chunks. After each chunk, onChunk receives a snapshot of the
// running totals; returning an error from it stops the run at that
// chunk boundary, as does context cancellation. The partial result is
// returned either way.
func RunBatches[T any](
	ctx context.Context,
	items []T,
	batchSize int,
	label func(item T) string,
	work func(ctx context.Context, item T) (Outcome, error),
	onChunk func(result WorkBatchResult) error,
) (WorkBatchResult, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	result := WorkBatchResult{Total: len(items)}

	for start := 0; start < len(items); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, item := range chunk {
			wg.Add(1)
			go func(item T) {
				defer func() {
					if r := recover(); r != nil {
						mu.Lock()
						result.recordError(label(item), fmt.Errorf("panic: %v", r))
						result.Processed++
						mu.Unlock()
					}
					wg.Done()
				}()

				outcome, err := work(ctx, item)

				mu.Lock()
				defer mu.Unlock()
				result.Processed++
				switch {
				case err != nil:
					result.recordError(label(item), err)
				case outcome == OutcomeCreated:
					result.Created++
				default:
					result.Skipped++
				}
			}(item)
		}
		wg.Wait()

		if onChunk != nil {
			if err := onChunk(result); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}
