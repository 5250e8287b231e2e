package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemLabel(i int) string { return fmt.Sprintf("item-%d", i) }

func TestRunBatchesCountsOutcomes(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	result, err := RunBatches(context.Background(), items, 2, itemLabel,
		func(ctx context.Context, item int) (Outcome, error) {
			switch {
			case item == 3:
				return 0, errors.New("boom")
			case item%2 == 0:
				return OutcomeSkipped, nil
			default:
				return OutcomeCreated, nil
			}
		}, nil)

	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "item-3", result.Errors[0].Label)
	assert.Equal(t, "boom", result.Errors[0].Message)
}

func TestRunBatchesFailureDoesNotAbortSiblings(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	var processed atomic.Int32

	result, err := RunBatches(context.Background(), items, 3, itemLabel,
		func(ctx context.Context, item int) (Outcome, error) {
			processed.Add(1)
			if item == 1 {
				return 0, errors.New("first item fails")
			}
			return OutcomeCreated, nil
		}, nil)

	require.NoError(t, err)
	assert.Equal(t, int32(6), processed.Load(), "all items ran despite the early failure")
	assert.Equal(t, 5, result.Created)
	assert.Equal(t, 1, result.Failed)
}

func TestRunBatchesChunkCallbackStopsRun(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}
	stop := errors.New("stop")
	var chunks int

	result, err := RunBatches(context.Background(), items, 2, itemLabel,
		func(ctx context.Context, item int) (Outcome, error) {
			return OutcomeCreated, nil
		},
		func(r WorkBatchResult) error {
			chunks++
			if chunks == 2 {
				return stop
			}
			return nil
		})

	require.ErrorIs(t, err, stop)
	assert.Equal(t, 2, chunks)
	assert.Equal(t, 4, result.Processed, "stopped at the second chunk boundary")
}

func TestRunBatchesHonorsContextAtChunkBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := []int{1, 2, 3, 4}

	result, err := RunBatches(ctx, items, 2, itemLabel,
		func(ctx context.Context, item int) (Outcome, error) {
			return OutcomeCreated, nil
		},
		func(r WorkBatchResult) error {
			cancel()
			return nil
		})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.Processed)
}

func TestRunBatchesCapsErrorList(t *testing.T) {
	items := make([]int, maxBatchErrors+10)
	for i := range items {
		items[i] = i
	}

	result, err := RunBatches(context.Background(), items, 10, itemLabel,
		func(ctx context.Context, item int) (Outcome, error) {
			return 0, errors.New("always fails")
		}, nil)

	require.NoError(t, err)
	assert.Equal(t, len(items), result.Failed)
	assert.Len(t, result.Errors, maxBatchErrors)
}

func TestRunBatchesEmptyInput(t *testing.T) {
	var calls atomic.Int32
	result, err := RunBatches(context.Background(), nil, 5, itemLabel,
		func(ctx context.Context, item int) (Outcome, error) {
			calls.Add(1)
			return 0, nil
		}, nil)

	assert.Zero(t, calls.Load())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}
