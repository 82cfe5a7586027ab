package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/types"
)

// chunkPlanner splits a large request into bounded sub-orders and runs them
// strictly sequentially. Order placement against one symbol must never race
// with itself, so there is no concurrency here by design of the contract.
type chunkPlanner struct {
	clock interfaces.Clock
	delay time.Duration
}

func newChunkPlanner(clock interfaces.Clock, delay time.Duration) *chunkPlanner {
	return &chunkPlanner{clock: clock, delay: delay}
}

// planChunks derives the decomposition: count = ceil(total/maxChunkSize),
// minimum 1, with equal chunk sizes.
func planChunks(total, maxChunkSize float64) types.ChunkPlan {
	count := 1
	if maxChunkSize > 0 && total > maxChunkSize {
		count = int(math.Ceil(total / maxChunkSize))
	}
	return types.ChunkPlan{
		Total:      total,
		ChunkCount: count,
		ChunkSize:  total / float64(count),
	}
}

// execute runs the plan one chunk at a time with a fixed inter-chunk delay
// for gateway rate limits. It halts at the first failure and reports partial
// completion; retrying a failed chunk is the caller's decision.
func (p *chunkPlanner) execute(ctx context.Context, plan types.ChunkPlan, placeOne func(ctx context.Context, chunkIndex int, size float64) error) (types.ExecutionReport, error) {
	report := types.ExecutionReport{FailedAtChunk: -1}

	for i := 0; i < plan.ChunkCount; i++ {
		logger.Debug(ctx, "Executing chunk",
			"chunk", i+1,
			"total_chunks", plan.ChunkCount,
			"chunk_size", plan.ChunkSize,
		)
		if err := placeOne(ctx, i, plan.ChunkSize); err != nil {
			report.FailedAtChunk = i
			return report, fmt.Errorf("chunk %d/%d: %w", i+1, plan.ChunkCount, err)
		}
		report.SucceededChunks++

		if i < plan.ChunkCount-1 && p.delay > 0 {
			p.clock.Sleep(p.delay)
		}
	}
	return report, nil
}
