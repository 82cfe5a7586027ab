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

// positionCloser liquidates a position in bounded chunks of reduce-only
// market orders. The live position is re-fetched before every chunk: fills,
// funding, and liquidation all change the authoritative remainder out of
// band, so a quantity captured once at the start would go stale.
type positionCloser struct {
	gw        interfaces.Gateway
	precision *precisionResolver
	clock     interfaces.Clock

	dustThreshold float64
	maxChunks     int
	delay         time.Duration
}

func newPositionCloser(gw interfaces.Gateway, precision *precisionResolver, clock interfaces.Clock, dustThreshold float64, maxChunks int, delay time.Duration) *positionCloser {
	return &positionCloser{
		gw:            gw,
		precision:     precision,
		clock:         clock,
		dustThreshold: dustThreshold,
		maxChunks:     maxChunks,
		delay:         delay,
	}
}

// Close liquidates the symbol's position, capping each chunk at
// maxChunkNotional USD. It stops when the remainder drops under the dust
// threshold or the chunk cap is reached, then verifies the final state with
// one more authoritative position fetch.
func (pc *positionCloser) Close(ctx context.Context, symbol string, maxChunkNotional float64) (types.CloseReport, error) {
	pos, err := pc.gw.Position(ctx, symbol)
	if err != nil {
		return types.CloseReport{}, fmt.Errorf("fetch position: %w", err)
	}
	if pos == nil || math.Abs(pos.Quantity) < pc.dustThreshold {
		logger.Info(ctx, "No position to close", "symbol", symbol)
		return types.CloseReport{Closed: true}, nil
	}

	closeSide := types.SideSell
	if !pos.IsLong() {
		closeSide = types.SideBuy
	}

	plan := planChunks(pos.NotionalUSD(), maxChunkNotional)
	spec := pc.precision.Resolve(ctx, symbol)
	chunkTokens := quantize(math.Abs(pos.Quantity)/float64(plan.ChunkCount), spec.QuantityDecimals)

	logger.Info(ctx, "Closing position in chunks",
		"symbol", symbol,
		"position_qty", pos.Quantity,
		"close_side", closeSide,
		"chunks", plan.ChunkCount,
		"chunk_tokens", chunkTokens,
	)

	limit := plan.ChunkCount
	if limit > pc.maxChunks {
		limit = pc.maxChunks
	}

	chunks := 0
	for i := 0; i < limit; i++ {
		current, err := pc.gw.Position(ctx, symbol)
		if err != nil {
			return types.CloseReport{Chunks: chunks}, fmt.Errorf("fetch position: %w", err)
		}
		remaining := 0.0
		if current != nil {
			remaining = math.Abs(current.Quantity)
		}
		if remaining < pc.dustThreshold {
			logger.Info(ctx, "Position fully closed",
				"symbol", symbol, "chunks", chunks)
			return types.CloseReport{Closed: true, Chunks: chunks}, nil
		}

		chunk := quantize(math.Min(chunkTokens, remaining), spec.QuantityDecimals)
		if chunk <= 0 {
			// Remainder is above dust but under one quantity step; nothing
			// further can be submitted.
			break
		}

		if _, err := pc.gw.PlaceOrder(ctx, types.OrderReq{
			Symbol:     symbol,
			Side:       closeSide,
			Type:       types.OrderTypeMarket,
			Quantity:   chunk,
			ReduceOnly: true,
		}); err != nil {
			return types.CloseReport{Remaining: remaining, Chunks: chunks},
				fmt.Errorf("close chunk %d/%d: %w", i+1, limit, err)
		}
		chunks++
		logger.Info(ctx, "Close chunk submitted",
			"symbol", symbol,
			"chunk", i+1,
			"total_chunks", limit,
			"quantity", chunk,
		)
		pc.clock.Sleep(pc.delay)
	}

	final, err := pc.gw.Position(ctx, symbol)
	if err != nil {
		return types.CloseReport{Chunks: chunks}, fmt.Errorf("verify close: %w", err)
	}
	if final == nil || math.Abs(final.Quantity) < pc.dustThreshold {
		logger.Info(ctx, "Position closed", "symbol", symbol, "chunks", chunks)
		return types.CloseReport{Closed: true, Chunks: chunks}, nil
	}

	logger.Warn(ctx, "Position partially closed",
		"symbol", symbol,
		"remaining_qty", final.Quantity,
		"chunks", chunks,
	)
	return types.CloseReport{Remaining: math.Abs(final.Quantity), Chunks: chunks}, nil
}
