package engineobs

import (
	"context"
	"time"

	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/trace"
	"aster-trading-bot/internal/types"
)

type observableExecutor struct {
	exec interfaces.Executor
}

var _ interfaces.Executor = (*observableExecutor)(nil)

func Wrap(exec interfaces.Executor) interfaces.Executor {
	return &observableExecutor{
		exec: exec,
	}
}

func (oe *observableExecutor) MarketBuy(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	return oe.order(ctx, "executor.MarketBuy", symbol, notionalUSD, oe.exec.MarketBuy)
}

func (oe *observableExecutor) MarketSell(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	return oe.order(ctx, "executor.MarketSell", symbol, notionalUSD, oe.exec.MarketSell)
}

func (oe *observableExecutor) LimitBuy(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	return oe.order(ctx, "executor.LimitBuy", symbol, notionalUSD, oe.exec.LimitBuy)
}

func (oe *observableExecutor) LimitSell(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	return oe.order(ctx, "executor.LimitSell", symbol, notionalUSD, oe.exec.LimitSell)
}

func (oe *observableExecutor) OpenShort(ctx context.Context, symbol string, notionalUSD float64) (types.OrderResp, error) {
	return oe.order(ctx, "executor.OpenShort", symbol, notionalUSD, oe.exec.OpenShort)
}

func (oe *observableExecutor) order(ctx context.Context, op, symbol string, notionalUSD float64, call func(context.Context, string, float64) (types.OrderResp, error)) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, op)
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 2, "Starting order",
		"op", op,
		"symbol", symbol,
		"notional", notionalUSD,
	)

	resp, err := call(ctx, symbol, notionalUSD)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Order failed", err,
			"op", op,
			"symbol", symbol,
			"notional", notionalUSD,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 2, "Order completed",
		"op", op,
		"symbol", symbol,
		"order_id", resp.OrderID,
		"status", resp.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp, nil
}

func (oe *observableExecutor) Entry(ctx context.Context, symbol string, notionalUSD float64) (types.ExecutionReport, error) {
	ctx, span := trace.StartSpan(ctx, "executor.Entry")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting entry",
		"symbol", symbol,
		"notional", notionalUSD,
	)

	report, err := oe.exec.Entry(ctx, symbol, notionalUSD)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Entry failed", err,
			"symbol", symbol,
			"notional", notionalUSD,
			"succeeded_chunks", report.SucceededChunks,
			"failed_at_chunk", report.FailedAtChunk,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	logger.InfoSkip(ctx, 1, "Entry completed",
		"symbol", symbol,
		"notional", notionalUSD,
		"chunks", report.SucceededChunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

func (oe *observableExecutor) ClosePosition(ctx context.Context, symbol string) (types.CloseReport, error) {
	ctx, span := trace.StartSpan(ctx, "executor.ClosePosition")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting position close",
		"symbol", symbol,
	)

	report, err := oe.exec.ClosePosition(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Position close failed", err,
			"symbol", symbol,
			"remaining", report.Remaining,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	logger.InfoSkip(ctx, 1, "Position close completed",
		"symbol", symbol,
		"closed", report.Closed,
		"remaining", report.Remaining,
		"chunks", report.Chunks,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

func (oe *observableExecutor) PositionValueUSD(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "executor.PositionValueUSD")
	defer span.End()

	value, err := oe.exec.PositionValueUSD(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Position value lookup failed", err,
			"symbol", symbol,
		)
		return 0, err
	}

	return value, nil
}

func (oe *observableExecutor) AccountBalance(ctx context.Context) (types.AccountBalance, error) {
	ctx, span := trace.StartSpan(ctx, "executor.AccountBalance")
	defer span.End()

	bal, err := oe.exec.AccountBalance(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Account balance lookup failed", err)
		return types.AccountBalance{}, err
	}

	return bal, nil
}
