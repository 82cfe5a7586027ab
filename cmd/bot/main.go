package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aster-trading-bot/internal/engine"
	"aster-trading-bot/internal/eod"
	"aster-trading-bot/internal/interfaces"
	"aster-trading-bot/internal/logger"
	"aster-trading-bot/internal/store"
	"aster-trading-bot/internal/trace"
	"aster-trading-bot/internal/tradelog"
	"aster-trading-bot/internal/types"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Fatal(err)
	}

	compressOldLogs(ctx)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	gw := initializeGateway(ctx, cfg)
	exec := initializeExecutor(cfg, gw)
	decider := initializeDecider(cfg)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()
	eodTick := time.NewTicker(time.Hour)
	defer eodTick.Stop()

	logger.Info(ctx, "Bot started",
		"mode", cfg.Mode,
		"symbols", cfg.Symbols,
		"poll_seconds", cfg.PollSeconds,
	)

	for {
		select {
		case <-tick.C:
			for _, sym := range cfg.Symbols {
				if err := step(ctx, cfg, gw, exec, decider, sym); err != nil {
					logger.ErrorWithErr(ctx, "Step failed", err, "symbol", sym)
				}
			}
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				if p, err := eod.SummarizeDay(time.Now().UTC().AddDate(0, 0, -1)); err == nil && p != "" {
					logger.Info(ctx, "Daily summary written", "csv_path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			if p, err := eod.SummarizeToday(); err == nil && p != "" {
				logger.Info(ctx, "Daily summary written", "csv_path", p)
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = trace.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// step runs one decision cycle for a symbol: fetch the current position, ask
// the decider, and execute the resulting action.
func step(ctx context.Context, cfg *store.Config, gw interfaces.Gateway, exec interfaces.Executor, decider interfaces.Decider, symbol string) error {
	pos, err := gw.Position(ctx, engine.FormatSymbol(symbol))
	if err != nil {
		return err
	}

	decision, err := decider.Decide(ctx, symbol, pos, nil)
	if err != nil {
		return err
	}

	logger.Decision(ctx, symbol, decision.Action, decision.Confidence, decision.Reason)
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     symbol,
		Action:     decision.Action,
		Reason:     decision.Reason,
		Confidence: decision.Confidence,
	})

	notional := decision.NotionalUSD
	if notional <= 0 {
		notional = cfg.Trading.UsdSize
	}

	switch decision.Action {
	case "BUY":
		report, err := exec.Entry(ctx, symbol, notional)
		if err != nil {
			logger.Warn(ctx, "Entry incomplete",
				"symbol", symbol,
				"succeeded_chunks", report.SucceededChunks,
				"failed_at_chunk", report.FailedAtChunk,
			)
			return err
		}
	case "SELL":
		if _, err := exec.MarketSell(ctx, symbol, notional); err != nil {
			var sizeErr *types.SizeError
			if errors.As(err, &sizeErr) {
				logger.Warn(ctx, "Sell skipped, size below minimum", "symbol", symbol, "notional", notional)
				return nil
			}
			return err
		}
	case "CLOSE":
		report, err := exec.ClosePosition(ctx, symbol)
		if err != nil {
			return err
		}
		if !report.Closed {
			logger.Warn(ctx, "Close left residual position",
				"symbol", symbol,
				"remaining", report.Remaining,
			)
		}
	case "HOLD":
		// nothing to do
	default:
		logger.Warn(ctx, "Unknown decision action", "symbol", symbol, "action", decision.Action)
	}

	return nil
}
