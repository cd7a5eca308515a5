package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"daytrader-api/internal/cli"
	"daytrader-api/internal/config"
	"daytrader-api/internal/svc"
	"daytrader-api/pkg/health"
	"daytrader-api/pkg/journal"
	"daytrader-api/pkg/session"
)

const shutdownTimeout = 10 * time.Second // grace period for shutdown

var (
	configFile = flag.String("f", "etc/trader.yaml", "the config file")
	journalDir = flag.String("journal", "data/journal", "iteration journal directory")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config %s: %v", *configFile, err)
	}
	appCfg.MustSetUp()

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcCtx := svc.NewServiceContext(*appCfg)

	orchestrator, err := session.New(
		appCfg.Session,
		svcCtx.Clock,
		svcCtx.DefaultMarket,
		svcCtx.StrategyEngine,
		svcCtx.RiskGate,
		svcCtx.Persistence,
		svcCtx.Notifier,
		appCfg.Symbols,
	)
	if err != nil {
		log.Fatalf("[main] Failed to build orchestrator: %v", err)
	}
	orchestrator.WithJournal(journal.NewWriter(*journalDir))

	monitor := health.NewMonitor(appCfg.Health, svcCtx.Persistence, svcCtx.DefaultMarket, svcCtx.Notifier, svcCtx.Clock)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orchestrator.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[main] Orchestrator stopped: %v", err)
			stop()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orchestrator.RunApprovalLoop(ctx, svcCtx.Notifier); err != nil && ctx.Err() == nil {
			log.Printf("[main] Approval loop stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()

	log.Println("[main] Trading session daemon started. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Trading session daemon stopped")
}
