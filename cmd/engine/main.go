package main

import (
	"context"

	"tradesignal/config"
	"tradesignal/internal/engine"
	"tradesignal/internal/kis/codec"
	"tradesignal/internal/kis/feed"
	"tradesignal/internal/kis/snapshot"
	"tradesignal/internal/memorystore"
	"tradesignal/logger"
	"tradesignal/pkg/kis"
	"tradesignal/pkg/storage/postgres"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("engine failed", zap.Error(err))
	}

	select {}
}

// run wires the realtime pipeline: storage, REST client, WebSocket feed,
// snapshot poller, and the per-tick orchestrator.
func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Postgres: signal + strategy tables
	pgClient, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Log.Environment, true)
	if err != nil {
		return err
	}
	signalStore := postgres.NewSignalStore(pgClient)
	strategyStore := postgres.NewStrategyStore(pgClient, log)

	// KIS REST client: feed token, price snapshots, order placement
	restClient := kis.NewRESTClient(
		cfg.KIS.REST.BaseURL, cfg.KIS.AppKey, cfg.KIS.AppSecret, cfg.KIS.REST.Timeout)

	orderClient, err := kis.NewOrderClient(restClient, cfg.KIS.Account, 1, log)
	if err != nil {
		return err
	}

	// In-memory rolling price history
	priceStore := memorystore.NewPriceStore(cfg.Engine.HistoryWindow)

	instruments := make([]engine.Instrument, 0, len(cfg.Engine.Instruments))
	pairs := make([]feed.Pair, 0, len(cfg.Engine.Instruments))
	codes := make([]string, 0, len(cfg.Engine.Instruments))
	for _, inst := range cfg.Engine.Instruments {
		instruments = append(instruments, engine.Instrument{ID: inst.ID, Code: inst.Code, Name: inst.Name})
		pairs = append(pairs, feed.Pair{TrID: codec.TrIDTradeTick, Code: inst.Code})
		codes = append(codes, inst.Code)
	}
	registry := engine.NewInstrumentRegistry(instruments)

	// WebSocket feed supervisor
	supervisor := feed.NewSupervisor(feed.Options{
		URL:               cfg.KIS.WS.URL,
		CustType:          cfg.KIS.CustType,
		HeartbeatInterval: cfg.KIS.WS.HeartbeatInterval,
		ReconnectInterval: cfg.KIS.WS.ReconnectInterval,
		MaxReconnect:      cfg.KIS.WS.MaxReconnect,
		Pairs:             pairs,
	}, restClient, log)

	orchestrator := engine.NewOrchestrator(
		priceStore, registry, strategyStore, signalStore, orderClient,
		cfg.Engine.Workers, cfg.Engine.HistoryWindow, log)

	// Merge realtime and polled ticks into one arrival-ordered stream
	ticks := make(chan codec.TickEvent, 256)
	go func() {
		for tick := range supervisor.Ticks() {
			ticks <- tick
		}
	}()

	poller := snapshot.NewPoller(restClient, codes, cfg.Engine.PollInterval, ticks, log)
	go poller.Run(ctx)

	go orchestrator.Run(ctx, ticks)

	// Surface lifecycle events; MaxReconnectExceeded is recovered by the
	// liveness monitor below.
	go func() {
		for event := range supervisor.Events() {
			switch event.Kind {
			case feed.EventMaxReconnectExceeded:
				log.Error("feed gave up reconnecting, waiting for monitor",
					zap.Int("attempts", event.Attempts))
			case feed.EventDisconnected:
				log.Warn("feed disconnected", zap.Error(event.Err))
			}
		}
	}()

	if err := supervisor.Connect(); err != nil {
		log.Warn("initial connect failed, reconnect scheduled", zap.Error(err))
	}

	monitor := feed.NewMonitor(supervisor, cfg.KIS.WS.MonitorInterval, log)
	monitor.Start()

	return nil
}
