package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stablesim/stablesim/params"
	"github.com/stablesim/stablesim/pkg/api"
	"github.com/stablesim/stablesim/pkg/sim"
	"github.com/stablesim/stablesim/pkg/storage"
	"github.com/stablesim/stablesim/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	var logger *zap.Logger
	var err error
	if cfg.Run.LogPath != "" {
		logger, err = util.NewLoggerWithFile(cfg.Run.LogPath, cfg.Run.Debug)
	} else {
		logger, err = util.NewLogger(cfg.Run.Debug)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	model := sim.New(cfg.Sim, logger)

	var archive *storage.Archive
	if cfg.Run.ArchivePath != "" {
		archive, err = storage.NewArchive(cfg.Run.ArchivePath)
		if err != nil {
			logger.Fatal("open archive", zap.Error(err))
		}
		defer archive.Close()
	}

	var server *api.Server
	if cfg.Run.APIAddr != "" {
		server = api.NewServer(model, archive)
		go func() {
			if err := server.Start(cfg.Run.APIAddr); err != nil {
				logger.Fatal("api server", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("run starting",
		zap.Int64("ticks", cfg.Run.Ticks),
		zap.Int64("seed", cfg.Sim.Seed))

	var pace <-chan time.Time
	if cfg.Run.TickIntervalMS > 0 {
		ticker := time.NewTicker(time.Duration(cfg.Run.TickIntervalMS) * time.Millisecond)
		defer ticker.Stop()
		pace = ticker.C
	}

	archived := make(map[string]int)
	for i := int64(0); i < cfg.Run.Ticks; i++ {
		if pace != nil {
			select {
			case <-stop:
				logger.Info("interrupted", zap.Int64("tick", model.Tick()))
				return
			case <-pace:
			}
		} else {
			select {
			case <-stop:
				logger.Info("interrupted", zap.Int64("tick", model.Tick()))
				return
			default:
			}
		}

		step := func() {
			model.Step()
			if archive != nil {
				for _, b := range model.Markets().Books() {
					history := b.History()
					for _, rec := range history[archived[b.Name()]:] {
						if err := archive.SaveTrade(rec); err != nil {
							logger.Warn("archive trade", zap.Error(err))
						}
					}
					archived[b.Name()] = len(history)
				}
			}
		}
		if server != nil {
			server.StepLocked(step)
		} else {
			step()
		}
	}

	if archive != nil {
		if err := archive.Flush(); err != nil {
			logger.Warn("archive flush", zap.Error(err))
		}
	}

	logger.Info("run finished",
		zap.Int64("tick", model.Tick()),
		zap.String("coinFiat", model.Markets().CoinPriceInFiat().String()),
		zap.String("stableFiat", model.Markets().StablePriceInFiat().String()),
		zap.String("gini", model.Gini().String()))

	// Keep serving the dashboard over the finished run until interrupted.
	if server != nil {
		<-stop
	}
}
